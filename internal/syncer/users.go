package syncer

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/srbio/internal/logging"
	"github.com/dmitrijs2005/srbio/internal/models"
	"github.com/dmitrijs2005/srbio/internal/repositories/devices"
	"github.com/dmitrijs2005/srbio/internal/repositories/users"
	"github.com/dmitrijs2005/srbio/internal/terminal"
)

const DefaultMaxNameLength = 24

type UserDownloadResult struct {
	Processed int
	Created   int
	Updated   int
	Failures  []RecordFailure
}

// UserDownloader imports a terminal roster. Existing users only get their
// credential and card number refreshed.
type UserDownloader struct {
	base
	users users.Repository
}

func NewUserDownloader(s sessions, deviceRepo devices.Repository, userRepo users.Repository, logger logging.Logger) *UserDownloader {
	return &UserDownloader{base: newBase(s, deviceRepo, logger, "user_download"), users: userRepo}
}

func (d *UserDownloader) DownloadUsers(ctx context.Context, deviceID string) (UserDownloadResult, error) {
	var res UserDownloadResult

	err := d.run(ctx, deviceID, func(ctx context.Context, c terminal.Client) error {
		if err := terminal.Require(c, terminal.CapUsers); err != nil {
			return err
		}
		raws, err := c.GetUsers(ctx)
		if err != nil {
			return err
		}
		known, err := d.users.ExternalIDs(ctx, deviceID)
		if err != nil {
			return err
		}

		for _, raw := range raws {
			u, err := terminal.NormalizeUser(raw)
			if err != nil {
				d.reject(ctx, deviceID, "", err, &res.Failures)
				continue
			}
			err = d.users.UpsertFromTerminal(ctx, &models.EnrolledUser{
				DeviceID:       deviceID,
				ExternalUserID: u.ExternalUserID,
				DisplayName:    u.DisplayName,
				Role:           u.Role,
				Credential:     u.Credential,
				CardNumber:     u.CardNumber,
				InternalSlot:   u.Slot,
			})
			if err != nil {
				return fmt.Errorf("failed to store user %s: %w", u.ExternalUserID, err)
			}
			res.Processed++
			if _, ok := known[u.ExternalUserID]; ok {
				res.Updated++
			} else {
				res.Created++
				known[u.ExternalUserID] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	d.logger.Info(ctx, "users downloaded", "device_id", deviceID,
		"processed", res.Processed, "created", res.Created, "updated", res.Updated)
	return res, nil
}

type UserUploadResult struct {
	Pushed   int
	Failures []RecordFailure
}

// UserUploader pushes the stored roster of a device to the terminal.
type UserUploader struct {
	base
	users   users.Repository
	maxName int
}

func NewUserUploader(s sessions, deviceRepo devices.Repository, userRepo users.Repository, maxName int, logger logging.Logger) *UserUploader {
	if maxName <= 0 {
		maxName = DefaultMaxNameLength
	}
	return &UserUploader{base: newBase(s, deviceRepo, logger, "user_upload"), users: userRepo, maxName: maxName}
}

type slotUpdate struct {
	userID string
	slot   int
}

// UploadUsers writes every stored user of the device with SetUser. Known
// users keep the slot the terminal reports for them; new ones get slots
// above the highest occupied one. Single rejected records are collected in
// the result; a dropped connection aborts the batch.
func (u *UserUploader) UploadUsers(ctx context.Context, deviceID string) (UserUploadResult, error) {
	var (
		res     UserUploadResult
		updates []slotUpdate
	)

	err := u.run(ctx, deviceID, func(ctx context.Context, c terminal.Client) error {
		if err := terminal.Require(c, terminal.CapUsers|terminal.CapSetUser); err != nil {
			return err
		}
		roster, err := c.GetUsers(ctx)
		if err != nil {
			return err
		}
		slots, next := slotMap(roster)

		stored, err := u.users.ListWithProfiles(ctx, deviceID)
		if err != nil {
			return fmt.Errorf("failed to load users: %w", err)
		}

		for _, su := range stored {
			slot, known := slots[su.ExternalUserID]
			if !known {
				slot = next
				next++
			}
			rec := terminal.UserRecord{
				Slot:           slot,
				ExternalUserID: su.ExternalUserID,
				Name:           Sanitize(su.DisplayName+" "+su.Profile.LastName, u.maxName),
				Credential:     su.Credential,
				Role:           su.Role,
				CardNumber:     su.CardNumber,
			}
			if err := c.SetUser(ctx, rec); err != nil {
				if terminal.IsConnectivity(terminal.Classify(deviceID, err)) {
					return err
				}
				u.reject(ctx, deviceID, su.ExternalUserID, err, &res.Failures)
				continue
			}
			res.Pushed++
			if slot != su.InternalSlot {
				updates = append(updates, slotUpdate{userID: su.ID, slot: slot})
			}
		}
		return nil
	})

	// pushed records are on the terminal even when the batch aborted
	u.writeBack(ctx, deviceID, updates)

	if err != nil {
		return res, err
	}
	u.logger.Info(ctx, "users uploaded", "device_id", deviceID, "pushed", res.Pushed, "failed", len(res.Failures))
	return res, nil
}

// slotMap indexes the roster by external id and returns the first slot
// above every occupied one.
func slotMap(roster []terminal.RawUser) (map[string]int, int) {
	slots := make(map[string]int, len(roster))
	highest := 0
	for _, r := range roster {
		if id := strings.TrimSpace(r.UserID); id != "" {
			slots[id] = r.Slot
		}
		if r.Slot > highest {
			highest = r.Slot
		}
	}
	return slots, highest + 1
}

func (u *UserUploader) writeBack(ctx context.Context, deviceID string, updates []slotUpdate) {
	if len(updates) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, up := range updates {
		if err := u.users.SetSlot(ctx, up.userID, up.slot); err != nil {
			u.logger.Error(ctx, "failed to store slot", "device_id", deviceID, "user_id", up.userID, "err", err)
		}
	}
}
