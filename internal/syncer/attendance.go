package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/srbio/internal/logging"
	"github.com/dmitrijs2005/srbio/internal/models"
	"github.com/dmitrijs2005/srbio/internal/publish"
	"github.com/dmitrijs2005/srbio/internal/repositories/attendance"
	"github.com/dmitrijs2005/srbio/internal/repositories/devices"
	"github.com/dmitrijs2005/srbio/internal/terminal"
)

type AttendanceResult struct {
	Received int
	Inserted int
	Failures []RecordFailure

	// Cleared is set when the terminal buffer was wiped. ClearErr holds the
	// reason it was not, when a clear was requested.
	Cleared  bool
	ClearErr error

	// Unpublished counts stored events the publisher refused.
	Unpublished int
}

type AttendanceSyncer struct {
	base
	events    attendance.Repository
	publisher publish.Publisher
	loc       *time.Location
}

func NewAttendanceSyncer(s sessions, deviceRepo devices.Repository, events attendance.Repository,
	publisher publish.Publisher, loc *time.Location, logger logging.Logger) *AttendanceSyncer {
	if publisher == nil {
		publisher = publish.Nop{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &AttendanceSyncer{
		base:      newBase(s, deviceRepo, logger, "attendance_sync"),
		events:    events,
		publisher: publisher,
		loc:       loc,
	}
}

// DownloadLogs stores the terminal's attendance buffer. Duplicates are
// ignored. With clearAfter the buffer is wiped, but only once every event
// has been stored; a failed clear is reported in the result and never
// undoes the inserts.
func (s *AttendanceSyncer) DownloadLogs(ctx context.Context, deviceID string, clearAfter bool) (AttendanceResult, error) {
	var (
		res      AttendanceResult
		inserted []*models.AttendanceEvent
	)

	err := s.run(ctx, deviceID, func(ctx context.Context, c terminal.Client) error {
		if err := terminal.Require(c, terminal.CapAttendance); err != nil {
			return err
		}
		raws, err := c.GetAttendanceEvents(ctx)
		if err != nil {
			return err
		}
		res.Received = len(raws)

		for _, raw := range raws {
			a, err := terminal.NormalizeAttendance(raw, s.loc)
			if err != nil {
				s.reject(ctx, deviceID, "", err, &res.Failures)
				continue
			}
			ev := &models.AttendanceEvent{
				DeviceID:           deviceID,
				ExternalUserID:     a.ExternalUserID,
				Timestamp:          a.Timestamp,
				VerificationMethod: a.VerificationMethod,
				EventKind:          a.EventKind,
			}
			ok, err := s.events.InsertIgnore(ctx, ev)
			if err != nil {
				return fmt.Errorf("failed to store attendance: %w", err)
			}
			if ok {
				res.Inserted++
				inserted = append(inserted, ev)
			}
		}

		if clearAfter {
			s.clear(ctx, deviceID, c, &res)
		}
		return nil
	})

	// stored rows are durable even if the session failed later
	res.Unpublished = s.forward(ctx, deviceID, inserted)

	if err != nil {
		return res, err
	}
	s.logger.Info(ctx, "attendance downloaded", "device_id", deviceID,
		"received", res.Received, "inserted", res.Inserted, "cleared", res.Cleared)
	return res, nil
}

func (s *AttendanceSyncer) clear(ctx context.Context, deviceID string, c terminal.Client, res *AttendanceResult) {
	err := terminal.Require(c, terminal.CapClearAttendance)
	if err == nil {
		err = c.ClearAttendanceBuffer(ctx)
	}
	if err != nil {
		res.ClearErr = terminal.Classify(deviceID, err)
		s.logger.Error(ctx, "failed to clear attendance buffer", "device_id", deviceID, "err", res.ClearErr)
		return
	}
	res.Cleared = true
}

// forward publishes every event and returns how many were refused.
func (s *AttendanceSyncer) forward(ctx context.Context, deviceID string, events []*models.AttendanceEvent) int {
	var (
		failed  int
		lastErr error
	)
	for _, ev := range events {
		if err := s.publisher.PublishAttendance(ctx, ev); err != nil {
			failed++
			lastErr = err
		}
	}
	if failed > 0 {
		s.logger.Warn(ctx, "failed to publish attendance", "device_id", deviceID,
			"failed", failed, "total", len(events), "err", lastErr)
	}
	return failed
}
