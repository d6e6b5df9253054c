package services

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/srbio/internal/logging"
	"github.com/dmitrijs2005/srbio/internal/models"
	"github.com/dmitrijs2005/srbio/internal/realtime"
	"github.com/dmitrijs2005/srbio/internal/repositories/repomanager"
	"github.com/dmitrijs2005/srbio/internal/syncer"
)

const (
	OpDownloadLogs  = "download_logs"
	OpDownloadUsers = "download_users"
	OpUploadUsers   = "upload_users"

	bulkConcurrency = 8
)

// SyncEvent is broadcast after every sync operation.
type SyncEvent struct {
	DeviceID  string  `json:"device_id"`
	Operation string  `json:"operation"`
	Outcome   Outcome `json:"outcome"`
}

// SyncService runs the syncers for the admin API. Sessions run on a context
// detached from the caller, so a dropped HTTP client does not abort a sync
// halfway; SessionTimeout still bounds them.
type SyncService struct {
	repos     repomanager.RepositoryManager
	logs      *syncer.AttendanceSyncer
	download  *syncer.UserDownloader
	upload    *syncer.UserUploader
	events    Broadcaster
	clearLogs bool
	logger    logging.Logger
}

func NewSyncService(m repomanager.RepositoryManager, logs *syncer.AttendanceSyncer, download *syncer.UserDownloader,
	upload *syncer.UserUploader, events Broadcaster, clearLogs bool, logger logging.Logger) *SyncService {
	if events == nil {
		events = nopBroadcaster{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SyncService{
		repos:     m,
		logs:      logs,
		download:  download,
		upload:    upload,
		events:    events,
		clearLogs: clearLogs,
		logger:    logger.With("module", "sync"),
	}
}

func (s *SyncService) finish(ctx context.Context, deviceID, op string, out Outcome, err error) (Outcome, error) {
	if err != nil {
		if requestError(err) {
			return Outcome{}, err
		}
		s.logger.Warn(ctx, "sync failed", "device_id", deviceID, "operation", op, "err", err)
		out.Success = false
		out.Message = err.Error()
	}
	s.events.Broadcast(realtime.EventSyncCompleted, SyncEvent{DeviceID: deviceID, Operation: op, Outcome: out})
	return out, nil
}

// DownloadLogs pulls attendance from one device. A nil clear uses the
// configured default.
func (s *SyncService) DownloadLogs(ctx context.Context, deviceID string, clear *bool) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	res, err := s.logs.DownloadLogs(ctx, deviceID, s.clearFlag(clear))
	return s.finish(ctx, deviceID, OpDownloadLogs, attendanceOutcome(res), err)
}

func (s *SyncService) clearFlag(clear *bool) bool {
	if clear == nil {
		return s.clearLogs
	}
	return *clear
}

func attendanceOutcome(res syncer.AttendanceResult) Outcome {
	out := Outcome{
		Success:  true,
		Message:  fmt.Sprintf("%d new of %d events", res.Inserted, res.Received),
		Counts:   map[string]int{"received": res.Received, "inserted": res.Inserted, "rejected": len(res.Failures)},
		Failures: failureStrings(res.Failures),
	}
	if res.Cleared {
		out.Message += ", terminal buffer cleared"
	}
	if res.ClearErr != nil {
		out.Message += ", clearing the terminal failed: " + res.ClearErr.Error()
	}
	return out
}

func (s *SyncService) DownloadUsers(ctx context.Context, deviceID string) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	res, err := s.download.DownloadUsers(ctx, deviceID)
	out := Outcome{
		Success:  true,
		Message:  fmt.Sprintf("%d users read, %d new", res.Processed, res.Created),
		Counts:   map[string]int{"processed": res.Processed, "created": res.Created, "updated": res.Updated, "rejected": len(res.Failures)},
		Failures: failureStrings(res.Failures),
	}
	return s.finish(ctx, deviceID, OpDownloadUsers, out, err)
}

func (s *SyncService) UploadUsers(ctx context.Context, deviceID string) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	res, err := s.upload.UploadUsers(ctx, deviceID)
	out := Outcome{
		Success:  len(res.Failures) == 0,
		Message:  fmt.Sprintf("%d users written", res.Pushed),
		Counts:   map[string]int{"pushed": res.Pushed, "failed": len(res.Failures)},
		Failures: failureStrings(res.Failures),
	}
	if len(res.Failures) > 0 {
		out.Message += fmt.Sprintf(", %d failed", len(res.Failures))
	}
	return s.finish(ctx, deviceID, OpUploadUsers, out, err)
}

// DownloadAllLogs runs DownloadLogs for every device in parallel. Each
// device is still serialized by its own lock.
func (s *SyncService) DownloadAllLogs(ctx context.Context, clear *bool) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	list, err := s.repos.Devices(s.repos.DB()).List(ctx)
	if err != nil {
		return Outcome{}, err
	}

	var (
		mu  sync.Mutex
		agg = Outcome{Counts: map[string]int{"devices": len(list), "succeeded": 0, "failed": 0, "received": 0, "inserted": 0}}
	)
	g := new(errgroup.Group)
	g.SetLimit(bulkConcurrency)
	for i := range list {
		d := list[i]
		g.Go(func() error {
			out, err := s.DownloadLogs(ctx, d.ID, clear)
			if err != nil {
				out = failed(err)
			}
			mu.Lock()
			defer mu.Unlock()
			merge(&agg, &d, out)
			return nil
		})
	}
	_ = g.Wait()

	agg.Success = agg.Counts["failed"] == 0
	agg.Message = fmt.Sprintf("%d of %d devices downloaded, %d new events",
		agg.Counts["succeeded"], len(list), agg.Counts["inserted"])
	return agg, nil
}

func merge(agg *Outcome, d *models.Device, out Outcome) {
	if out.Success {
		agg.Counts["succeeded"]++
	} else {
		agg.Counts["failed"]++
		agg.Failures = append(agg.Failures, d.Name+": "+out.Message)
	}
	agg.Counts["received"] += out.Counts["received"]
	agg.Counts["inserted"] += out.Counts["inserted"]
}
