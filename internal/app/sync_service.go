package app

import (
	"context"
	"log/slog"
	"time"

	"datausage/internal/domain"
)

// BatchLimit caps how many unsynced records a single upload pass adds.
const BatchLimit = 100

// SyncService reconciles local usage and plan records with the remote store.
// It never writes to the local store; callers apply the returned records.
type SyncService struct {
	remote   domain.RemoteStore
	progress *Progress
	now      func() time.Time
	logger   *slog.Logger
}

// SyncOption configures a SyncService.
type SyncOption func(*SyncService)

// WithClock overrides the source of "now" used to find today's record.
func WithClock(now func() time.Time) SyncOption {
	return func(s *SyncService) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) SyncOption {
	return func(s *SyncService) { s.logger = l }
}

// WithProgress shares an existing set of progress counters.
func WithProgress(p *Progress) SyncOption {
	return func(s *SyncService) { s.progress = p }
}

// NewSyncService creates a SyncService backed by the given remote store.
func NewSyncService(remote domain.RemoteStore, opts ...SyncOption) *SyncService {
	s := &SyncService{
		remote: remote,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.progress == nil {
		s.progress = NewProgress()
	}
	return s
}

// Progress returns the counters updated by the old-data flows.
func (s *SyncService) Progress() *Progress {
	return s.progress
}

// accessible reports whether the remote account can be used. A failing
// status check counts as inaccessible.
func (s *SyncService) accessible(ctx context.Context, flow string) bool {
	status, err := s.remote.AccountStatus(ctx)
	if err != nil {
		s.logger.Warn("account status check failed", "flow", flow, "err", err)
		return false
	}
	if err := status.Err(); err != nil {
		s.logger.Info("remote inaccessible, skipping", "flow", flow, "status", string(status))
		return false
	}
	return true
}

func withoutDay(recs []domain.UsageRecord, day time.Time) []domain.UsageRecord {
	out := make([]domain.UsageRecord, 0, len(recs))
	for _, r := range recs {
		if domain.SameDay(r.Date, day) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func toRemote(recs []domain.UsageRecord) []domain.RemoteUsageRecord {
	out := make([]domain.RemoteUsageRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Remote())
	}
	return out
}
