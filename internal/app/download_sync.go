package app

import (
	"context"
	"fmt"
	"time"

	"datausage/internal/domain"
)

// SyncOldRemote returns remote records from days the device has no record
// for. Today and excludingDate are never returned. Persisting the result is
// the caller's job.
func (s *SyncService) SyncOldRemote(ctx context.Context, local []domain.UsageRecord, excludingDate time.Time) ([]domain.RemoteUsageRecord, error) {
	today := domain.StartOfDay(s.now())
	local = withoutDay(local, today)
	s.progress.setDownloadTotal(0)

	if !s.accessible(ctx, "old-remote") {
		return nil, nil
	}

	all, err := s.remote.FetchAllUsage(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync old remote: %w", err)
	}

	have := make(map[string]struct{}, len(local))
	for _, r := range local {
		have[domain.DayKey(r.Date)] = struct{}{}
	}
	skip := map[string]struct{}{
		domain.DayKey(today): {},
	}
	if !excludingDate.IsZero() {
		skip[domain.DayKey(excludingDate)] = struct{}{}
	}

	var missing []domain.RemoteUsageRecord
	for _, r := range all {
		key := domain.DayKey(r.Date)
		if _, ok := skip[key]; ok {
			continue
		}
		if _, ok := have[key]; ok {
			continue
		}
		// one record per day even if the remote store holds duplicates
		have[key] = struct{}{}
		missing = append(missing, domain.RemoteUsageRecord{
			Date:          domain.StartOfDay(r.Date),
			DailyUsedData: r.DailyUsedData,
		})
	}

	s.progress.setDownloadTotal(len(missing))
	return missing, nil
}
