package app

import (
	"context"
	"fmt"
	"time"

	"datausage/internal/domain"
)

// SyncToday pushes today's record. It adds the record when neither side
// knows it and updates it when both do and the local value has grown. Any
// other combination means one side has not caught up yet and nothing is
// written.
func (s *SyncService) SyncToday(ctx context.Context, rec domain.UsageRecord, isSyncedToRemote bool) (bool, error) {
	if rec.Date.IsZero() {
		return false, domain.MissingField("date")
	}
	day := domain.StartOfDay(rec.Date)

	if !s.accessible(ctx, "today") {
		return false, nil
	}

	found, err := s.remote.FetchUsage(ctx, []time.Time{day})
	if err != nil {
		return false, fmt.Errorf("sync today: %w", err)
	}
	var current *domain.RemoteUsageRecord
	for i := range found {
		if domain.SameDay(found[i].Date, day) {
			current = &found[i]
			break
		}
	}

	next := domain.RemoteUsageRecord{Date: day, DailyUsedData: rec.DailyUsedData}
	switch {
	case !isSyncedToRemote && current == nil:
		ok, err := s.remote.InsertUsage(ctx, []domain.RemoteUsageRecord{next})
		if err != nil {
			return false, fmt.Errorf("sync today: add: %w", err)
		}
		return ok, nil

	case isSyncedToRemote && current != nil:
		if rec.DailyUsedData <= current.DailyUsedData {
			return false, nil
		}
		ok, err := s.remote.UpdateUsage(ctx, []domain.RemoteUsageRecord{next})
		if err != nil {
			return false, fmt.Errorf("sync today: update: %w", err)
		}
		return ok, nil

	default:
		s.logger.Debug("today's record not settled on both sides, skipping",
			"day", domain.DayKey(day), "synced", isSyncedToRemote, "remoteExists", current != nil)
		return false, nil
	}
}
