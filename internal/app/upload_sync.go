package app

import (
	"context"
	"fmt"
	"time"

	"datausage/internal/domain"
)

// UploadResult is the outcome of SyncOldLocal.
type UploadResult struct {
	Added   bool
	Updated bool
	// Applied lists the records the caller should mark as written remotely.
	Applied []domain.RemoteUsageRecord
	// Attempted is false when the pass did not reach the remote store
	// because there was nothing old to sync or the account was inaccessible.
	Attempted bool
}

// SyncOldLocal uploads records from days other than today. Unsynced records
// are added, at most BatchLimit per pass in received order. Synced records
// dated within [lastSyncedDate, today] are updated where the local value has
// grown; with no lastSyncedDate nothing is updated.
func (s *SyncService) SyncOldLocal(ctx context.Context, records []domain.UsageRecord, lastSyncedDate *time.Time) (UploadResult, error) {
	today := domain.StartOfDay(s.now())
	old := withoutDay(records, today)
	s.progress.resetUpload()

	if len(old) == 0 {
		return UploadResult{}, nil
	}

	var toAdd, toUpdate []domain.UsageRecord
	accessible := s.accessible(ctx, "old-local")
	if accessible {
		toAdd = unsynced(old)
		if len(toAdd) > BatchLimit {
			toAdd = toAdd[:BatchLimit]
		}
		if lastSyncedDate != nil {
			toUpdate = syncedBetween(old, domain.StartOfDay(*lastSyncedDate), today)
		}
		s.progress.setUploadTotal(len(toAdd) + len(toUpdate))
	}

	adds := toRemote(toAdd)
	updates := toRemote(toUpdate)

	// The two branches differ in ordering and in what they report as
	// applied; both shapes are relied on by callers.
	if len(adds) == 0 {
		updated, err := s.updateIfGreater(ctx, updates)
		if err != nil {
			return UploadResult{}, fmt.Errorf("sync old local: update: %w", err)
		}
		s.progress.setUploaded(len(updates))

		res := UploadResult{Updated: updated, Attempted: accessible}
		if updated {
			res.Applied = updates
		}
		return res, nil
	}

	added, err := s.remote.InsertUsage(ctx, adds)
	if err != nil {
		return UploadResult{}, fmt.Errorf("sync old local: add: %w", err)
	}
	s.progress.setUploaded(len(adds))

	updated, err := s.updateIfGreater(ctx, updates)
	if err != nil {
		return UploadResult{}, fmt.Errorf("sync old local: update: %w", err)
	}
	s.progress.setUploaded(len(adds) + len(updates))

	res := UploadResult{Added: added, Updated: updated, Attempted: true}
	if updated {
		res.Applied = append(res.Applied, updates...)
	}
	res.Applied = append(res.Applied, adds...)
	return res, nil
}

// updateIfGreater re-reads the remote values for candidates and writes only
// those whose local value is strictly larger. Candidates with no remote
// record are skipped.
func (s *SyncService) updateIfGreater(ctx context.Context, candidates []domain.RemoteUsageRecord) (bool, error) {
	if len(candidates) == 0 {
		return false, nil
	}

	days := make([]time.Time, 0, len(candidates))
	for _, c := range candidates {
		days = append(days, c.Date)
	}
	current, err := s.remote.FetchUsage(ctx, days)
	if err != nil {
		return false, err
	}

	remoteByDay := make(map[string]int64, len(current))
	for _, r := range current {
		key := domain.DayKey(r.Date)
		if v, ok := remoteByDay[key]; !ok || r.DailyUsedData > v {
			remoteByDay[key] = r.DailyUsedData
		}
	}

	var keep []domain.RemoteUsageRecord
	for _, c := range candidates {
		v, ok := remoteByDay[domain.DayKey(c.Date)]
		if ok && c.DailyUsedData > v {
			keep = append(keep, c)
		}
	}
	if len(keep) == 0 {
		return false, nil
	}
	return s.remote.UpdateUsage(ctx, keep)
}

func unsynced(recs []domain.UsageRecord) []domain.UsageRecord {
	var out []domain.UsageRecord
	for _, r := range recs {
		if !r.IsSyncedToRemote {
			out = append(out, r)
		}
	}
	return out
}

// syncedBetween returns synced records whose day lies in the closed range
// [from, to].
func syncedBetween(recs []domain.UsageRecord, from, to time.Time) []domain.UsageRecord {
	var out []domain.UsageRecord
	for _, r := range recs {
		if !r.IsSyncedToRemote {
			continue
		}
		d := domain.StartOfDay(r.Date)
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}
