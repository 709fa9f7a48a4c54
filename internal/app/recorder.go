package app

import (
	"context"
	"errors"
	"time"

	"datausage/internal/domain"
)

// UsageRecorder turns cumulative counter snapshots into per-day usage.
type UsageRecorder struct {
	local domain.LocalStore
	now   func() time.Time
}

// NewUsageRecorder creates a UsageRecorder backed by the given local store.
func NewUsageRecorder(local domain.LocalStore) *UsageRecorder {
	return &UsageRecorder{local: local, now: time.Now}
}

// Record folds a counter snapshot into today's record, creating it on the
// first sample of the day. A snapshot lower than the previous one means the
// counter restarted, so the whole snapshot counts as new usage.
func (r *UsageRecorder) Record(ctx context.Context, totalBytes int64) (domain.UsageRecord, error) {
	if totalBytes < 0 {
		return domain.UsageRecord{}, errors.New("totalBytes must be >= 0")
	}
	today := domain.StartOfDay(r.now())

	rec, err := r.local.UsageForDay(ctx, today)
	if err != nil {
		return domain.UsageRecord{}, err
	}
	if rec == nil {
		fresh := domain.UsageRecord{
			Date:               today,
			TotalUsedDataBytes: totalBytes,
			HasLastTotal:       true,
		}
		if err := r.local.InsertUsage(ctx, []domain.UsageRecord{fresh}); err != nil {
			return domain.UsageRecord{}, err
		}
		return fresh, nil
	}

	if rec.HasLastTotal {
		delta := totalBytes - rec.TotalUsedDataBytes
		if delta < 0 {
			delta = totalBytes
		}
		rec.DailyUsedData += delta
	}
	rec.TotalUsedDataBytes = totalBytes
	rec.HasLastTotal = true

	if err := r.local.UpdateUsage(ctx, []domain.UsageRecord{*rec}); err != nil {
		return domain.UsageRecord{}, err
	}
	return *rec, nil
}
