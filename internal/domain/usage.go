package domain

import (
	"context"
	"time"
)

// DayLayout is the key format used for usage days in storage and on the wire.
const DayLayout = "2006-01-02"

// UsageRecord is the local per-day usage entry.
type UsageRecord struct {
	Date time.Time `json:"date"`
	// TotalUsedDataBytes is the last observed cumulative counter snapshot.
	// It is only used to derive DailyUsedData and is never synced.
	TotalUsedDataBytes     int64      `json:"totalUsedDataBytes"`
	DailyUsedData          int64      `json:"dailyUsedData"`
	HasLastTotal           bool       `json:"hasLastTotal"`
	IsSyncedToRemote       bool       `json:"isSyncedToRemote"`
	LastSyncedToRemoteDate *time.Time `json:"lastSyncedToRemoteDate,omitempty"`
}

// RemoteUsageRecord is the remote counterpart of a UsageRecord. It carries no
// sync metadata.
type RemoteUsageRecord struct {
	Date          time.Time `json:"date"`
	DailyUsedData int64     `json:"dailyUsedData"`
}

// Remote converts the local record to the shape stored remotely.
func (r UsageRecord) Remote() RemoteUsageRecord {
	return RemoteUsageRecord{Date: StartOfDay(r.Date), DailyUsedData: r.DailyUsedData}
}

// StartOfDay truncates t to midnight in the local calendar.
func StartOfDay(t time.Time) time.Time {
	t = t.In(time.Local)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// SameDay reports whether a and b fall on the same local calendar day.
func SameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}

// DayKey formats t as a local day key.
func DayKey(t time.Time) string {
	return t.In(time.Local).Format(DayLayout)
}

// ParseDay parses a local day key.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, s, time.Local)
}

// LocalStore is the port for on-device usage persistence.
type LocalStore interface {
	ListUsage(ctx context.Context) ([]UsageRecord, error)
	UsageForDay(ctx context.Context, day time.Time) (*UsageRecord, error)
	InsertUsage(ctx context.Context, recs []UsageRecord) error
	UpdateUsage(ctx context.Context, recs []UsageRecord) error
	// Plan returns DefaultPlan when none was saved; HasPlan tells the two
	// apart.
	Plan(ctx context.Context) (PlanRecord, error)
	HasPlan(ctx context.Context) (bool, error)
	SavePlan(ctx context.Context, p PlanRecord) error
	LastOldDataSync(ctx context.Context) (*time.Time, error)
	SetLastOldDataSync(ctx context.Context, t time.Time) error
}
