package domain

import (
	"context"
	"time"
)

// RecordType names a kind of remote record.
type RecordType string

const (
	RecordTypeUsage RecordType = "usage"
	RecordTypePlan  RecordType = "plan"
)

// Valid reports whether t is a known record type.
func (t RecordType) Valid() bool {
	return t == RecordTypeUsage || t == RecordTypePlan
}

// Standing subscription ids.
const (
	SubscriptionPlanChanged       = "plan-changed"
	SubscriptionTodaysDataChanged = "todays-data-changed"
)

// AccountStatus describes whether the remote account can be used.
type AccountStatus string

const (
	AccountAvailable              AccountStatus = "available"
	AccountNoAccount              AccountStatus = "no_account"
	AccountRestricted             AccountStatus = "restricted"
	AccountTemporarilyUnavailable AccountStatus = "temporarily_unavailable"
	AccountCouldNotDetermine      AccountStatus = "could_not_determine"
)

// Accessible reports whether sync may proceed.
func (s AccountStatus) Accessible() bool {
	return s == AccountAvailable
}

// Err returns nil when the account is available and an
// *InaccessibleError otherwise.
func (s AccountStatus) Err() error {
	if s.Accessible() {
		return nil
	}
	return &InaccessibleError{Status: s}
}

// RemoteStore is the port for the remote usage store.
type RemoteStore interface {
	AccountStatus(ctx context.Context) (AccountStatus, error)

	// FetchUsage returns the remote records whose day is one of days.
	FetchUsage(ctx context.Context, days []time.Time) ([]RemoteUsageRecord, error)
	// FetchAllUsage returns every remote usage record, following pages.
	FetchAllUsage(ctx context.Context) ([]RemoteUsageRecord, error)
	InsertUsage(ctx context.Context, recs []RemoteUsageRecord) (bool, error)
	UpdateUsage(ctx context.Context, recs []RemoteUsageRecord) (bool, error)

	// FetchPlan returns nil when no plan exists remotely.
	FetchPlan(ctx context.Context) (*PlanRecord, error)
	InsertPlan(ctx context.Context, p PlanRecord) (bool, error)
	UpdatePlan(ctx context.Context, p PlanRecord) (bool, error)

	FetchSubscriptionIDs(ctx context.Context) ([]string, error)
	CreateSubscription(ctx context.Context, recordType RecordType, id string) (bool, error)
}

// ChangeNotification reports a write to a subscribed remote record type.
type ChangeNotification struct {
	RecordType RecordType `json:"recordType"`
	Day        string     `json:"day,omitempty"`
}

// ChangeFeed is implemented by remote stores that can push change
// notifications. Listen blocks until ctx is done or the feed fails.
type ChangeFeed interface {
	Listen(ctx context.Context, fn func(ChangeNotification)) error
}

// UsagePager is implemented by remote stores that can page through usage
// records by day. after is an exclusive day key ("" for the first page);
// next is empty on the last page.
type UsagePager interface {
	UsagePage(ctx context.Context, after string, limit int) (recs []RemoteUsageRecord, next string, err error)
}
