// Package wire defines the JSON bodies exchanged between the remote API
// server and its clients, and the conversions to and from domain records.
package wire

import (
	"fmt"
	"time"

	"datausage/internal/domain"
)

// Usage is a remote usage record on the wire. Day is a "2006-01-02" key.
type Usage struct {
	Day           string `json:"day"`
	DailyUsedData int64  `json:"dailyUsedData"`
}

// UsageBatch is the body of usage reads and writes.
type UsageBatch struct {
	Records []Usage `json:"records"`
}

// UsagePage is one page of GET /api/usage/all.
type UsagePage struct {
	Records []Usage `json:"records"`
	Next    string  `json:"next,omitempty"`
}

// Plan is the remote plan on the wire.
type Plan struct {
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `json:"endDate"`
	DataAmount float64   `json:"dataAmount"`
	DailyLimit float64   `json:"dailyLimit"`
	PlanLimit  float64   `json:"planLimit"`
}

// Account reports the remote account status.
type Account struct {
	Status domain.AccountStatus `json:"status"`
}

// Subscription is the body of POST /api/subscriptions.
type Subscription struct {
	ID         string            `json:"id"`
	RecordType domain.RecordType `json:"recordType"`
}

// Subscriptions lists subscription ids.
type Subscriptions struct {
	IDs []string `json:"ids"`
}

// Result reports whether a write was applied.
type Result struct {
	OK bool `json:"ok"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Error string `json:"error"`
}

// FromUsage converts a domain record.
func FromUsage(r domain.RemoteUsageRecord) Usage {
	return Usage{Day: domain.DayKey(r.Date), DailyUsedData: r.DailyUsedData}
}

// FromUsages converts a slice of domain records.
func FromUsages(recs []domain.RemoteUsageRecord) []Usage {
	out := make([]Usage, 0, len(recs))
	for _, r := range recs {
		out = append(out, FromUsage(r))
	}
	return out
}

// Record converts u back to a domain record.
func (u Usage) Record() (domain.RemoteUsageRecord, error) {
	if u.Day == "" {
		return domain.RemoteUsageRecord{}, domain.MissingField("day")
	}
	d, err := domain.ParseDay(u.Day)
	if err != nil {
		return domain.RemoteUsageRecord{}, fmt.Errorf("invalid day %q: %w", u.Day, err)
	}
	if u.DailyUsedData < 0 {
		return domain.RemoteUsageRecord{}, fmt.Errorf("invalid dailyUsedData for %s: must be >= 0", u.Day)
	}
	return domain.RemoteUsageRecord{Date: d, DailyUsedData: u.DailyUsedData}, nil
}

// Records converts a slice, stopping at the first invalid entry.
func Records(us []Usage) ([]domain.RemoteUsageRecord, error) {
	out := make([]domain.RemoteUsageRecord, 0, len(us))
	for _, u := range us {
		r, err := u.Record()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// FromPlan converts a domain plan.
func FromPlan(p domain.PlanRecord) Plan {
	return Plan{
		StartDate:  p.StartDate,
		EndDate:    p.EndDate,
		DataAmount: p.DataAmount,
		DailyLimit: p.DailyLimit,
		PlanLimit:  p.PlanLimit,
	}
}

// Record converts p back to a domain plan.
func (p Plan) Record() (domain.PlanRecord, error) {
	if p.StartDate.IsZero() {
		return domain.PlanRecord{}, domain.MissingField("startDate")
	}
	if p.EndDate.IsZero() {
		return domain.PlanRecord{}, domain.MissingField("endDate")
	}
	return domain.PlanRecord{
		StartDate:  p.StartDate.In(time.Local),
		EndDate:    p.EndDate.In(time.Local),
		DataAmount: p.DataAmount,
		DailyLimit: p.DailyLimit,
		PlanLimit:  p.PlanLimit,
	}, nil
}
