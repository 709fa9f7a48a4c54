package domain

import "time"

// PlanRecord is the single active data plan. Local and remote stores hold at
// most one.
type PlanRecord struct {
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `json:"endDate"`
	DataAmount float64   `json:"dataAmount"`
	DailyLimit float64   `json:"dailyLimit"`
	PlanLimit  float64   `json:"planLimit"`
}

// DefaultPlan is the plan a local store reports when it has none: "now"
// bounds and zero amounts.
func DefaultPlan(now time.Time) PlanRecord {
	return PlanRecord{StartDate: now, EndDate: now}
}

// Diff returns how many of the five plan fields differ between p and o.
func (p PlanRecord) Diff(o PlanRecord) int {
	n := 0
	if !sameInstant(p.StartDate, o.StartDate) {
		n++
	}
	if !sameInstant(p.EndDate, o.EndDate) {
		n++
	}
	if p.DataAmount != o.DataAmount {
		n++
	}
	if p.DailyLimit != o.DailyLimit {
		n++
	}
	if p.PlanLimit != o.PlanLimit {
		n++
	}
	return n
}

// Contains reports whether day lies inside the plan's calendar window.
func (p PlanRecord) Contains(day time.Time) bool {
	d := StartOfDay(day)
	return !d.Before(StartOfDay(p.StartDate)) && !d.After(StartOfDay(p.EndDate))
}

// sameInstant compares at microsecond precision, the resolution of
// timestamptz.
func sameInstant(a, b time.Time) bool {
	return a.Truncate(time.Microsecond).Equal(b.Truncate(time.Microsecond))
}
