package app

import (
	"context"
	"errors"
	"time"

	"datausage/internal/domain"
)

// ReportService builds usage summaries from the local store.
type ReportService struct {
	local domain.LocalStore
	now   func() time.Time
}

// NewReportService creates a ReportService backed by the given local store.
func NewReportService(local domain.LocalStore) *ReportService {
	return &ReportService{local: local, now: time.Now}
}

// DayPoint is a single data point returned by Daily.
type DayPoint struct {
	Day    string  `json:"day"`
	Used   float64 `json:"used"`
	Unit   string  `json:"unit"`
	Synced bool    `json:"synced"`
}

// PlanProgress compares recorded usage against the active plan. Plan
// amounts are expressed in GB.
type PlanProgress struct {
	Plan           domain.PlanRecord `json:"plan"`
	UsedInPlanGB   float64           `json:"usedInPlanGB"`
	UsedTodayGB    float64           `json:"usedTodayGB"`
	RemainingGB    float64           `json:"remainingGB"`
	OverDailyLimit bool              `json:"overDailyLimit"`
	OverPlanLimit  bool              `json:"overPlanLimit"`
}

// Daily returns per-day usage for the last days days, oldest first, with
// usage converted to unit. Days without a record report zero.
func (s *ReportService) Daily(ctx context.Context, days int, unit string) ([]DayPoint, error) {
	if !domain.ValidUnit(unit) {
		return nil, errors.New("unit must be one of B, KB, MB, GB")
	}
	if days > 366 {
		days = 366
	}

	recs, err := s.local.ListUsage(ctx)
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]domain.UsageRecord, len(recs))
	for _, r := range recs {
		byDay[domain.DayKey(r.Date)] = r
	}

	today := domain.StartOfDay(s.now())
	points := make([]DayPoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := domain.DayKey(today.AddDate(0, 0, -i))
		p := DayPoint{Day: day, Unit: unit}
		if r, ok := byDay[day]; ok {
			p.Used = domain.ConvertData(float64(r.DailyUsedData), "B", unit)
			p.Synced = r.IsSyncedToRemote
		}
		points = append(points, p)
	}
	return points, nil
}

// Progress sums usage inside the active plan window.
func (s *ReportService) Progress(ctx context.Context) (PlanProgress, error) {
	plan, err := s.local.Plan(ctx)
	if err != nil {
		return PlanProgress{}, err
	}
	recs, err := s.local.ListUsage(ctx)
	if err != nil {
		return PlanProgress{}, err
	}

	now := s.now()
	var inPlan, today int64
	for _, r := range recs {
		if plan.Contains(r.Date) {
			inPlan += r.DailyUsedData
		}
		if domain.SameDay(r.Date, now) {
			today = r.DailyUsedData
		}
	}

	p := PlanProgress{
		Plan:         plan,
		UsedInPlanGB: domain.ConvertData(float64(inPlan), "B", "GB"),
		UsedTodayGB:  domain.ConvertData(float64(today), "B", "GB"),
	}
	p.RemainingGB = plan.DataAmount - p.UsedInPlanGB
	p.OverDailyLimit = plan.DailyLimit > 0 && p.UsedTodayGB > plan.DailyLimit
	p.OverPlanLimit = plan.PlanLimit > 0 && p.UsedInPlanGB > plan.PlanLimit
	return p, nil
}
