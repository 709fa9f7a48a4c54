package app

import (
	"context"
	"fmt"
	"time"

	"datausage/internal/domain"
)

// SyncPlan pushes the active plan, adding it when the remote store has none
// and rewriting it when any field differs.
func (s *SyncService) SyncPlan(ctx context.Context, start, end time.Time, dataAmount, dailyLimit, planLimit float64) (bool, error) {
	if !s.accessible(ctx, "plan") {
		return false, nil
	}

	want := domain.PlanRecord{
		StartDate:  start,
		EndDate:    end,
		DataAmount: dataAmount,
		DailyLimit: dailyLimit,
		PlanLimit:  planLimit,
	}

	current, err := s.remote.FetchPlan(ctx)
	if err != nil {
		return false, fmt.Errorf("sync plan: %w", err)
	}
	if current == nil {
		ok, err := s.remote.InsertPlan(ctx, want)
		if err != nil {
			return false, fmt.Errorf("sync plan: add: %w", err)
		}
		return ok, nil
	}

	changed := current.Diff(want)
	if changed == 0 {
		return false, nil
	}
	s.logger.Debug("plan changed", "fields", changed)

	ok, err := s.remote.UpdatePlan(ctx, want)
	if err != nil {
		return false, fmt.Errorf("sync plan: update: %w", err)
	}
	return ok, nil
}

// RemotePlan returns the remote plan, or nil when there is none or the
// account is inaccessible.
func (s *SyncService) RemotePlan(ctx context.Context) (*domain.PlanRecord, error) {
	if !s.accessible(ctx, "plan") {
		return nil, nil
	}
	p, err := s.remote.FetchPlan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch remote plan: %w", err)
	}
	return p, nil
}
