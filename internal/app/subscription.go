package app

import (
	"context"
	"slices"

	"datausage/internal/domain"
)

// EnsureSubscription makes sure a change subscription with the given id
// exists. Failures are logged and reported as false.
func (s *SyncService) EnsureSubscription(ctx context.Context, recordType domain.RecordType, id string) bool {
	ids, err := s.remote.FetchSubscriptionIDs(ctx)
	if err != nil {
		s.logger.Warn("fetch subscriptions failed", "id", id, "err", err)
		return false
	}
	if slices.Contains(ids, id) {
		return true
	}

	ok, err := s.remote.CreateSubscription(ctx, recordType, id)
	if err != nil {
		s.logger.Warn("create subscription failed", "id", id, "recordType", string(recordType), "err", err)
		return false
	}
	if ok {
		s.logger.Info("subscription created", "id", id, "recordType", string(recordType))
	}
	return ok
}

// EnsureStandingSubscriptions ensures the plan-changed and
// todays-data-changed subscriptions. It reports whether both exist.
func (s *SyncService) EnsureStandingSubscriptions(ctx context.Context) bool {
	plan := s.EnsureSubscription(ctx, domain.RecordTypePlan, domain.SubscriptionPlanChanged)
	today := s.EnsureSubscription(ctx, domain.RecordTypeUsage, domain.SubscriptionTodaysDataChanged)
	return plan && today
}
