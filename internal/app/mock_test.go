package app_test

import (
	"context"
	"sync"
	"time"

	"datausage/internal/domain"
)

// now is the fixed clock used across engine tests.
var now = time.Date(2026, 2, 8, 14, 30, 0, 0, time.Local)

func day(offset int) time.Time {
	return domain.StartOfDay(now).AddDate(0, 0, offset)
}

type mockRemote struct {
	statusFn      func(ctx context.Context) (domain.AccountStatus, error)
	fetchUsageFn  func(ctx context.Context, days []time.Time) ([]domain.RemoteUsageRecord, error)
	fetchAllFn    func(ctx context.Context) ([]domain.RemoteUsageRecord, error)
	insertUsageFn func(ctx context.Context, recs []domain.RemoteUsageRecord) (bool, error)
	updateUsageFn func(ctx context.Context, recs []domain.RemoteUsageRecord) (bool, error)
	fetchPlanFn   func(ctx context.Context) (*domain.PlanRecord, error)
	insertPlanFn  func(ctx context.Context, p domain.PlanRecord) (bool, error)
	updatePlanFn  func(ctx context.Context, p domain.PlanRecord) (bool, error)
	fetchSubsFn   func(ctx context.Context) ([]string, error)
	createSubFn   func(ctx context.Context, t domain.RecordType, id string) (bool, error)

	mu    sync.Mutex
	calls []string
}

func (m *mockRemote) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockRemote) AccountStatus(ctx context.Context) (domain.AccountStatus, error) {
	m.record("status")
	if m.statusFn != nil {
		return m.statusFn(ctx)
	}
	return domain.AccountAvailable, nil
}

func (m *mockRemote) FetchUsage(ctx context.Context, days []time.Time) ([]domain.RemoteUsageRecord, error) {
	m.record("fetchUsage")
	if m.fetchUsageFn != nil {
		return m.fetchUsageFn(ctx, days)
	}
	return nil, nil
}

func (m *mockRemote) FetchAllUsage(ctx context.Context) ([]domain.RemoteUsageRecord, error) {
	m.record("fetchAll")
	if m.fetchAllFn != nil {
		return m.fetchAllFn(ctx)
	}
	return nil, nil
}

func (m *mockRemote) InsertUsage(ctx context.Context, recs []domain.RemoteUsageRecord) (bool, error) {
	m.record("insertUsage")
	if m.insertUsageFn != nil {
		return m.insertUsageFn(ctx, recs)
	}
	return true, nil
}

func (m *mockRemote) UpdateUsage(ctx context.Context, recs []domain.RemoteUsageRecord) (bool, error) {
	m.record("updateUsage")
	if m.updateUsageFn != nil {
		return m.updateUsageFn(ctx, recs)
	}
	return true, nil
}

func (m *mockRemote) FetchPlan(ctx context.Context) (*domain.PlanRecord, error) {
	m.record("fetchPlan")
	if m.fetchPlanFn != nil {
		return m.fetchPlanFn(ctx)
	}
	return nil, nil
}

func (m *mockRemote) InsertPlan(ctx context.Context, p domain.PlanRecord) (bool, error) {
	m.record("insertPlan")
	if m.insertPlanFn != nil {
		return m.insertPlanFn(ctx, p)
	}
	return true, nil
}

func (m *mockRemote) UpdatePlan(ctx context.Context, p domain.PlanRecord) (bool, error) {
	m.record("updatePlan")
	if m.updatePlanFn != nil {
		return m.updatePlanFn(ctx, p)
	}
	return true, nil
}

func (m *mockRemote) FetchSubscriptionIDs(ctx context.Context) ([]string, error) {
	m.record("fetchSubs")
	if m.fetchSubsFn != nil {
		return m.fetchSubsFn(ctx)
	}
	return nil, nil
}

func (m *mockRemote) CreateSubscription(ctx context.Context, t domain.RecordType, id string) (bool, error) {
	m.record("createSub")
	if m.createSubFn != nil {
		return m.createSubFn(ctx, t, id)
	}
	return true, nil
}

func (m *mockRemote) called(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

func unavailable(_ context.Context) (domain.AccountStatus, error) {
	return domain.AccountNoAccount, nil
}
