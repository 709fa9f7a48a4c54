// Package memory implements in-memory local and remote stores for
// development and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"datausage/internal/domain"
)

// Local implements domain.LocalStore in memory.
type Local struct {
	mu       sync.Mutex
	usage    map[string]domain.UsageRecord
	plan     *domain.PlanRecord
	lastSync *time.Time
	now      func() time.Time
}

// NewLocal creates an empty in-memory local store.
func NewLocal() *Local {
	return &Local{
		usage: make(map[string]domain.UsageRecord),
		now:   time.Now,
	}
}

// Ensure interfaces are met.
var _ domain.LocalStore = (*Local)(nil)

// ListUsage returns every record, oldest first.
func (l *Local) ListUsage(ctx context.Context) ([]domain.UsageRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.UsageRecord, 0, len(l.usage))
	for _, r := range l.usage {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// UsageForDay returns the record for day, or nil.
func (l *Local) UsageForDay(ctx context.Context, day time.Time) (*domain.UsageRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if r, ok := l.usage[domain.DayKey(day)]; ok {
		return &r, nil
	}
	return nil, nil
}

// InsertUsage adds records. It fails without writing if any day exists.
func (l *Local) InsertUsage(ctx context.Context, recs []domain.UsageRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, r := range recs {
		if r.Date.IsZero() {
			return domain.MissingField("date")
		}
		if _, ok := l.usage[domain.DayKey(r.Date)]; ok {
			return domain.ErrDuplicateRecord
		}
	}
	for _, r := range recs {
		r.Date = domain.StartOfDay(r.Date)
		l.usage[domain.DayKey(r.Date)] = r
	}
	return nil
}

// UpdateUsage replaces existing records. It fails without writing if any day
// is unknown.
func (l *Local) UpdateUsage(ctx context.Context, recs []domain.UsageRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, r := range recs {
		if _, ok := l.usage[domain.DayKey(r.Date)]; !ok {
			return errors.New("usage record not found")
		}
	}
	for _, r := range recs {
		r.Date = domain.StartOfDay(r.Date)
		l.usage[domain.DayKey(r.Date)] = r
	}
	return nil
}

// Plan returns the stored plan or a default one.
func (l *Local) Plan(ctx context.Context) (domain.PlanRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.plan == nil {
		return domain.DefaultPlan(l.now()), nil
	}
	return *l.plan, nil
}

// HasPlan reports whether a plan was saved.
func (l *Local) HasPlan(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.plan != nil, nil
}

// SavePlan replaces the stored plan.
func (l *Local) SavePlan(ctx context.Context, p domain.PlanRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.plan = &p
	return nil
}

// LastOldDataSync returns when old data was last synced, or nil.
func (l *Local) LastOldDataSync(ctx context.Context) (*time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lastSync == nil {
		return nil, nil
	}
	t := *l.lastSync
	return &t, nil
}

// SetLastOldDataSync records when old data was last synced.
func (l *Local) SetLastOldDataSync(ctx context.Context, t time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastSync = &t
	return nil
}
