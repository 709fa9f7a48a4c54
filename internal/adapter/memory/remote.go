package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"datausage/internal/domain"
)

// Remote is an in-memory domain.RemoteStore.
type Remote struct {
	mu        sync.Mutex
	usage     map[string]domain.RemoteUsageRecord
	plan      *domain.PlanRecord
	subs      []subscription
	status    domain.AccountStatus
	listeners map[int]func(domain.ChangeNotification)
	nextID    int
	stats     Stats
}

// Stats counts the write calls a Remote has served.
type Stats struct {
	UsageInserts int
	UsageUpdates int
	PlanWrites   int
}

type subscription struct {
	id         string
	recordType domain.RecordType
}

// NewRemote creates an empty remote store with an available account.
func NewRemote() *Remote {
	return &Remote{
		usage:     make(map[string]domain.RemoteUsageRecord),
		status:    domain.AccountAvailable,
		listeners: make(map[int]func(domain.ChangeNotification)),
	}
}

var (
	_ domain.RemoteStore = (*Remote)(nil)
	_ domain.ChangeFeed  = (*Remote)(nil)
	_ domain.UsagePager  = (*Remote)(nil)
)

// SetStatus changes the reported account status.
func (r *Remote) SetStatus(s domain.AccountStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = s
}

// Seed stores records directly, bypassing write counters and notifications.
func (r *Remote) Seed(recs ...domain.RemoteUsageRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range recs {
		rec.Date = domain.StartOfDay(rec.Date)
		r.usage[domain.DayKey(rec.Date)] = rec
	}
}

// AccountStatus reports the configured status.
func (r *Remote) AccountStatus(ctx context.Context) (domain.AccountStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, nil
}

// FetchUsage returns records for the given days.
func (r *Remote) FetchUsage(ctx context.Context, days []time.Time) ([]domain.RemoteUsageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.RemoteUsageRecord
	seen := make(map[string]bool, len(days))
	for _, d := range days {
		key := domain.DayKey(d)
		if seen[key] {
			continue
		}
		seen[key] = true
		if rec, ok := r.usage[key]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// FetchAllUsage returns every record, oldest first.
func (r *Remote) FetchAllUsage(ctx context.Context) ([]domain.RemoteUsageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.RemoteUsageRecord, 0, len(r.usage))
	for _, rec := range r.usage {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// UsagePage returns up to limit records with a day key after after.
func (r *Remote) UsagePage(ctx context.Context, after string, limit int) ([]domain.RemoteUsageRecord, string, error) {
	all, _ := r.FetchAllUsage(ctx)
	start := sort.Search(len(all), func(i int) bool {
		return domain.DayKey(all[i].Date) > after
	})
	all = all[start:]
	if limit <= 0 || len(all) <= limit {
		return all, "", nil
	}
	page := all[:limit]
	return page, domain.DayKey(page[len(page)-1].Date), nil
}

// InsertUsage adds records. A day that already exists keeps the larger of
// the two values, so a re-sent add never fails or lowers usage.
func (r *Remote) InsertUsage(ctx context.Context, recs []domain.RemoteUsageRecord) (bool, error) {
	r.mu.Lock()
	for _, rec := range recs {
		rec.Date = domain.StartOfDay(rec.Date)
		key := domain.DayKey(rec.Date)
		if cur, ok := r.usage[key]; ok && cur.DailyUsedData >= rec.DailyUsedData {
			continue
		}
		r.usage[key] = rec
	}
	r.stats.UsageInserts++
	r.mu.Unlock()

	r.notify(domain.RecordTypeUsage, recs)
	return true, nil
}

// UpdateUsage raises stored values. Lower values are ignored; unknown days
// fail the whole batch.
func (r *Remote) UpdateUsage(ctx context.Context, recs []domain.RemoteUsageRecord) (bool, error) {
	r.mu.Lock()
	for _, rec := range recs {
		if _, ok := r.usage[domain.DayKey(rec.Date)]; !ok {
			r.mu.Unlock()
			return false, domain.SaveFailure("update usage "+domain.DayKey(rec.Date), errors.New("record not found"))
		}
	}
	for _, rec := range recs {
		key := domain.DayKey(rec.Date)
		if cur := r.usage[key]; rec.DailyUsedData > cur.DailyUsedData {
			cur.DailyUsedData = rec.DailyUsedData
			r.usage[key] = cur
		}
	}
	r.stats.UsageUpdates++
	r.mu.Unlock()

	r.notify(domain.RecordTypeUsage, recs)
	return true, nil
}

// FetchPlan returns the stored plan, or nil.
func (r *Remote) FetchPlan(ctx context.Context) (*domain.PlanRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.plan == nil {
		return nil, nil
	}
	p := *r.plan
	return &p, nil
}

// InsertPlan stores the plan. It fails if one already exists.
func (r *Remote) InsertPlan(ctx context.Context, p domain.PlanRecord) (bool, error) {
	r.mu.Lock()
	if r.plan != nil {
		r.mu.Unlock()
		return false, domain.SaveFailure("insert plan", domain.ErrDuplicateRecord)
	}
	r.plan = &p
	r.stats.PlanWrites++
	r.mu.Unlock()

	r.notify(domain.RecordTypePlan, nil)
	return true, nil
}

// UpdatePlan replaces the stored plan. It fails if none exists.
func (r *Remote) UpdatePlan(ctx context.Context, p domain.PlanRecord) (bool, error) {
	r.mu.Lock()
	if r.plan == nil {
		r.mu.Unlock()
		return false, domain.SaveFailure("update plan", errors.New("no plan"))
	}
	r.plan = &p
	r.stats.PlanWrites++
	r.mu.Unlock()

	r.notify(domain.RecordTypePlan, nil)
	return true, nil
}

// FetchSubscriptionIDs lists subscription ids in creation order.
func (r *Remote) FetchSubscriptionIDs(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.subs))
	for _, s := range r.subs {
		ids = append(ids, s.id)
	}
	return ids, nil
}

// CreateSubscription registers an on-update subscription.
func (r *Remote) CreateSubscription(ctx context.Context, recordType domain.RecordType, id string) (bool, error) {
	if !recordType.Valid() {
		return false, domain.SaveFailure("create subscription", errors.New("unknown record type"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.subs {
		if s.id == id {
			return false, domain.SaveFailure("create subscription "+id, domain.ErrDuplicateRecord)
		}
	}
	r.subs = append(r.subs, subscription{id: id, recordType: recordType})
	return true, nil
}

// Listen delivers notifications for writes to subscribed record types until
// ctx is done.
func (r *Remote) Listen(ctx context.Context, fn func(domain.ChangeNotification)) error {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()

	<-ctx.Done()

	r.mu.Lock()
	delete(r.listeners, id)
	r.mu.Unlock()
	return nil
}

func (r *Remote) notify(t domain.RecordType, recs []domain.RemoteUsageRecord) {
	r.mu.Lock()
	subscribed := false
	for _, s := range r.subs {
		if s.recordType == t {
			subscribed = true
			break
		}
	}
	fns := make([]func(domain.ChangeNotification), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	if !subscribed {
		return
	}
	if len(recs) == 0 {
		for _, fn := range fns {
			fn(domain.ChangeNotification{RecordType: t})
		}
		return
	}
	for _, rec := range recs {
		for _, fn := range fns {
			fn(domain.ChangeNotification{RecordType: t, Day: domain.DayKey(rec.Date)})
		}
	}
}

// Usage returns a copy of every stored record, oldest first.
func (r *Remote) Usage() []domain.RemoteUsageRecord {
	out, _ := r.FetchAllUsage(context.Background())
	return out
}

// Stats returns the write counters.
func (r *Remote) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
