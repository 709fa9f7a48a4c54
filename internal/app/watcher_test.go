package app_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"datausage/internal/adapter/memory"
	"datausage/internal/app"
	"datausage/internal/domain"
)

func TestWatcherImportsOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := memory.NewLocal()
	remote := memory.NewRemote()
	coord := app.NewCoordinator(local, app.NewSyncService(remote, clock()))
	w := app.NewWatcher(coord, remote, time.Hour, time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// wait for the first pass to create the subscriptions
	deadline := time.Now().Add(5 * time.Second)
	for {
		ids, _ := remote.FetchSubscriptionIDs(ctx)
		if len(ids) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first pass did not run")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// another device writes an old day; keep nudging until the watcher
	// has picked it up
	if _, err := remote.InsertUsage(ctx, []domain.RemoteUsageRecord{{Date: day(-5), DailyUsedData: 1}}); err != nil {
		t.Fatalf("InsertUsage: %v", err)
	}
	for v := int64(2); ; v++ {
		rec, err := local.UsageForDay(ctx, day(-5))
		if err != nil {
			t.Fatalf("UsageForDay: %v", err)
		}
		if rec != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("change did not trigger a sync pass")
		}
		_, _ = remote.UpdateUsage(ctx, []domain.RemoteUsageRecord{{Date: day(-5), DailyUsedData: v}})
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

// countingRemote counts sync passes by their subscription checks.
type countingRemote struct {
	*memory.Remote
	subChecks atomic.Int32
}

func (r *countingRemote) FetchSubscriptionIDs(ctx context.Context) ([]string, error) {
	r.subChecks.Add(1)
	return r.Remote.FetchSubscriptionIDs(ctx)
}

func TestWatcherIgnoresItsOwnWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := memory.NewLocal()
	remote := &countingRemote{Remote: memory.NewRemote()}
	_ = local.InsertUsage(ctx, []domain.UsageRecord{usage(0, 10, false), usage(-1, 20, false)})
	coord := app.NewCoordinator(local, app.NewSyncService(remote, clock()))
	w := app.NewWatcher(coord, remote, time.Hour, 50*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// the first pass writes both days, which the feed reports back
	deadline := time.Now().Add(5 * time.Second)
	for {
		if last, _ := local.LastOldDataSync(ctx); last != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first pass did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	afterFirst := remote.subChecks.Load()

	time.Sleep(300 * time.Millisecond)
	if got := remote.subChecks.Load(); got != afterFirst {
		t.Errorf("own writes triggered %d more subscription checks", got-afterFirst)
	}
	if st := remote.Stats(); st.UsageInserts == 0 {
		t.Errorf("first pass did not write: %+v", st)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}
