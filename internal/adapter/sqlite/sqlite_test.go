package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"datausage/internal/domain"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUsageRoundTrip(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	today := domain.StartOfDay(time.Now())
	synced := time.Date(2026, 1, 2, 3, 4, 5, 6000, time.Local)

	err := db.InsertUsage(ctx, []domain.UsageRecord{
		{Date: today, TotalUsedDataBytes: 500, DailyUsedData: 40, HasLastTotal: true},
		{Date: today.AddDate(0, 0, -1), DailyUsedData: 70, IsSyncedToRemote: true, LastSyncedToRemoteDate: &synced},
	})
	if err != nil {
		t.Fatalf("InsertUsage: %v", err)
	}

	recs, err := db.ListUsage(ctx)
	if err != nil || len(recs) != 2 {
		t.Fatalf("ListUsage: %+v, %v", recs, err)
	}
	if !recs[0].Date.Equal(today.AddDate(0, 0, -1)) {
		t.Errorf("expected oldest first, got %v", recs[0].Date)
	}
	if !recs[0].IsSyncedToRemote || recs[0].LastSyncedToRemoteDate == nil || !recs[0].LastSyncedToRemoteDate.Equal(synced) {
		t.Errorf("sync metadata lost: %+v", recs[0])
	}
	if !recs[1].HasLastTotal || recs[1].TotalUsedDataBytes != 500 || recs[1].LastSyncedToRemoteDate != nil {
		t.Errorf("unexpected today record %+v", recs[1])
	}

	if err := db.InsertUsage(ctx, []domain.UsageRecord{{Date: today}}); !errors.Is(err, domain.ErrDuplicateRecord) {
		t.Errorf("expected ErrDuplicateRecord, got %v", err)
	}

	rec, err := db.UsageForDay(ctx, today.Add(15*time.Hour))
	if err != nil || rec == nil {
		t.Fatalf("UsageForDay: %v, %v", rec, err)
	}
	rec.DailyUsedData = 90
	rec.IsSyncedToRemote = true
	if err := db.UpdateUsage(ctx, []domain.UsageRecord{*rec}); err != nil {
		t.Fatalf("UpdateUsage: %v", err)
	}
	rec, _ = db.UsageForDay(ctx, today)
	if rec.DailyUsedData != 90 || !rec.IsSyncedToRemote {
		t.Errorf("update not applied: %+v", rec)
	}

	if err := db.UpdateUsage(ctx, []domain.UsageRecord{{Date: today.AddDate(0, 0, -9)}}); err == nil {
		t.Error("expected error updating unknown day")
	}
	if rec, err := db.UsageForDay(ctx, today.AddDate(0, 0, -9)); err != nil || rec != nil {
		t.Errorf("expected nil for missing day, got %+v, %v", rec, err)
	}
}

func TestPlanAndSyncState(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	db.now = func() time.Time { return fixed }

	p, err := db.Plan(ctx)
	if err != nil || !p.StartDate.Equal(fixed) || p.DataAmount != 0 {
		t.Fatalf("expected default plan, got %+v, %v", p, err)
	}
	if has, err := db.HasPlan(ctx); err != nil || has {
		t.Fatalf("HasPlan before save: %v, %v", has, err)
	}

	want := domain.PlanRecord{StartDate: fixed, EndDate: fixed.AddDate(0, 1, 0), DataAmount: 15, DailyLimit: 0.5, PlanLimit: 14}
	if err := db.SavePlan(ctx, want); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	if has, err := db.HasPlan(ctx); err != nil || !has {
		t.Fatalf("HasPlan after save: %v, %v", has, err)
	}
	want.DailyLimit = 0.75
	if err := db.SavePlan(ctx, want); err != nil {
		t.Fatalf("SavePlan again: %v", err)
	}
	p, err = db.Plan(ctx)
	if err != nil || p.Diff(want) != 0 {
		t.Fatalf("expected %+v, got %+v, %v", want, p, err)
	}

	last, err := db.LastOldDataSync(ctx)
	if err != nil || last != nil {
		t.Fatalf("expected no last sync, got %v, %v", last, err)
	}
	for _, ts := range []time.Time{fixed, fixed.Add(time.Hour)} {
		if err := db.SetLastOldDataSync(ctx, ts); err != nil {
			t.Fatalf("SetLastOldDataSync: %v", err)
		}
	}
	last, err = db.LastOldDataSync(ctx)
	if err != nil || last == nil || !last.Equal(fixed.Add(time.Hour)) {
		t.Fatalf("expected %v, got %v, %v", fixed.Add(time.Hour), last, err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")
	ctx := context.Background()

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.InsertUsage(ctx, []domain.UsageRecord{{Date: time.Now(), DailyUsedData: 1}}); err != nil {
		t.Fatalf("InsertUsage: %v", err)
	}
	_ = db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close() //nolint:errcheck
	recs, err := db.ListUsage(ctx)
	if err != nil || len(recs) != 1 {
		t.Fatalf("expected 1 record after reopen, got %d, %v", len(recs), err)
	}
}
