package domain_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"datausage/internal/domain"
)

func TestStartOfDay(t *testing.T) {
	ts := time.Date(2026, 3, 14, 15, 9, 26, 500, time.Local)
	got := domain.StartOfDay(ts)
	want := time.Date(2026, 3, 14, 0, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Fatalf("StartOfDay = %v; want %v", got, want)
	}
	if !domain.SameDay(ts, want.Add(23*time.Hour)) {
		t.Fatal("expected same day")
	}
	if domain.SameDay(ts, want.AddDate(0, 0, 1)) {
		t.Fatal("expected different day")
	}
}

func TestDayKeyRoundTrip(t *testing.T) {
	day := time.Date(2026, 2, 8, 0, 0, 0, 0, time.Local)
	key := domain.DayKey(day)
	if key != "2026-02-08" {
		t.Fatalf("DayKey = %q", key)
	}
	back, err := domain.ParseDay(key)
	if err != nil {
		t.Fatalf("ParseDay: %v", err)
	}
	if !back.Equal(day) {
		t.Fatalf("ParseDay = %v; want %v", back, day)
	}
	if _, err := domain.ParseDay("08/02/2026"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestUsageRecordRemote(t *testing.T) {
	rec := domain.UsageRecord{
		Date:             time.Date(2026, 2, 8, 13, 0, 0, 0, time.Local),
		DailyUsedData:    1234,
		IsSyncedToRemote: true,
	}
	r := rec.Remote()
	if r.DailyUsedData != 1234 || !r.Date.Equal(domain.StartOfDay(rec.Date)) {
		t.Fatalf("unexpected remote record: %+v", r)
	}
}

func TestPlanDiff(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local)
	p := domain.PlanRecord{StartDate: start, EndDate: start.AddDate(0, 1, 0), DataAmount: 10, DailyLimit: 1, PlanLimit: 9}

	if n := p.Diff(p); n != 0 {
		t.Fatalf("Diff(self) = %d", n)
	}
	q := p
	q.DailyLimit = 2
	if n := p.Diff(q); n != 1 {
		t.Fatalf("Diff = %d; want 1", n)
	}
	q.StartDate = start.Add(time.Hour)
	q.PlanLimit = 0
	if n := p.Diff(q); n != 3 {
		t.Fatalf("Diff = %d; want 3", n)
	}
	if !p.Contains(start.AddDate(0, 0, 3).Add(5 * time.Hour)) {
		t.Fatal("expected day inside plan window")
	}
	if p.Contains(start.AddDate(0, 2, 0)) {
		t.Fatal("expected day outside plan window")
	}
}

func TestRemoteErrorIs(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("sync today: %w", domain.FetchFailure("fetch usage", cause))
	if !errors.Is(err, domain.ErrFetchFailed) {
		t.Fatal("expected ErrFetchFailed")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable")
	}
	if errors.Is(err, domain.ErrSaveFailed) {
		t.Fatal("did not expect ErrSaveFailed")
	}

	var re *domain.RemoteError
	if !errors.As(err, &re) || re.Reason != "fetch usage" {
		t.Fatalf("errors.As failed: %v", err)
	}
}

func TestAccountStatusErr(t *testing.T) {
	if domain.AccountAvailable.Err() != nil {
		t.Fatal("available account should not error")
	}
	err := domain.AccountNoAccount.Err()
	if !errors.Is(err, domain.ErrAccountInaccessible) {
		t.Fatalf("expected ErrAccountInaccessible, got %v", err)
	}
	if !errors.Is(domain.MissingField("date"), domain.ErrMissingRequiredField) {
		t.Fatal("expected ErrMissingRequiredField")
	}
}
