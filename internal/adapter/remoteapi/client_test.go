package remoteapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	adapthttp "datausage/internal/adapter/http"
	"datausage/internal/adapter/memory"
	"datausage/internal/adapter/remoteapi"
	"datausage/internal/app"
	"datausage/internal/domain"
)

type staticAuth struct {
	token string
}

func (a staticAuth) Authenticate(_ context.Context, token string) (*domain.Principal, error) {
	if token == "" {
		return nil, app.ErrMissingCredentials
	}
	if token != a.token {
		return nil, app.ErrInvalidCredentials
	}
	return &domain.Principal{Subject: "test", Method: "token"}, nil
}

// newRemote starts the API over an in-memory store guarded by token.
func newRemote(t *testing.T, token string) (*memory.Remote, *httptest.Server) {
	t.Helper()
	store := memory.NewRemote()
	srv := adapthttp.New(store, staticAuth{token: token}, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return store, ts
}

func newClient(t *testing.T, url, token string) *remoteapi.Client {
	t.Helper()
	c, err := remoteapi.New(url, remoteapi.HTTPClient(context.Background(), token, nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func day(offset int) time.Time {
	return domain.StartOfDay(time.Now()).AddDate(0, 0, offset)
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := remoteapi.New("not a url", nil, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestAccountStatus(t *testing.T) {
	store, ts := newRemote(t, "secret")
	ctx := context.Background()

	st, err := newClient(t, ts.URL, "secret").AccountStatus(ctx)
	if err != nil || st != domain.AccountAvailable {
		t.Fatalf("expected available, got %q, %v", st, err)
	}

	store.SetStatus(domain.AccountRestricted)
	st, _ = newClient(t, ts.URL, "secret").AccountStatus(ctx)
	if st != domain.AccountRestricted {
		t.Errorf("expected restricted, got %q", st)
	}

	st, err = newClient(t, ts.URL, "wrong").AccountStatus(ctx)
	if err != nil || st != domain.AccountNoAccount {
		t.Errorf("expected no_account for rejected token, got %q, %v", st, err)
	}

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()
	st, err = newClient(t, deadURL, "secret").AccountStatus(ctx)
	if err != nil || st != domain.AccountTemporarilyUnavailable {
		t.Errorf("expected temporarily_unavailable, got %q, %v", st, err)
	}
}

func TestUsageRoundTrip(t *testing.T) {
	_, ts := newRemote(t, "secret")
	c := newClient(t, ts.URL, "secret")
	ctx := context.Background()

	var recs []domain.RemoteUsageRecord
	for i := 1; i <= 1200; i++ {
		recs = append(recs, domain.RemoteUsageRecord{Date: day(-i), DailyUsedData: int64(i)})
	}
	if ok, err := c.InsertUsage(ctx, recs); err != nil || !ok {
		t.Fatalf("InsertUsage: %v, %v", ok, err)
	}
	// re-sending an existing day succeeds without lowering it
	if ok, err := c.InsertUsage(ctx, []domain.RemoteUsageRecord{{Date: day(-1), DailyUsedData: 0}}); err != nil || !ok {
		t.Fatalf("re-insert: %v, %v", ok, err)
	}

	if _, err := c.UpdateUsage(ctx, []domain.RemoteUsageRecord{{Date: day(-1), DailyUsedData: 99}}); err != nil {
		t.Fatalf("UpdateUsage: %v", err)
	}
	got, err := c.FetchUsage(ctx, []time.Time{day(-1), day(-5000)})
	if err != nil || len(got) != 1 || got[0].DailyUsedData != 99 {
		t.Fatalf("FetchUsage: %+v, %v", got, err)
	}

	// more than two pages
	all, err := c.FetchAllUsage(ctx)
	if err != nil || len(all) != len(recs) {
		t.Fatalf("FetchAllUsage: %d records, %v", len(all), err)
	}
	if !all[0].Date.Equal(day(-1200)) {
		t.Errorf("expected oldest first, got %v", all[0].Date)
	}
}

func TestPlanAndSubscriptions(t *testing.T) {
	_, ts := newRemote(t, "secret")
	c := newClient(t, ts.URL, "secret")
	ctx := context.Background()

	p, err := c.FetchPlan(ctx)
	if err != nil || p != nil {
		t.Fatalf("expected no plan, got %+v, %v", p, err)
	}
	plan := domain.PlanRecord{StartDate: day(0), EndDate: day(30), DataAmount: 5, DailyLimit: 0.2, PlanLimit: 4}
	if _, err := c.InsertPlan(ctx, plan); err != nil {
		t.Fatalf("InsertPlan: %v", err)
	}
	p, err = c.FetchPlan(ctx)
	if err != nil || p == nil || p.Diff(plan) != 0 {
		t.Fatalf("FetchPlan: %+v, %v", p, err)
	}

	if _, err := c.CreateSubscription(ctx, domain.RecordTypeUsage, domain.SubscriptionTodaysDataChanged); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	ids, err := c.FetchSubscriptionIDs(ctx)
	if err != nil || len(ids) != 1 {
		t.Fatalf("FetchSubscriptionIDs: %v, %v", ids, err)
	}
}

func TestFetchFailureOnServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer ts.Close()
	c := newClient(t, ts.URL, "")

	if _, err := c.FetchAllUsage(context.Background()); !errors.Is(err, domain.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
	if _, err := c.InsertPlan(context.Background(), domain.PlanRecord{}); !errors.Is(err, domain.ErrSaveFailed) {
		t.Fatalf("expected ErrSaveFailed, got %v", err)
	}
}

func TestClientCredentials(t *testing.T) {
	var issued atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "client_credentials" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		issued.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"minted","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()
	_, ts := newRemote(t, "minted")

	cc := &clientcredentials.Config{ClientID: "device", ClientSecret: "s3cret", TokenURL: tokenSrv.URL}
	c, err := remoteapi.New(ts.URL, remoteapi.HTTPClient(context.Background(), "", cc), nil)
	if err != nil {
		t.Fatal(err)
	}

	for range 3 {
		st, err := c.AccountStatus(context.Background())
		if err != nil || st != domain.AccountAvailable {
			t.Fatalf("expected available, got %q, %v", st, err)
		}
	}
	if n := issued.Load(); n != 1 {
		t.Errorf("expected the token to be cached, issued %d", n)
	}
}

func TestCoordinatorOverHTTP(t *testing.T) {
	store, ts := newRemote(t, "secret")
	store.Seed(domain.RemoteUsageRecord{Date: day(-4), DailyUsedData: 44})
	c := newClient(t, ts.URL, "secret")
	ctx := context.Background()

	local := memory.NewLocal()
	_ = local.SavePlan(ctx, domain.PlanRecord{StartDate: day(-1), EndDate: day(29), DataAmount: 8})
	_ = local.InsertUsage(ctx, []domain.UsageRecord{
		{Date: day(0), DailyUsedData: 10},
		{Date: day(-1), DailyUsedData: 20},
	})

	rep, err := app.NewCoordinator(local, app.NewSyncService(c)).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.TodaySynced || !rep.PlanSynced || !rep.Added || rep.Downloaded != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if got := len(store.Usage()); got != 3 {
		t.Errorf("expected 3 remote records, got %d", got)
	}
	if rec, _ := local.UsageForDay(ctx, day(-4)); rec == nil || rec.DailyUsedData != 44 {
		t.Errorf("remote record not imported: %+v", rec)
	}
}
