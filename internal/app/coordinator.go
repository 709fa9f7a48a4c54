package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"datausage/internal/domain"
)

// Report summarises one Coordinator run. PlanImported is set when the
// device had no plan and took the remote one.
type Report struct {
	Subscribed   bool             `json:"subscribed"`
	TodaySynced  bool             `json:"todaySynced"`
	PlanSynced   bool             `json:"planSynced"`
	PlanImported bool             `json:"planImported"`
	Added        bool             `json:"added"`
	Updated      bool             `json:"updated"`
	Uploaded     int              `json:"uploaded"`
	Downloaded   int              `json:"downloaded"`
	Progress     ProgressSnapshot `json:"progress"`
}

// Coordinator runs the sync flows against the local store and writes their
// results back: sync flags, last-synced dates and imported remote records.
type Coordinator struct {
	local  domain.LocalStore
	sync   *SyncService
	logger *slog.Logger
}

// NewCoordinator creates a Coordinator. It shares the SyncService clock.
func NewCoordinator(local domain.LocalStore, sync *SyncService) *Coordinator {
	return &Coordinator{local: local, sync: sync, logger: sync.logger}
}

// Run performs one full reconciliation pass. Hard errors abort the pass;
// an inaccessible remote account yields an empty report.
func (c *Coordinator) Run(ctx context.Context) (Report, error) {
	var rep Report
	now := c.sync.now()
	today := domain.StartOfDay(now)

	rep.Subscribed = c.sync.EnsureStandingSubscriptions(ctx)

	// today and plan touch disjoint records and counters
	var todaySynced, planSynced, planImported bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		todaySynced, err = c.syncToday(gctx, today, now)
		return err
	})
	g.Go(func() error {
		var err error
		planSynced, planImported, err = c.syncPlan(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return rep, err
	}
	rep.TodaySynced, rep.PlanSynced, rep.PlanImported = todaySynced, planSynced, planImported

	records, err := c.local.ListUsage(ctx)
	if err != nil {
		return rep, fmt.Errorf("list local usage: %w", err)
	}
	last, err := c.local.LastOldDataSync(ctx)
	if err != nil {
		return rep, fmt.Errorf("read last sync date: %w", err)
	}

	up, err := c.sync.SyncOldLocal(ctx, records, last)
	if err != nil {
		return rep, err
	}
	rep.Added, rep.Updated, rep.Uploaded = up.Added, up.Updated, len(up.Applied)
	if err := c.applyUpload(ctx, records, up, now); err != nil {
		return rep, err
	}
	if up.Attempted {
		if err := c.local.SetLastOldDataSync(ctx, now); err != nil {
			return rep, fmt.Errorf("store last sync date: %w", err)
		}
	}

	missing, err := c.sync.SyncOldRemote(ctx, records, today)
	if err != nil {
		return rep, err
	}
	if err := c.importRemote(ctx, missing, now); err != nil {
		return rep, err
	}
	rep.Downloaded = len(missing)
	rep.Progress = c.sync.Progress().Snapshot()

	c.logger.Info("sync pass complete",
		"today", rep.TodaySynced, "plan", rep.PlanSynced,
		"added", rep.Added, "updated", rep.Updated,
		"uploaded", rep.Uploaded, "downloaded", rep.Downloaded)
	return rep, nil
}

func (c *Coordinator) syncToday(ctx context.Context, today, now time.Time) (bool, error) {
	rec, err := c.local.UsageForDay(ctx, today)
	if err != nil {
		return false, fmt.Errorf("read today's usage: %w", err)
	}
	if rec == nil {
		return false, nil
	}

	ok, err := c.sync.SyncToday(ctx, *rec, rec.IsSyncedToRemote)
	if err != nil || !ok {
		return false, err
	}

	rec.IsSyncedToRemote = true
	rec.LastSyncedToRemoteDate = &now
	if err := c.local.UpdateUsage(ctx, []domain.UsageRecord{*rec}); err != nil {
		return true, fmt.Errorf("mark today synced: %w", err)
	}
	return true, nil
}

// syncPlan pushes a plan the device has saved. Without one, the default plan
// must never reach the remote store; the remote plan is adopted instead.
func (c *Coordinator) syncPlan(ctx context.Context) (synced, imported bool, err error) {
	has, err := c.local.HasPlan(ctx)
	if err != nil {
		return false, false, fmt.Errorf("read local plan: %w", err)
	}
	if !has {
		rp, err := c.sync.RemotePlan(ctx)
		if err != nil || rp == nil {
			return false, false, err
		}
		if err := c.local.SavePlan(ctx, *rp); err != nil {
			return false, false, fmt.Errorf("import remote plan: %w", err)
		}
		return false, true, nil
	}

	p, err := c.local.Plan(ctx)
	if err != nil {
		return false, false, fmt.Errorf("read local plan: %w", err)
	}
	synced, err = c.sync.SyncPlan(ctx, p.StartDate, p.EndDate, p.DataAmount, p.DailyLimit, p.PlanLimit)
	return synced, false, err
}

// applyUpload stamps applied records with now. Records that were unsynced
// are only flipped when the add was confirmed.
func (c *Coordinator) applyUpload(ctx context.Context, records []domain.UsageRecord, up UploadResult, now time.Time) error {
	if len(up.Applied) == 0 {
		return nil
	}
	applied := make(map[string]struct{}, len(up.Applied))
	for _, r := range up.Applied {
		applied[domain.DayKey(r.Date)] = struct{}{}
	}

	var changed []domain.UsageRecord
	for _, r := range records {
		if _, ok := applied[domain.DayKey(r.Date)]; !ok {
			continue
		}
		if !r.IsSyncedToRemote {
			if !up.Added {
				continue
			}
			r.IsSyncedToRemote = true
		}
		r.LastSyncedToRemoteDate = &now
		changed = append(changed, r)
	}
	if len(changed) == 0 {
		return nil
	}
	if err := c.local.UpdateUsage(ctx, changed); err != nil {
		return fmt.Errorf("mark uploaded records: %w", err)
	}
	return nil
}

func (c *Coordinator) importRemote(ctx context.Context, missing []domain.RemoteUsageRecord, now time.Time) error {
	if len(missing) == 0 {
		return nil
	}
	recs := make([]domain.UsageRecord, 0, len(missing))
	for _, m := range missing {
		recs = append(recs, domain.UsageRecord{
			Date:                   domain.StartOfDay(m.Date),
			DailyUsedData:          m.DailyUsedData,
			IsSyncedToRemote:       true,
			LastSyncedToRemoteDate: &now,
		})
	}
	if err := c.local.InsertUsage(ctx, recs); err != nil {
		return fmt.Errorf("import remote records: %w", err)
	}
	return nil
}
