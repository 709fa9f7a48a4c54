package app

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"datausage/internal/domain"
)

// Watcher runs the Coordinator on an interval and after remote changes.
type Watcher struct {
	coord    *Coordinator
	feed     domain.ChangeFeed
	interval time.Duration
	limiter  *rate.Limiter
	echo     time.Duration
	logger   *slog.Logger

	passing    atomic.Bool
	quietUntil atomic.Int64 // unix nanos
}

// NewWatcher creates a Watcher. feed may be nil, in which case only the
// interval drives sync passes. Change-triggered passes are limited to one
// per minBurstGap. Changes reported during a pass, or within minBurstGap
// after it, are taken to be the pass's own writes and ignored; the next
// tick picks up anything they hid.
func NewWatcher(coord *Coordinator, feed domain.ChangeFeed, interval, minBurstGap time.Duration) *Watcher {
	return &Watcher{
		coord:    coord,
		feed:     feed,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(minBurstGap), 1),
		echo:     minBurstGap,
		logger:   coord.logger,
	}
}

// Run blocks until ctx is done. Failed passes are logged and retried on the
// next tick.
func (w *Watcher) Run(ctx context.Context) error {
	changes := make(chan struct{}, 1)
	if w.feed != nil {
		go func() {
			err := w.feed.Listen(ctx, func(n domain.ChangeNotification) {
				if w.ownWrite() {
					w.logger.Debug("ignoring own change", "recordType", string(n.RecordType), "day", n.Day)
					return
				}
				w.logger.Debug("remote change", "recordType", string(n.RecordType), "day", n.Day)
				select {
				case changes <- struct{}{}:
				default:
				}
			})
			if err != nil && ctx.Err() == nil {
				w.logger.Warn("change feed stopped", "err", err)
			}
		}()
	}

	w.pass(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.pass(ctx)
		case <-changes:
			if err := w.limiter.Wait(ctx); err != nil {
				return nil
			}
			w.pass(ctx)
		}
	}
}

func (w *Watcher) ownWrite() bool {
	return w.passing.Load() || time.Now().UnixNano() < w.quietUntil.Load()
}

func (w *Watcher) pass(ctx context.Context) {
	w.passing.Store(true)
	defer func() {
		w.quietUntil.Store(time.Now().Add(w.echo).UnixNano())
		w.passing.Store(false)
	}()

	if _, err := w.coord.Run(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("sync pass failed", "err", err)
	}
}
