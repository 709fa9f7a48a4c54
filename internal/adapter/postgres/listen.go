package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/lib/pq"

	"datausage/internal/domain"
)

// pingInterval keeps the listener connection checked even while
// notifications keep arriving.
const pingInterval = 90 * time.Second

// Listen delivers trigger notifications for subscribed record types until
// ctx is done. The listener reconnects on its own; fn may miss changes made
// while disconnected.
func (d *DB) Listen(ctx context.Context, fn func(domain.ChangeNotification)) error {
	l := pq.NewListener(d.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			d.logger.Warn("change listener event", "event", int(ev), "err", err)
		}
	})
	defer l.Close() //nolint:errcheck

	if err := l.Listen(notifyChannel); err != nil {
		return err
	}
	d.logger.Info("listening for remote changes", "channel", notifyChannel)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	dispatch(ctx, l.Notify, ping.C, func() { go func() { _ = l.Ping() }() }, fn)
	return nil
}

// dispatch forwards notifications to fn and calls ping on every tick until
// ctx is done.
func dispatch(ctx context.Context, notify <-chan *pq.Notification, tick <-chan time.Time, ping func(), fn func(domain.ChangeNotification)) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-notify:
			// nil after a reconnect
			if n == nil {
				continue
			}
			if c, ok := parseNotification(n.Extra); ok {
				fn(c)
			}
		case <-tick:
			ping()
		}
	}
}

// parseNotification decodes a "<recordType>:<day>" payload.
func parseNotification(payload string) (domain.ChangeNotification, bool) {
	kind, day, _ := strings.Cut(payload, ":")
	t := domain.RecordType(kind)
	if !t.Valid() {
		return domain.ChangeNotification{}, false
	}
	return domain.ChangeNotification{RecordType: t, Day: day}, true
}
