package postgres

import (
	"context"
	"fmt"
	"time"

	"datausage/internal/domain"
)

// FetchSubscriptionIDs lists subscription ids in creation order.
func (d *DB) FetchSubscriptionIDs(ctx context.Context) ([]string, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT id FROM subscriptions ORDER BY created_at, id;")
	if err != nil {
		return nil, domain.FetchFailure("fetch subscriptions", err)
	}
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.FetchFailure("fetch subscriptions", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.FetchFailure("fetch subscriptions", err)
	}
	return ids, nil
}

// CreateSubscription registers id for changes to recordType.
func (d *DB) CreateSubscription(ctx context.Context, recordType domain.RecordType, id string) (bool, error) {
	if !recordType.Valid() {
		return false, domain.SaveFailure("create subscription", fmt.Errorf("unknown record type %q", recordType))
	}
	if id == "" {
		return false, domain.MissingField("id")
	}
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO subscriptions(id, record_type, created_at) VALUES($1, $2, $3);",
		id, string(recordType), time.Now().UTC(),
	)
	if err != nil {
		return false, saveError("create subscription", err)
	}
	return true, nil
}
