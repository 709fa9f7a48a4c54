package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"datausage/internal/domain"
)

// pageSize is the page length FetchAllUsage reads with.
const pageSize = 500

// FetchUsage returns the records stored for any of days.
func (d *DB) FetchUsage(ctx context.Context, days []time.Time) ([]domain.RemoteUsageRecord, error) {
	keys := make([]string, 0, len(days))
	for _, day := range days {
		keys = append(keys, domain.DayKey(day))
	}

	rows, err := d.sql.QueryContext(ctx,
		"SELECT day, daily_used FROM usage WHERE day = ANY($1) ORDER BY day;", pq.Array(keys))
	if err != nil {
		return nil, domain.FetchFailure("fetch usage", err)
	}
	out, err := scanUsage(rows, len(keys))
	if err != nil {
		return nil, domain.FetchFailure("fetch usage", err)
	}
	return out, nil
}

// UsagePage returns up to limit records whose day key sorts after after.
func (d *DB) UsagePage(ctx context.Context, after string, limit int) ([]domain.RemoteUsageRecord, string, error) {
	if limit <= 0 {
		limit = pageSize
	}
	rows, err := d.sql.QueryContext(ctx,
		"SELECT day, daily_used FROM usage WHERE day > $1 ORDER BY day LIMIT $2;", after, limit+1)
	if err != nil {
		return nil, "", domain.FetchFailure("fetch usage page", err)
	}
	out, err := scanUsage(rows, limit+1)
	if err != nil {
		return nil, "", domain.FetchFailure("fetch usage page", err)
	}
	if len(out) <= limit {
		return out, "", nil
	}
	out = out[:limit]
	return out, domain.DayKey(out[limit-1].Date), nil
}

// FetchAllUsage reads every record, oldest first, page by page.
func (d *DB) FetchAllUsage(ctx context.Context) ([]domain.RemoteUsageRecord, error) {
	var all []domain.RemoteUsageRecord
	after := ""
	for {
		page, next, err := d.UsagePage(ctx, after, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" {
			return all, nil
		}
		after = next
	}
}

// InsertUsage adds records in one statement. A day that already exists
// keeps the larger of the two values.
func (d *DB) InsertUsage(ctx context.Context, recs []domain.RemoteUsageRecord) (bool, error) {
	if len(recs) == 0 {
		return false, nil
	}
	days := make([]string, 0, len(recs))
	used := make([]int64, 0, len(recs))
	for _, r := range recs {
		days = append(days, domain.DayKey(r.Date))
		used = append(used, r.DailyUsedData)
	}

	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO usage(day, daily_used, updated_at) SELECT unnest($1::text[]), unnest($2::bigint[]), $3
		ON CONFLICT (day) DO UPDATE SET daily_used = EXCLUDED.daily_used, updated_at = EXCLUDED.updated_at
		WHERE usage.daily_used < EXCLUDED.daily_used;`,
		pq.Array(days), pq.Array(used), time.Now().UTC(),
	)
	if err != nil {
		return false, saveError("insert usage", err)
	}
	return true, nil
}

// UpdateUsage raises stored values in a single transaction. A stored value
// already at or above the new one is left alone; an unknown day fails the
// batch.
func (d *DB) UpdateUsage(ctx context.Context, recs []domain.RemoteUsageRecord) (bool, error) {
	if len(recs) == 0 {
		return false, nil
	}
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return false, domain.SaveFailure("update usage", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, r := range recs {
		day := domain.DayKey(r.Date)
		var exists bool
		err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM usage WHERE day=$1);", day).Scan(&exists)
		if err != nil {
			return false, domain.SaveFailure("update usage", err)
		}
		if !exists {
			return false, domain.SaveFailure("update usage", fmt.Errorf("no record for %s", day))
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE usage SET daily_used=$2, updated_at=$3 WHERE day=$1 AND daily_used < $2;",
			day, r.DailyUsedData, now,
		); err != nil {
			return false, domain.SaveFailure("update usage", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, domain.SaveFailure("update usage", err)
	}
	return true, nil
}

func scanUsage(rows *sql.Rows, capacity int) ([]domain.RemoteUsageRecord, error) {
	defer rows.Close() //nolint:errcheck

	out := make([]domain.RemoteUsageRecord, 0, capacity)
	for rows.Next() {
		var day string
		var r domain.RemoteUsageRecord
		if err := rows.Scan(&day, &r.DailyUsedData); err != nil {
			return nil, err
		}
		date, err := domain.ParseDay(day)
		if err != nil {
			return nil, fmt.Errorf("stored day %q: %w", day, err)
		}
		r.Date = date
		out = append(out, r)
	}
	return out, rows.Err()
}
