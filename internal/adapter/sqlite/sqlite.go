// Package sqlite implements the device-side local store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"datausage/internal/domain"
)

// schemaVersion is bumped with every change to migrate.
const schemaVersion = 1

const lastOldDataSyncKey = "last_old_data_sync"

// DB implements domain.LocalStore on a single SQLite file.
type DB struct {
	sql *sql.DB
	now func() time.Time
}

var _ domain.LocalStore = (*DB)(nil)

// Open opens or creates the database at path and runs migrations.
func Open(path string) (*DB, error) {
	s, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer; SQLite serialises anyway
	s.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	d := &DB{sql: s, now: time.Now}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	if _, err := d.sql.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	var version int
	if err := d.sql.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version;").Scan(&version); err != nil {
		return fmt.Errorf("migrate: read version: %w", err)
	}
	if version >= schemaVersion {
		return nil
	}

	stmts := []string{
		"CREATE TABLE IF NOT EXISTS usage (day TEXT PRIMARY KEY, total_used_bytes INTEGER NOT NULL DEFAULT 0, daily_used INTEGER NOT NULL DEFAULT 0, has_last_total INTEGER NOT NULL DEFAULT 0, synced INTEGER NOT NULL DEFAULT 0, last_synced_at TEXT);",
		"CREATE TABLE IF NOT EXISTS plan (id INTEGER PRIMARY KEY CHECK(id = 1), start_date TEXT NOT NULL, end_date TEXT NOT NULL, data_amount REAL NOT NULL, daily_limit REAL NOT NULL, plan_limit REAL NOT NULL);",
		"CREATE TABLE IF NOT EXISTS sync_state (key TEXT PRIMARY KEY, value TEXT NOT NULL);",
	}
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version(version, applied_at) VALUES(?, ?);",
		schemaVersion, formatTime(time.Now())); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return tx.Commit()
}

const usageColumns = "day, total_used_bytes, daily_used, has_last_total, synced, last_synced_at"

// ListUsage returns every record, oldest first.
func (d *DB) ListUsage(ctx context.Context) ([]domain.UsageRecord, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT "+usageColumns+" FROM usage ORDER BY day;")
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.UsageRecord
	for rows.Next() {
		r, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UsageForDay returns the record for day's calendar day, or nil.
func (d *DB) UsageForDay(ctx context.Context, day time.Time) (*domain.UsageRecord, error) {
	row := d.sql.QueryRowContext(ctx, "SELECT "+usageColumns+" FROM usage WHERE day = ?;", domain.DayKey(day))
	r, err := scanUsage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// InsertUsage adds records in one transaction. An existing day fails the
// batch with domain.ErrDuplicateRecord.
func (d *DB) InsertUsage(ctx context.Context, recs []domain.UsageRecord) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range recs {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO usage("+usageColumns+") VALUES(?, ?, ?, ?, ?, ?);",
				domain.DayKey(r.Date), r.TotalUsedDataBytes, r.DailyUsedData,
				r.HasLastTotal, r.IsSyncedToRemote, nullableTime(r.LastSyncedToRemoteDate),
			)
			if err != nil {
				if isConstraint(err) {
					return fmt.Errorf("insert %s: %w", domain.DayKey(r.Date), domain.ErrDuplicateRecord)
				}
				return err
			}
		}
		return nil
	})
}

// UpdateUsage rewrites existing records in one transaction.
func (d *DB) UpdateUsage(ctx context.Context, recs []domain.UsageRecord) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range recs {
			res, err := tx.ExecContext(ctx,
				"UPDATE usage SET total_used_bytes=?, daily_used=?, has_last_total=?, synced=?, last_synced_at=? WHERE day=?;",
				r.TotalUsedDataBytes, r.DailyUsedData, r.HasLastTotal, r.IsSyncedToRemote,
				nullableTime(r.LastSyncedToRemoteDate), domain.DayKey(r.Date),
			)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err != nil {
				return err
			} else if n == 0 {
				return fmt.Errorf("no usage record for %s", domain.DayKey(r.Date))
			}
		}
		return nil
	})
}

// Plan returns the stored plan, or the default plan if none was saved.
func (d *DB) Plan(ctx context.Context) (domain.PlanRecord, error) {
	var p domain.PlanRecord
	var start, end string
	err := d.sql.QueryRowContext(ctx,
		"SELECT start_date, end_date, data_amount, daily_limit, plan_limit FROM plan WHERE id = 1;",
	).Scan(&start, &end, &p.DataAmount, &p.DailyLimit, &p.PlanLimit)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultPlan(d.now()), nil
	}
	if err != nil {
		return domain.PlanRecord{}, err
	}
	if p.StartDate, err = parseTime(start); err != nil {
		return domain.PlanRecord{}, err
	}
	if p.EndDate, err = parseTime(end); err != nil {
		return domain.PlanRecord{}, err
	}
	return p, nil
}

// HasPlan reports whether a plan was saved.
func (d *DB) HasPlan(ctx context.Context) (bool, error) {
	var n int
	if err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM plan;").Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// SavePlan replaces the stored plan.
func (d *DB) SavePlan(ctx context.Context, p domain.PlanRecord) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO plan(id, start_date, end_date, data_amount, daily_limit, plan_limit) VALUES(1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET start_date=excluded.start_date, end_date=excluded.end_date,
		data_amount=excluded.data_amount, daily_limit=excluded.daily_limit, plan_limit=excluded.plan_limit;`,
		formatTime(p.StartDate), formatTime(p.EndDate), p.DataAmount, p.DailyLimit, p.PlanLimit,
	)
	return err
}

// LastOldDataSync returns when old data was last synced, or nil.
func (d *DB) LastOldDataSync(ctx context.Context) (*time.Time, error) {
	var v string
	err := d.sql.QueryRowContext(ctx, "SELECT value FROM sync_state WHERE key = ?;", lastOldDataSyncKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t, err := parseTime(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SetLastOldDataSync records when old data was last synced.
func (d *DB) SetLastOldDataSync(ctx context.Context, t time.Time) error {
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO sync_state(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value;",
		lastOldDataSyncKey, formatTime(t))
	return err
}

func (d *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUsage(s scanner) (domain.UsageRecord, error) {
	var r domain.UsageRecord
	var day string
	var last sql.NullString
	if err := s.Scan(&day, &r.TotalUsedDataBytes, &r.DailyUsedData, &r.HasLastTotal, &r.IsSyncedToRemote, &last); err != nil {
		return domain.UsageRecord{}, err
	}
	date, err := domain.ParseDay(day)
	if err != nil {
		return domain.UsageRecord{}, fmt.Errorf("stored day %q: %w", day, err)
	}
	r.Date = date
	if last.Valid {
		t, err := parseTime(last.String)
		if err != nil {
			return domain.UsageRecord{}, err
		}
		r.LastSyncedToRemoteDate = &t
	}
	return r, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(time.Local), nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// isConstraint reports whether err is a key collision.
func isConstraint(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
