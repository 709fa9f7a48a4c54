// Package postgres implements the remote usage store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"datausage/internal/domain"
)

// notifyChannel is the LISTEN/NOTIFY channel written by the change triggers.
const notifyChannel = "datausage_changes"

// DB wraps a *sql.DB and implements domain.RemoteStore.
type DB struct {
	sql     *sql.DB
	connStr string
	logger  *slog.Logger
}

var (
	_ domain.RemoteStore = (*DB)(nil)
	_ domain.ChangeFeed  = (*DB)(nil)
	_ domain.UsagePager  = (*DB)(nil)
)

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(connStr string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := &DB{sql: s, connStr: connStr, logger: logger}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS usage (day TEXT PRIMARY KEY, daily_used BIGINT NOT NULL CHECK(daily_used >= 0), updated_at TIMESTAMPTZ NOT NULL);",
		"CREATE TABLE IF NOT EXISTS plans (id SMALLINT PRIMARY KEY CHECK(id = 1), start_date TIMESTAMPTZ NOT NULL, end_date TIMESTAMPTZ NOT NULL, data_amount DOUBLE PRECISION NOT NULL, daily_limit DOUBLE PRECISION NOT NULL, plan_limit DOUBLE PRECISION NOT NULL, updated_at TIMESTAMPTZ NOT NULL);",
		"CREATE TABLE IF NOT EXISTS subscriptions (id TEXT PRIMARY KEY, record_type TEXT NOT NULL CHECK(record_type IN ('usage','plan')), created_at TIMESTAMPTZ NOT NULL);",
		`CREATE OR REPLACE FUNCTION datausage_notify_usage() RETURNS trigger AS $$
BEGIN
	IF EXISTS (SELECT 1 FROM subscriptions WHERE record_type = 'usage') THEN
		PERFORM pg_notify('` + notifyChannel + `', 'usage:' || NEW.day);
	END IF;
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;`,
		`CREATE OR REPLACE FUNCTION datausage_notify_plan() RETURNS trigger AS $$
BEGIN
	IF EXISTS (SELECT 1 FROM subscriptions WHERE record_type = 'plan') THEN
		PERFORM pg_notify('` + notifyChannel + `', 'plan:');
	END IF;
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;`,
		"DROP TRIGGER IF EXISTS usage_changed ON usage;",
		"CREATE TRIGGER usage_changed AFTER INSERT OR UPDATE ON usage FOR EACH ROW EXECUTE FUNCTION datausage_notify_usage();",
		"DROP TRIGGER IF EXISTS plan_changed ON plans;",
		"CREATE TRIGGER plan_changed AFTER INSERT OR UPDATE ON plans FOR EACH ROW EXECUTE FUNCTION datausage_notify_plan();",
	}

	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// AccountStatus reports the store as available while the database answers.
func (d *DB) AccountStatus(ctx context.Context) (domain.AccountStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := d.sql.PingContext(ctx); err != nil {
		d.logger.Warn("remote database unreachable", "err", err)
		return domain.AccountTemporarilyUnavailable, nil
	}
	return domain.AccountAvailable, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// saveError maps a write error to a domain save failure.
func saveError(reason string, err error) error {
	if isUniqueViolation(err) {
		return domain.SaveFailure(reason, domain.ErrDuplicateRecord)
	}
	return domain.SaveFailure(reason, err)
}
