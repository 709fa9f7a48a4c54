package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"datausage/internal/domain"
)

// FetchPlan returns the stored plan, or nil if none exists.
func (d *DB) FetchPlan(ctx context.Context) (*domain.PlanRecord, error) {
	var p domain.PlanRecord
	err := d.sql.QueryRowContext(ctx,
		"SELECT start_date, end_date, data_amount, daily_limit, plan_limit FROM plans WHERE id = 1;",
	).Scan(&p.StartDate, &p.EndDate, &p.DataAmount, &p.DailyLimit, &p.PlanLimit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.FetchFailure("fetch plan", err)
	}
	p.StartDate = p.StartDate.In(time.Local)
	p.EndDate = p.EndDate.In(time.Local)
	return &p, nil
}

// InsertPlan stores the plan. It fails if one already exists.
func (d *DB) InsertPlan(ctx context.Context, p domain.PlanRecord) (bool, error) {
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO plans(id, start_date, end_date, data_amount, daily_limit, plan_limit, updated_at) VALUES(1, $1, $2, $3, $4, $5, $6);",
		p.StartDate.UTC(), p.EndDate.UTC(), p.DataAmount, p.DailyLimit, p.PlanLimit, time.Now().UTC(),
	)
	if err != nil {
		return false, saveError("insert plan", err)
	}
	return true, nil
}

// UpdatePlan rewrites every field of the stored plan.
func (d *DB) UpdatePlan(ctx context.Context, p domain.PlanRecord) (bool, error) {
	res, err := d.sql.ExecContext(ctx,
		"UPDATE plans SET start_date=$1, end_date=$2, data_amount=$3, daily_limit=$4, plan_limit=$5, updated_at=$6 WHERE id = 1;",
		p.StartDate.UTC(), p.EndDate.UTC(), p.DataAmount, p.DailyLimit, p.PlanLimit, time.Now().UTC(),
	)
	if err != nil {
		return false, domain.SaveFailure("update plan", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.SaveFailure("update plan", err)
	}
	if n == 0 {
		return false, domain.SaveFailure("update plan", errors.New("no plan stored"))
	}
	return true, nil
}
