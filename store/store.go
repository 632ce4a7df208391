// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/danielhkuo/plan-decision/db"
	"github.com/danielhkuo/plan-decision/decision"
	"github.com/danielhkuo/plan-decision/models"
)

// Store persists decision records and the vote ledger. Every status change
// is a conditional UPDATE on the current status, so concurrent writers race
// on the row and exactly one of them observes RowsAffected == 1.
type Store struct {
	db     *sql.DB
	dbType string
	logger *slog.Logger
}

func New(conn *sql.DB, dbType string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: conn, dbType: dbType, logger: logger}
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func (s *Store) rebind(query string) string {
	return db.Rebind(s.dbType, query)
}

// classify maps transient driver errors to decision.ErrStorageConflict.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %v", decision.ErrStorageConflict, err)
		}
	}
	var liteErr *msqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", decision.ErrStorageConflict, err)
		}
	}
	return err
}

const decisionColumns = `plan_id, tool_type, status, final_restaurant_id, manager_selection,
	started_at, closed_at, created_by, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (models.PlanDecision, error) {
	var (
		d                   models.PlanDecision
		tool                sql.NullString
		final, selection    sql.NullInt64
		startedAt, closedAt sql.NullInt64
		status              string
	)
	err := row.Scan(&d.PlanID, &tool, &status, &final, &selection, &startedAt, &closedAt, &d.CreatedBy, &d.Version)
	if err != nil {
		return models.PlanDecision{}, err
	}
	d.Status = models.Status(status)
	if tool.Valid {
		t := models.ToolType(tool.String)
		d.ToolType = &t
	}
	d.FinalRestaurantID = nullInt(final)
	d.Selection = nullInt(selection)
	d.StartedAt = fromMillis(startedAt)
	d.ClosedAt = fromMillis(closedAt)
	return d, nil
}

// CreateDecision inserts a new OPEN decision record.
func (s *Store) CreateDecision(ctx context.Context, planID, managerID int64) (models.PlanDecision, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO plan_decision (plan_id, status, created_by, version)
		VALUES (?, ?, ?, 0)
		ON CONFLICT (plan_id) DO NOTHING
	`), planID, string(models.StatusOpen), managerID)
	if err != nil {
		return models.PlanDecision{}, s.logError("failed to insert decision", err, "plan_id", planID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.PlanDecision{}, s.logError("failed to read rows affected", err, "plan_id", planID)
	}
	if n == 0 {
		return models.PlanDecision{}, decision.ErrAlreadyExists
	}
	return s.GetDecision(ctx, planID)
}

// GetDecision loads the decision record for a plan.
func (s *Store) GetDecision(ctx context.Context, planID int64) (models.PlanDecision, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+decisionColumns+` FROM plan_decision WHERE plan_id = ?`), planID)
	d, err := scanDecision(row)
	if err == sql.ErrNoRows {
		return models.PlanDecision{}, decision.ErrPlanNotFound
	}
	if err != nil {
		return models.PlanDecision{}, s.logError("failed to query decision", err, "plan_id", planID)
	}
	return d, nil
}

// StartVoting moves OPEN -> VOTING and fixes the tool.
func (s *Store) StartVoting(ctx context.Context, planID int64, tool models.ToolType, startedAt time.Time) (bool, error) {
	return s.transition(ctx, "start voting", planID, `
		UPDATE plan_decision
		SET status = ?, tool_type = ?, started_at = ?, version = version + 1
		WHERE plan_id = ? AND status = ?
	`, string(models.StatusVoting), string(tool), toMillis(startedAt), planID, string(models.StatusOpen))
}

// CloseVoting moves VOTING -> CLOSED, stamping closed_at and recording the
// manager's selection if one was supplied. The decision row is locked before
// the ledger is read, so an in-flight vote either commits first and is seen
// here or runs after and finds the plan CLOSED. closed_at is never earlier
// than the newest ledger row, so every accepted vote satisfies
// voted_at <= closed_at.
func (s *Store) CloseVoting(ctx context.Context, planID int64, closedAt time.Time, selection *int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, s.logError("failed to begin transaction", err, "plan_id", planID)
	}
	defer tx.Rollback()

	lock := `SELECT version FROM plan_decision WHERE plan_id = ? AND status = ?`
	if s.dbType == db.TypePostgres {
		lock += ` FOR UPDATE`
	}
	var version int64
	err = tx.QueryRowContext(ctx, s.rebind(lock), planID, string(models.StatusVoting)).Scan(&version)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, s.logError("failed to lock decision", err, "plan_id", planID)
	}

	// read after the lock so votes committed while waiting on it are visible
	var newest sql.NullInt64
	err = tx.QueryRowContext(ctx, s.rebind(`
		SELECT MAX(voted_at) FROM plan_vote WHERE plan_id = ?
	`), planID).Scan(&newest)
	if err != nil {
		return false, s.logError("failed to read newest vote", err, "plan_id", planID)
	}
	closedMillis := toMillis(closedAt)
	if newest.Valid && newest.Int64 > closedMillis {
		closedMillis = newest.Int64
	}

	res, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE plan_decision
		SET status = ?, closed_at = ?,
		    manager_selection = COALESCE(?, manager_selection),
		    version = version + 1
		WHERE plan_id = ? AND status = ? AND version = ?
	`), string(models.StatusClosed), closedMillis, selection, planID, string(models.StatusVoting), version)
	if err != nil {
		return false, s.logError("failed to close voting", err, "plan_id", planID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.logError("failed to read rows affected", err, "plan_id", planID, "op", "close voting")
	}
	if n != 1 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, s.logError("failed to commit close", err, "plan_id", planID)
	}
	return true, nil
}

// RecordSelection stores a manager selection on a CLOSED record that has none yet.
func (s *Store) RecordSelection(ctx context.Context, planID int64, selection int64) (bool, error) {
	return s.transition(ctx, "record selection", planID, `
		UPDATE plan_decision
		SET manager_selection = ?, version = version + 1
		WHERE plan_id = ? AND status = ? AND manager_selection IS NULL
	`, selection, planID, string(models.StatusClosed))
}

// Cancel moves OPEN or VOTING -> CANCELLED.
func (s *Store) Cancel(ctx context.Context, planID int64, closedAt time.Time) (bool, error) {
	return s.transition(ctx, "cancel", planID, `
		UPDATE plan_decision
		SET status = ?, closed_at = ?, resolve_token = NULL, resolve_lease_until = NULL, version = version + 1
		WHERE plan_id = ? AND status IN (?, ?)
	`, string(models.StatusCancelled), toMillis(closedAt), planID, string(models.StatusOpen), string(models.StatusVoting))
}

// AcquireResolveLease claims the right to run resolution on a CLOSED record
// until the lease expires. A holder may renew its own lease.
func (s *Store) AcquireResolveLease(ctx context.Context, planID int64, token string, now, until time.Time) (bool, error) {
	return s.transition(ctx, "acquire resolve lease", planID, `
		UPDATE plan_decision
		SET resolve_token = ?, resolve_lease_until = ?
		WHERE plan_id = ? AND status = ?
		  AND (resolve_token IS NULL OR resolve_token = ? OR resolve_lease_until <= ?)
	`, token, toMillis(until), planID, string(models.StatusClosed), token, toMillis(now))
}

// ReleaseResolveLease drops a lease held by token.
func (s *Store) ReleaseResolveLease(ctx context.Context, planID int64, token string) error {
	_, err := s.transition(ctx, "release resolve lease", planID, `
		UPDATE plan_decision
		SET resolve_token = NULL, resolve_lease_until = NULL
		WHERE plan_id = ? AND resolve_token = ?
	`, planID, token)
	return err
}

// Decide moves CLOSED -> DECIDED with the winning restaurant.
func (s *Store) Decide(ctx context.Context, planID, restaurantID int64) (bool, error) {
	return s.transition(ctx, "decide", planID, `
		UPDATE plan_decision
		SET status = ?, final_restaurant_id = ?, resolve_token = NULL, resolve_lease_until = NULL, version = version + 1
		WHERE plan_id = ? AND status = ?
	`, string(models.StatusDecided), restaurantID, planID, string(models.StatusClosed))
}

func (s *Store) transition(ctx context.Context, op string, planID int64, query string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return false, s.logError("failed to "+op, err, "plan_id", planID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.logError("failed to read rows affected", err, "plan_id", planID, "op", op)
	}
	return n == 1, nil
}

// ListVotingStartedBefore returns plans still VOTING whose window opened before cutoff.
func (s *Store) ListVotingStartedBefore(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	return s.listPlanIDs(ctx, `
		SELECT plan_id FROM plan_decision
		WHERE status = ? AND started_at <= ?
		ORDER BY started_at, plan_id
		LIMIT ?
	`, string(models.StatusVoting), toMillis(cutoff), limit)
}

// ListClosedUnresolved returns CLOSED plans whose resolution lease is free or expired.
func (s *Store) ListClosedUnresolved(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	return s.listPlanIDs(ctx, `
		SELECT plan_id FROM plan_decision
		WHERE status = ? AND (resolve_lease_until IS NULL OR resolve_lease_until <= ?)
		ORDER BY closed_at, plan_id
		LIMIT ?
	`, string(models.StatusClosed), toMillis(now), limit)
}

func (s *Store) listPlanIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, s.logError("failed to list plans", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, s.logError("failed to scan plan id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, s.logError("failed to iterate plans", err)
	}
	return ids, nil
}

func (s *Store) logError(msg string, err error, attrs ...any) error {
	err = classify(err)
	if errors.Is(err, decision.ErrStorageConflict) {
		s.logger.Warn(msg, append(attrs, "error", err)...)
	} else {
		s.logger.Error(msg, append(attrs, "error", err)...)
	}
	return err
}
