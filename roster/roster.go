// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package roster

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/danielhkuo/plan-decision/db"
	"github.com/danielhkuo/plan-decision/models"
)

// SQL reads plan membership and candidate restaurants from the tables the
// plan service owns. It satisfies decision.Roster and decision.Candidates.
type SQL struct {
	db     *sql.DB
	dbType string
	logger *slog.Logger
}

func NewSQL(conn *sql.DB, dbType string, logger *slog.Logger) *SQL {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQL{db: conn, dbType: dbType, logger: logger}
}

// IsParticipant reports whether userID belongs to the plan in any role. The
// manager is a participant too.
func (r *SQL) IsParticipant(ctx context.Context, planID, userID int64) (bool, error) {
	return r.exists(ctx, `
		SELECT 1 FROM plan_participant WHERE plan_id = ? AND user_id = ?
	`, planID, userID)
}

// IsManager reports whether userID holds the MANAGER role on the plan.
func (r *SQL) IsManager(ctx context.Context, planID, userID int64) (bool, error) {
	return r.exists(ctx, `
		SELECT 1 FROM plan_participant WHERE plan_id = ? AND user_id = ? AND plan_role = ?
	`, planID, userID, models.RoleManager)
}

// CandidateIDs returns the plan's candidate restaurants in ascending order.
func (r *SQL) CandidateIDs(ctx context.Context, planID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, db.Rebind(r.dbType, `
		SELECT restaurant_id FROM plan_candidate WHERE plan_id = ? ORDER BY restaurant_id
	`), planID)
	if err != nil {
		r.logger.Error("failed to query candidates", "plan_id", planID, "error", err)
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddParticipant enrolls userID in the plan with the given role, replacing
// any previous role.
func (r *SQL) AddParticipant(ctx context.Context, planID, userID int64, role string) error {
	_, err := r.db.ExecContext(ctx, db.Rebind(r.dbType, `
		INSERT INTO plan_participant (plan_id, user_id, plan_role)
		VALUES (?, ?, ?)
		ON CONFLICT (plan_id, user_id) DO UPDATE SET plan_role = excluded.plan_role
	`), planID, userID, role)
	if err != nil {
		r.logger.Error("failed to add participant", "plan_id", planID, "user_id", userID, "error", err)
		return fmt.Errorf("add participant: %w", err)
	}
	return nil
}

// AddCandidate registers a candidate restaurant. Adding one twice is a no-op.
func (r *SQL) AddCandidate(ctx context.Context, planID, restaurantID int64) error {
	_, err := r.db.ExecContext(ctx, db.Rebind(r.dbType, `
		INSERT INTO plan_candidate (plan_id, restaurant_id)
		VALUES (?, ?)
		ON CONFLICT (plan_id, restaurant_id) DO NOTHING
	`), planID, restaurantID)
	if err != nil {
		r.logger.Error("failed to add candidate", "plan_id", planID, "restaurant_id", restaurantID, "error", err)
		return fmt.Errorf("add candidate: %w", err)
	}
	return nil
}

func (r *SQL) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, db.Rebind(r.dbType, query), args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		r.logger.Error("failed to query roster", "error", err)
		return false, fmt.Errorf("query roster: %w", err)
	}
	return true, nil
}
