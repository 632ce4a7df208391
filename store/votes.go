// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/danielhkuo/plan-decision/decision"
	"github.com/danielhkuo/plan-decision/models"
)

// UpsertVote writes the voter's single ledger row for the plan, replacing any
// previous choice. The write is guarded by a conditional bump of the decision
// row's version while status is VOTING: the vote and a concurrent close
// contend for the same row, so a vote either commits before the close flips
// the status or observes the flip and fails with decision.ErrVotingClosed.
func (s *Store) UpsertVote(ctx context.Context, vote models.Vote) (models.Vote, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Vote{}, false, s.logError("failed to begin transaction", err, "plan_id", vote.PlanID)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE plan_decision
		SET version = version + 1
		WHERE plan_id = ? AND status = ?
	`), vote.PlanID, string(models.StatusVoting))
	if err != nil {
		return models.Vote{}, false, s.logError("failed to guard vote", err, "plan_id", vote.PlanID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Vote{}, false, s.logError("failed to read rows affected", err, "plan_id", vote.PlanID)
	}
	if n == 0 {
		return models.Vote{}, false, decision.ErrVotingClosed
	}

	var prior int64
	err = tx.QueryRowContext(ctx, s.rebind(`
		SELECT restaurant_id FROM plan_vote WHERE plan_id = ? AND voter_id = ?
	`), vote.PlanID, vote.VoterID).Scan(&prior)
	replaced := err == nil
	if err != nil && err != sql.ErrNoRows {
		return models.Vote{}, false, s.logError("failed to query prior vote", err, "plan_id", vote.PlanID, "voter_id", vote.VoterID)
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO plan_vote (plan_id, voter_id, restaurant_id, voted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (plan_id, voter_id) DO UPDATE SET
			restaurant_id = excluded.restaurant_id,
			voted_at = excluded.voted_at
	`), vote.PlanID, vote.VoterID, vote.RestaurantID, toMillis(vote.VotedAt))
	if err != nil {
		return models.Vote{}, false, s.logError("failed to upsert vote", err, "plan_id", vote.PlanID, "voter_id", vote.VoterID)
	}

	if err := tx.Commit(); err != nil {
		return models.Vote{}, false, s.logError("failed to commit vote", err, "plan_id", vote.PlanID)
	}

	vote.VotedAt = time.UnixMilli(toMillis(vote.VotedAt)).UTC()
	return vote, replaced, nil
}

// ListVotes reads the plan's ledger in a single statement. When upTo is set
// only rows with voted_at <= upTo are returned.
func (s *Store) ListVotes(ctx context.Context, planID int64, upTo *time.Time) ([]models.Vote, error) {
	query := `
		SELECT plan_id, voter_id, restaurant_id, voted_at
		FROM plan_vote
		WHERE plan_id = ?`
	args := []any{planID}
	if upTo != nil {
		query += ` AND voted_at <= ?`
		args = append(args, toMillis(*upTo))
	}
	query += ` ORDER BY voter_id`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, s.logError("failed to query votes", err, "plan_id", planID)
	}
	defer rows.Close()

	votes := []models.Vote{}
	for rows.Next() {
		var v models.Vote
		var votedAt int64
		if err := rows.Scan(&v.PlanID, &v.VoterID, &v.RestaurantID, &votedAt); err != nil {
			return nil, s.logError("failed to scan vote", err, "plan_id", planID)
		}
		v.VotedAt = time.UnixMilli(votedAt).UTC()
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, s.logError("failed to iterate votes", err, "plan_id", planID)
	}
	return votes, nil
}
