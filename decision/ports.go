// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package decision

import (
	"context"
	"time"

	"github.com/danielhkuo/plan-decision/models"
)

// Roster answers who may vote on a plan and who manages it.
type Roster interface {
	IsParticipant(ctx context.Context, planID, userID int64) (bool, error)
	IsManager(ctx context.Context, planID, userID int64) (bool, error)
}

// Candidates lists the restaurants eligible for selection in a plan.
type Candidates interface {
	CandidateIDs(ctx context.Context, planID int64) ([]int64, error)
}

// Store is the Decision Record Store plus the Vote Ledger. Transition
// methods are conditional on the current status and report whether this
// caller won the swap.
type Store interface {
	CreateDecision(ctx context.Context, planID, managerID int64) (models.PlanDecision, error)
	GetDecision(ctx context.Context, planID int64) (models.PlanDecision, error)

	StartVoting(ctx context.Context, planID int64, tool models.ToolType, startedAt time.Time) (bool, error)
	CloseVoting(ctx context.Context, planID int64, closedAt time.Time, selection *int64) (bool, error)
	RecordSelection(ctx context.Context, planID int64, selection int64) (bool, error)
	Cancel(ctx context.Context, planID int64, closedAt time.Time) (bool, error)
	Decide(ctx context.Context, planID, restaurantID int64) (bool, error)

	AcquireResolveLease(ctx context.Context, planID int64, token string, now, until time.Time) (bool, error)
	ReleaseResolveLease(ctx context.Context, planID int64, token string) error

	UpsertVote(ctx context.Context, vote models.Vote) (models.Vote, bool, error)
	ListVotes(ctx context.Context, planID int64, upTo *time.Time) ([]models.Vote, error)

	ListVotingStartedBefore(ctx context.Context, cutoff time.Time, limit int) ([]int64, error)
	ListClosedUnresolved(ctx context.Context, now time.Time, limit int) ([]int64, error)
}
