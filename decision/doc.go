// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package decision is the plan decision engine: how a group settles on one
restaurant for a plan.

# Lifecycle

A decision record moves forward only:

	OPEN → VOTING → CLOSED → DECIDED
	OPEN | VOTING → CANCELLED

The manager opens voting by picking a tool (SelectTool), participants vote
while the record is VOTING (SubmitVote), and Close ends the window and
resolves a winner. CloseExpired is the same close path for the timeout
sweeper.

# Concurrency

Every transition is a conditional update on the current status; the caller
that flips the row wins and everyone else re-reads. Votes bump the record's
version under the same VOTING guard, so a vote and a close contend for one
row: a vote either lands before closed_at or fails with ErrVotingClosed.

Resolution runs once per plan. Concurrent closes in one process share a
singleflight call; across processes the resolver holds a lease on the
CLOSED row and other closers wait for DECIDED.

# Tools

	DIRECT   the manager's selection, given at close
	VOTE     plurality of the ledger, ties to the lowest restaurant id
	RANDOM   uniform draw seeded from (plan id, closed_at)
	TOURNEY  seeded single-elimination bracket, vote counts decide matches

Seeds depend only on stored data so a resolution re-run after a crash
picks the same winner. When a strategy cannot pick (no votes, no DIRECT
selection) the record stays CLOSED and the manager finishes it with Confirm
or by closing again with a selection.

# Errors

Failures are sentinel errors (ErrNotManager, ErrVotingClosed, ...) tested
with errors.Is. ErrStorageConflict marks a transient storage failure; the
engine retries those once.
*/
package decision
