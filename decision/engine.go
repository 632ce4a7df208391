// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/danielhkuo/plan-decision/models"
)

const tracerName = "github.com/danielhkuo/plan-decision/decision"

// Engine is the decision state machine. It is safe for concurrent use; all
// coordination between writers happens through conditional updates in the
// Store, so several Engines may share one database.
type Engine struct {
	store      Store
	roster     Roster
	candidates Candidates
	strategies map[models.ToolType]Strategy

	now       func() time.Time
	lease     time.Duration
	pollEvery time.Duration
	logger    *slog.Logger
	tracer    trace.Tracer

	// coalesces concurrent closes of the same plan within this process
	closing singleflight.Group
}

type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithStrategy overrides the resolution strategy for one tool.
func WithStrategy(tool models.ToolType, s Strategy) Option {
	return func(e *Engine) { e.strategies[tool] = s }
}

// WithResolveLease sets how long a resolver owns a CLOSED plan before
// another process may take over.
func WithResolveLease(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lease = d
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

func New(store Store, roster Roster, candidates Candidates, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		roster:     roster,
		candidates: candidates,
		strategies: DefaultStrategies(),
		now:        time.Now,
		lease:      10 * time.Second,
		pollEvery:  25 * time.Millisecond,
		logger:     slog.Default(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open creates the OPEN decision record when a plan is created.
func (e *Engine) Open(ctx context.Context, planID, managerID int64) (d models.PlanDecision, err error) {
	ctx, span := e.startSpan(ctx, "decision.Open", planID)
	defer func() { endSpan(span, err) }()

	ok, err := e.roster.IsManager(ctx, planID, managerID)
	if err != nil {
		return models.PlanDecision{}, fmt.Errorf("check manager: %w", err)
	}
	if !ok {
		return models.PlanDecision{}, ErrNotManager
	}

	d, err = e.store.CreateDecision(ctx, planID, managerID)
	if err != nil {
		return models.PlanDecision{}, err
	}
	e.logger.Info("plan decision opened", "plan_id", planID, "manager_id", managerID)
	return d, nil
}

// Get returns the current decision snapshot.
func (e *Engine) Get(ctx context.Context, planID int64) (models.PlanDecision, error) {
	return e.store.GetDecision(ctx, planID)
}

// SelectTool fixes the decision tool and opens the voting window.
func (e *Engine) SelectTool(ctx context.Context, planID, actorID int64, tool models.ToolType) (d models.PlanDecision, err error) {
	ctx, span := e.startSpan(ctx, "decision.SelectTool", planID)
	defer func() { endSpan(span, err) }()

	if !tool.Valid() {
		return models.PlanDecision{}, ErrInvalidTool
	}
	d, err = e.store.GetDecision(ctx, planID)
	if err != nil {
		return models.PlanDecision{}, err
	}
	if d.CreatedBy != actorID {
		return d, ErrNotManager
	}
	if d.Status != models.StatusOpen {
		return d, ErrAlreadyStarted
	}
	candidates, err := e.candidates.CandidateIDs(ctx, planID)
	if err != nil {
		return d, fmt.Errorf("load candidates: %w", err)
	}
	if len(candidates) == 0 {
		return d, ErrNoCandidates
	}

	ok, err := retryConflict(func() (bool, error) {
		return e.store.StartVoting(ctx, planID, tool, e.now())
	})
	if err != nil {
		return d, err
	}
	if d, err = e.store.GetDecision(ctx, planID); err != nil {
		return models.PlanDecision{}, err
	}
	if !ok {
		e.logger.Warn("tool selection lost race", "plan_id", planID, "status", d.Status)
		return d, ErrAlreadyStarted
	}
	e.verify(d)
	e.logger.Info("voting started", "plan_id", planID, "tool", tool, "actor_id", actorID)
	return d, nil
}

// SubmitVote records or replaces the voter's choice while the plan is VOTING.
func (e *Engine) SubmitVote(ctx context.Context, planID, voterID, restaurantID int64) (v models.Vote, replaced bool, err error) {
	ctx, span := e.startSpan(ctx, "decision.SubmitVote", planID)
	defer func() { endSpan(span, err) }()

	d, err := e.store.GetDecision(ctx, planID)
	if err != nil {
		return models.Vote{}, false, err
	}
	if d.Status != models.StatusVoting {
		return models.Vote{}, false, ErrVotingClosed
	}

	eligible, err := e.roster.IsParticipant(ctx, planID, voterID)
	if err != nil {
		return models.Vote{}, false, fmt.Errorf("check participant: %w", err)
	}
	if !eligible {
		return models.Vote{}, false, ErrNotEligibleVoter
	}
	if err := e.requireCandidate(ctx, planID, restaurantID); err != nil {
		return models.Vote{}, false, err
	}

	vote := models.Vote{PlanID: planID, VoterID: voterID, RestaurantID: restaurantID}
	type upsert struct {
		vote     models.Vote
		replaced bool
	}
	res, err := retryConflict(func() (upsert, error) {
		vote.VotedAt = e.now()
		v, replaced, err := e.store.UpsertVote(ctx, vote)
		return upsert{v, replaced}, err
	})
	if err != nil {
		if errors.Is(err, ErrVotingClosed) {
			e.logger.Info("vote rejected after close", "plan_id", planID, "voter_id", voterID)
		}
		return models.Vote{}, false, err
	}
	e.logger.Info("vote recorded", "plan_id", planID, "voter_id", voterID,
		"restaurant_id", restaurantID, "replaced", res.replaced)
	return res.vote, res.replaced, nil
}

// Tally aggregates the ledger. Once the plan is closed only votes recorded
// up to closed_at are counted, which is the same input resolution sees.
func (e *Engine) Tally(ctx context.Context, planID int64) (t models.Tally, err error) {
	ctx, span := e.startSpan(ctx, "decision.Tally", planID)
	defer func() { endSpan(span, err) }()

	d, err := e.store.GetDecision(ctx, planID)
	if err != nil {
		return models.Tally{}, err
	}
	votes, err := retryConflict(func() ([]models.Vote, error) {
		return e.store.ListVotes(ctx, planID, d.ClosedAt)
	})
	if err != nil {
		return models.Tally{}, err
	}
	candidates, err := e.candidates.CandidateIDs(ctx, planID)
	if err != nil {
		return models.Tally{}, fmt.Errorf("load candidates: %w", err)
	}
	return ComputeTally(votes, candidates), nil
}

// Close ends the voting window and resolves the winner. selection is the
// manager's pick for DIRECT plans and is ignored by other tools. Concurrent
// closes of one plan all return the same decided snapshot; the resolution
// strategy runs once.
func (e *Engine) Close(ctx context.Context, planID, actorID int64, selection *int64) (d models.PlanDecision, err error) {
	ctx, span := e.startSpan(ctx, "decision.Close", planID)
	defer func() { endSpan(span, err) }()

	d, err = e.store.GetDecision(ctx, planID)
	if err != nil {
		return models.PlanDecision{}, err
	}
	if d.CreatedBy != actorID {
		return d, ErrNotManager
	}
	if selection != nil {
		if err := e.requireCandidate(ctx, planID, *selection); err != nil {
			return d, err
		}
	}
	return e.close(ctx, planID, selection)
}

// CloseExpired is the timeout entrypoint: the same close path without the
// manager check.
func (e *Engine) CloseExpired(ctx context.Context, planID int64) (d models.PlanDecision, err error) {
	ctx, span := e.startSpan(ctx, "decision.CloseExpired", planID)
	defer func() { endSpan(span, err) }()

	return e.close(ctx, planID, nil)
}

// ResolvePending re-runs resolution for a plan left in CLOSED.
func (e *Engine) ResolvePending(ctx context.Context, planID int64) (d models.PlanDecision, err error) {
	ctx, span := e.startSpan(ctx, "decision.ResolvePending", planID)
	defer func() { endSpan(span, err) }()

	return e.close(ctx, planID, nil)
}

// Cancel abandons a plan that has not been closed.
func (e *Engine) Cancel(ctx context.Context, planID, actorID int64) (d models.PlanDecision, err error) {
	ctx, span := e.startSpan(ctx, "decision.Cancel", planID)
	defer func() { endSpan(span, err) }()

	d, err = e.store.GetDecision(ctx, planID)
	if err != nil {
		return models.PlanDecision{}, err
	}
	if d.CreatedBy != actorID {
		return d, ErrNotManager
	}

	for attempt := 0; attempt < 2; attempt++ {
		if d.Status != models.StatusOpen && d.Status != models.StatusVoting {
			return d, ErrNoLongerPending
		}
		ok, err := e.store.Cancel(ctx, planID, e.now())
		if err != nil && !errors.Is(err, ErrStorageConflict) {
			return d, err
		}
		if d, err = e.store.GetDecision(ctx, planID); err != nil {
			return models.PlanDecision{}, err
		}
		if ok {
			e.verify(d)
			e.logger.Info("plan cancelled", "plan_id", planID, "actor_id", actorID)
			return d, nil
		}
	}
	return d, ErrStorageConflict
}

// Confirm is the manager's explicit pick for a plan whose resolution could
// not produce a winner (no votes, no DIRECT selection).
func (e *Engine) Confirm(ctx context.Context, planID, actorID, restaurantID int64) (d models.PlanDecision, err error) {
	ctx, span := e.startSpan(ctx, "decision.Confirm", planID)
	defer func() { endSpan(span, err) }()

	d, err = e.store.GetDecision(ctx, planID)
	if err != nil {
		return models.PlanDecision{}, err
	}
	if d.CreatedBy != actorID {
		return d, ErrNotManager
	}
	switch {
	case d.Status.Terminal():
		return d, ErrNoLongerPending
	case d.Status != models.StatusClosed:
		return d, ErrNotClosed
	}
	if err := e.requireCandidate(ctx, planID, restaurantID); err != nil {
		return d, err
	}

	ok, err := retryConflict(func() (bool, error) {
		return e.store.Decide(ctx, planID, restaurantID)
	})
	if err != nil {
		return d, err
	}
	if d, err = e.store.GetDecision(ctx, planID); err != nil {
		return models.PlanDecision{}, err
	}
	if !ok {
		return d, ErrNoLongerPending
	}
	e.verify(d)
	e.logger.Info("plan decided by confirmation", "plan_id", planID,
		"restaurant_id", restaurantID, "actor_id", actorID)
	return d, nil
}

// ExpiredVoting lists plans whose voting window opened at least timeout ago.
func (e *Engine) ExpiredVoting(ctx context.Context, timeout time.Duration, limit int) ([]int64, error) {
	return e.store.ListVotingStartedBefore(ctx, e.now().Add(-timeout), limit)
}

// PendingResolution lists CLOSED plans with no live resolver.
func (e *Engine) PendingResolution(ctx context.Context, limit int) ([]int64, error) {
	return e.store.ListClosedUnresolved(ctx, e.now(), limit)
}

func (e *Engine) close(ctx context.Context, planID int64, selection *int64) (models.PlanDecision, error) {
	ch := e.closing.DoChan(strconv.FormatInt(planID, 10), func() (any, error) {
		// shared by every waiter, so one caller's cancellation must not fail the
		// rest; bounded so a stuck lease holder cannot pin the call forever
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*e.lease)
		defer cancel()
		return e.closeOnce(ctx, planID, selection)
	})
	select {
	case res := <-ch:
		d, _ := res.Val.(models.PlanDecision)
		return d, res.Err
	case <-ctx.Done():
		return models.PlanDecision{}, ctx.Err()
	}
}

func (e *Engine) closeOnce(ctx context.Context, planID int64, selection *int64) (models.PlanDecision, error) {
	var d models.PlanDecision
	for attempt := 0; attempt < 2; attempt++ {
		var err error
		if d, err = e.store.GetDecision(ctx, planID); err != nil {
			return models.PlanDecision{}, err
		}

		switch d.Status {
		case models.StatusOpen:
			return d, ErrNotStarted
		case models.StatusCancelled:
			return d, ErrNoLongerPending
		case models.StatusDecided:
			return d, nil
		case models.StatusClosed:
			if selection != nil && d.Selection == nil {
				if _, err := e.store.RecordSelection(ctx, planID, *selection); err != nil {
					return d, err
				}
				if d, err = e.store.GetDecision(ctx, planID); err != nil {
					return models.PlanDecision{}, err
				}
			}
			return e.resolve(ctx, d)
		case models.StatusVoting:
			ok, err := e.store.CloseVoting(ctx, planID, e.now(), selection)
			if errors.Is(err, ErrStorageConflict) {
				continue
			}
			if err != nil {
				return d, err
			}
			if !ok {
				e.logger.Warn("close lost race", "plan_id", planID)
				continue
			}
			if d, err = e.store.GetDecision(ctx, planID); err != nil {
				return models.PlanDecision{}, err
			}
			e.verify(d)
			e.logger.Info("voting closed", "plan_id", planID, "closed_at", d.ClosedAt)
			return e.resolve(ctx, d)
		default:
			return d, fmt.Errorf("plan %d has unknown status %q", planID, d.Status)
		}
	}
	return d, ErrStorageConflict
}

// resolve runs the tool's strategy for a CLOSED plan under a resolution lease
// and moves it to DECIDED. If another resolver holds the lease it waits for
// that resolver's outcome instead of running the strategy again.
func (e *Engine) resolve(ctx context.Context, d models.PlanDecision) (models.PlanDecision, error) {
	planID := d.PlanID
	token := uuid.NewString()
	for {
		now := e.now()
		ok, err := e.store.AcquireResolveLease(ctx, planID, token, now, now.Add(e.lease))
		if err != nil && !errors.Is(err, ErrStorageConflict) {
			return d, err
		}
		if ok {
			break
		}
		if d, err = e.store.GetDecision(ctx, planID); err != nil {
			return models.PlanDecision{}, err
		}
		switch d.Status {
		case models.StatusDecided:
			return d, nil
		case models.StatusClosed:
		default:
			return d, ErrNoLongerPending
		}
		select {
		case <-ctx.Done():
			return d, ctx.Err()
		case <-time.After(e.pollEvery):
		}
	}

	winner, err := e.runStrategy(ctx, d)
	if err != nil {
		if relErr := e.store.ReleaseResolveLease(ctx, planID, token); relErr != nil {
			e.logger.Warn("failed to release resolve lease", "plan_id", planID, "error", relErr)
		}
		e.logger.Warn("resolution failed", "plan_id", planID, "tool", d.Tool(), "error", err)
		return d, err
	}

	ok, err := retryConflict(func() (bool, error) {
		return e.store.Decide(ctx, planID, winner)
	})
	if err != nil {
		return d, err
	}
	if d, err = e.store.GetDecision(ctx, planID); err != nil {
		return models.PlanDecision{}, err
	}
	if !ok {
		e.logger.Warn("decision written by another resolver", "plan_id", planID, "status", d.Status)
		if d.Status == models.StatusDecided {
			return d, nil
		}
		return d, ErrNoLongerPending
	}
	e.verify(d)
	e.logger.Info("plan decided", "plan_id", planID, "tool", d.Tool(), "restaurant_id", winner)
	return d, nil
}

func (e *Engine) runStrategy(ctx context.Context, d models.PlanDecision) (int64, error) {
	strategy, ok := e.strategies[d.Tool()]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTool, d.Tool())
	}
	votes, err := retryConflict(func() ([]models.Vote, error) {
		return e.store.ListVotes(ctx, d.PlanID, d.ClosedAt)
	})
	if err != nil {
		return 0, err
	}
	candidates, err := e.candidates.CandidateIDs(ctx, d.PlanID)
	if err != nil {
		return 0, fmt.Errorf("load candidates: %w", err)
	}
	return strategy.Resolve(ctx, ResolutionInput{
		PlanID:     d.PlanID,
		ToolType:   d.Tool(),
		Candidates: candidates,
		Votes:      votes,
		ClosedAt:   *d.ClosedAt,
		Selection:  d.Selection,
	})
}

func (e *Engine) requireCandidate(ctx context.Context, planID, restaurantID int64) error {
	candidates, err := e.candidates.CandidateIDs(ctx, planID)
	if err != nil {
		return fmt.Errorf("load candidates: %w", err)
	}
	if !slices.Contains(candidates, restaurantID) {
		return ErrInvalidCandidate
	}
	return nil
}

func (e *Engine) verify(d models.PlanDecision) {
	if err := CheckInvariants(d); err != nil {
		e.logger.Error("decision invariant violated", "plan_id", d.PlanID, "error", err)
	}
}

// CheckInvariants validates the record-level invariants of a decision.
func CheckInvariants(d models.PlanDecision) error {
	if (d.FinalRestaurantID != nil) != (d.Status == models.StatusDecided) {
		return fmt.Errorf("final restaurant set=%t with status %s", d.FinalRestaurantID != nil, d.Status)
	}
	closed := d.Status == models.StatusClosed || d.Status == models.StatusDecided || d.Status == models.StatusCancelled
	if (d.ClosedAt != nil) != closed {
		return fmt.Errorf("closed_at set=%t with status %s", d.ClosedAt != nil, d.Status)
	}
	if d.ToolType == nil && d.Status != models.StatusOpen && d.Status != models.StatusCancelled {
		return fmt.Errorf("no tool with status %s", d.Status)
	}
	return nil
}

func retryConflict[T any](fn func() (T, error)) (T, error) {
	v, err := fn()
	if errors.Is(err, ErrStorageConflict) {
		v, err = fn()
	}
	return v, err
}

func (e *Engine) startSpan(ctx context.Context, name string, planID int64) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(attribute.Int64("plan_id", planID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
