// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package worker runs the background sweeper that closes timed-out voting
// windows and finishes plans left in CLOSED.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/danielhkuo/plan-decision/decision"
	"github.com/danielhkuo/plan-decision/models"
)

// Engine is the subset of decision.Engine the sweeper drives.
type Engine interface {
	ExpiredVoting(ctx context.Context, timeout time.Duration, limit int) ([]int64, error)
	PendingResolution(ctx context.Context, limit int) ([]int64, error)
	CloseExpired(ctx context.Context, planID int64) (models.PlanDecision, error)
	ResolvePending(ctx context.Context, planID int64) (models.PlanDecision, error)
}

const defaultBatch = 100

type Sweeper struct {
	engine   Engine
	timeout  time.Duration
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

// NewSweeper builds a sweeper. A zero timeout disables auto-close; recovery
// of CLOSED plans always runs.
func NewSweeper(engine Engine, timeout, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		engine:   engine,
		timeout:  timeout,
		interval: interval,
		batch:    defaultBatch,
		logger:   logger,
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and reports how many plans it closed and how many
// CLOSED plans it decided.
func (s *Sweeper) Sweep(ctx context.Context) (closed, resolved int) {
	if s.timeout > 0 {
		ids, err := s.engine.ExpiredVoting(ctx, s.timeout, s.batch)
		if err != nil {
			s.logger.Error("failed to list expired plans", "error", err)
		}
		for _, id := range ids {
			d, err := s.engine.CloseExpired(ctx, id)
			if s.report("auto-close", id, d, err) {
				closed++
			}
		}
	}

	ids, err := s.engine.PendingResolution(ctx, s.batch)
	if err != nil {
		s.logger.Error("failed to list pending plans", "error", err)
	}
	for _, id := range ids {
		d, err := s.engine.ResolvePending(ctx, id)
		if s.report("recovery", id, d, err) {
			resolved++
		}
	}
	return closed, resolved
}

// report logs the outcome of one plan and returns true if it ended DECIDED.
func (s *Sweeper) report(pass string, planID int64, d models.PlanDecision, err error) bool {
	switch {
	case err == nil:
		s.logger.Info("sweeper finalized plan", "pass", pass, "plan_id", planID,
			"status", d.Status, "restaurant_id", d.FinalRestaurantID)
		return d.Status == models.StatusDecided
	case decision.IsResolutionInput(err):
		// left CLOSED for the manager to confirm
		s.logger.Info("plan awaits manager confirmation", "pass", pass, "plan_id", planID, "reason", err)
	case errors.Is(err, decision.ErrNoLongerPending), errors.Is(err, context.Canceled):
		s.logger.Debug("sweeper skipped plan", "pass", pass, "plan_id", planID, "reason", err)
	default:
		s.logger.Warn("sweeper failed on plan", "pass", pass, "plan_id", planID, "error", err)
	}
	return false
}
