// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielhkuo/plan-decision/auth"
	"github.com/danielhkuo/plan-decision/cliparse"
	"github.com/danielhkuo/plan-decision/decision"
	"github.com/danielhkuo/plan-decision/middleware"
	"github.com/danielhkuo/plan-decision/models"
)

type DecisionHandler struct {
	engine *decision.Engine
	cfg    cliparse.Config
}

func NewDecisionHandler(engine *decision.Engine, cfg cliparse.Config) *DecisionHandler {
	return &DecisionHandler{engine: engine, cfg: cfg}
}

// Open handles POST /plans/{planId}/decision
func (h *DecisionHandler) Open(w http.ResponseWriter, r *http.Request) {
	planID, actorID, ok := h.identify(w, r)
	if !ok {
		return
	}

	d, err := h.engine.Open(r.Context(), planID, actorID)
	if err != nil {
		writeError(w, r, err, d)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, models.DecisionResponse{PlanDecision: d})
}

// Get handles GET /plans/{planId}/decision
func (h *DecisionHandler) Get(w http.ResponseWriter, r *http.Request) {
	planID, _, ok := h.identify(w, r)
	if !ok {
		return
	}

	d, err := h.engine.Get(r.Context(), planID)
	if err != nil {
		writeError(w, r, err, d)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.DecisionResponse{PlanDecision: d})
}

// SelectTool handles POST /plans/{planId}/decision/tool
func (h *DecisionHandler) SelectTool(w http.ResponseWriter, r *http.Request) {
	planID, actorID, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req models.SelectToolRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON")
		return
	}
	if req.ToolType == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "INVALID_TOOL", "tool_type is required")
		return
	}

	d, err := h.engine.SelectTool(r.Context(), planID, actorID, req.ToolType)
	if err != nil {
		writeError(w, r, err, d)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.DecisionResponse{PlanDecision: d})
}

// SubmitVote handles POST /plans/{planId}/decision/votes
func (h *DecisionHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	planID, actorID, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req models.SubmitVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON")
		return
	}
	if req.RestaurantID <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "INVALID_CANDIDATE", "restaurant_id is required")
		return
	}

	vote, replaced, err := h.engine.SubmitVote(r.Context(), planID, actorID, req.RestaurantID)
	if err != nil {
		writeError(w, r, err, models.PlanDecision{})
		return
	}

	status := http.StatusCreated
	if replaced {
		status = http.StatusOK
	}
	middleware.JSONResponse(w, status, models.VoteResponse{Vote: vote, Replaced: replaced})
}

// Tally handles GET /plans/{planId}/decision/tally
func (h *DecisionHandler) Tally(w http.ResponseWriter, r *http.Request) {
	planID, _, ok := h.identify(w, r)
	if !ok {
		return
	}

	tally, err := h.engine.Tally(r.Context(), planID)
	if err != nil {
		writeError(w, r, err, models.PlanDecision{})
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.TallyResponse{PlanID: planID, Tally: tally})
}

// Close handles POST /plans/{planId}/decision/close
func (h *DecisionHandler) Close(w http.ResponseWriter, r *http.Request) {
	planID, actorID, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req models.CloseRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON")
		return
	}

	d, err := h.engine.Close(r.Context(), planID, actorID, req.RestaurantID)
	if errors.Is(err, decision.ErrNoLongerPending) && d.Status.Terminal() {
		// lost to a cancel
		writeAlreadyFinalized(w, d)
		return
	}
	if err != nil {
		writeError(w, r, err, d)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.DecisionResponse{PlanDecision: d})
}

// Cancel handles POST /plans/{planId}/decision/cancel
func (h *DecisionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	planID, actorID, ok := h.identify(w, r)
	if !ok {
		return
	}

	d, err := h.engine.Cancel(r.Context(), planID, actorID)
	if errors.Is(err, decision.ErrNoLongerPending) && d.Status != models.StatusOpen && d.Status != models.StatusVoting {
		// a close got there first, even if its resolution is still pending
		writeAlreadyFinalized(w, d)
		return
	}
	if err != nil {
		writeError(w, r, err, d)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.DecisionResponse{PlanDecision: d})
}

// Confirm handles POST /plans/{planId}/decision/confirm
func (h *DecisionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	planID, actorID, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req models.ConfirmRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON")
		return
	}
	if req.RestaurantID <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "INVALID_CANDIDATE", "restaurant_id is required")
		return
	}

	d, err := h.engine.Confirm(r.Context(), planID, actorID, req.RestaurantID)
	if err != nil {
		writeError(w, r, err, d)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.DecisionResponse{PlanDecision: d})
}

// writeAlreadyFinalized reports a lost close/cancel race as a benign outcome
// carrying the winner's snapshot.
func writeAlreadyFinalized(w http.ResponseWriter, d models.PlanDecision) {
	middleware.JSONResponse(w, http.StatusOK, models.DecisionResponse{PlanDecision: d, AlreadyFinalized: true})
}

// identify parses the plan id and authenticates the actor, writing the error
// response itself when either fails.
func (h *DecisionHandler) identify(w http.ResponseWriter, r *http.Request) (planID, actorID int64, ok bool) {
	planID, err := strconv.ParseInt(r.PathValue("planId"), 10, 64)
	if err != nil || planID <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "INVALID_PLAN_ID", "planId must be a positive integer")
		return 0, 0, false
	}

	actorID, err = auth.ActorFromRequest(r, h.cfg.JWTSecret)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
		return 0, 0, false
	}
	return planID, actorID, true
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{decision.ErrNotManager, http.StatusForbidden, "NOT_MANAGER"},
	{decision.ErrNotEligibleVoter, http.StatusForbidden, "NOT_ELIGIBLE_VOTER"},
	{decision.ErrInvalidCandidate, http.StatusBadRequest, "INVALID_CANDIDATE"},
	{decision.ErrInvalidTool, http.StatusBadRequest, "INVALID_TOOL"},
	{decision.ErrPlanNotFound, http.StatusNotFound, "PLAN_NOT_FOUND"},
	{decision.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},
	{decision.ErrAlreadyStarted, http.StatusConflict, "ALREADY_STARTED"},
	{decision.ErrNotStarted, http.StatusConflict, "NOT_STARTED"},
	{decision.ErrVotingClosed, http.StatusConflict, "VOTING_CLOSED"},
	{decision.ErrNotClosed, http.StatusConflict, "NOT_CLOSED"},
	{decision.ErrNoLongerPending, http.StatusConflict, "NO_LONGER_PENDING"},
	{decision.ErrNoVotesCast, http.StatusUnprocessableEntity, "NO_VOTES_CAST"},
	{decision.ErrNoSelectionProvided, http.StatusUnprocessableEntity, "NO_SELECTION_PROVIDED"},
	{decision.ErrNoCandidates, http.StatusUnprocessableEntity, "NO_CANDIDATES"},
	{decision.ErrStorageConflict, http.StatusServiceUnavailable, "STORAGE_CONFLICT"},
}

// writeError maps engine errors to a status and code. Resolution-input
// failures carry the CLOSED snapshot so the client can offer a manual pick.
func writeError(w http.ResponseWriter, r *http.Request, err error, d models.PlanDecision) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		if decision.IsResolutionInput(err) && d.PlanID != 0 {
			middleware.ErrorWithDecision(w, m.status, m.code, m.err.Error(), d)
			return
		}
		middleware.ErrorResponse(w, m.status, m.code, m.err.Error())
		return
	}

	slog.Error("decision request failed",
		"request_id", middleware.RequestID(r.Context()),
		"path", r.URL.Path,
		"error", err,
	)
	middleware.ErrorResponse(w, http.StatusInternalServerError, "INTERNAL", "Internal error")
}
