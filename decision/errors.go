// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package decision

import "errors"

// Authorization
var ErrNotManager = errors.New("actor is not the plan manager")

// Input validation against the roster and candidate set
var (
	ErrNotEligibleVoter = errors.New("voter is not a participant of the plan")
	ErrInvalidCandidate = errors.New("restaurant is not a candidate of the plan")
	ErrInvalidTool      = errors.New("unknown decision tool")
)

// State machine preconditions
var (
	ErrPlanNotFound    = errors.New("plan decision not found")
	ErrAlreadyExists   = errors.New("plan decision already exists")
	ErrAlreadyStarted  = errors.New("decision tool already selected")
	ErrNotStarted      = errors.New("voting has not started")
	ErrVotingClosed    = errors.New("voting is closed")
	ErrNotClosed       = errors.New("decision is not awaiting resolution")
	ErrNoLongerPending = errors.New("decision is already finalized")
)

// Resolution inputs
var (
	ErrNoVotesCast         = errors.New("no votes cast")
	ErrNoSelectionProvided = errors.New("no restaurant selected by the manager")
	ErrNoCandidates        = errors.New("plan has no candidate restaurants")
)

// ErrStorageConflict marks a lost compare-and-swap or a transient storage
// error that is worth one retry after re-reading state.
var ErrStorageConflict = errors.New("storage conflict")

// IsResolutionInput reports whether err is a resolution failure that only
// new manager input can fix, as opposed to a transient one.
func IsResolutionInput(err error) bool {
	return errors.Is(err, ErrNoVotesCast) ||
		errors.Is(err, ErrNoSelectionProvided) ||
		errors.Is(err, ErrNoCandidates)
}
