// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Decision status constants
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusVoting    Status = "VOTING"
	StatusClosed    Status = "CLOSED"
	StatusDecided   Status = "DECIDED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusDecided || s == StatusCancelled
}

// Decision tool constants
type ToolType string

const (
	ToolDirect  ToolType = "DIRECT"
	ToolVote    ToolType = "VOTE"
	ToolRandom  ToolType = "RANDOM"
	ToolTourney ToolType = "TOURNEY"
)

// Valid reports whether t is one of the known decision tools.
func (t ToolType) Valid() bool {
	switch t {
	case ToolDirect, ToolVote, ToolRandom, ToolTourney:
		return true
	}
	return false
}

// Roster roles, as stored in plan_participant.plan_role
const (
	RoleManager     = "MANAGER"
	RoleParticipant = "PARTICIPANTS"
)

// Request types

type SelectToolRequest struct {
	ToolType ToolType `json:"tool_type"`
}

type SubmitVoteRequest struct {
	RestaurantID int64 `json:"restaurant_id"`
}

// RestaurantID is optional: DIRECT plans carry the manager's pick here.
type CloseRequest struct {
	RestaurantID *int64 `json:"restaurant_id,omitempty"`
}

type ConfirmRequest struct {
	RestaurantID int64 `json:"restaurant_id"`
}

// Response types

type DecisionResponse struct {
	PlanDecision
	AlreadyFinalized bool `json:"already_finalized,omitempty"`
}

type VoteResponse struct {
	Vote
	Replaced bool `json:"replaced"`
}

type TallyResponse struct {
	PlanID int64 `json:"plan_id"`
	Tally
}

// Domain types

// PlanDecision is the per-plan decision record. FinalRestaurantID is set
// iff Status is DECIDED; ClosedAt is set iff Status is CLOSED, DECIDED or
// CANCELLED.
type PlanDecision struct {
	PlanID            int64      `json:"plan_id"`
	ToolType          *ToolType  `json:"tool_type"`
	Status            Status     `json:"status"`
	FinalRestaurantID *int64     `json:"final_restaurant_id"`
	StartedAt         *time.Time `json:"started_at"`
	ClosedAt          *time.Time `json:"closed_at"`
	CreatedBy         int64      `json:"created_by"`

	// Manager pick recorded at close; input to DIRECT resolution.
	Selection *int64 `json:"-"`
	// Bumped by every guarded write against the record.
	Version int64 `json:"-"`
}

// Tool returns the selected tool or "" while the decision is OPEN.
func (d PlanDecision) Tool() ToolType {
	if d.ToolType == nil {
		return ""
	}
	return *d.ToolType
}

type Vote struct {
	PlanID       int64     `json:"plan_id"`
	VoterID      int64     `json:"voter_id"`
	RestaurantID int64     `json:"restaurant_id"`
	VotedAt      time.Time `json:"voted_at"`
}

type TallyItem struct {
	RestaurantID int64   `json:"restaurant_id"`
	Votes        int64   `json:"votes"`
	VoterIDs     []int64 `json:"voter_ids"`
}

type Tally struct {
	Results    []TallyItem `json:"results"`
	TotalVotes int64       `json:"total_votes"`
}

// Error response

type ErrorResponse struct {
	Error    string        `json:"error"`
	Code     string        `json:"code,omitempty"`
	Message  string        `json:"message,omitempty"`
	Decision *PlanDecision `json:"decision,omitempty"`
}
