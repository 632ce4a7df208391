// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - SelectToolRequest: tool_type
  - SubmitVoteRequest: restaurant_id
  - CloseRequest: restaurant_id (optional, the manager's DIRECT pick)
  - ConfirmRequest: restaurant_id

# Response Types

Types for JSON responses:

  - DecisionResponse: decision snapshot, already_finalized
  - VoteResponse: vote record, replaced
  - TallyResponse: plan_id, results, total_votes
  - ErrorResponse: error, code, message, decision

# Domain Types

  - PlanDecision: one per plan, owned by the decision state machine
  - Vote: one live row per (plan, voter)
  - Tally, TallyItem: per-restaurant counts with voter ids

# Constants

Status values:

	StatusOpen      = "OPEN"
	StatusVoting    = "VOTING"
	StatusClosed    = "CLOSED"
	StatusDecided   = "DECIDED"
	StatusCancelled = "CANCELLED"

Decision tools:

	ToolDirect  = "DIRECT"
	ToolVote    = "VOTE"
	ToolRandom  = "RANDOM"
	ToolTourney = "TOURNEY"

Roster roles:

	RoleManager     = "MANAGER"
	RoleParticipant = "PARTICIPANTS"
*/
package models
