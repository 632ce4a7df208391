// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the plan decision API.

# Handler Types

DecisionHandler adapts the decision engine to HTTP:

	h := handlers.NewDecisionHandler(engine, cfg)

Every endpoint authenticates the actor from the Authorization: Bearer token
and reads the plan id from the {planId} path segment.

# Endpoints

	POST /plans/{planId}/decision          → Open
	GET  /plans/{planId}/decision          → Get
	POST /plans/{planId}/decision/tool     → SelectTool
	POST /plans/{planId}/decision/votes    → SubmitVote (201 new, 200 replaced)
	GET  /plans/{planId}/decision/tally    → Tally
	POST /plans/{planId}/decision/close    → Close
	POST /plans/{planId}/decision/cancel   → Cancel
	POST /plans/{planId}/decision/confirm  → Confirm

# Errors

Engine errors map to a status and a stable code:

	403 NOT_MANAGER, NOT_ELIGIBLE_VOTER
	400 INVALID_CANDIDATE, INVALID_TOOL, INVALID_PLAN_ID, INVALID_JSON
	401 UNAUTHENTICATED
	404 PLAN_NOT_FOUND
	409 ALREADY_EXISTS, ALREADY_STARTED, NOT_STARTED, VOTING_CLOSED,
	    NOT_CLOSED, NO_LONGER_PENDING
	422 NO_VOTES_CAST, NO_SELECTION_PROVIDED, NO_CANDIDATES
	503 STORAGE_CONFLICT

422 bodies include the CLOSED decision snapshot. Cancelling a plan that has
already been closed, and closing a plan that has been cancelled, answer 200
with already_finalized set and the current snapshot.
*/
package handlers
