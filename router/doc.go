// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the plan decision API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(engine, cfg)

# Endpoints

Health:

	GET /health

Decision lifecycle (manager):

	POST /plans/{planId}/decision          - Open the decision
	POST /plans/{planId}/decision/tool     - Select tool, start voting
	POST /plans/{planId}/decision/close    - Close and resolve
	POST /plans/{planId}/decision/cancel   - Cancel
	POST /plans/{planId}/decision/confirm  - Pick a winner for a stuck CLOSED plan

Voting (participants):

	POST /plans/{planId}/decision/votes    - Cast or replace a vote

Reads:

	GET /plans/{planId}/decision           - Snapshot
	GET /plans/{planId}/decision/tally     - Live tally

All plan routes are wrapped with middleware.WithLogging and require a
bearer token.
*/
package router
