// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the plan decision API server.

A plan is a group outing; its decision settles which candidate restaurant
the group goes to. The manager picks a tool (DIRECT, VOTE, RANDOM or
TOURNEY), participants vote, and closing the plan resolves one winner.

# Starting the Server

	DATABASE_URL=decision.db JWT_SECRET=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." -jwt-secret ...

A .env file in the working directory is loaded first when present.

# Configuration

Required settings:

  - DATABASE_URL (-d): sqlite path or postgres connection string
  - JWT_SECRET (-jwt-secret): HS256 secret for bearer tokens

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - VOTING_TIMEOUT: auto-close voting after this long (default: off)
  - SWEEP_INTERVAL, RESOLVE_LEASE: sweeper cadence and resolver lease
  - OTEL_ENDPOINT: OTLP/HTTP endpoint for traces (default: off)

# Architecture

  - decision: state machine, tally and resolution strategies
  - store: decision records and the vote ledger (database/sql)
  - roster: plan membership and candidate restaurants
  - handlers, router, middleware: HTTP surface
  - worker: timeout auto-close and CLOSED recovery
  - auth, cliparse, db, telemetry, models: supporting packages

The HTTP server and the sweeper run under one errgroup and stop together on
SIGINT or SIGTERM.
*/
package main
