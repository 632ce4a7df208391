// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens database connections and creates the schema.

# Connections

Open supports PostgreSQL (github.com/lib/pq) and SQLite (modernc.org/sqlite):

	conn, err := db.Open(db.TypePostgres, "postgres://...")
	conn, err := db.Open(db.TypeSQLite, "decisions.db")
	conn, err := db.Open(db.TypeSQLite, ":memory:")

SQLite pools are pinned to a single connection.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - plan_participant: roster (MANAGER / PARTICIPANTS), owned by the plan service
  - plan_candidate: candidate restaurants, owned by the plan service
  - plan_decision: one decision record per plan
  - plan_vote: vote ledger, primary key (plan_id, voter_id)

The decision record carries CHECK constraints for its two invariants:
final_restaurant_id is set iff status is DECIDED, and closed_at is set iff
status is CLOSED, DECIDED or CANCELLED.

All timestamps are stored as unix milliseconds.
*/
package db
