// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database types
const (
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
)

// Open connects to the database of the given type and verifies the connection.
func Open(dbType, url string) (*sql.DB, error) {
	switch dbType {
	case TypePostgres:
		conn, err := sql.Open("postgres", url)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		if err := conn.Ping(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to ping postgres: %w", err)
		}
		return conn, nil
	case TypeSQLite:
		conn, err := sql.Open("sqlite", sqliteDSN(url))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		// sqlite has a single writer; one pooled connection keeps every
		// transaction serialized instead of failing with SQLITE_BUSY on upgrade.
		// It also keeps a :memory: database alive for the life of the pool.
		conn.SetMaxOpenConns(1)
		if err := conn.Ping(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to ping sqlite: %w", err)
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}
}

func sqliteDSN(url string) string {
	url = strings.TrimPrefix(url, "sqlite://")
	if url == ":memory:" {
		return "file::memory:?_pragma=foreign_keys(1)"
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Rebind rewrites ? placeholders to $n when dbType is postgres. Queries are
// written once with ? and shared by both drivers.
func Rebind(dbType, query string) string {
	if dbType != TypePostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Timestamps are unix milliseconds so both drivers round-trip them exactly;
// RANDOM and TOURNEY seeds are derived from closed_at.
const schema = `
-- Roster, populated by the plan service
CREATE TABLE IF NOT EXISTS plan_participant (
    plan_id BIGINT NOT NULL,
    user_id BIGINT NOT NULL,
    plan_role TEXT NOT NULL CHECK (plan_role IN ('MANAGER', 'PARTICIPANTS')),
    PRIMARY KEY (plan_id, user_id)
);

-- Candidate restaurants, populated by the plan service
CREATE TABLE IF NOT EXISTS plan_candidate (
    plan_id BIGINT NOT NULL,
    restaurant_id BIGINT NOT NULL,
    PRIMARY KEY (plan_id, restaurant_id)
);

-- Decision records
CREATE TABLE IF NOT EXISTS plan_decision (
    plan_id BIGINT PRIMARY KEY,
    tool_type TEXT CHECK (tool_type IN ('DIRECT', 'VOTE', 'RANDOM', 'TOURNEY')),
    status TEXT NOT NULL DEFAULT 'OPEN' CHECK (status IN ('OPEN', 'VOTING', 'CLOSED', 'DECIDED', 'CANCELLED')),
    final_restaurant_id BIGINT,
    manager_selection BIGINT,
    started_at BIGINT,
    closed_at BIGINT,
    created_by BIGINT NOT NULL,
    version BIGINT NOT NULL DEFAULT 0,
    resolve_token TEXT,
    resolve_lease_until BIGINT,
    CHECK ((final_restaurant_id IS NOT NULL) = (status = 'DECIDED')),
    CHECK ((closed_at IS NOT NULL) = (status IN ('CLOSED', 'DECIDED', 'CANCELLED')))
);

CREATE INDEX IF NOT EXISTS idx_plan_decision_status ON plan_decision(status);

-- Vote ledger: one live row per (plan, voter)
CREATE TABLE IF NOT EXISTS plan_vote (
    plan_id BIGINT NOT NULL REFERENCES plan_decision(plan_id),
    voter_id BIGINT NOT NULL,
    restaurant_id BIGINT NOT NULL,
    voted_at BIGINT NOT NULL,
    PRIMARY KEY (plan_id, voter_id)
);

CREATE INDEX IF NOT EXISTS idx_plan_vote_restaurant ON plan_vote(plan_id, restaurant_id);
`
