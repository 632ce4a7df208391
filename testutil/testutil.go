// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/plan-decision/auth"
	"github.com/danielhkuo/plan-decision/cliparse"
	"github.com/danielhkuo/plan-decision/db"
	"github.com/danielhkuo/plan-decision/decision"
	"github.com/danielhkuo/plan-decision/models"
	"github.com/danielhkuo/plan-decision/roster"
	"github.com/danielhkuo/plan-decision/store"
)

// TestJWTSecret signs every token minted by the helpers below
const TestJWTSecret = "test-jwt-secret"

// SetupTestDB creates a fresh in-memory sqlite database with the full schema.
// Each call gets its own database; it is closed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(db.TypeSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:          3318,
		DatabaseURL:   ":memory:",
		DatabaseType:  db.TypeSQLite,
		JWTSecret:     TestJWTSecret,
		SweepInterval: time.Second,
		ResolveLease:  10 * time.Second,
	}
}

// Deps bundles the wired components of a test engine
type Deps struct {
	DB     *sql.DB
	Store  *store.Store
	Roster *roster.SQL
	Engine *decision.Engine
}

// NewEngine wires a store, roster and engine over a fresh test database
func NewEngine(t *testing.T, opts ...decision.Option) Deps {
	t.Helper()

	conn := SetupTestDB(t)
	st := store.New(conn, db.TypeSQLite, nil)
	rs := roster.NewSQL(conn, db.TypeSQLite, nil)
	return Deps{
		DB:     conn,
		Store:  st,
		Roster: rs,
		Engine: decision.New(st, rs, rs, opts...),
	}
}

// SeedPlan enrolls a manager, participants and candidate restaurants for a plan
func SeedPlan(t *testing.T, rs *roster.SQL, planID, managerID int64, participants, candidates []int64) {
	t.Helper()

	ctx := context.Background()
	if err := rs.AddParticipant(ctx, planID, managerID, models.RoleManager); err != nil {
		t.Fatalf("Failed to add manager: %v", err)
	}
	for _, id := range participants {
		if err := rs.AddParticipant(ctx, planID, id, models.RoleParticipant); err != nil {
			t.Fatalf("Failed to add participant: %v", err)
		}
	}
	for _, id := range candidates {
		if err := rs.AddCandidate(ctx, planID, id); err != nil {
			t.Fatalf("Failed to add candidate: %v", err)
		}
	}
}

// StartPlan seeds a plan, opens its decision and selects tool
func StartPlan(t *testing.T, deps Deps, planID, managerID int64, participants, candidates []int64, tool models.ToolType) models.PlanDecision {
	t.Helper()

	SeedPlan(t, deps.Roster, planID, managerID, participants, candidates)
	ctx := context.Background()
	if _, err := deps.Engine.Open(ctx, planID, managerID); err != nil {
		t.Fatalf("Failed to open decision: %v", err)
	}
	d, err := deps.Engine.SelectTool(ctx, planID, managerID, tool)
	if err != nil {
		t.Fatalf("Failed to select tool: %v", err)
	}
	return d
}

// AuthHeader returns an Authorization header for userID
func AuthHeader(t *testing.T, userID int64) map[string]string {
	t.Helper()

	token, err := auth.IssueToken(userID, TestJWTSecret, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body any, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

// AssertInvariants fails the test if d violates the record-level invariants
func AssertInvariants(t *testing.T, d models.PlanDecision) {
	t.Helper()
	if err := decision.CheckInvariants(d); err != nil {
		t.Errorf("plan %d: %v", d.PlanID, err)
	}
}
