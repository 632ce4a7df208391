// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/plan-decision/models"
	"github.com/danielhkuo/plan-decision/testutil"
)

func newTestMux(t *testing.T) (*http.ServeMux, testutil.Deps) {
	t.Helper()
	deps := testutil.NewEngine(t)
	return NewRouter(deps.Engine, testutil.GetTestConfig()), deps
}

func TestHealthEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	expected := "plan-decision API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
}

func TestRouteExistence(t *testing.T) {
	mux, _ := newTestMux(t)

	// Unauthenticated requests reach the handler and fail with 401
	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/plans/1/decision"},
		{"GET", "/plans/1/decision"},
		{"POST", "/plans/1/decision/tool"},
		{"POST", "/plans/1/decision/votes"},
		{"GET", "/plans/1/decision/tally"},
		{"POST", "/plans/1/decision/close"},
		{"POST", "/plans/1/decision/cancel"},
		{"POST", "/plans/1/decision/confirm"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("Route %s %s returned %d, expected 401 from the handler", tc.method, tc.path, w.Code)
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Error("Expected request id header from logging middleware")
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux, _ := newTestMux(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/health"},
		{"DELETE", "/plans/1/decision"},
		{"GET", "/plans/1/decision/close"},
		{"PUT", "/plans/1/decision/votes"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected 405 for %s %s, got %d", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestPathParameterExtraction(t *testing.T) {
	mux, deps := newTestMux(t)
	testutil.SeedPlan(t, deps.Roster, 42, 100, []int64{1}, []int64{10})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/plans/42/decision", nil, testutil.AuthHeader(t, 100)))
	testutil.AssertStatus(t, w, http.StatusCreated)

	var d models.DecisionResponse
	testutil.AssertJSON(t, w, &d)
	if d.PlanID != 42 {
		t.Errorf("Expected plan 42, got %d", d.PlanID)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("GET", "/plans/not-a-number/decision", nil, testutil.AuthHeader(t, 100)))
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestVoteFlowThroughRouter(t *testing.T) {
	mux, deps := newTestMux(t)
	testutil.SeedPlan(t, deps.Roster, 5, 100, []int64{1, 2}, []int64{10, 20})

	steps := []struct {
		name   string
		method string
		path   string
		actor  int64
		body   any
		status int
	}{
		{"open", "POST", "/plans/5/decision", 100, nil, http.StatusCreated},
		{"select tool", "POST", "/plans/5/decision/tool", 100, models.SelectToolRequest{ToolType: models.ToolVote}, http.StatusOK},
		{"vote 1", "POST", "/plans/5/decision/votes", 1, models.SubmitVoteRequest{RestaurantID: 20}, http.StatusCreated},
		{"vote 2", "POST", "/plans/5/decision/votes", 2, models.SubmitVoteRequest{RestaurantID: 20}, http.StatusCreated},
		{"tally", "GET", "/plans/5/decision/tally", 1, nil, http.StatusOK},
		{"close", "POST", "/plans/5/decision/close", 100, nil, http.StatusOK},
		{"late vote", "POST", "/plans/5/decision/votes", 1, models.SubmitVoteRequest{RestaurantID: 10}, http.StatusConflict},
	}

	for _, step := range steps {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, testutil.MakeRequest(step.method, step.path, step.body, testutil.AuthHeader(t, step.actor)))
		if w.Code != step.status {
			t.Fatalf("%s: expected %d, got %d. Body: %s", step.name, step.status, w.Code, w.Body.String())
		}
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("GET", "/plans/5/decision", nil, testutil.AuthHeader(t, 2)))
	var d models.DecisionResponse
	testutil.AssertJSON(t, w, &d)
	if d.Status != models.StatusDecided || *d.FinalRestaurantID != 20 {
		t.Errorf("unexpected snapshot: %+v", d)
	}
}
