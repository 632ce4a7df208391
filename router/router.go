// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/plan-decision/cliparse"
	"github.com/danielhkuo/plan-decision/decision"
	"github.com/danielhkuo/plan-decision/handlers"
	"github.com/danielhkuo/plan-decision/middleware"
)

func NewRouter(engine *decision.Engine, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	decisionHandler := handlers.NewDecisionHandler(engine, cfg)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Decision lifecycle (manager operations)
	mux.HandleFunc("POST /plans/{planId}/decision", middleware.WithLogging(decisionHandler.Open))
	mux.HandleFunc("POST /plans/{planId}/decision/tool", middleware.WithLogging(decisionHandler.SelectTool))
	mux.HandleFunc("POST /plans/{planId}/decision/close", middleware.WithLogging(decisionHandler.Close))
	mux.HandleFunc("POST /plans/{planId}/decision/cancel", middleware.WithLogging(decisionHandler.Cancel))
	mux.HandleFunc("POST /plans/{planId}/decision/confirm", middleware.WithLogging(decisionHandler.Confirm))

	// Voting (participants)
	mux.HandleFunc("POST /plans/{planId}/decision/votes", middleware.WithLogging(decisionHandler.SubmitVote))

	// Reads
	mux.HandleFunc("GET /plans/{planId}/decision", middleware.WithLogging(decisionHandler.Get))
	mux.HandleFunc("GET /plans/{planId}/decision/tally", middleware.WithLogging(decisionHandler.Tally))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plan-decision API v1"))
	})

	return mux
}
