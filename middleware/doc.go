// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Every request gets an id, taken from an incoming X-Request-ID header or
generated with github.com/google/uuid. The id is echoed in the response,
stored in the request context (see RequestID) and logged with the start and
completion lines (method, path, client ip, status, duration_ms).

# CORS Middleware

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusConflict, "VOTING_CLOSED", "voting is closed")

ErrorWithDecision attaches the current decision snapshot to an error body.
ParseJSONBody treats an empty body as an empty object so optional request
bodies need no special casing.
*/
package middleware
