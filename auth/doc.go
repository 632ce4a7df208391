// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth authenticates the acting user of a request.

# Tokens

Users are identified by HS256 JWTs signed with the shared JWT_SECRET. The
subject claim carries the numeric user id:

	token, err := auth.IssueToken(userID, secret, time.Hour, time.Now())
	userID, err := auth.ParseToken(token, secret)

Only HS256 is accepted, and tokens without an expiry are rejected.

# Requests

Handlers resolve the actor from the Authorization header:

	actorID, err := auth.ActorFromRequest(r, cfg.JWTSecret)

ErrMissingToken and ErrInvalidToken both map to 401. Whether the actor may
perform an operation (manager, participant) is decided by the decision
engine, not here.
*/
package auth
