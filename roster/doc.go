// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package roster answers membership and candidate questions for the decision
engine.

The plan_participant and plan_candidate tables are written by the plan
service; this package only reads them, apart from AddParticipant and
AddCandidate which exist for seeding and tests.

A user enrolled with role MANAGER is both the plan's manager and an eligible
voter. Any other role makes them an eligible voter only.
*/
package roster
