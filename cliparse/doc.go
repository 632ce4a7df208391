// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a validated Config:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Sources

The environment is read first (github.com/caarlos0/env struct tags) and CLI
flags override it:

	PORT            -p               default 3318
	DATABASE_URL    -d               required
	DATABASE_TYPE   -t               sqlite | postgres, default sqlite
	JWT_SECRET      -jwt-secret      required
	VOTING_TIMEOUT  -voting-timeout  0 disables auto-close
	SWEEP_INTERVAL  -sweep-interval  default 30s
	RESOLVE_LEASE   -resolve-lease   default 10s
	OTEL_ENDPOINT   -otel-endpoint   empty disables tracing

main loads a .env file with godotenv before calling ParseFlags, so values
from .env behave exactly like exported variables.
*/
package cliparse
