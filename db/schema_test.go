// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import "testing"

func TestRebind(t *testing.T) {
	query := "SELECT * FROM plan_vote WHERE plan_id = ? AND voted_at <= ?"

	if got := Rebind(TypeSQLite, query); got != query {
		t.Errorf("sqlite query rewritten: %q", got)
	}

	want := "SELECT * FROM plan_vote WHERE plan_id = $1 AND voted_at <= $2"
	if got := Rebind(TypePostgres, query); got != want {
		t.Errorf("Rebind() = %q, want %q", got, want)
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{":memory:", "file::memory:?_pragma=foreign_keys(1)"},
		{"decision.db", "decision.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"},
		{"sqlite://decision.db", "decision.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"},
		{"file:decision.db?cache=private", "file:decision.db?cache=private&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := sqliteDSN(tt.in); got != tt.want {
				t.Errorf("sqliteDSN(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCreateSchema(t *testing.T) {
	conn, err := Open(TypeSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer conn.Close()

	if err := CreateSchema(conn); err != nil {
		t.Fatalf("CreateSchema() error = %v", err)
	}
	if err := CreateSchema(conn); err != nil {
		t.Fatalf("second CreateSchema() error = %v", err)
	}

	t.Run("decided requires a winner", func(t *testing.T) {
		_, err := conn.Exec(`INSERT INTO plan_decision (plan_id, status, closed_at, created_by) VALUES (1, 'DECIDED', 0, 1)`)
		if err == nil {
			t.Error("expected CHECK violation")
		}
	})

	t.Run("closed requires closed_at", func(t *testing.T) {
		_, err := conn.Exec(`INSERT INTO plan_decision (plan_id, status, created_by) VALUES (2, 'CLOSED', 1)`)
		if err == nil {
			t.Error("expected CHECK violation")
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := conn.Exec(`INSERT INTO plan_decision (plan_id, status, created_by) VALUES (3, 'PAUSED', 1)`)
		if err == nil {
			t.Error("expected CHECK violation")
		}
	})

	t.Run("votes need a decision", func(t *testing.T) {
		_, err := conn.Exec(`INSERT INTO plan_vote (plan_id, voter_id, restaurant_id, voted_at) VALUES (99, 1, 1, 0)`)
		if err == nil {
			t.Error("expected foreign key violation")
		}
	})
}

func TestOpenUnsupportedType(t *testing.T) {
	if _, err := Open("mysql", "x"); err == nil {
		t.Error("expected error for unsupported type")
	}
}
