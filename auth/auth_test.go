// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func TestIssueAndParseToken(t *testing.T) {
	tests := []struct {
		name   string
		userID int64
	}{
		{"small id", 1},
		{"large id", 9007199254740993},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := IssueToken(tt.userID, testSecret, time.Hour, time.Now())
			if err != nil {
				t.Fatalf("IssueToken() error = %v", err)
			}
			got, err := ParseToken(token, testSecret)
			if err != nil {
				t.Fatalf("ParseToken() error = %v", err)
			}
			if got != tt.userID {
				t.Errorf("ParseToken() = %d, want %d", got, tt.userID)
			}
		})
	}
}

func TestParseTokenRejects(t *testing.T) {
	valid, _ := IssueToken(7, testSecret, time.Hour, time.Now())
	expired, _ := IssueToken(7, testSecret, time.Minute, time.Now().Add(-time.Hour))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:  issuer,
		Subject: "7",
	}).SignedString([]byte(testSecret))

	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))

	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "not-a-number",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))

	tests := []struct {
		name    string
		token   string
		secret  string
		wantErr error
	}{
		{"empty", "", testSecret, ErrMissingToken},
		{"garbage", "not.a.jwt", testSecret, ErrInvalidToken},
		{"wrong secret", valid, "other-secret", ErrInvalidToken},
		{"expired", expired, testSecret, ErrExpiredToken},
		{"no expiry", noExpiry, testSecret, ErrInvalidToken},
		{"wrong algorithm", wrongAlg, testSecret, ErrInvalidToken},
		{"non-numeric subject", badSubject, testSecret, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token, tt.secret)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseToken() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestActorFromRequest(t *testing.T) {
	token, _ := IssueToken(42, testSecret, time.Hour, time.Now())

	tests := []struct {
		name    string
		header  string
		want    int64
		wantErr error
	}{
		{"bearer token", "Bearer " + token, 42, nil},
		{"no header", "", 0, ErrMissingToken},
		{"basic scheme", "Basic abc", 0, ErrMissingToken},
		{"invalid bearer", "Bearer nope", 0, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := ActorFromRequest(r, testSecret)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ActorFromRequest() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ActorFromRequest() = %d, want %d", got, tt.want)
			}
		})
	}
}
