package faults

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"
)

func TestTransientStatusCodes(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		transient bool
	}{
		{name: "rate limited", code: 429, transient: true},
		{name: "service unavailable", code: 503, transient: true},
		{name: "internal server error", code: 500, transient: true},
		{name: "bad gateway", code: 502, transient: true},
		{name: "not found", code: 404, transient: false},
		{name: "bad request", code: 400, transient: false},
		{name: "unauthorized", code: 401, transient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &StatusError{Code: tt.code}
			if got := Transient(err); got != tt.transient {
				t.Errorf("Transient(%d) = %v, want %v", tt.code, got, tt.transient)
			}
		})
	}
}

func TestTransientProviderErrors(t *testing.T) {
	tests := []struct {
		name      string
		errors    []Detail
		transient bool
	}{
		{
			name:      "rate limit code regardless of message",
			errors:    []Detail{{Code: 1015, Message: "something unrelated"}},
			transient: true,
		},
		{
			name:      "rate limit message",
			errors:    []Detail{{Code: 9000, Message: "You are being Rate Limited"}},
			transient: true,
		},
		{
			name:      "too many requests message",
			errors:    []Detail{{Code: 9000, Message: "too many requests, slow down"}},
			transient: true,
		},
		{
			name:      "temporarily unavailable message",
			errors:    []Detail{{Code: 9000, Message: "service temporarily unavailable"}},
			transient: true,
		},
		{
			name:      "try again message",
			errors:    []Detail{{Code: 9000, Message: "please try again later"}},
			transient: true,
		},
		{
			name:      "timeout message",
			errors:    []Detail{{Code: 9000, Message: "upstream timeout"}},
			transient: true,
		},
		{
			name:      "one transient among permanent",
			errors:    []Detail{{Code: 9109, Message: "invalid access token"}, {Code: 1015, Message: ""}},
			transient: true,
		},
		{
			name:      "invalid token",
			errors:    []Detail{{Code: 9109, Message: "Invalid access token"}},
			transient: false,
		},
		{
			name:      "record does not exist",
			errors:    []Detail{{Code: 81044, Message: "Record does not exist"}},
			transient: false,
		},
		{
			name:      "no detail at all",
			errors:    nil,
			transient: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &APIError{Errors: tt.errors}
			if got := Transient(err); got != tt.transient {
				t.Errorf("Transient(%v) = %v, want %v", err, got, tt.transient)
			}
		})
	}
}

func TestTransientNetworkErrors(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	urlErr := &url.Error{Op: "Get", URL: "https://example.com", Err: opErr}

	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{name: "nil", err: nil, transient: false},
		{name: "connection refused", err: opErr, transient: true},
		{name: "wrapped url error", err: urlErr, transient: true},
		{name: "deadline exceeded", err: context.DeadlineExceeded, transient: true},
		{name: "wrapped deadline", err: fmt.Errorf("fetch: %w", context.DeadlineExceeded), transient: true},
		{name: "plain error", err: errors.New("parse failure"), transient: false},
		{name: "wrapped status error", err: fmt.Errorf("lookup: %w", &StatusError{Code: 503}), transient: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transient(tt.err); got != tt.transient {
				t.Errorf("Transient(%v) = %v, want %v", tt.err, got, tt.transient)
			}
		})
	}
}
