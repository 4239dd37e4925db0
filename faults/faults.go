// Package faults holds the error taxonomy shared by the retry wrapper and the
// reconciler. Transient decides which failures are worth retrying.
package faults

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Cloudflare reports code 1015 when a client is being rate limited.
const rateLimitedCode = 1015

// Message fragments that mark a provider error as transient. Matched
// case-insensitively; "temporar" covers both temporary and temporarily.
var transientPhrases = []string{
	"rate limit",
	"ratelimit",
	"too many requests",
	"temporar",
	"timeout",
	"try again",
}

// StatusError is an HTTP response that arrived with a non-success status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected http status %d", e.Code)
}

// Detail is one structured error object from a provider envelope.
type Detail struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

// APIError is a provider response whose envelope reported success=false.
// The envelope payload must not be used when this error is returned.
type APIError struct {
	Errors []Detail
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return "provider reported failure with no error detail"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		parts = append(parts, fmt.Sprintf("code=%d message=%q", d.Code, d.Message))
	}
	return "provider error: " + strings.Join(parts, "; ")
}

func (e *APIError) transient() bool {
	for _, d := range e.Errors {
		if d.Code == rateLimitedCode {
			return true
		}
		msg := strings.ToLower(d.Message)
		for _, phrase := range transientPhrases {
			if strings.Contains(msg, phrase) {
				return true
			}
		}
	}
	return false
}

// Transient reports whether err is a failure that may clear up on its own.
// Everything not recognized here is permanent and must not be retried.
func Transient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.transient()
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Transport-level failures carry no HTTP status at all.
	var netErr net.Error
	return errors.As(err, &netErr)
}
