// Package ai routes extracted-text payloads to a proxy backend or a
// direct model provider and normalizes both into one result shape or
// one typed failure.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Code classifies an AI dispatch failure.
type Code string

const (
	// CodeAPIKeyMissing means no credential is configured for the
	// selected route. Terminal: reconfiguration, not time, fixes it.
	CodeAPIKeyMissing Code = "api_key_missing"
	// CodeUnauthorized means the proxy rejected the access token.
	CodeUnauthorized Code = "unauthorized"
	// CodeRateLimited means the server signaled 429.
	CodeRateLimited Code = "rate_limited"
	// CodeNetworkFailure is a transport-level failure.
	CodeNetworkFailure Code = "network_failure"
	// CodeServerFailure is an upstream 5xx or malformed response envelope.
	CodeServerFailure Code = "server_failure"
)

// Error is a typed AI dispatch failure.
type Error struct {
	Code   Code
	Status int // HTTP status when applicable, 0 otherwise
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ai: %s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("ai: %s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether queueing the operation for a later retry can
// help. Credential problems cannot be retried away.
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodeAPIKeyMissing, CodeUnauthorized:
		return false
	}
	return true
}

// AsError extracts a *Error from an error chain, or wraps unknown errors
// as a server failure so callers always see a typed failure.
func AsError(err error) *Error {
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr
	}
	return &Error{Code: CodeServerFailure, Msg: "unclassified failure", Err: err}
}

// classifyTransport maps a transport or provider error onto the failure
// taxonomy. Modeled on substring classification of upstream API errors;
// providers do not return structured error codes through every SDK path.
func classifyTransport(err error) *Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Code: CodeNetworkFailure, Msg: "request timed out", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Error{Code: CodeNetworkFailure, Msg: "transport failure", Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "invalid api key", "incorrect api key", "authentication", "unauthorized", "401", "403"):
		return &Error{Code: CodeUnauthorized, Msg: "credential rejected", Err: err}
	case containsAny(msg, "rate limit", "quota", "429", "too many requests"):
		return &Error{Code: CodeRateLimited, Msg: "rate limited", Err: err}
	case containsAny(msg, "connection refused", "no such host", "dial tcp", "broken pipe", "connection reset", "eof"):
		return &Error{Code: CodeNetworkFailure, Msg: "transport failure", Err: err}
	}
	return &Error{Code: CodeServerFailure, Msg: "provider failure", Err: err}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
