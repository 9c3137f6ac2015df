package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		code Code
		want bool
	}{
		{CodeAPIKeyMissing, false},
		{CodeUnauthorized, false},
		{CodeRateLimited, true},
		{CodeNetworkFailure, true},
		{CodeServerFailure, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			e := &Error{Code: tt.code}
			if e.Retryable() != tt.want {
				t.Errorf("Retryable() = %v, want %v", e.Retryable(), tt.want)
			}
		})
	}
}

func TestClassifyTransport(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"deadline", context.DeadlineExceeded, CodeNetworkFailure},
		{"cancelled", context.Canceled, CodeNetworkFailure},
		{"invalid key", errors.New("invalid api key provided"), CodeUnauthorized},
		{"http 401", errors.New("API returned 401"), CodeUnauthorized},
		{"rate limit", errors.New("rate limit exceeded, retry later"), CodeRateLimited},
		{"quota", errors.New("you have exceeded your quota"), CodeRateLimited},
		{"refused", errors.New("dial tcp 127.0.0.1:11434: connection refused"), CodeNetworkFailure},
		{"dns", errors.New("lookup api.example.com: no such host"), CodeNetworkFailure},
		{"other", errors.New("model exploded"), CodeServerFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyTransport(tt.err)
			if got.Code != tt.want {
				t.Errorf("classifyTransport(%v).Code = %s, want %s", tt.err, got.Code, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("classified error must wrap the original")
			}
		})
	}
}

func TestAsError(t *testing.T) {
	typed := &Error{Code: CodeRateLimited, Msg: "429"}
	wrapped := fmt.Errorf("dispatch: %w", typed)
	if got := AsError(wrapped); got.Code != CodeRateLimited {
		t.Errorf("AsError lost the code: %v", got.Code)
	}

	plain := errors.New("something else")
	got := AsError(plain)
	if got.Code != CodeServerFailure {
		t.Errorf("unclassified error code = %s, want server failure", got.Code)
	}
	if !errors.Is(got, plain) {
		t.Error("wrapped error must preserve the original")
	}
}
