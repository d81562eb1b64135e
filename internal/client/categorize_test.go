package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/kjstillabower/weather-ticker/internal/circuitbreaker"
)

// TestCategorizeError verifies that CategorizeError maps errors to the correct
// ErrorCategory,
// including sentinel errors, wrapped errors, net errors and message-based heuristics.
func TestCategorizeError(t *testing.T) {
	// name: test case description; err: input error; want: expected ErrorCategory.
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"timed out window", fmt.Errorf("%w after 3 attempts", ErrTimedOut), ErrorCategoryTimeout},
		{"deadline", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"canceled", context.Canceled, ErrorCategoryCanceled},
		{"circuit open", circuitbreaker.ErrOpen, ErrorCategoryCircuitOpen},
		{"rate limited", fmt.Errorf("%w: HTTP 429", ErrRateLimited), ErrorCategoryRateLimited},
		{"upstream failure", fmt.Errorf("%w: HTTP 503", ErrUpstreamFailure), ErrorCategoryUpstream5xx},
		{"not found", fmt.Errorf("%w: HTTP 404", ErrUnexpectedStatus), ErrorCategoryClientError},
		{"dns", fmt.Errorf("%w: %w", ErrTransport, &net.DNSError{Err: "no such host", Name: "wttr.in"}), ErrorCategoryDNS},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, ErrorCategoryNetwork},
		{"reset in message", errors.New("read: connection reset by peer"), ErrorCategoryNetwork},
		{"unexpected EOF", errors.New("unexpected EOF"), ErrorCategoryNetwork},
		{"unknown", errors.New("something else"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CategorizeError(tt.err)
			if got != tt.want {
				t.Errorf("CategorizeError() = %v, want %v", got, tt.want)
			}
		})
	}
}
