package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", fmt.Errorf("wrap: %w", context.Canceled), false},
		{"per-call timeout", context.DeadlineExceeded, true},
		{"missing key", ErrMissingAPIKey, false},
		{"count mismatch", ErrCountMismatch, false},
		{"rate limited", &googleapi.Error{Code: 429}, true},
		{"server error", fmt.Errorf("gemini: %w", &googleapi.Error{Code: 503}), true},
		{"bad request", &googleapi.Error{Code: 400}, false},
		{"forbidden", &googleapi.Error{Code: 403}, false},
		{"network", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
