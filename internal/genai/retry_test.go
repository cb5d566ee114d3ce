package genai

import (
	"errors"
	"fmt"
	"testing"
	"time"

	apierrors "github.com/aipro/chat-backend/internal/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantOutcome Outcome
		wantKind    apierrors.Kind
		wantRetry   int
	}{
		{
			name:        "http 429 is rate limited with default hint",
			err:         &APICallError{StatusCode: 429, Message: "slow down"},
			wantOutcome: OutcomeRateLimited,
			wantRetry:   120,
		},
		{
			name:        "429 with retry-after header keeps upstream hint",
			err:         &APICallError{StatusCode: 429, RetryAfter: 30},
			wantOutcome: OutcomeRateLimited,
			wantRetry:   30,
		},
		{
			name:        "rate limit marker in message",
			err:         errors.New("RATE_LIMIT_EXCEEDED: too many requests"),
			wantOutcome: OutcomeRateLimited,
			wantRetry:   120,
		},
		{
			name:        "resource exhausted is fatal quota",
			err:         &APICallError{StatusCode: 403, Status: "RESOURCE_EXHAUSTED", Message: "out of tokens"},
			wantOutcome: OutcomeFatal,
			wantKind:    apierrors.KindQuotaExceeded,
		},
		{
			name:        "quota marker in message",
			err:         errors.New("daily quota exceeded for project"),
			wantOutcome: OutcomeFatal,
			wantKind:    apierrors.KindQuotaExceeded,
		},
		{
			name:        "http 401 is fatal auth",
			err:         &APICallError{StatusCode: 401, Message: "bad key"},
			wantOutcome: OutcomeFatal,
			wantKind:    apierrors.KindAuthError,
		},
		{
			name:        "api key marker is fatal auth",
			err:         errors.New("API_KEY_INVALID: check configuration"),
			wantOutcome: OutcomeFatal,
			wantKind:    apierrors.KindAuthError,
		},
		{
			name:        "upstream unavailable is retryable",
			err:         &APICallError{StatusCode: 503, Status: "UNAVAILABLE"},
			wantOutcome: OutcomeRetryable,
		},
		{
			name:        "upstream internal is retryable",
			err:         &APICallError{StatusCode: 500, Status: "INTERNAL"},
			wantOutcome: OutcomeRetryable,
		},
		{
			name:        "connection reset is retryable",
			err:         fmt.Errorf("failed to call generation API: read tcp: connection reset by peer"),
			wantOutcome: OutcomeRetryable,
		},
		{
			name:        "timeout is retryable",
			err:         fmt.Errorf("failed to call generation API: context deadline exceeded (Client.Timeout exceeded)"),
			wantOutcome: OutcomeRetryable,
		},
		{
			name:        "dns failure is retryable",
			err:         fmt.Errorf("failed to call generation API: dial tcp: lookup api.example: no such host"),
			wantOutcome: OutcomeRetryable,
		},
		{
			name:        "empty response is retryable",
			err:         ErrEmptyResponse,
			wantOutcome: OutcomeRetryable,
		},
		{
			name:        "anything else is fatal unknown",
			err:         errors.New("unexpected parse failure"),
			wantOutcome: OutcomeFatal,
			wantKind:    apierrors.KindGenerationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)

			if got.Outcome != tt.wantOutcome {
				t.Fatalf("outcome = %v, want %v", got.Outcome, tt.wantOutcome)
			}
			if tt.wantOutcome == OutcomeFatal && got.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", got.Kind, tt.wantKind)
			}
			if tt.wantOutcome == OutcomeRateLimited && got.RetryAfter != tt.wantRetry {
				t.Errorf("retryAfter = %d, want %d", got.RetryAfter, tt.wantRetry)
			}
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	// 1-indexed attempts: 2s, 4s, 8s.
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	for attempt := 1; attempt <= 3; attempt++ {
		if got := BackoffDelay(attempt); got != want[attempt-1] {
			t.Errorf("BackoffDelay(%d) = %v, want %v", attempt, got, want[attempt-1])
		}
	}
}
