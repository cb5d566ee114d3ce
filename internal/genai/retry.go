package genai

import (
	"errors"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/aipro/chat-backend/internal/errors"
)

// defaultRetryAfter is the wait hint surfaced on rate limiting when the
// upstream provides none.
const defaultRetryAfter = 120

// Outcome says what the retry loop should do with a failed attempt.
type Outcome int

const (
	// OutcomeFatal stops the loop immediately regardless of remaining budget.
	OutcomeFatal Outcome = iota
	// OutcomeRetryable allows another attempt after backoff.
	OutcomeRetryable
	// OutcomeRateLimited allows another attempt after backoff; on the final
	// attempt it becomes a terminal rate-limit failure carrying RetryAfter.
	OutcomeRateLimited
)

// Classification is the result of classifying one failed attempt.
type Classification struct {
	Outcome Outcome

	// Kind is the terminal error kind for OutcomeFatal.
	Kind apierrors.Kind

	// RetryAfter is the suggested wait in seconds for OutcomeRateLimited.
	RetryAfter int
}

// Classify maps an attempt failure onto a retry outcome. Rules apply in
// priority order: rate limit, quota exhaustion, authentication failure,
// transient transport, then fatal unknown.
func Classify(err error) Classification {
	var callErr *APICallError
	hasCallErr := errors.As(err, &callErr)
	msg := err.Error()

	// 1. Rate limiting: an explicit 429 or a rate-limit marker.
	if isRateLimitError(hasCallErr, callErr, msg) {
		retryAfter := defaultRetryAfter
		if hasCallErr && callErr.RetryAfter > 0 {
			retryAfter = callErr.RetryAfter
		}
		return Classification{Outcome: OutcomeRateLimited, RetryAfter: retryAfter}
	}

	// 2. Quota exhaustion resets outside of process control; never retried.
	if isQuotaError(hasCallErr, callErr, msg) {
		return Classification{Outcome: OutcomeFatal, Kind: apierrors.KindQuotaExceeded}
	}

	// 3. Authentication failures never become valid mid-run.
	if isAuthError(hasCallErr, callErr, msg) {
		return Classification{Outcome: OutcomeFatal, Kind: apierrors.KindAuthError}
	}

	// 4. Transient transport failures, including an empty model response.
	if isRetryableError(hasCallErr, callErr, msg, err) {
		return Classification{Outcome: OutcomeRetryable}
	}

	// 5. Anything else is fatal with an unknown cause.
	return Classification{Outcome: OutcomeFatal, Kind: apierrors.KindGenerationFailed}
}

// BackoffDelay returns the wait before the next attempt. Attempts are
// 1-indexed, giving 2s, 4s, 8s, ...
func BackoffDelay(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

func isRateLimitError(hasCallErr bool, callErr *APICallError, msg string) bool {
	if hasCallErr && callErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return strings.Contains(msg, "RATE_LIMIT_EXCEEDED") || strings.Contains(msg, "429")
}

func isQuotaError(hasCallErr bool, callErr *APICallError, msg string) bool {
	if hasCallErr && callErr.Status == "RESOURCE_EXHAUSTED" {
		return true
	}
	return strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "QUOTA_EXCEEDED")
}

func isAuthError(hasCallErr bool, callErr *APICallError, msg string) bool {
	if hasCallErr && callErr.StatusCode == http.StatusUnauthorized {
		return true
	}
	return strings.Contains(msg, "API_KEY_INVALID") || strings.Contains(msg, "401")
}

func isRetryableError(hasCallErr bool, callErr *APICallError, msg string, err error) bool {
	if errors.Is(err, ErrEmptyResponse) {
		return true
	}
	if hasCallErr && (callErr.Status == "INTERNAL" || callErr.Status == "UNAVAILABLE" ||
		callErr.StatusCode == http.StatusInternalServerError ||
		callErr.StatusCode == http.StatusServiceUnavailable) {
		return true
	}
	return strings.Contains(msg, "INTERNAL") ||
		strings.Contains(msg, "UNAVAILABLE") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "no such host")
}
