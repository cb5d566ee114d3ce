package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apierrors "github.com/aipro/chat-backend/internal/errors"
	"github.com/aipro/chat-backend/internal/logger"
	"github.com/aipro/chat-backend/internal/metrics"
)

// DefaultMaxAttempts is the attempt budget when the config names none.
const DefaultMaxAttempts = 3

// Service orchestrates the model client and retry policy across a bounded
// attempt budget. It owns no persistent state.
type Service struct {
	client      Invoker
	logger      *logger.Logger
	maxAttempts int

	// sleep is the backoff suspension point, injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService creates a generation service with the given attempt budget.
func NewService(client Invoker, logger *logger.Logger, maxAttempts int) *Service {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Service{
		client:      client,
		logger:      logger.WithComponent("generation"),
		maxAttempts: maxAttempts,
		sleep:       sleepContext,
	}
}

// Generate invokes the model with bounded retry and returns a normalized
// result, or a typed error from the failure taxonomy. Validation happens
// eagerly: an invalid model or blank prompt consumes no attempts.
func (s *Service) Generate(ctx context.Context, prompt, model string) (*Result, error) {
	if model == "" {
		model = DefaultModel
	}

	if !IsValidModel(model) {
		return nil, apierrors.New(apierrors.KindInvalidModel,
			fmt.Sprintf("Invalid model. Supported models: %s", strings.Join(ValidModels(), ", ")))
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, apierrors.New(apierrors.KindInvalidInput, "Contents must be a non-empty string")
	}

	start := time.Now()
	defer func() {
		metrics.GenerationDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	}()

	var lastErr error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		metrics.GenerationAttempts.WithLabelValues(model).Inc()

		text, err := s.client.Invoke(ctx, model, prompt)
		if err == nil {
			s.logger.Info("generation succeeded",
				slog.String("model", model),
				slog.Int("attempt", attempt))
			return &Result{
				Text:      text,
				Model:     model,
				Attempt:   attempt,
				Timestamp: time.Now().UTC(),
			}, nil
		}

		lastErr = err
		class := Classify(err)

		switch class.Outcome {
		case OutcomeFatal:
			s.logger.LogError(ctx, err, "generation failed with fatal error",
				slog.String("model", model),
				slog.Int("attempt", attempt),
				slog.String("kind", string(class.Kind)))
			return nil, s.fatalError(class.Kind, model, err)

		case OutcomeRateLimited:
			if attempt == s.maxAttempts {
				metrics.GenerationFailures.WithLabelValues(model, string(apierrors.KindRateLimitExceeded)).Inc()
				return nil, apierrors.RateLimited(
					"Rate limit exceeded. Please wait a few minutes before trying again.",
					class.RetryAfter)
			}

		case OutcomeRetryable:
			if attempt == s.maxAttempts {
				metrics.GenerationFailures.WithLabelValues(model, string(apierrors.KindGenerationFailed)).Inc()
				return nil, apierrors.Wrap(apierrors.KindGenerationFailed,
					fmt.Sprintf("Content generation failed after %d attempts: %v", s.maxAttempts, lastErr),
					lastErr)
			}
		}

		delay := BackoffDelay(attempt)
		s.logger.Warn("generation attempt failed, backing off",
			slog.String("model", model),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.String("error", err.Error()))

		if err := s.sleep(ctx, delay); err != nil {
			return nil, apierrors.Wrap(apierrors.KindGenerationFailed, "generation cancelled during backoff", err)
		}
	}

	// Unreachable: the loop always returns on the final attempt.
	return nil, apierrors.Wrap(apierrors.KindGenerationFailed, "generation failed", lastErr)
}

func (s *Service) fatalError(kind apierrors.Kind, model string, err error) error {
	metrics.GenerationFailures.WithLabelValues(model, string(kind)).Inc()

	switch kind {
	case apierrors.KindAuthError:
		return apierrors.Wrap(apierrors.KindAuthError, "Invalid API key. Please check your configuration.", err)
	case apierrors.KindQuotaExceeded:
		return apierrors.Wrap(apierrors.KindQuotaExceeded, "API quota exceeded. Please try again tomorrow or upgrade your plan.", err)
	default:
		return apierrors.Wrap(apierrors.KindGenerationFailed,
			fmt.Sprintf("Content generation failed: %v", err), err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
