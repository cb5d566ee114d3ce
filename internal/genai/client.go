package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	apierrors "github.com/aipro/chat-backend/internal/errors"
	"github.com/aipro/chat-backend/internal/logger"
)

// DefaultModel is used when the caller does not name a model.
const DefaultModel = "gemini-2.5-flash"

// validModels is the whitelist checked before any outbound call.
var validModels = map[string]bool{
	"gemini-2.5-flash": true,
	"gemini-2.5-pro":   true,
}

// IsValidModel reports whether model is on the whitelist.
func IsValidModel(model string) bool {
	return validModels[model]
}

// ValidModels returns the whitelist for error messages.
func ValidModels() []string {
	return []string{"gemini-2.5-flash", "gemini-2.5-pro"}
}

// Invoker performs a single model invocation. Retries are the caller's
// responsibility.
type Invoker interface {
	Invoke(ctx context.Context, model, prompt string) (string, error)
}

// APICallError is an upstream failure carrying enough signal for retry
// classification: the HTTP status code, the upstream status marker
// (e.g. RESOURCE_EXHAUSTED, UNAVAILABLE) and an optional Retry-After hint.
type APICallError struct {
	StatusCode int
	Status     string
	Message    string
	RetryAfter int // seconds, from the Retry-After header when present
}

func (e *APICallError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("upstream API error %d (%s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("upstream API error %d: %s", e.StatusCode, e.Message)
}

// emptyResponseError marks a call that succeeded at the transport level but
// produced no usable text. Distinct from transport errors, yet retryable
// under the same policy.
type emptyResponseError struct{}

func (emptyResponseError) Error() string {
	return "empty response received from AI model"
}

// ErrEmptyResponse is returned when the model responds with empty or
// whitespace-only text.
var ErrEmptyResponse = emptyResponseError{}

// Client invokes the Generative Language API for one model + prompt.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new generation API client.
func NewClient(apiKey, baseURL string, timeout time.Duration, logger *logger.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Invoke makes exactly one generateContent call and returns the trimmed
// response text. The model must be whitelisted and the prompt non-empty;
// both are checked before any network traffic.
func (c *Client) Invoke(ctx context.Context, model, prompt string) (string, error) {
	if !IsValidModel(model) {
		return "", apierrors.New(apierrors.KindInvalidModel,
			fmt.Sprintf("Invalid model. Supported models: %s", strings.Join(ValidModels(), ", ")))
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", apierrors.New(apierrors.KindInvalidInput, "Contents must be a non-empty string")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)

	body, err := json.Marshal(generateContentRequest{
		Contents: []requestContent{{Parts: []contentPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call generation API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.decodeAPIError(resp)
	}

	var decoded generateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	text := extractText(&decoded)
	if strings.TrimSpace(text) == "" {
		c.logger.Warn("model returned empty response", slog.String("model", model))
		return "", ErrEmptyResponse
	}

	return strings.TrimSpace(text), nil
}

// decodeAPIError turns a non-200 upstream response into an APICallError.
func (c *Client) decodeAPIError(resp *http.Response) error {
	callErr := &APICallError{StatusCode: resp.StatusCode}

	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil {
			callErr.RetryAfter = seconds
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil {
		var decoded apiErrorResponse
		if err := json.Unmarshal(body, &decoded); err == nil && decoded.Error.Message != "" {
			callErr.Status = decoded.Error.Status
			callErr.Message = decoded.Error.Message
		} else {
			callErr.Message = strings.TrimSpace(string(body))
		}
	}

	c.logger.Error("generation API call failed",
		slog.Int("status_code", callErr.StatusCode),
		slog.String("status", callErr.Status))

	return callErr
}

func extractText(resp *generateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			b.WriteString(part.Text)
		}
		// Only the first candidate is used.
		break
	}
	return b.String()
}
