package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"google.golang.org/genai"
)

// ProviderError is a failure reported by the provider's API.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// StatusCode returns the provider HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return pErr.StatusCode
	}
	return 0
}

var credentialMarkers = []string{"leaked", "revoked", "invalid api key", "api key not valid", "invalid x-api-key"}

// IsCredentialError reports whether err means the key itself is unusable:
// any 401, or a 403 that names the key as leaked, revoked or invalid.
// Retrying with the same key cannot succeed.
func IsCredentialError(err error) bool {
	var pErr *ProviderError
	if !errors.As(err, &pErr) {
		return false
	}
	switch pErr.StatusCode {
	case http.StatusUnauthorized:
		return true
	case http.StatusForbidden:
		msg := strings.ToLower(pErr.Message)
		for _, marker := range credentialMarkers {
			if strings.Contains(msg, marker) {
				return true
			}
		}
	}
	return false
}

func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.DebugContext(ctx, "llm error not retryable: context cancelled or deadline exceeded")
		return false
	}

	var pErr *ProviderError
	if errors.As(err, &pErr) {
		switch {
		case pErr.StatusCode == http.StatusTooManyRequests:
			slog.WarnContext(ctx, "llm rate limited, will retry",
				"provider", pErr.Provider,
				"status_code", pErr.StatusCode)
			return true
		case pErr.StatusCode >= 500:
			slog.WarnContext(ctx, "llm server error, will retry",
				"provider", pErr.Provider,
				"status_code", pErr.StatusCode)
			return true
		default:
			slog.ErrorContext(ctx, "llm client error, not retryable",
				"provider", pErr.Provider,
				"status_code", pErr.StatusCode)
			return false
		}
	}

	slog.WarnContext(ctx, "llm network error, will retry", "error", err)
	return true
}

// Sanitize removes secret from msg.
func Sanitize(msg, secret string) string {
	if msg == "" {
		return "unknown error"
	}
	if secret == "" {
		return msg
	}
	return strings.ReplaceAll(msg, secret, "[redacted]")
}

func wrapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.RawJSON()
		}
		return &ProviderError{
			Provider:   ProviderOpenAI,
			StatusCode: apiErr.StatusCode,
			Message:    msg,
			Err:        err,
		}
	}
	return fmt.Errorf("openai: %w", err)
}

func wrapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider:   ProviderAnthropic,
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.RawJSON(),
			Err:        err,
		}
	}
	return fmt.Errorf("anthropic: %w", err)
}

func wrapGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider:   ProviderGemini,
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	return fmt.Errorf("gemini: %w", err)
}
