package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrUnknownModel is returned when a request names a model that is not configured
var ErrUnknownModel = errors.New("unknown model")

// APIError represents an error returned by a model API
type APIError struct {
	Message    string
	StatusCode int
	Type       string
	Code       string
	Retryable  bool
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error: %s", e.Message)
}

// User-facing prefixes. The UI renders text starting with one of these as an error card.
const (
	PrefixRateLimit = "Rate limit exceeded"
	PrefixAuth      = "Authentication error"
	PrefixServer    = "Server error"
	PrefixNetwork   = "Network error"
	PrefixGeneric   = "An error occurred"
)

var errorPrefixes = []string{PrefixRateLimit, PrefixAuth, PrefixServer, PrefixNetwork, PrefixGeneric}

// UserMessage classifies err into a human-readable string that can stand in for model output
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return PrefixRateLimit + ". Please wait a moment and try again."
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return PrefixAuth + ". Please check the API key for this model."
		case apiErr.StatusCode >= 500:
			return PrefixServer + ". The model service is temporarily unavailable."
		case apiErr.StatusCode == 0 && apiErr.Type == "" && apiErr.Code == "":
			return PrefixNetwork + ". Please check your connection and try again."
		}
		return fmt.Sprintf("%s: %s", PrefixGeneric, apiErr.Message)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return PrefixNetwork + ". The request timed out."
	}
	if errors.Is(err, context.Canceled) {
		return PrefixGeneric + ": generation was cancelled."
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return PrefixNetwork + ". Please check your connection and try again."
	}

	return fmt.Sprintf("%s: %s", PrefixGeneric, err.Error())
}

// IsErrorText reports whether s was produced by UserMessage
func IsErrorText(s string) bool {
	for _, p := range errorPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return false
}

func isRateLimitError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

func isStatusCodeRetryable(statusCode int) bool {
	// Retry on rate limits and server errors
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusInternalServerError ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}
