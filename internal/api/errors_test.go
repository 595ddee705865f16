package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantPrefix string
	}{
		{"rate limit", &APIError{StatusCode: 429, Message: "slow down"}, PrefixRateLimit},
		{"unauthorized", &APIError{StatusCode: 401}, PrefixAuth},
		{"forbidden", &APIError{StatusCode: 403}, PrefixAuth},
		{"server", &APIError{StatusCode: 502}, PrefixServer},
		{"transport", &APIError{StatusCode: 0, Message: "dial tcp"}, PrefixNetwork},
		{"wrapped", fmt.Errorf("max retries exceeded: %w", &APIError{StatusCode: 503}), PrefixServer},
		{"bad request", &APIError{StatusCode: 400, Message: "bad input"}, PrefixGeneric},
		{"typed without status", &APIError{Type: "invalid_request_error", Message: "context length exceeded"}, PrefixGeneric},
		{"coded without status", &APIError{Code: "content_filter", Message: "blocked"}, PrefixGeneric},
		{"deadline", context.DeadlineExceeded, PrefixNetwork},
		{"cancelled", context.Canceled, PrefixGeneric},
		{"plain", errors.New("boom"), PrefixGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UserMessage(tt.err)
			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("UserMessage() = %q, want prefix %q", got, tt.wantPrefix)
			}
			if !IsErrorText(got) {
				t.Errorf("IsErrorText(%q) = false, want true", got)
			}
		})
	}
}

func TestUserMessage_Nil(t *testing.T) {
	if got := UserMessage(nil); got != "" {
		t.Errorf("UserMessage(nil) = %q, want empty", got)
	}
}

func TestIsErrorText(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Here is a poem about rate limits", false},
		{"", false},
		{"Network error. Please check your connection and try again.", true},
		{"An error occurred: boom", true},
	}
	for _, tt := range tests {
		if got := IsErrorText(tt.in); got != tt.want {
			t.Errorf("IsErrorText(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
