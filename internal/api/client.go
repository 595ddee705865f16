package api

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lamim/chorus/internal/config"
)

const (
	// DefaultHTTPTimeout is used when a model has no timeout configured
	DefaultHTTPTimeout = 120 * time.Second
	// DefaultMaxRetries is the default maximum number of retry attempts
	DefaultMaxRetries = 3
	// DefaultBaseRetryDelay is the base delay for exponential backoff
	DefaultBaseRetryDelay = 2 * time.Second
	// DefaultMaxBackoffDuration caps a single backoff sleep
	DefaultMaxBackoffDuration = 2 * time.Minute
	// RateLimitBackoffMultiplier is the multiplier for rate limit backoff (3^n)
	RateLimitBackoffMultiplier = 3
)

// Client streams chat completions from OpenAI-compatible API endpoints
type Client struct {
	httpClient     *http.Client
	logger         *slog.Logger
	maxRetries     int
	baseRetryDelay time.Duration
}

// NewClient creates a new API client.
// Request deadlines come from the per-model timeout, so the HTTP client itself has none.
func NewClient(logger *slog.Logger) *Client {
	return &Client{
		httpClient:     &http.Client{},
		logger:         logger,
		maxRetries:     DefaultMaxRetries,
		baseRetryDelay: DefaultBaseRetryDelay,
	}
}

// buildCompletionRequest maps a provider-neutral request onto the OpenAI wire format
func buildCompletionRequest(mc config.ModelConfig, req ChatRequest) ChatCompletionRequest {
	out := ChatCompletionRequest{
		Model:       mc.ModelName,
		Temperature: mc.Temperature,
		TopP:        mc.TopP,
		MaxTokens:   mc.MaxOutputTokens,
		N:           1,
		Stream:      true,
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		out.TopP = *req.TopP
	}
	if req.TopK != nil {
		out.TopK = *req.TopK
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}

	if req.SystemPrompt != "" {
		out.Messages = append(out.Messages, wireMessage{Role: "system", Content: req.SystemPrompt})
	}

	lastUser := -1
	for i, m := range req.Messages {
		if m.Role == "user" {
			lastUser = i
		}
	}

	for i, m := range req.Messages {
		if i == lastUser && len(req.Attachments) > 0 {
			out.Messages = append(out.Messages, wireMessage{Role: m.Role, Content: attachmentParts(m.Content, req.Attachments)})
			continue
		}
		out.Messages = append(out.Messages, wireMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// attachmentParts inlines text files, sends images as data URIs and names the rest
func attachmentParts(text string, attachments []Attachment) []contentPart {
	parts := []contentPart{{Type: "text", Text: text}}
	for _, a := range attachments {
		switch {
		case strings.HasPrefix(a.MIMEType, "image/"):
			uri := "data:" + a.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
			parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: uri}})
		case strings.HasPrefix(a.MIMEType, "text/"):
			parts = append(parts, contentPart{Type: "text", Text: fmt.Sprintf("Attached file %s:\n%s", a.Name, a.Data)})
		default:
			parts = append(parts, contentPart{Type: "text", Text: fmt.Sprintf("[Attached file %s (%s) is not readable by this model]", a.Name, a.MIMEType)})
		}
	}
	return parts
}

func chatCompletionsEndpoint(baseURL string) string {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL + "chat/completions"
}
