package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/lamim/chorus/internal/config"
	"github.com/lamim/chorus/internal/stream"
)

// GeminiBackend streams completions through the Gemini API SDK
type GeminiBackend struct {
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.Mutex
	clients map[string]*genai.Client // keyed by api key + base url
}

// NewGeminiBackend creates a Gemini adapter. httpClient may be nil.
func NewGeminiBackend(logger *slog.Logger, httpClient *http.Client) *GeminiBackend {
	return &GeminiBackend{
		httpClient: httpClient,
		logger:     logger,
		clients:    make(map[string]*genai.Client),
	}
}

func (g *GeminiBackend) client(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := apiKey + "|" + baseURL
	if c, ok := g.clients[key]; ok {
		return c, nil
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	g.clients[key] = c
	return c, nil
}

// Stream implements the provider adapter used by Router
func (g *GeminiBackend) Stream(ctx context.Context, mc config.ModelConfig, apiKey string, req ChatRequest) (stream.Reader, error) {
	if apiKey == "" {
		return nil, &APIError{Message: "no Gemini API key configured (set GEMINI_API_KEY)", StatusCode: http.StatusUnauthorized}
	}

	client, err := g.client(ctx, apiKey, mc.BaseURL)
	if err != nil {
		return nil, err
	}

	timeout := DefaultHTTPTimeout
	if mc.HTTPTimeoutSeconds > 0 {
		timeout = time.Duration(mc.HTTPTimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)

	contents, genCfg := buildGeminiRequest(mc, req)
	r := stream.NewChanReader(16, cancel)

	go func() {
		for resp, err := range client.Models.GenerateContentStream(ctx, mc.ModelName, contents, genCfg) {
			if err != nil {
				r.Finish(convertGeminiError(ctx, err))
				return
			}
			if !r.Send(ctx, resp.Text()) {
				r.Finish(ctx.Err())
				return
			}
		}
		g.logger.Debug("Gemini stream finished", "model", mc.ModelName)
		r.Finish(nil)
	}()

	return r, nil
}

// buildGeminiRequest maps a provider-neutral request onto genai contents and config
func buildGeminiRequest(mc config.ModelConfig, req ChatRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(mc.Temperature)),
		TopP:            genai.Ptr(float32(mc.TopP)),
		MaxOutputTokens: int32(mc.MaxOutputTokens),
	}
	if req.Temperature != nil {
		genCfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.TopP != nil {
		genCfg.TopP = genai.Ptr(float32(*req.TopP))
	}
	if req.TopK != nil {
		genCfg.TopK = genai.Ptr(float32(*req.TopK))
	}
	if req.MaxTokens != nil {
		genCfg.MaxOutputTokens = int32(*req.MaxTokens)
	}

	var system []string
	if req.SystemPrompt != "" {
		system = append(system, req.SystemPrompt)
	}

	lastUser := -1
	for i, m := range req.Messages {
		if m.Role == "user" {
			lastUser = i
		}
	}

	var contents []*genai.Content
	for i, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
			continue
		case "assistant", "model":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
			continue
		}

		parts := []*genai.Part{genai.NewPartFromText(m.Content)}
		if i == lastUser {
			for _, a := range req.Attachments {
				parts = append(parts, genai.NewPartFromBytes(a.Data, a.MIMEType))
			}
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
	}

	if len(system) > 0 {
		parts := make([]*genai.Part, 0, len(system))
		for _, s := range system {
			parts = append(parts, genai.NewPartFromText(s))
		}
		genCfg.SystemInstruction = &genai.Content{Parts: parts}
	}

	return contents, genCfg
}

// convertGeminiError maps SDK errors onto APIError so they classify like HTTP errors
func convertGeminiError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			Message:    apiErr.Message,
			StatusCode: apiErr.Code,
			Type:       apiErr.Status,
			Retryable:  isStatusCodeRetryable(apiErr.Code),
		}
	}
	return err
}
