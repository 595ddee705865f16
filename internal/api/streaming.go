package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/lamim/chorus/internal/config"
	"github.com/lamim/chorus/internal/stream"
)

// Stream opens a streaming chat completion and returns a reader over the content deltas.
// Connection failures, 429 and 5xx responses are retried with exponential
// backoff; once the first byte has arrived nothing is retried.
func (c *Client) Stream(
	ctx context.Context,
	modelCfg config.ModelConfig,
	apiKey string,
	req ChatRequest,
) (stream.Reader, error) {
	timeout := time.Duration(modelCfg.HTTPTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
		c.logger.Warn("Model has no timeout configured, using default",
			"model", modelCfg.ModelName,
			"timeout", timeout)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)

	body := buildCompletionRequest(modelCfg, req)

	maxAttempts := modelCfg.MaxRetries
	if maxAttempts == 0 {
		maxAttempts = c.maxRetries
	}
	if maxAttempts < 0 {
		maxAttempts = 0 // -1 disables retries
	}

	maxBackoff := DefaultMaxBackoffDuration
	if modelCfg.MaxBackoffSeconds > 0 {
		maxBackoff = time.Duration(modelCfg.MaxBackoffSeconds) * time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.baseRetryDelay

			// Rate limits back off harder (3^n)
			if isRateLimitError(lastErr) {
				backoff = time.Duration(math.Pow(RateLimitBackoffMultiplier, float64(attempt))) * c.baseRetryDelay
			}
			if backoff > maxBackoff {
				backoff = maxBackoff
			}

			jitter := time.Duration(float64(backoff) * 0.1 * (2*rand.Float64() - 1))
			sleepDuration := backoff + jitter

			c.logger.Warn("Retrying streaming API request",
				"attempt", attempt,
				"max_retries", maxAttempts,
				"backoff", sleepDuration,
				"model", modelCfg.ModelName,
				"is_rate_limit", isRateLimitError(lastErr))

			select {
			case <-ctx.Done():
				cancel()
				return nil, ctx.Err()
			case <-time.After(sleepDuration):
			}
		}

		httpResp, err := c.openStream(ctx, modelCfg.BaseURL, apiKey, body)
		if err == nil {
			r := stream.NewChanReader(16, cancel)
			go c.readEvents(ctx, httpResp.Body, r, modelCfg.ModelName)
			return r, nil
		}

		lastErr = err
		if !isRetryable(err) {
			cancel()
			return nil, err
		}
	}

	cancel()
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// openStream sends the request and returns the response once a 200 status has arrived
func (c *Client) openStream(
	ctx context.Context,
	baseURL string,
	apiKey string,
	req ChatCompletionRequest,
) (*http.Response, error) {
	body, release, err := encodeBody(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	defer release()

	endpoint := chatCompletionsEndpoint(baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	} else {
		c.logger.Debug("API request without key", "endpoint", endpoint)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &APIError{
			Message:    fmt.Sprintf("request failed: %v", err),
			StatusCode: 0,
			Retryable:  true,
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		bodyBytes, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64*1024))
		retryable := isStatusCodeRetryable(httpResp.StatusCode)

		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, &APIError{
				Message:    errResp.Error.Message,
				StatusCode: httpResp.StatusCode,
				Type:       errResp.Error.Type,
				Code:       codeString(errResp.Error.Code),
				Retryable:  retryable,
			}
		}

		return nil, &APIError{
			Message:    fmt.Sprintf("API request failed with status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(bodyBytes))),
			StatusCode: httpResp.StatusCode,
			Retryable:  retryable,
		}
	}

	return httpResp, nil
}

// readEvents parses "data: " lines until [DONE] and forwards content deltas.
// Reasoning deltas are wrapped in <think> tags so downstream prompts can strip them.
func (c *Client) readEvents(ctx context.Context, body io.ReadCloser, r *stream.ChanReader, model string) {
	defer body.Close()

	thinking := false
	send := func(s string) bool {
		if s == "" {
			return true
		}
		return r.Send(ctx, s)
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk StreamResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.logger.Warn("Failed to parse stream chunk", "error", err, "model", model)
			continue
		}
		if chunk.Error != nil {
			code := codeString(chunk.Error.Code)
			r.Finish(&APIError{
				Message:    chunk.Error.Message,
				StatusCode: streamErrorStatus(chunk.Error.Type, code),
				Type:       chunk.Error.Type,
				Code:       code,
			})
			return
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta.ReasoningContent != "" {
			prefix := ""
			if !thinking {
				prefix = "<think>"
				thinking = true
			}
			if !send(prefix + delta.ReasoningContent) {
				r.Finish(ctx.Err())
				return
			}
		}
		if delta.Content != "" {
			prefix := ""
			if thinking {
				prefix = "</think>\n"
				thinking = false
			}
			if !send(prefix + delta.Content) {
				r.Finish(ctx.Err())
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			r.Finish(ctx.Err())
			return
		}
		r.Finish(&APIError{Message: fmt.Sprintf("stream reading error: %v", err)})
		return
	}
	if thinking && !send("</think>\n") {
		r.Finish(ctx.Err())
		return
	}
	r.Finish(nil)
}

// streamErrorStatus maps an error object sent after the 200 header to the
// status the provider would have used for it up front
func streamErrorStatus(errType, code string) int {
	kind := strings.ToLower(errType + " " + code)
	switch {
	case strings.Contains(kind, "rate_limit"), strings.Contains(kind, "quota"):
		return http.StatusTooManyRequests
	case strings.Contains(kind, "auth"), strings.Contains(kind, "api_key"), strings.Contains(kind, "permission"):
		return http.StatusUnauthorized
	case strings.Contains(kind, "server_error"), strings.Contains(kind, "overloaded"):
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func codeString(code any) string {
	if code == nil {
		return ""
	}
	return fmt.Sprint(code)
}
