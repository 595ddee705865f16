package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"

	"github.com/lamim/chorus/internal/config"
	"github.com/lamim/chorus/internal/stream"
)

// InferenceRequest is published to inference.request.<model> for a worker to answer
type InferenceRequest struct {
	ReqID   string         `json:"req_id"`
	Input   string         `json:"input"`
	Params  map[string]any `json:"params"`
	Raw     bool           `json:"raw,omitempty"`
	ReplyTo string         `json:"reply_to,omitempty"`
}

// InferenceResponse is the worker's single reply
type InferenceResponse struct {
	ReqID        string `json:"req_id"`
	Text         string `json:"text"`
	TokensIn     int    `json:"tokens_in"`
	TokensOut    int    `json:"tokens_out"`
	FinishReason string `json:"finish_reason"`
	DurationMs   int64  `json:"duration_ms"`
	Error        string `json:"error,omitempty"`
}

// NATSBackend sends requests to inference workers over NATS request/reply.
// Workers answer with one message, which is delivered as a single chunk.
type NATSBackend struct {
	clientID string
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[string]*nats.Conn // keyed by server URL
}

// NewNATSBackend creates a NATS adapter; connections are opened on first use
func NewNATSBackend(logger *slog.Logger, clientID string) *NATSBackend {
	if clientID == "" {
		clientID = "chorus"
	}
	return &NATSBackend{
		clientID: clientID,
		logger:   logger,
		conns:    make(map[string]*nats.Conn),
	}
}

func (n *NATSBackend) conn(url string) (*nats.Conn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if nc, ok := n.conns[url]; ok && !nc.IsClosed() {
		return nc, nil
	}
	nc, err := nats.Connect(url, nats.Name(n.clientID))
	if err != nil {
		return nil, &APIError{Message: fmt.Sprintf("failed to connect to NATS: %v", err), Retryable: true}
	}
	n.conns[url] = nc
	return nc, nil
}

// Close drains every open connection
func (n *NATSBackend) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for url, nc := range n.conns {
		nc.Close()
		delete(n.conns, url)
	}
}

// Stream implements the provider adapter used by Router
func (n *NATSBackend) Stream(ctx context.Context, mc config.ModelConfig, _ string, req ChatRequest) (stream.Reader, error) {
	nc, err := n.conn(mc.BaseURL)
	if err != nil {
		return nil, err
	}

	timeout := DefaultHTTPTimeout
	if mc.HTTPTimeoutSeconds > 0 {
		timeout = time.Duration(mc.HTTPTimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)

	topic := fmt.Sprintf("inference.request.%s", mc.ModelName)
	request := buildInferenceRequest(mc, req, n.clientID)

	requestBytes, err := json.Marshal(request)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Subscribe to the reply subject before publishing
	replyChan := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(request.ReplyTo, replyChan)
	if err != nil {
		cancel()
		return nil, &APIError{Message: fmt.Sprintf("failed to subscribe to reply: %v", err), Retryable: true}
	}

	if err := nc.Publish(topic, requestBytes); err != nil {
		_ = sub.Unsubscribe()
		cancel()
		return nil, &APIError{Message: fmt.Sprintf("failed to publish request: %v", err), Retryable: true}
	}

	n.logger.Debug("Published inference request",
		"topic", topic,
		"req_id", request.ReqID,
		"reply_subject", request.ReplyTo)

	r := stream.NewChanReader(1, cancel)
	go func() {
		defer func() { _ = sub.Unsubscribe() }()

		select {
		case msg := <-replyChan:
			text, err := decodeInferenceReply(msg.Data)
			if err != nil {
				r.Finish(err)
				return
			}
			if !r.Send(ctx, text) {
				r.Finish(ctx.Err())
				return
			}
			r.Finish(nil)
		case <-ctx.Done():
			r.Finish(ctx.Err())
		}
	}()

	return r, nil
}

// buildInferenceRequest flattens the conversation into the worker's single input string
func buildInferenceRequest(mc config.ModelConfig, req ChatRequest, clientID string) InferenceRequest {
	reqID := ulid.Make().String()

	params := map[string]any{
		"max_tokens":  mc.MaxOutputTokens,
		"temperature": mc.Temperature,
		"top_p":       mc.TopP,
	}
	if req.MaxTokens != nil {
		params["max_tokens"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		params["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		params["top_p"] = *req.TopP
	}
	if req.TopK != nil {
		params["top_k"] = *req.TopK
	}

	return InferenceRequest{
		ReqID:   reqID,
		Input:   flattenMessages(req),
		Params:  params,
		ReplyTo: fmt.Sprintf("inference.response.%s.%s", clientID, reqID),
	}
}

func flattenMessages(req ChatRequest) string {
	if req.SystemPrompt == "" && len(req.Messages) == 1 && len(req.Attachments) == 0 {
		return req.Messages[0].Content
	}

	var b strings.Builder
	if req.SystemPrompt != "" {
		fmt.Fprintf(&b, "system: %s\n\n", req.SystemPrompt)
	}
	for _, m := range req.Messages {
		fmt.Fprintf(&b, "%s: %s\n\n", m.Role, m.Content)
	}
	for _, a := range req.Attachments {
		if strings.HasPrefix(a.MIMEType, "text/") {
			fmt.Fprintf(&b, "Attached file %s:\n%s\n\n", a.Name, a.Data)
		}
	}
	return strings.TrimSpace(b.String())
}

func decodeInferenceReply(data []byte) (string, error) {
	var response InferenceResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if response.Error != "" {
		return "", &APIError{Message: response.Error, StatusCode: http.StatusBadGateway, Type: "worker_error"}
	}
	return response.Text, nil
}
