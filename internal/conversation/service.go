// Package conversation implements the single-turn chat API: context merging,
// a capped conversation store and one backend call per turn.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/lamim/chorus/internal/api"
	"github.com/lamim/chorus/internal/history"
	"github.com/lamim/chorus/internal/metrics"
	"github.com/lamim/chorus/internal/stream"
	"github.com/lamim/chorus/pkg/models"
)

// ErrMessagesRequired is returned when a request carries no messages
var ErrMessagesRequired = errors.New("Messages array is required and must not be empty")

// Request is one turn of the conversational API
type Request struct {
	Messages       []models.ChatMessage `json:"messages"`
	ConversationID string               `json:"conversationId,omitempty"`
	Model          string               `json:"model,omitempty"`
	Context        map[string]any       `json:"context,omitempty"`
	Temperature    *float64             `json:"temperature,omitempty"`
	MaxTokens      *int                 `json:"maxTokens,omitempty"`
	TopP           *float64             `json:"topP,omitempty"`
	TopK           *int                 `json:"topK,omitempty"`
}

// Reply is the model's answer plus the conversation bookkeeping
type Reply struct {
	Content        string `json:"content"`
	Model          string `json:"model"`
	ConversationID string `json:"conversationId"`
	MessageCount   int    `json:"messageCount"`
}

// Options configures a Service
type Options struct {
	DefaultModel       string
	DefaultTemperature float64
	Metrics            *metrics.Collector
	History            history.Recorder
}

// Service runs conversation turns against a backend
type Service struct {
	backend api.Backend
	store   Store
	opts    Options
	logger  *slog.Logger
}

// NewService creates a conversation service
func NewService(backend api.Backend, store Store, opts Options, logger *slog.Logger) *Service {
	if opts.History == nil {
		opts.History = history.Nop{}
	}
	return &Service{
		backend: backend,
		store:   store,
		opts:    opts,
		logger:  logger.With("component", "conversation"),
	}
}

// Store returns the underlying conversation store
func (s *Service) Store() Store {
	return s.store
}

// Delete removes a stored conversation and reports whether it existed
func (s *Service) Delete(id string) bool {
	deleted := s.store.Delete(id)
	s.opts.Metrics.SetConversations(s.store.Len())
	return deleted
}

// Chat validates req, merges the stored context, calls the model and records the turn
func (s *Service) Chat(ctx context.Context, req Request) (*Reply, error) {
	if len(req.Messages) == 0 {
		return nil, ErrMessagesRequired
	}

	id := strings.TrimSpace(req.ConversationID)
	if id == "" {
		id = NewConversationID()
	}
	model := req.Model
	if model == "" {
		model = s.opts.DefaultModel
	}
	temperature := req.Temperature
	if temperature == nil {
		t := s.opts.DefaultTemperature
		temperature = &t
	}

	var existing map[string]any
	if rec, ok := s.store.Get(id); ok {
		existing = rec.Context
	}
	merged := Merge(existing, req.Context)

	msgs := make([]api.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, api.Message{Role: m.Role, Content: m.Content})
	}
	chatReq := api.ChatRequest{
		Model:        model,
		Messages:     msgs,
		SystemPrompt: SystemPrompt(merged),
		Temperature:  temperature,
		MaxTokens:    req.MaxTokens,
		TopP:         req.TopP,
		TopK:         req.TopK,
	}

	start := time.Now()
	s.opts.Metrics.GenerationStarted(metrics.KindConversation)
	text, err := s.generate(ctx, chatReq)
	s.opts.Metrics.GenerationFinished(metrics.KindConversation, time.Since(start), err == nil)

	last := req.Messages[len(req.Messages)-1]
	s.journal(ctx, id, model, last.Content, text, err, time.Since(start))
	if err != nil {
		s.logger.Warn("Conversation turn failed", "conversation_id", id, "model", model, "error", err)
		return nil, err
	}

	reply := &Reply{Content: text, Model: model, ConversationID: id}
	reply.MessageCount = s.store.Upsert(id, merged, last, map[string]any{
		"content": text,
		"model":   model,
	})
	s.opts.Metrics.SetConversations(s.store.Len())

	s.logger.Debug("Conversation turn complete",
		"conversation_id", id,
		"model", model,
		"message_count", reply.MessageCount)
	return reply, nil
}

func (s *Service) generate(ctx context.Context, req api.ChatRequest) (string, error) {
	r, err := s.backend.SendChatRequest(ctx, req)
	if err != nil {
		return "", err
	}
	return stream.Consume(ctx, r, nil)
}

func (s *Service) journal(ctx context.Context, id, model, prompt, text string, err error, elapsed time.Duration) {
	status := history.StatusSuccess
	if err != nil {
		status = history.StatusError
		text = api.UserMessage(err)
	}
	if jerr := s.opts.History.Record(context.WithoutCancel(ctx), history.Generation{
		Kind:       history.KindConversation,
		Key:        id,
		ModelID:    model,
		Prompt:     prompt,
		Response:   text,
		Status:     status,
		DurationMs: elapsed.Milliseconds(),
	}); jerr != nil {
		s.logger.Warn("Failed to record conversation turn", "error", jerr)
	}
}
