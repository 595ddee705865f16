package api

import (
	"context"

	"github.com/lamim/chorus/internal/stream"
)

// Backend is the chat send primitive consumed by every orchestrator.
// The returned reader yields raw text chunks in arrival order.
type Backend interface {
	SendChatRequest(ctx context.Context, req ChatRequest) (stream.Reader, error)
}

// BackendFunc adapts a function to the Backend interface
type BackendFunc func(ctx context.Context, req ChatRequest) (stream.Reader, error)

// SendChatRequest implements Backend
func (f BackendFunc) SendChatRequest(ctx context.Context, req ChatRequest) (stream.Reader, error) {
	return f(ctx, req)
}

// ChatRequest is a provider-neutral chat request.
// Optional sampling fields override the model's configured defaults.
type ChatRequest struct {
	Model        string
	Messages     []Message
	SystemPrompt string
	Attachments  []Attachment
	Temperature  *float64
	TopP         *float64
	TopK         *int
	MaxTokens    *int
}

// NewPromptRequest builds a single user-turn request
func NewPromptRequest(prompt, modelID string, attachments []Attachment) ChatRequest {
	return ChatRequest{
		Model:       modelID,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Attachments: attachments,
	}
}

// Attachment is an uploaded file sent alongside the last user message
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Message represents a single message in the chat
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest represents an OpenAI-compatible chat completion request
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	TopK        int           `json:"top_k,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	N           int           `json:"n,omitempty"`
	Stream      bool          `json:"stream"`
}

// wireMessage carries either a plain string or a list of content parts
type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// StreamDelta represents the delta content in a streaming response chunk
type StreamDelta struct {
	Role             string `json:"role,omitempty"`
	Content          string `json:"content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"` // For reasoning models
}

// StreamChoice represents a choice in a streaming response chunk
type StreamChoice struct {
	Index        int         `json:"index"`
	Delta        StreamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason,omitempty"`
}

// StreamResponse represents a single chunk in the streaming response
type StreamResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
	Error   *ErrorBody     `json:"error,omitempty"`
}

// ErrorBody is the error object of an OpenAI-compatible API
type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
