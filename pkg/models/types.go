package models

import "time"

// ModelSelection asks for Count independent responses from ModelID
type ModelSelection struct {
	ModelID string `json:"modelId" toml:"model_id" yaml:"model_id"`
	Count   int    `json:"count" toml:"count" yaml:"count"`
}

// Increment raises the repeat count by one
func (s ModelSelection) Increment() ModelSelection {
	s.Count++
	if s.Count < 1 {
		s.Count = 1
	}
	return s
}

// Decrement lowers the repeat count by one, never below 1
func (s ModelSelection) Decrement() ModelSelection {
	s.Count--
	if s.Count < 1 {
		s.Count = 1
	}
	return s
}

// Platform identifies a social network target
type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformTikTok    Platform = "tiktok"
)

// PostType identifies the shape of the generated posts
type PostType string

const (
	PostTypeTweet   PostType = "tweet"
	PostTypeThread  PostType = "thread"
	PostTypeArticle PostType = "article"
	PostTypePost    PostType = "post"
	PostTypeCaption PostType = "caption"
)

// SocialPostConfig describes one social post generation request
type SocialPostConfig struct {
	Platform        Platform `json:"platform"`
	PostType        PostType `json:"postType"`
	NumberOfPosts   int      `json:"numberOfPosts"`
	CharacterLimit  int      `json:"characterLimit"`
	ModelID         string   `json:"modelId"`
	CustomPrompt    string   `json:"customPrompt,omitempty"`
	SelectedColumns []string `json:"selectedColumns,omitempty"`
	IsThreaded      bool     `json:"isThreaded"`
}

// ModelInfo is one catalog entry exposed to the UI
type ModelInfo struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	MaxInputTokens  int    `json:"maxInputTokens"`
	MaxOutputTokens int    `json:"maxOutputTokens"`
	SupportsImages  bool   `json:"supportsImages"`
	SupportsVideo   bool   `json:"supportsVideo"`
	SupportsAudio   bool   `json:"supportsAudio"`
}

// ChatMessage is a single role/content pair on the conversational API
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Envelope is the response wrapper used by every JSON endpoint
type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// NewEnvelope builds a success envelope stamped with the current time
func NewEnvelope(data any) Envelope {
	return Envelope{Success: true, Data: data, Timestamp: time.Now().UTC().Format(time.RFC3339Nano)}
}

// NewErrorEnvelope builds a failure envelope stamped with the current time
func NewErrorEnvelope(msg string) Envelope {
	return Envelope{Success: false, Error: msg, Timestamp: time.Now().UTC().Format(time.RFC3339Nano)}
}
