package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/lamim/chorus/pkg/models"
)

// Provider names accepted in models.<id>.provider
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderNATS   = "nats"
)

// Config represents the complete application configuration
type Config struct {
	Server               ServerConfig           `toml:"server" yaml:"server"`
	Playground           PlaygroundConfig       `toml:"playground" yaml:"playground"`
	Conversation         ConversationConfig     `toml:"conversation" yaml:"conversation"`
	Attachments          AttachmentConfig       `toml:"attachments" yaml:"attachments"`
	History              HistoryConfig          `toml:"history" yaml:"history"`
	Metrics              MetricsConfig          `toml:"metrics" yaml:"metrics"`
	Models               map[string]ModelConfig `toml:"models" yaml:"models"`
	PromptTemplates      PromptTemplates        `toml:"prompt_templates" yaml:"prompt_templates"`
	ProviderRateLimits   map[string]int         `toml:"provider_rate_limits" yaml:"provider_rate_limits"`     // Global rate limits per provider (requests per minute)
	ProviderBurstPercent int                    `toml:"provider_burst_percent" yaml:"provider_burst_percent"` // Burst capacity as percentage (1-50, default: 15)
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr                   string `toml:"addr" yaml:"addr"`
	SSEHeartbeatSeconds    int    `toml:"sse_heartbeat_seconds" yaml:"sse_heartbeat_seconds"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// PlaygroundConfig holds multi-slot generation settings
type PlaygroundConfig struct {
	MaxSlots     int    `toml:"max_slots" yaml:"max_slots"`         // Upper bound on the total of all selection counts
	Concurrency  int    `toml:"concurrency" yaml:"concurrency"`     // Max in-flight slot requests per submit (0 = one per slot)
	DefaultModel string `toml:"default_model" yaml:"default_model"` // Used when a deferred submit is confirmed without a model
	MaxSessions  int    `toml:"max_sessions" yaml:"max_sessions"`
}

// ConversationConfig holds settings for the single-turn chat API
type ConversationConfig struct {
	StoreCapacity      int     `toml:"store_capacity" yaml:"store_capacity"`
	DefaultModel       string  `toml:"default_model" yaml:"default_model"`
	DefaultTemperature float64 `toml:"default_temperature" yaml:"default_temperature"`
}

// AttachmentConfig holds upload limits
type AttachmentConfig struct {
	MaxFileSizeMB     int      `toml:"max_file_size_mb" yaml:"max_file_size_mb"`
	AllowedExtensions []string `toml:"allowed_extensions" yaml:"allowed_extensions"`
	AllowedMIMETypes  []string `toml:"allowed_mime_types" yaml:"allowed_mime_types"`
}

// HistoryConfig controls the SQLite generation journal
type HistoryConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
}

// ModelConfig represents configuration for a single model endpoint
type ModelConfig struct {
	Provider           string  `toml:"provider" yaml:"provider"` // openai, gemini or nats
	BaseURL            string  `toml:"base_url" yaml:"base_url"`
	ModelName          string  `toml:"model_name" yaml:"model_name"`
	DisplayName        string  `toml:"display_name" yaml:"display_name"`
	Description        string  `toml:"description" yaml:"description"`
	MaxInputTokens     int     `toml:"max_input_tokens" yaml:"max_input_tokens"`
	MaxOutputTokens    int     `toml:"max_output_tokens" yaml:"max_output_tokens"`
	SupportsImages     bool    `toml:"supports_images" yaml:"supports_images"`
	SupportsVideo      bool    `toml:"supports_video" yaml:"supports_video"`
	SupportsAudio      bool    `toml:"supports_audio" yaml:"supports_audio"`
	Temperature        float64 `toml:"temperature" yaml:"temperature"`
	TopP               float64 `toml:"top_p" yaml:"top_p"`
	RateLimitPerMinute int     `toml:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	MaxBackoffSeconds  int     `toml:"max_backoff_seconds" yaml:"max_backoff_seconds"`   // Optional: max backoff duration (default 120)
	MaxRetries         int     `toml:"max_retries" yaml:"max_retries"`                   // Optional: retries before the first byte (default 3, -1 = none)
	HTTPTimeoutSeconds int     `toml:"http_timeout_seconds" yaml:"http_timeout_seconds"` // Optional: whole-request timeout (default 300)
}

// PromptTemplates holds the customizable synthesis templates
type PromptTemplates struct {
	Remix            string `toml:"remix" yaml:"remix"`
	SocialPost       string `toml:"social_post" yaml:"social_post"`
	RemixSystem      string `toml:"remix_system" yaml:"remix_system"`
	SocialPostSystem string `toml:"social_post_system" yaml:"social_post_system"`
}

// Secrets holds sensitive credentials loaded from environment variables
type Secrets struct {
	APIKeys map[string]string
}

const (
	// MaxSlots is the hard upper bound for playground.max_slots
	MaxSlots = 64
	// MaxStoreCapacity is the hard upper bound for conversation.store_capacity
	MaxStoreCapacity = 100000
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ProviderBurstPercent < 1 || c.ProviderBurstPercent > 50 {
		return fmt.Errorf("provider_burst_percent must be between 1 and 50 (got %d)", c.ProviderBurstPercent)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.SSEHeartbeatSeconds < 1 {
		return fmt.Errorf("server.sse_heartbeat_seconds must be at least 1")
	}

	if c.Playground.MaxSlots < 1 || c.Playground.MaxSlots > MaxSlots {
		return fmt.Errorf("playground.max_slots must be between 1 and %d (got %d)", MaxSlots, c.Playground.MaxSlots)
	}
	if c.Playground.Concurrency < 0 {
		return fmt.Errorf("playground.concurrency must not be negative")
	}
	if c.Playground.MaxSessions < 1 {
		return fmt.Errorf("playground.max_sessions must be at least 1")
	}

	if c.Conversation.StoreCapacity < 1 || c.Conversation.StoreCapacity > MaxStoreCapacity {
		return fmt.Errorf("conversation.store_capacity must be between 1 and %d (got %d)", MaxStoreCapacity, c.Conversation.StoreCapacity)
	}
	if c.Conversation.DefaultTemperature < 0 || c.Conversation.DefaultTemperature > 2 {
		return fmt.Errorf("conversation.default_temperature must be between 0 and 2")
	}

	if c.Attachments.MaxFileSizeMB < 1 {
		return fmt.Errorf("attachments.max_file_size_mb must be at least 1")
	}
	for _, ext := range c.Attachments.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("attachments.allowed_extensions entries must start with '.' (got %q)", ext)
		}
	}

	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}

	if len(c.Models) == 0 {
		return fmt.Errorf("at least one model must be configured")
	}
	for id, mc := range c.Models {
		if err := validateModelConfig(id, mc); err != nil {
			return err
		}
	}

	if c.Playground.DefaultModel != "" {
		if _, ok := c.Models[c.Playground.DefaultModel]; !ok {
			return fmt.Errorf("playground.default_model %q is not a configured model", c.Playground.DefaultModel)
		}
	}
	if _, ok := c.Models[c.Conversation.DefaultModel]; !ok {
		// The conversational API accepts any model id per request, so this is only a warning
		fmt.Fprintf(os.Stderr, "WARNING: conversation.default_model %q is not a configured model\n", c.Conversation.DefaultModel)
	}

	if c.PromptTemplates.Remix == "" {
		return fmt.Errorf("prompt_templates.remix is required")
	}
	if c.PromptTemplates.SocialPost == "" {
		return fmt.Errorf("prompt_templates.social_post is required")
	}

	return nil
}

func validateModelConfig(id string, mc ModelConfig) error {
	switch mc.Provider {
	case ProviderOpenAI, ProviderNATS:
		if mc.BaseURL == "" {
			return fmt.Errorf("models.%s.base_url is required for provider %s", id, mc.Provider)
		}
	case ProviderGemini:
	default:
		return fmt.Errorf("models.%s.provider must be one of: openai, gemini, nats (got %q)", id, mc.Provider)
	}
	if mc.ModelName == "" {
		return fmt.Errorf("models.%s.model_name is required", id)
	}
	if mc.Temperature < 0 || mc.Temperature > 2 {
		return fmt.Errorf("models.%s.temperature must be between 0 and 2", id)
	}
	if mc.TopP < 0 || mc.TopP > 1 {
		return fmt.Errorf("models.%s.top_p must be between 0 and 1", id)
	}
	if mc.MaxOutputTokens < 1 {
		return fmt.Errorf("models.%s.max_output_tokens must be at least 1", id)
	}
	if mc.RateLimitPerMinute < 1 {
		return fmt.Errorf("models.%s.rate_limit_per_minute must be at least 1", id)
	}
	if mc.MaxInputTokens > 0 && mc.MaxOutputTokens > mc.MaxInputTokens {
		return fmt.Errorf("models.%s.max_output_tokens (%d) must not exceed max_input_tokens (%d)", id, mc.MaxOutputTokens, mc.MaxInputTokens)
	}
	return nil
}

// Catalog returns the configured models as UI catalog entries, sorted by id
func (c *Config) Catalog() []models.ModelInfo {
	ids := make([]string, 0, len(c.Models))
	for id := range c.Models {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	infos := make([]models.ModelInfo, 0, len(ids))
	for _, id := range ids {
		mc := c.Models[id]
		name := mc.DisplayName
		if name == "" {
			name = id
		}
		infos = append(infos, models.ModelInfo{
			ID:              id,
			Name:            name,
			Description:     mc.Description,
			MaxInputTokens:  mc.MaxInputTokens,
			MaxOutputTokens: mc.MaxOutputTokens,
			SupportsImages:  mc.SupportsImages,
			SupportsVideo:   mc.SupportsVideo,
			SupportsAudio:   mc.SupportsAudio,
		})
	}
	return infos
}

// LoadSecrets loads sensitive credentials from environment variables
func LoadSecrets() (*Secrets, error) {
	secrets := &Secrets{
		APIKeys: make(map[string]string),
	}

	// Load generic API key (provider-agnostic)
	if key := os.Getenv("API_KEY"); key != "" {
		secrets.APIKeys["generic"] = key
	}

	// Provider-specific API keys override the generic one
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		secrets.APIKeys["openai"] = key
	}
	if key := os.Getenv("NVIDIA_API_KEY"); key != "" {
		secrets.APIKeys["nvidia"] = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		secrets.APIKeys["anthropic"] = key
	}
	if key := os.Getenv("TOGETHER_API_KEY"); key != "" {
		secrets.APIKeys["together"] = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		secrets.APIKeys["gemini"] = key
	} else if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		secrets.APIKeys["gemini"] = key
	}

	return secrets, nil
}

// GetAPIKey returns the API key for a model endpoint
func (s *Secrets) GetAPIKey(mc ModelConfig) string {
	if mc.Provider == ProviderGemini {
		if key := s.APIKeys["gemini"]; key != "" {
			return key
		}
	}

	if provider := GetProviderName(mc.BaseURL); provider != mc.BaseURL {
		if key := s.APIKeys[provider]; key != "" {
			return key
		}
	}

	// Fall back to generic API_KEY for any OpenAI-compatible provider
	if key := s.APIKeys["generic"]; key != "" {
		return key
	}

	// Local servers usually run without auth
	return ""
}

// GetProviderName extracts a provider name from a base URL for rate limiting
func GetProviderName(baseURL string) string {
	switch {
	case strings.Contains(baseURL, "openai.com"):
		return "openai"
	case strings.Contains(baseURL, "nvidia.com"):
		return "nvidia"
	case strings.Contains(baseURL, "anthropic.com"):
		return "anthropic"
	case strings.Contains(baseURL, "together.xyz"), strings.Contains(baseURL, "together.ai"):
		return "together"
	case strings.Contains(baseURL, "googleapis.com"):
		return "gemini"
	}
	// For localhost or unknown providers, use the full base URL as provider name
	return baseURL
}
