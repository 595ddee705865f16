package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file encoding
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the decoder from the file extension (TOML unless .yaml/.yml)
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Load reads and parses the configuration file and environment variables.
// A missing file at path is not an error when allowMissing is set; the
// built-in defaults are used instead.
func Load(configPath string, allowMissing bool) (*Config, *Secrets, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if !(allowMissing && os.IsNotExist(err)) {
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		}
		data = nil
	}

	cfg, err := Parse(data, FormatFromPath(configPath))
	if err != nil {
		return nil, nil, err
	}

	// Load secrets from environment
	secrets, err := LoadSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	return cfg, secrets, nil
}

// Parse decodes, defaults and validates configuration bytes
func Parse(data []byte, format Format) (*Config, error) {
	var cfg Config
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply defaults
	applyDefaults(&cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Additional input security validation
	if err := cfg.ValidateInputs(); err != nil {
		return nil, fmt.Errorf("input validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration built only from defaults
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.ProviderBurstPercent == 0 {
		cfg.ProviderBurstPercent = 15 // Default: 15% burst
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.SSEHeartbeatSeconds == 0 {
		cfg.Server.SSEHeartbeatSeconds = 15
	}
	if cfg.Server.ShutdownTimeoutSeconds == 0 {
		cfg.Server.ShutdownTimeoutSeconds = 10
	}

	if cfg.Playground.MaxSlots == 0 {
		cfg.Playground.MaxSlots = 16
	}
	if cfg.Playground.MaxSessions == 0 {
		cfg.Playground.MaxSessions = 256
	}

	if cfg.Conversation.StoreCapacity == 0 {
		cfg.Conversation.StoreCapacity = 100
	}
	if cfg.Conversation.DefaultModel == "" {
		cfg.Conversation.DefaultModel = DefaultConversationModel
	}
	if cfg.Conversation.DefaultTemperature == 0 {
		cfg.Conversation.DefaultTemperature = 0.7
	}

	if cfg.Attachments.MaxFileSizeMB == 0 {
		cfg.Attachments.MaxFileSizeMB = 10
	}
	if len(cfg.Attachments.AllowedExtensions) == 0 {
		cfg.Attachments.AllowedExtensions = DefaultAllowedExtensions()
	}
	if len(cfg.Attachments.AllowedMIMETypes) == 0 {
		cfg.Attachments.AllowedMIMETypes = DefaultAllowedMIMETypes()
	}

	if cfg.History.Path == "" {
		cfg.History.Path = "chorus-history.db"
	}

	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels()
	}

	// Apply defaults for each model
	for id, model := range cfg.Models {
		if model.Provider == "" {
			model.Provider = ProviderOpenAI
		}
		if model.ModelName == "" {
			model.ModelName = id
		}
		if model.Temperature == 0 {
			model.Temperature = 0.7
		}
		if model.TopP == 0 {
			model.TopP = 1.0
		}
		if model.MaxOutputTokens == 0 {
			model.MaxOutputTokens = 8192
		}
		if model.RateLimitPerMinute == 0 {
			model.RateLimitPerMinute = 60
		}
		if model.MaxBackoffSeconds == 0 {
			model.MaxBackoffSeconds = 120 // 2 minutes default
		}
		// NOTE: TOML can't distinguish 0 from unset:
		// - Unset (0) -> 3 retries
		// - Explicitly -1 -> no retries
		if model.MaxRetries == 0 {
			model.MaxRetries = 3
		}
		if model.HTTPTimeoutSeconds == 0 {
			model.HTTPTimeoutSeconds = 300
		}
		cfg.Models[id] = model
	}

	if cfg.PromptTemplates.Remix == "" {
		cfg.PromptTemplates.Remix = GetDefaultRemixTemplate()
	}
	if cfg.PromptTemplates.SocialPost == "" {
		cfg.PromptTemplates.SocialPost = GetDefaultSocialPostTemplate()
	}
}
