package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		Models: map[string]ModelConfig{
			"local": {
				Provider:  ProviderOpenAI,
				BaseURL:   "http://localhost:8000/v1",
				ModelName: "llama",
			},
		},
	}
	applyDefaults(&cfg)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "burst out of range",
			mutate:  func(c *Config) { c.ProviderBurstPercent = 80 },
			wantErr: "provider_burst_percent",
		},
		{
			name:    "too many slots",
			mutate:  func(c *Config) { c.Playground.MaxSlots = MaxSlots + 1 },
			wantErr: "playground.max_slots",
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *Config) { c.Playground.Concurrency = -1 },
			wantErr: "playground.concurrency",
		},
		{
			name:    "store capacity zero",
			mutate:  func(c *Config) { c.Conversation.StoreCapacity = -5 },
			wantErr: "conversation.store_capacity",
		},
		{
			name:    "extension without dot",
			mutate:  func(c *Config) { c.Attachments.AllowedExtensions = []string{"pdf"} },
			wantErr: "allowed_extensions",
		},
		{
			name:    "no models",
			mutate:  func(c *Config) { c.Models = nil },
			wantErr: "at least one model",
		},
		{
			name: "openai without base url",
			mutate: func(c *Config) {
				c.Models["bad"] = ModelConfig{Provider: ProviderOpenAI, ModelName: "x", MaxOutputTokens: 1, RateLimitPerMinute: 1}
			},
			wantErr: "base_url is required",
		},
		{
			name: "gemini without base url",
			mutate: func(c *Config) {
				c.Models["g"] = ModelConfig{Provider: ProviderGemini, ModelName: "gemini-2.0-flash", MaxOutputTokens: 1, RateLimitPerMinute: 1}
			},
		},
		{
			name: "unknown provider",
			mutate: func(c *Config) {
				c.Models["bad"] = ModelConfig{Provider: "grpc", ModelName: "x", MaxOutputTokens: 1, RateLimitPerMinute: 1}
			},
			wantErr: "provider must be one of",
		},
		{
			name: "output tokens above input tokens",
			mutate: func(c *Config) {
				m := c.Models["local"]
				m.MaxInputTokens = 100
				m.MaxOutputTokens = 200
				c.Models["local"] = m
			},
			wantErr: "must not exceed max_input_tokens",
		},
		{
			name:    "unknown playground default",
			mutate:  func(c *Config) { c.Playground.DefaultModel = "missing" },
			wantErr: "playground.default_model",
		},
		{
			name:    "missing remix template",
			mutate:  func(c *Config) { c.PromptTemplates.Remix = "" },
			wantErr: "prompt_templates.remix",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Config.Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Config.Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{
		Models: map[string]ModelConfig{
			"m": {BaseURL: "https://api.example.com/v1"},
		},
	}
	applyDefaults(&cfg)

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Conversation.StoreCapacity != 100 {
		t.Errorf("StoreCapacity = %d, want 100", cfg.Conversation.StoreCapacity)
	}
	if cfg.Attachments.MaxFileSizeMB != 10 {
		t.Errorf("MaxFileSizeMB = %d, want 10", cfg.Attachments.MaxFileSizeMB)
	}

	m := cfg.Models["m"]
	if m.Provider != ProviderOpenAI {
		t.Errorf("Provider = %q, want %q", m.Provider, ProviderOpenAI)
	}
	if m.ModelName != "m" {
		t.Errorf("ModelName = %q, want the model id", m.ModelName)
	}
	if m.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", m.MaxRetries)
	}
	if cfg.PromptTemplates.Remix == "" || cfg.PromptTemplates.SocialPost == "" {
		t.Error("default prompt templates were not applied")
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if err := cfg.ValidateInputs(); err != nil {
		t.Fatalf("Default().ValidateInputs() error = %v", err)
	}
	if _, ok := cfg.Models[DefaultConversationModel]; !ok {
		t.Errorf("default catalog is missing %q", DefaultConversationModel)
	}
}

func TestCatalog_SortedWithFallbackName(t *testing.T) {
	cfg := Config{Models: map[string]ModelConfig{
		"zeta":  {DisplayName: "Zeta"},
		"alpha": {},
	}}

	got := cfg.Catalog()
	if len(got) != 2 {
		t.Fatalf("Catalog() returned %d entries, want 2", len(got))
	}
	if got[0].ID != "alpha" || got[1].ID != "zeta" {
		t.Errorf("Catalog() order = [%s %s], want [alpha zeta]", got[0].ID, got[1].ID)
	}
	if got[0].Name != "alpha" {
		t.Errorf("Catalog()[0].Name = %q, want id fallback", got[0].Name)
	}
	if got[1].Name != "Zeta" {
		t.Errorf("Catalog()[1].Name = %q, want Zeta", got[1].Name)
	}
}

func TestParse_TOMLAndYAML(t *testing.T) {
	tomlDoc := `
[server]
addr = ":9090"

[models.local]
base_url = "http://localhost:8000/v1"
model_name = "llama"
`
	yamlDoc := `
server:
  addr: ":9090"
models:
  local:
    base_url: "http://localhost:8000/v1"
    model_name: "llama"
`
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"toml", tomlDoc, FormatTOML},
		{"yaml", yamlDoc, FormatYAML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.data), tt.format)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if cfg.Server.Addr != ":9090" {
				t.Errorf("Server.Addr = %q, want :9090", cfg.Server.Addr)
			}
			if got := cfg.Models["local"].ModelName; got != "llama" {
				t.Errorf("Models[local].ModelName = %q, want llama", got)
			}
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"config.toml": FormatTOML,
		"config.yaml": FormatYAML,
		"CONFIG.YML":  FormatYAML,
		"config":      FormatTOML,
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestLoad_AllowMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")

	if _, _, err := Load(missing, false); err == nil {
		t.Error("Load() with missing file expected error, got nil")
	}

	cfg, secrets, err := Load(missing, true)
	if err != nil {
		t.Fatalf("Load(allowMissing) error = %v", err)
	}
	if cfg == nil || secrets == nil {
		t.Fatal("Load(allowMissing) returned nil config or secrets")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chorus.yaml")
	doc := "models:\n  local:\n    base_url: http://localhost:1234/v1\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := cfg.Models["local"]; !ok {
		t.Error("Load() did not decode models.local")
	}
}

func TestLoadSecrets(t *testing.T) {
	t.Setenv("API_KEY", "generic-key")
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	secrets, err := LoadSecrets()
	if err != nil {
		t.Fatalf("LoadSecrets() error = %v", err)
	}

	tests := []struct {
		name string
		mc   ModelConfig
		want string
	}{
		{"openai host", ModelConfig{Provider: ProviderOpenAI, BaseURL: "https://api.openai.com/v1"}, "openai-key"},
		{"gemini provider", ModelConfig{Provider: ProviderGemini}, "google-key"},
		{"local falls back to generic", ModelConfig{Provider: ProviderOpenAI, BaseURL: "http://localhost:8080/v1"}, "generic-key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := secrets.GetAPIKey(tt.mc); got != tt.want {
				t.Errorf("GetAPIKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetProviderName(t *testing.T) {
	tests := []struct {
		baseURL string
		want    string
	}{
		{"https://api.openai.com/v1", "openai"},
		{"https://integrate.api.nvidia.com/v1", "nvidia"},
		{"https://api.together.xyz/v1", "together"},
		{"https://generativelanguage.googleapis.com", "gemini"},
		{"http://localhost:8080/v1", "http://localhost:8080/v1"},
	}
	for _, tt := range tests {
		if got := GetProviderName(tt.baseURL); got != tt.want {
			t.Errorf("GetProviderName(%q) = %q, want %q", tt.baseURL, got, tt.want)
		}
	}
}
