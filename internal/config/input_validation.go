package config

import (
	"fmt"
	"net/url"
	"unicode"

	"github.com/lamim/chorus/internal/util"
)

const (
	// MaxModelIDLength is the maximum allowed length for model ids and names
	MaxModelIDLength = 100

	// MaxTemplateSize is the maximum allowed size for template content
	MaxTemplateSize = 50 * 1024 // 50KB

	// MaxDisplayTextLength bounds catalog display names and descriptions
	MaxDisplayTextLength = 500
)

// ValidateInputs performs additional validation on user-controllable fields.
// Model ids and names end up in URLs, subjects and logs, so control characters are rejected.
func (c *Config) ValidateInputs() error {
	for id, mc := range c.Models {
		if err := validateModelName(id, id); err != nil {
			return err
		}
		if err := validateModelName(mc.ModelName, id); err != nil {
			return err
		}
		if len(mc.DisplayName) > MaxDisplayTextLength || len(mc.Description) > MaxDisplayTextLength {
			return fmt.Errorf("model '%s' display text exceeds maximum length of %d", id, MaxDisplayTextLength)
		}

		if mc.BaseURL != "" {
			if err := validateBaseURL(mc.BaseURL, id, allowedSchemes(mc.Provider)); err != nil {
				return err
			}
		}
	}

	// Validate template sizes
	if err := c.validateTemplateSizes(); err != nil {
		return err
	}

	return nil
}

func allowedSchemes(provider string) []string {
	if provider == ProviderNATS {
		return []string{"nats", "tls"}
	}
	return []string{"http", "https"}
}

// validateModelName checks model name for security issues
func validateModelName(modelName, configKey string) error {
	if len(modelName) > MaxModelIDLength {
		return fmt.Errorf("model '%s' name exceeds maximum length of %d (got %d)",
			configKey, MaxModelIDLength, len(modelName))
	}

	// Check for control characters
	if containsControlChars(modelName) {
		return fmt.Errorf("model '%s' name contains invalid control characters", configKey)
	}

	return nil
}

// validateBaseURL checks that the base URL is properly formatted and safe
func validateBaseURL(baseURL, configKey string, schemes []string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("model '%s' has invalid base_url: %w", configKey, err)
	}

	ok := false
	for _, s := range schemes {
		if u.Scheme == s {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("model '%s' base_url must use one of %v schemes (got %s)",
			configKey, schemes, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("model '%s' base_url must have a host", configKey)
	}

	return nil
}

// validateTemplateSizes checks that templates are within reasonable size limits
// and that the rendered ones parse
func (c *Config) validateTemplateSizes() error {
	templates := []struct {
		name     string
		value    string
		rendered bool
	}{
		{"remix", c.PromptTemplates.Remix, true},
		{"social_post", c.PromptTemplates.SocialPost, true},
		{"remix_system", c.PromptTemplates.RemixSystem, false},
		{"social_post_system", c.PromptTemplates.SocialPostSystem, false},
	}

	for _, tmpl := range templates {
		if len(tmpl.value) > MaxTemplateSize {
			return fmt.Errorf("template '%s' exceeds maximum size of %d bytes (got %d)",
				tmpl.name, MaxTemplateSize, len(tmpl.value))
		}
		if tmpl.rendered && tmpl.value != "" {
			if err := util.ValidateTemplate(tmpl.value); err != nil {
				return fmt.Errorf("template '%s': %w", tmpl.name, err)
			}
		}
	}

	return nil
}

// containsControlChars checks if a string contains control characters
// (excluding newlines, tabs, and carriage returns which are acceptable)
func containsControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return true
		}
	}
	return false
}
