package config

// DefaultConversationModel is used by the conversational API when a request names no model
const DefaultConversationModel = "gemini-2.0-flash"

// DefaultModels returns the built-in Gemini catalog used when no models are configured
func DefaultModels() map[string]ModelConfig {
	return map[string]ModelConfig{
		"gemini-2.0-flash": {
			Provider:        ProviderGemini,
			ModelName:       "gemini-2.0-flash",
			DisplayName:     "Gemini 2.0 Flash",
			Description:     "Fast multimodal model for everyday tasks",
			MaxInputTokens:  1048576,
			MaxOutputTokens: 8192,
			SupportsImages:  true,
			SupportsVideo:   true,
			SupportsAudio:   true,
		},
		"gemini-2.0-flash-lite": {
			Provider:        ProviderGemini,
			ModelName:       "gemini-2.0-flash-lite",
			DisplayName:     "Gemini 2.0 Flash-Lite",
			Description:     "Cost-efficient model optimized for low latency",
			MaxInputTokens:  1048576,
			MaxOutputTokens: 8192,
			SupportsImages:  true,
			SupportsVideo:   true,
			SupportsAudio:   true,
		},
		"gemini-1.5-pro": {
			Provider:        ProviderGemini,
			ModelName:       "gemini-1.5-pro",
			DisplayName:     "Gemini 1.5 Pro",
			Description:     "Complex reasoning over long context",
			MaxInputTokens:  2097152,
			MaxOutputTokens: 8192,
			SupportsImages:  true,
			SupportsVideo:   true,
			SupportsAudio:   true,
		},
		"gemini-1.5-flash": {
			Provider:        ProviderGemini,
			ModelName:       "gemini-1.5-flash",
			DisplayName:     "Gemini 1.5 Flash",
			Description:     "Fast and versatile performance across tasks",
			MaxInputTokens:  1048576,
			MaxOutputTokens: 8192,
			SupportsImages:  true,
			SupportsVideo:   true,
			SupportsAudio:   true,
		},
	}
}

// DefaultAllowedExtensions returns the attachment extension allow-list
func DefaultAllowedExtensions() []string {
	return []string{".txt", ".md", ".markdown", ".pdf", ".doc", ".docx", ".xls", ".xlsx", ".jpg", ".jpeg", ".png", ".gif"}
}

// DefaultAllowedMIMETypes returns the attachment MIME type allow-list
func DefaultAllowedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/markdown",
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"image/jpeg",
		"image/png",
		"image/gif",
	}
}

// GetDefaultRemixTemplate returns the default template for synthesizing slot outputs.
// Data: .Prompt (string), .Responses ([]{Key, Text})
func GetDefaultRemixTemplate() string {
	return `You are given several responses to the same prompt, produced independently.

ORIGINAL PROMPT:
{{.Prompt}}

RESPONSES:
{{range .Responses}}
--- Response {{.Key}} ---
{{.Text}}
{{end}}
Combine the best parts of these responses into a synthesized and curated response.
Keep accurate details that appear in any response, resolve contradictions in favour of the best-supported answer, and remove repetition.
Answer the original prompt directly; do not mention that multiple responses were combined.`
}

// GetDefaultSocialPostTemplate returns the default template for social post generation.
// Data: .Instruction, .Prompt, .Reference (may be empty)
func GetDefaultSocialPostTemplate() string {
	return `{{.Instruction}}

TOPIC:
{{.Prompt}}
{{if .Reference}}
REFERENCE CONTENT:
{{.Reference}}
{{end}}
Return only the posts, each starting with its label and number on a new line.`
}
