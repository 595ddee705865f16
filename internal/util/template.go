package util

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// Directives that could pull in other templates or invoke functions
var forbiddenDirectives = []string{"{{call", "{{define", "{{template", "{{block"}

// parsed templates keyed by source text
var templateCache sync.Map

// ValidateTemplate parses tmpl and rejects forbidden directives
func ValidateTemplate(tmpl string) error {
	_, err := parseTemplate(tmpl)
	return err
}

func parseTemplate(tmpl string) (*template.Template, error) {
	if t, ok := templateCache.Load(tmpl); ok {
		return t.(*template.Template), nil
	}

	for _, directive := range forbiddenDirectives {
		if strings.Contains(tmpl, directive) {
			return nil, fmt.Errorf("template contains forbidden directive: %s", directive)
		}
	}

	t, err := template.New("prompt").
		Option("missingkey=error"). // Fail on missing keys to prevent silent errors
		Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	templateCache.Store(tmpl, t)
	return t, nil
}

// RenderTemplate renders a prompt template with data (a struct or map)
func RenderTemplate(tmpl string, data any) (string, error) {
	t, err := parseTemplate(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// TruncateString truncates a string to maxLen runes (Unicode-safe)
func TruncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
