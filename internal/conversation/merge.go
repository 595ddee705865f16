package conversation

// SystemPromptKey is the context field that survives a merge unless the incoming context sets it
const SystemPromptKey = "systemPrompt"

// Merge shallow-merges incoming over existing. Every incoming key wins, except
// systemPrompt, which only replaces the existing value when incoming supplies a non-nil one.
// Neither argument is modified.
func Merge(existing, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}

	if sp, ok := incoming[SystemPromptKey]; ok && sp != nil {
		merged[SystemPromptKey] = sp
	} else if sp, ok := existing[SystemPromptKey]; ok {
		merged[SystemPromptKey] = sp
	} else {
		delete(merged, SystemPromptKey)
	}
	return merged
}

// SystemPrompt returns the string system prompt carried by ctx, if any
func SystemPrompt(ctx map[string]any) string {
	if s, ok := ctx[SystemPromptKey].(string); ok {
		return s
	}
	return ""
}
