package util

import (
	"regexp"
	"strings"
)

var (
	// Matches <think> and <thinking> blocks
	thinkTagRegex = regexp.MustCompile(`(?i)<think(?:ing)?>([\s\S]*?)</think(?:ing)?>`)
	// Some Chinese models use these
	chineseThinkTagRegex = regexp.MustCompile(`(?i)<思考>([\s\S]*?)</思考>`)
	// An opening tag whose block never closed (stream cut off mid-reasoning)
	unclosedThinkRegex = regexp.MustCompile(`(?i)<(?:think(?:ing)?|思考)>[\s\S]*$`)
)

// ContainsThinkTags checks if the response contains think/reasoning tags
func ContainsThinkTags(response string) bool {
	return thinkTagRegex.MatchString(response) || chineseThinkTagRegex.MatchString(response)
}

// ExtractThinkContent returns the content of all reasoning blocks, or "" if there are none
func ExtractThinkContent(response string) string {
	var thinkContent []string
	for _, re := range []*regexp.Regexp{thinkTagRegex, chineseThinkTagRegex} {
		for _, match := range re.FindAllStringSubmatch(response, -1) {
			if len(match) > 1 {
				thinkContent = append(thinkContent, strings.TrimSpace(match[1]))
			}
		}
	}
	return strings.Join(thinkContent, "\n\n")
}

// StripThinkTags removes reasoning blocks, including a trailing unclosed one
func StripThinkTags(response string) string {
	result := thinkTagRegex.ReplaceAllString(response, "")
	result = chineseThinkTagRegex.ReplaceAllString(result, "")
	result = unclosedThinkRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// SplitThinkAndAnswer returns (thinkContent, answer)
func SplitThinkAndAnswer(response string) (string, string) {
	return ExtractThinkContent(response), StripThinkTags(response)
}
