package util

import (
	"testing"
)

func TestContainsThinkTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"has think tags", "<think>Let me reason about this</think>The answer is 42", true},
		{"has thinking tags", "<thinking>Step by step</thinking>Final answer", true},
		{"no think tags", "Just a regular response", false},
		{"has Chinese think tags", "<思考>让我想想</思考>答案是42", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContainsThinkTags(tt.input); got != tt.expected {
				t.Errorf("ContainsThinkTags() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStripThinkTags(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no tags", "plain answer", "plain answer"},
		{"leading block", "<think>reasoning</think>\nThe answer is 42", "The answer is 42"},
		{"multiple blocks", "<think>a</think>one <thinking>b</thinking>two", "one two"},
		{"unclosed block", "Partial answer <think>still thinking when the stream ended", "Partial answer"},
		{"chinese", "<思考>想</思考>答案", "答案"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripThinkTags(tt.input); got != tt.want {
				t.Errorf("StripThinkTags() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitThinkAndAnswer(t *testing.T) {
	think, answer := SplitThinkAndAnswer("<think>  2+2 is 4  </think>Four.")
	if think != "2+2 is 4" {
		t.Errorf("think = %q, want %q", think, "2+2 is 4")
	}
	if answer != "Four." {
		t.Errorf("answer = %q, want %q", answer, "Four.")
	}
}
