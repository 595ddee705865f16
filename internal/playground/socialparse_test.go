package playground

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseSocialPosts(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "tweet labels",
			raw:  "Tweet 1: Hello\n\nTweet 2: World",
			want: []string{"Hello", "World"},
		},
		{
			name: "bold labels with preamble",
			raw:  "Here are your posts:\n\n**Post 1:** First one\n**Post 2:** Second one\n",
			want: []string{"First one", "Second one"},
		},
		{
			name: "multiline numbered items",
			raw:  "1. Line one\ncontinues here\n2. Line two",
			want: []string{"Line one\ncontinues here", "Line two"},
		},
		{
			name: "hash numbering",
			raw:  "#1 Alpha\n#2 Beta",
			want: []string{"Alpha", "Beta"},
		},
		{
			name: "parts and captions",
			raw:  "Part 1: intro\nPart 2: body\nCaption 3: end",
			want: []string{"intro", "body", "end"},
		},
		{
			name: "bullets",
			raw:  "- first\n• second\n* third",
			want: []string{"first", "second", "third"},
		},
		{
			name: "labelled paragraphs",
			raw:  "Option A: sunny days\n\nOption B: rainy nights",
			want: []string{"sunny days", "rainy nights"},
		},
		{
			name: "colon inside a paragraph is kept",
			raw:  "Option A: Big news today!\n\nPro tip: stay hydrated",
			want: []string{"Big news today!", "Pro tip: stay hydrated"},
		},
		{
			name: "word and colon is not a label",
			raw:  "Big news today!\n\nPro tip: stay hydrated",
			want: []string{"Big news today!\n\nPro tip: stay hydrated"},
		},
		{
			name: "heading word is not a label",
			raw:  "Parts: three\n\nSteps: two",
			want: []string{"Parts: three\n\nSteps: two"},
		},
		{
			name: "thread counts",
			raw:  "1/2 Launch day\n\n2/2 Thanks all",
			want: []string{"Launch day", "Thanks all"},
		},
		{
			name: "numbered list inside tweet",
			raw:  "Tweet 1: Top tips:\n1. Drink water\n2. Sleep\n\nTweet 2: Bye",
			want: []string{"Top tips:\n1. Drink water\n2. Sleep", "Bye"},
		},
		{
			name: "unlabelled paragraphs stay together",
			raw:  "First paragraph.\n\nSecond paragraph.",
			want: []string{"First paragraph.\n\nSecond paragraph."},
		},
		{
			name: "whole text fallback strips bold",
			raw:  "**Just one post**",
			want: []string{"Just one post"},
		},
		{
			name: "hashtag is not a marker",
			raw:  "#100DaysOfCode starts today",
			want: []string{"#100DaysOfCode starts today"},
		},
		{
			name: "reasoning removed",
			raw:  "<think>plan</think>Tweet 1: A\nTweet 2: B",
			want: []string{"A", "B"},
		},
		{
			name: "empty",
			raw:  "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSocialPosts(tt.raw)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseSocialPosts(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}
