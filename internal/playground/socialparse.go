package playground

import (
	"regexp"
	"strings"

	"github.com/lamim/chorus/internal/util"
)

var (
	// Tweet 1:, Post 2:, Caption 3:, Part 4:, #5, 6. at the start of a line, optionally bold
	numberedMarker = regexp.MustCompile(`(?im)^[ \t]*(?:\*\*)?[ \t]*(?:(?:tweet|post|caption|part)[ \t]*\d+[ \t]*:|#\d+\b[:.)]?|\d+\.(?:[ \t]|$))(?:\*\*)?`)

	// the named subset of numberedMarker; when present, bare "1." lines are post content
	labelledMarker = regexp.MustCompile(`(?im)^[ \t]*(?:\*\*)?[ \t]*(?:tweet|post|caption|part)[ \t]*\d+[ \t]*:(?:\*\*)?`)

	bulletMarker = regexp.MustCompile(`^[ \t]*(?:[-•]|\*(?:[ \t]|$))[ \t]*`)

	// a label or count opening a paragraph: "Option A:", "Thread 1/3", "1/3", "(2)"
	paragraphLabel = regexp.MustCompile(`(?i)^(?:\*\*)?[ \t]*(?:(?:option|version|variant|thread|tweet|post|caption|part)(?:[ \t]*\d+|[ \t]+[a-z])[ \t]*:|(?:thread[ \t]*)?\d+[ \t]*/[ \t]*\d+\b[:.)]?|\(\d+\))(?:\*\*)?`)

	blankLines = regexp.MustCompile(`\n[ \t]*\n`)
)

// ParseSocialPosts splits a generated response into individual posts.
// It tries, in order: numbered markers, bullets, labelled blank-line
// paragraphs, and finally the whole text as one post.
func ParseSocialPosts(raw string) []string {
	text := strings.TrimSpace(util.StripThinkTags(strings.ReplaceAll(raw, "\r\n", "\n")))
	if text == "" {
		return nil
	}

	if posts := splitNumbered(text); len(posts) > 0 {
		return posts
	}
	if posts := splitBullets(text); len(posts) > 0 {
		return posts
	}
	if posts := splitParagraphs(text); len(posts) > 0 {
		return posts
	}
	if post := cleanPost(text); post != "" {
		return []string{post}
	}
	return nil
}

func splitNumbered(text string) []string {
	locs := labelledMarker.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		locs = numberedMarker.FindAllStringIndex(text, -1)
	}
	if len(locs) == 0 {
		return nil
	}

	var posts []string
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if post := cleanPost(text[loc[1]:end]); post != "" {
			posts = append(posts, post)
		}
	}
	return posts
}

func splitBullets(text string) []string {
	var (
		posts   []string
		current []string
		found   bool
	)
	flush := func() {
		if post := cleanPost(strings.Join(current, "\n")); post != "" {
			posts = append(posts, post)
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if loc := bulletMarker.FindStringIndex(line); loc != nil && !strings.HasPrefix(strings.TrimSpace(line), "**") {
			if found {
				flush()
			}
			found = true
			current = append(current, line[loc[1]:])
			continue
		}
		if found {
			current = append(current, line)
		}
	}
	if !found {
		return nil
	}
	flush()
	return posts
}

func splitParagraphs(text string) []string {
	paras := blankLines.Split(text, -1)
	if len(paras) < 2 {
		return nil
	}

	labelled := false
	for _, p := range paras {
		if paragraphLabel.MatchString(strings.TrimSpace(p)) {
			labelled = true
			break
		}
	}
	if !labelled {
		return nil
	}

	var posts []string
	for _, p := range paras {
		p = strings.TrimSpace(p)
		if loc := paragraphLabel.FindStringIndex(p); loc != nil {
			p = p[loc[1]:]
		}
		if post := cleanPost(p); post != "" {
			posts = append(posts, post)
		}
	}
	return posts
}

// cleanPost trims whitespace and surrounding bold markers
func cleanPost(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "**")
	s = strings.TrimSuffix(s, "**")
	return strings.TrimSpace(s)
}
