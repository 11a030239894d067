// Package textclean normalizes free-form model output into the shapes the
// course pipeline stores.
package textclean

import (
	"regexp"
	"strings"
)

var (
	listItemRe   = regexp.MustCompile(`^\s*(?:\d+\s*[.):-]|[-*•+])\s+(.*\S)\s*$`)
	headingRe    = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	quoteRe      = regexp.MustCompile(`(?m)^\s{0,3}>\s?`)
	ruleRe       = regexp.MustCompile(`(?m)^\s*(?:-{3,}|\*{3,}|_{3,})\s*$`)
	boldRe       = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	italicRe     = regexp.MustCompile(`(^|[^*\w])\*([^*\n]+)\*`)
	codeRe       = regexp.MustCompile("`([^`]*)`")
	linkRe       = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	fenceOpenRe  = regexp.MustCompile("^```[a-zA-Z0-9_-]*\\s*")
)

// ParseList turns model output such as "1. Foo\n2. Bar" into ["Foo", "Bar"].
// Numbered and bulleted items are preferred; when the text has none, every
// non-empty line is an item. Markdown inside items is stripped.
func ParseList(s string) []string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")

	var items []string
	for _, line := range lines {
		if m := listItemRe.FindStringSubmatch(line); m != nil {
			if item := cleanItem(m[1]); item != "" {
				items = append(items, item)
			}
		}
	}
	if len(items) > 0 {
		return items
	}

	for _, line := range lines {
		if item := cleanItem(line); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func cleanItem(s string) string {
	return strings.TrimSpace(StripMarkdown(s))
}

// JoinLines is the stored form of a list: one item per line.
func JoinLines(items []string) string {
	return strings.Join(items, "\n")
}

// StripMarkdown removes markdown markup while keeping the text and line
// structure.
func StripMarkdown(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = StripFences(s)
	s = ruleRe.ReplaceAllString(s, "")
	s = headingRe.ReplaceAllString(s, "")
	s = quoteRe.ReplaceAllString(s, "")
	s = linkRe.ReplaceAllString(s, "$1")
	s = boldRe.ReplaceAllString(s, "$1$2")
	s = italicRe.ReplaceAllString(s, "$1$2")
	s = codeRe.ReplaceAllString(s, "$1")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// StripFences removes a surrounding ``` code fence, with or without a
// language tag.
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = fenceOpenRe.ReplaceAllString(t, "")
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

// ExtractJSON returns the JSON value embedded in model output: fences are
// removed and any prose before the first bracket or after the last matching
// bracket is dropped. Input without a bracket is returned trimmed.
func ExtractJSON(s string) string {
	t := strings.TrimSpace(StripFences(s))
	start := strings.IndexAny(t, "{[")
	if start < 0 {
		return t
	}
	closer := byte('}')
	if t[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(t, closer)
	if end < start {
		return t[start:]
	}
	return t[start : end+1]
}
