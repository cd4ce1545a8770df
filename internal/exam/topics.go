package exam

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	topicSplitRe   = regexp.MustCompile(`[\n,:;]+`)
	topicBulletRe  = regexp.MustCompile(`^(?:[-*+•#>]+|\d+[.)]|[a-zA-Z][.)](?:\s|$))\s*`)
	topicMarkupRe  = regexp.MustCompile("[*_`~]+")
	topicHeadingRe = regexp.MustCompile(`(?i)\b(?:topics?|chapters?)\b`)
)

// CleanTopics turns a model's topic listing into a list of distinct topics.
// Items may be separated by newlines, commas, colons or semicolons and may
// carry markdown emphasis, bullets or numbering. Headings that mention
// topics or chapters and single-character fragments are dropped.
func CleanTopics(raw string) []string {
	var topics []string
	seen := make(map[string]bool)
	for _, part := range topicSplitRe.Split(raw, -1) {
		t := strings.TrimSpace(topicMarkupRe.ReplaceAllString(part, ""))
		for {
			stripped := strings.TrimSpace(topicBulletRe.ReplaceAllString(t, ""))
			if stripped == t {
				break
			}
			t = stripped
		}
		t = strings.Trim(t, ".\"' ")
		if utf8.RuneCountInString(t) <= 1 || topicHeadingRe.MatchString(t) {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		topics = append(topics, t)
	}
	return topics
}
