package model

import (
	"regexp"
	"strings"
)

var (
	// Hyphens survive stripping so that an already-normalized key
	// normalizes to itself.
	topicStripRe   = regexp.MustCompile(`[^\w\s-]`)
	topicJoinRe    = regexp.MustCompile(`[\s-]+`)
	bracesRe       = regexp.MustCompile(`[{}\[\]]`)
	blankLinesRe   = regexp.MustCompile(`\n\n+`)
	maxTopicLength = 200
)

// NormalizeTopic converts a raw topic string into its canonical store and
// cache key: lowercased, trimmed, punctuation stripped, whitespace runs
// joined with single hyphens. Idempotent.
func NormalizeTopic(topic string) string {
	t := strings.ToLower(strings.TrimSpace(topic))
	t = topicStripRe.ReplaceAllString(t, "")
	t = strings.Trim(t, " \t\n-")
	return topicJoinRe.ReplaceAllString(t, "-")
}

// SanitizeTopicInput bounds and cleans raw user input before it reaches a
// prompt: trims, caps length, strips braces and brackets, collapses blank
// line runs.
func SanitizeTopicInput(input string) string {
	t := strings.TrimSpace(input)
	if len(t) > maxTopicLength {
		t = t[:maxTopicLength]
	}
	t = bracesRe.ReplaceAllString(t, "")
	return blankLinesRe.ReplaceAllString(t, "\n")
}
