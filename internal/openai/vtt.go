package openai

import (
	"regexp"
	"strings"
)

var (
	tagPattern    = regexp.MustCompile(`<[^>]+>`)
	spacePattern  = regexp.MustCompile(`\s+`)
	cueNumPattern = regexp.MustCompile(`^\d+$`)
)

// CleanVTT reduces a WebVTT subtitle document to plain transcript text.
// Header lines, timestamp lines, cue numbers and the positioning line that
// follows a cue number are dropped, inline tags are stripped, and runs of
// whitespace collapse to single spaces. Consecutive duplicate lines, which
// auto-generated captions emit for rolling cues, are kept only once.
func CleanVTT(content string) string {
	lines := strings.Split(content, "\n")

	var parts []string
	var prev string
	skipNext := false
	for _, line := range lines {
		if skipNext {
			skipNext = false
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "WEBVTT") ||
			strings.HasPrefix(line, "Kind:") ||
			strings.HasPrefix(line, "Language:") {
			continue
		}
		if strings.Contains(line, "-->") {
			continue
		}
		if cueNumPattern.MatchString(line) {
			skipNext = true
			continue
		}
		line = tagPattern.ReplaceAllString(line, "")
		line = spacePattern.ReplaceAllString(line, " ")
		line = strings.TrimSpace(line)
		if line == "" || line == prev {
			continue
		}
		parts = append(parts, line)
		prev = line
	}
	return strings.Join(parts, " ")
}
