package models

import "strings"

// SummaryMaxRunes caps the derived note summary.
const SummaryMaxRunes = 180

// Summarize returns the first line of content, truncated to SummaryMaxRunes.
func Summarize(content string) string {
	line, _, _ := strings.Cut(content, "\n")
	line = strings.TrimSuffix(line, "\r")
	return Truncate(line, SummaryMaxRunes)
}

// WordCount counts whitespace-separated fields.
func WordCount(content string) int {
	return len(strings.Fields(content))
}

// Truncate cuts s to at most max runes. It never splits a multi-byte rune.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
