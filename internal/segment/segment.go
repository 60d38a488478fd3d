// Package segment splits normalized text into sentence-like units.
package segment

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Minimum sentence lengths used by the two acquisition paths.
const (
	MinCrawlChars = 30
	MinPaperChars = 40
)

// boundary matches terminal punctuation followed by whitespace. The
// punctuation stays with the sentence on its left.
var boundary = regexp.MustCompile(`[.!?]\s+`)

// Split cuts text at sentence boundaries and drops units shorter than
// minChars runes. Order is preserved.
func Split(text string, minChars int) []string {
	var out []string
	start := 0
	for _, loc := range boundary.FindAllStringIndex(text, -1) {
		out = appendUnit(out, text[start:loc[0]+1], minChars)
		start = loc[1]
	}
	return appendUnit(out, text[start:], minChars)
}

func appendUnit(out []string, unit string, minChars int) []string {
	unit = strings.TrimSpace(unit)
	if unit == "" || utf8.RuneCountInString(unit) < minChars {
		return out
	}
	return append(out, unit)
}
