// Package svg handles SVG markup as text: spotting it inside arbitrary
// clipboard strings, working out how large it wants to be, and painting a
// background behind it before rasterization.
//
// Nothing here parses the document tree. The root <svg> start tag is located
// with a regular expression, which is all the sizing and background logic
// needs and keeps the cost flat for documents with large embedded images.
package svg

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	openTagRE  = regexp.MustCompile(`(?i)<svg\b`)
	closeTagRE = regexp.MustCompile(`(?i)</svg\s*>`)
)

// Normalize extracts the SVG document embedded in text: everything from the
// first case-insensitive "<svg" through the last "</svg>" inclusive, with
// surrounding whitespace trimmed.
//
// It reports false when either tag is missing, the extracted markup is empty,
// or text is longer than maxChars characters (maxChars <= 0 disables the
// length guard).
func Normalize(text string, maxChars int) (string, bool) {
	if text == "" || TooLong(text, maxChars) {
		return "", false
	}
	open := openTagRE.FindStringIndex(text)
	if open == nil {
		return "", false
	}
	closes := closeTagRE.FindAllStringIndex(text, -1)
	if len(closes) == 0 {
		return "", false
	}
	end := closes[len(closes)-1][1]
	if end <= open[0] {
		return "", false
	}
	out := strings.TrimSpace(text[open[0]:end])
	if out == "" {
		return "", false
	}
	return out, true
}

// TooLong reports whether text holds more than maxChars characters.
// maxChars <= 0 means unlimited.
func TooLong(text string, maxChars int) bool {
	if maxChars <= 0 || len(text) <= maxChars {
		return false
	}
	return utf8.RuneCountInString(text) > maxChars
}
