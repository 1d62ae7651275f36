// Package textnorm prepares policy text for sentence-level scoring.
package textnorm

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinSentenceRunes is the length a trimmed sentence must exceed to be kept.
const MinSentenceRunes = 10

var (
	spaceRe    = regexp.MustCompile(`[\s\p{Zs}]+`)
	sentenceRe = regexp.MustCompile(`[^.!?]*[.!?]+|[^.!?]+$`)
)

// Normalize lower-cases text, collapses whitespace runs and trims.
func Normalize(raw string) string {
	return strings.ToLower(CollapseSpace(raw))
}

// CollapseSpace collapses whitespace runs to a single space and trims, keeping case.
func CollapseSpace(raw string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(raw, " "))
}

// SplitSentences splits on terminal punctuation. A trailing fragment without
// punctuation is a sentence of its own. Short fragments are dropped as noise.
func SplitSentences(text string) []string {
	matches := sentenceRe.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if utf8.RuneCountInString(m) <= MinSentenceRunes {
			continue
		}
		out = append(out, m)
	}
	return out
}
