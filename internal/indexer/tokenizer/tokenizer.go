// Package tokenizer provides text tokenisation for the search engine.
// It lower-cases input, turns everything except word characters, whitespace
// and hyphens into spaces, and splits on whitespace. There is no stemming and
// no stop-word removal. The index builder and the query path must both use
// this package.
package tokenizer

import (
	"strings"
	"unicode"
)

// Normalize returns the canonical form of text: lower-cased, every rune that
// is not a word character (letter, number, underscore), whitespace or '-'
// replaced by a space, whitespace runs collapsed to one space, trimmed.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range strings.ToLower(text) {
		if !isWordRune(r) && r != '-' {
			pendingSpace = true
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// Tokenize normalizes text and splits it into terms. Empty input yields an
// empty, non-nil slice.
func Tokenize(text string) []string {
	normalized := Normalize(text)
	if normalized == "" {
		return []string{}
	}
	return strings.Split(normalized, " ")
}

// TermSet returns the distinct terms of text.
func TermSet(text string) map[string]struct{} {
	tokens := Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// isWordRune reports whether r belongs to the \w class: Unicode letters,
// Unicode numbers and underscore. Whitespace is a separator like any other
// non-word rune.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
