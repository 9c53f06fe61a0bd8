package search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {}, "or": {},
	"the": {}, "to": {}, "with": {}, "el": {}, "la": {}, "los": {}, "las": {}, "de": {},
	"del": {}, "en": {}, "un": {}, "una": {}, "y": {},
}

// Tokenize lowercases s and splits it on anything that is not a letter or a
// digit. Stop words and single-rune tokens are dropped.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// maxEdits is the fuzzy tolerance for a query term.
func maxEdits(term string) int {
	if utf8.RuneCountInString(term) <= 5 {
		return 1
	}
	return 2
}
