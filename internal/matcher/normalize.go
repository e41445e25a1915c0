package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lower = cases.Lower(language.Und)

// Normalize lowercases s, replaces every rune that is not a letter, digit or
// whitespace with a space, collapses whitespace runs and trims the result.
// Underscores count as punctuation.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, lower.String(s))

	return strings.Join(strings.Fields(mapped), " ")
}

// NormalizePtr normalizes an optional value; nil normalizes to "".
func NormalizePtr(s *string) string {
	if s == nil {
		return ""
	}
	return Normalize(*s)
}
