// Package slug derives comparison keys from user-entered names, so that
// "Eating Out", "eating-out" and " EATING  OUT " collide.
package slug

import (
	"regexp"
	"strings"
	"unicode"
)

const maxLen = 40

var reSlug = regexp.MustCompile(`^[\p{Ll}\p{Nd}_]{1,40}$`)

// IsSlug reports whether s is already in slug form.
func IsSlug(s string) bool {
	return reSlug.MatchString(s)
}

// Slugify lowercases s, maps every run of non letter/digit runes to a single '_',
// trims leading and trailing '_' and caps the result at 40 runes.
func Slugify(s string) string {
	out := make([]rune, 0, len(s))
	pendingSep := false
	for _, r := range strings.ToLower(s) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			pendingSep = len(out) > 0
			continue
		}
		if pendingSep {
			if len(out)+1 >= maxLen {
				break
			}
			out = append(out, '_')
			pendingSep = false
		}
		out = append(out, r)
		if len(out) >= maxLen {
			break
		}
	}
	return string(out)
}

// Equal reports whether a and b name the same thing.
func Equal(a, b string) bool {
	return Slugify(a) == Slugify(b)
}
