// Package lucene builds Lucene-style boolean query fragments from raw search
// phrases. All functions are pure: identical inputs always produce identical
// output, with no shared state.
package lucene

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Options control the matching strategies applied per token.
type Options struct {
	// Fuzzy appends an edit-distance suffix (token~d) when the token is long
	// enough to permit any fuzziness.
	Fuzzy bool
	// Wildcard appends a prefix-match suffix (token*) to the last token of
	// the phrase, the instant-search convention.
	Wildcard bool
}

// reserved is the full set of characters the Lucene query parser treats
// specially. Escaping covers every member; && and || are escaped per
// character.
const reserved = `+-&|!(){}[]^"~*?:\/`

// Compile turns a raw phrase into one escaped boolean query fragment scoped
// to field, e.g. `artist:(Adele~1)`. An empty phrase compiles to the empty
// string with no field scoping.
func Compile(field, phrase string, opts Options) string {
	tokens := strings.Fields(strings.TrimSpace(phrase))
	if len(tokens) == 0 {
		return ""
	}

	fragments := make([]string, 0, len(tokens))
	for i, token := range tokens {
		escaped := Escape(token)
		wildcard := opts.Wildcard && i == len(tokens)-1
		distance := FuzzyDistance(token)
		fuzzy := opts.Fuzzy && distance > 0

		switch {
		case wildcard && fuzzy:
			fragments = append(fragments, "("+escaped+"* OR "+escaped+"~"+itoa(distance)+")")
		case wildcard:
			fragments = append(fragments, escaped+"*")
		case fuzzy:
			fragments = append(fragments, escaped+"~"+itoa(distance))
		default:
			fragments = append(fragments, escaped)
		}
	}

	return field + ":(" + strings.Join(fragments, " AND ") + ")"
}

// FuzzyDistance derives the permitted edit distance from token length:
// two runes or fewer allow none, three to five allow one, longer tokens two.
func FuzzyDistance(token string) int {
	length := utf8.RuneCountInString(token)
	switch {
	case length <= 2:
		return 0
	case length <= 5:
		return 1
	default:
		return 2
	}
}

// Escape inserts a backslash before every reserved character. It is
// idempotent: characters already preceded by a backslash are left alone, so
// escaping twice never double-escapes. A backslash at the end of the token
// escapes nothing, so it is itself escaped. Non-reserved runes, including
// accented letters, pass through untouched.
func Escape(token string) string {
	var b strings.Builder
	b.Grow(len(token))
	escaped := false
	for _, r := range token {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			b.WriteRune(r)
			escaped = true
			continue
		}
		if r < utf8.RuneSelf && strings.ContainsRune(reserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	if escaped {
		b.WriteByte('\\')
	}
	return b.String()
}

// FoldDiacritics strips combining marks so "Beyoncé" folds to "Beyonce".
// Callers use it for accent-insensitive terms and collation against
// upstreams that match literally.
func FoldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
