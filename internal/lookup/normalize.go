package lookup

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes combining marks after NFD decomposition, so "José"
// and "Jose" normalize to the same key.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize produces the case- and diacritic-insensitive key used for
// exact-name matching. No fuzzy matching happens anywhere downstream;
// two names either share a key or they do not.
func Normalize(name string) string {
	stripped, _, err := transform.String(stripMarks, name)
	if err != nil {
		stripped = name
	}
	return strings.ToLower(strings.TrimSpace(stripped))
}

// Slugify builds a URL-safe slug the way the legacy system generated
// them: diacritics stripped, non-alphanumerics collapsed to single
// hyphens.
func Slugify(name string) string {
	key := Normalize(name)
	var b strings.Builder
	b.Grow(len(key))
	lastHyphen := true
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
