package groups

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFold decomposes characters and strips combining marks, turning
// "Famille Première" into "Famille Premiere" before slugification.
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify normalizes a human label into a canonical machine key: lowercase
// ASCII letters and digits, with runs of anything else collapsed into a
// single hyphen and no leading or trailing hyphens.
//
// The function is pure and idempotent: Slugify(Slugify(x)) == Slugify(x),
// and Slugify("") == "".
func Slugify(s string) string {
	if folded, _, err := transform.String(asciiFold, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))

	lastWasHyphen := true // suppresses a leading hyphen
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastWasHyphen = false
			continue
		}
		if !lastWasHyphen {
			b.WriteByte('-')
			lastWasHyphen = true
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}
