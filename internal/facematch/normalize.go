package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// nameSeparators become spaces in a name key
var nameSeparators = strings.NewReplacer("-", " ", "_", " ", ".", " ")

func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

// NormalizePersonName returns the lookup key stored next to an employee name.
// Punch-out by name compares keys, so "jan_novak" typed at a kiosk finds
// "Jan Novák". Diacritics and case are dropped, dashes, underscores and dots
// become spaces, apostrophes are removed and whitespace is collapsed.
func NormalizePersonName(name string) string {
	name = strings.ToLower(removeDiacritics(name))
	name = strings.ReplaceAll(name, "'", "")
	name = nameSeparators.Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

// SameName reports whether two names resolve to the same employee key.
func SameName(a, b string) bool {
	return NormalizePersonName(a) == NormalizePersonName(b)
}
