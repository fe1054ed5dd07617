package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ligatures that do not decompose into a base letter plus a mark
var ligatures = strings.NewReplacer(
	"Æ", "Ae", "æ", "ae",
	"Œ", "Oe", "œ", "oe",
	"’", "'", "‘", "'",
	"–", "-", "—", "-",
)

// NormalizeName folds a card name to the ASCII, case-insensitive form used for
// secondary lookups ("Æther Vial" and "aether vial" normalize identically).
func NormalizeName(name string) string {
	s := ligatures.Replace(strings.TrimSpace(name))

	// transformers carry state, build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return cases.Fold().String(folded)
}
