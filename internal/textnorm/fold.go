// Package textnorm folds and cases Spanish product text.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var titleCaser = cases.Title(language.Spanish)

// Fold strips diacritics: "Costeño Azúcar" becomes "Costeno Azucar"
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Title capitalizes each word using Spanish casing rules
func Title(s string) string {
	return titleCaser.String(s)
}

// Words lower-cases and folds s, turns everything that is not a letter or
// digit into a space, and splits the result.
func Words(s string) []string {
	folded := strings.ToLower(Fold(s))
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
