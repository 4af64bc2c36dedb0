package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName folds a product name into its identity form: NFC composed, lower-cased with
// Swedish rules and with runs of whitespace collapsed to one space.
func NormalizeName(name string) string {
	composed := norm.NFC.String(name)
	lowered := cases.Lower(language.Swedish).String(composed)
	return strings.Join(strings.Fields(lowered), " ")
}

// cleanName keeps the display name as given apart from whitespace.
func cleanName(name string) string {
	return strings.Join(strings.Fields(norm.NFC.String(name)), " ")
}
