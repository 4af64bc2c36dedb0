package normalize

import (
	"errors"
	"regexp"
	"strings"

	"github.com/Kronixion/matval/internal/source"
	"github.com/shopspring/decimal"
)

const (
	priceScale     = 2
	unitPriceScale = 4
)

var (
	errNotANumber       = errors.New("not a number")
	errNegative         = errors.New("negative amount")
	errMultipleCurrency = errors.New("multiple currencies")
)

var amountPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// currencyMarkers are matched in order against lower-cased price text. Codes come before
// symbols so "sek" is not read as a bare amount with a stray "kr".
var currencyMarkers = []struct {
	marker string
	code   string
}{
	{"sek", "SEK"},
	{"eur", "EUR"},
	{"nok", "NOK"},
	{"dkk", "DKK"},
	{"usd", "USD"},
	{"€", "EUR"},
	{"$", "USD"},
	{":-", "SEK"},
	{"kr", "SEK"},
}

// amount is a parsed price text: the number, the currency it was marked with (if any) and
// the unit label that followed a slash (if any).
type amount struct {
	value    decimal.Decimal
	currency string
	label    string
}

// parseAmount reads prices as Swedish shops print them ("18,90 kr", "1 234,50 kr", "18:90",
// "18:-", "24,90 kr/kg") as well as plain decimals and JSON numbers.
func parseAmount(v source.Value) (amount, error) {
	if v.Numeric {
		d, err := decimal.NewFromString(v.Text)
		if err != nil {
			return amount{}, errNotANumber
		}
		if d.IsNegative() {
			return amount{}, errNegative
		}
		return amount{value: d}, nil
	}

	text := strings.ToLower(strings.TrimSpace(v.Text))
	var out amount
	if idx := strings.Index(text, "/"); idx >= 0 {
		out.label = strings.TrimSpace(text[idx+1:])
		text = text[:idx]
	}

	for _, m := range currencyMarkers {
		if !strings.Contains(text, m.marker) {
			continue
		}
		if out.currency != "" && out.currency != m.code {
			return amount{}, errMultipleCurrency
		}
		out.currency = m.code
		text = strings.ReplaceAll(text, m.marker, " ")
	}

	text = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\t':
			return -1
		}
		return r
	}, text)
	text = strings.TrimSuffix(text, ":")
	text = strings.ReplaceAll(text, ":", ".")
	text = normalizeSeparators(text)

	if !amountPattern.MatchString(text) {
		return amount{}, errNotANumber
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return amount{}, errNotANumber
	}
	if d.IsNegative() {
		return amount{}, errNegative
	}
	out.value = d
	return out, nil
}

// normalizeSeparators turns the decimal separator into "." and drops thousands separators.
// When both "," and "." appear, the one that comes last is the decimal separator.
func normalizeSeparators(text string) string {
	comma := strings.LastIndex(text, ",")
	dot := strings.LastIndex(text, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		text = strings.ReplaceAll(text, ".", "")
		return strings.Replace(text, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		return strings.ReplaceAll(text, ",", "")
	case comma >= 0:
		return strings.Replace(text, ",", ".", 1)
	}
	return text
}

// normalizeCurrency maps a source currency field onto an ISO 4217 code.
func normalizeCurrency(raw string) (string, bool) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	switch value {
	case "KR", "KR.", ":-":
		return "SEK", true
	case "€":
		return "EUR", true
	case "$":
		return "USD", true
	}
	if len(value) != 3 {
		return "", false
	}
	for _, r := range value {
		if r < 'A' || r > 'Z' {
			return "", false
		}
	}
	return value, true
}
