package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	// first run of digits and separators, e.g. "1.234,56" out of "S/ 1.234,56 c/u"
	priceNumberRegex = regexp.MustCompile(`\d[\d.,]*`)
	// digit groups split by a space or NBSP: "1 234,56"
	groupedDigitsRegex = regexp.MustCompile(`(\d)[ \x{00a0}\x{202f}](\d{3})`)
)

// ParsePrice extracts a decimal amount from a free-form price string.
// Currency symbols and codes are ignored; a minus sign before the amount
// makes the price invalid. When both '.' and ',' appear the
// right-most one is the decimal separator; a lone ',' followed by one or two
// digits is a decimal comma ("S/ 12,90" is 12.90).
func ParsePrice(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidPrice)
	}
	s = groupedDigitsRegex.ReplaceAllString(s, "$1$2")

	loc := priceNumberRegex.FindStringIndex(s)
	if loc == nil {
		return decimal.Zero, fmt.Errorf("%w: no number in %q", ErrInvalidPrice, text)
	}
	if isNegative(s[:loc[0]]) {
		return decimal.Zero, fmt.Errorf("%w: negative amount %q", ErrInvalidPrice, text)
	}
	num := strings.TrimRight(s[loc[0]:loc[1]], ".,")

	lastDot := strings.LastIndex(num, ".")
	lastComma := strings.LastIndex(num, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			num = strings.ReplaceAll(num, ".", "")
			num = strings.Replace(num, ",", ".", 1)
		} else {
			num = strings.ReplaceAll(num, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(num, ",") == 1 && len(num)-lastComma-1 != 3 {
			num = strings.Replace(num, ",", ".", 1)
		} else {
			num = strings.ReplaceAll(num, ",", "")
		}
	case lastDot >= 0:
		// A lone dot is always decimal, even before three digits ("1.234" is
		// 1.234): store APIs send dot decimals, while the local thousands
		// separator on shelf prices is the comma.
		if strings.Count(num, ".") > 1 {
			num = strings.ReplaceAll(num, ".", "")
		}
	}

	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrInvalidPrice, text, err)
	}
	return d, nil
}

// isNegative reports whether a minus sign is attached to the amount or to
// the currency symbol in front of it ("-5", "S/ -12,90", "-S/ 3.50").
// A dash set off by spaces ("Leche - S/ 4.50") is a separator.
func isNegative(prefix string) bool {
	if hasMinusSuffix(prefix) {
		return true
	}
	trimmed := strings.TrimRight(prefix, " \u00a0")
	symbol := strings.TrimRightFunc(trimmed, func(r rune) bool {
		return unicode.IsLetter(r) || r == '/' || r == '.' || unicode.Is(unicode.Sc, r)
	})
	return len(symbol) < len(trimmed) && hasMinusSuffix(symbol)
}

func hasMinusSuffix(s string) bool {
	return strings.HasSuffix(s, "-") || strings.HasSuffix(s, "\u2212")
}
