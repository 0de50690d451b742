// internal/budget/amount.go
package budget

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultCurrency is the prefix used by FormatAmount
const DefaultCurrency = "RM"

var printer = message.NewPrinter(language.English)

// ParseAmount converts a budget value to a number. Numbers pass through.
// Strings have whitespace and thousands separators removed, then any
// leading currency code or symbol ("RM", "USD", "$") is skipped and the
// longest leading decimal is parsed. Anything else,
// including unparsable strings, is 0.
func ParseAmount(v any) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case float64:
		return finite(val)
	case float32:
		return finite(float64(val))
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case int32:
		return float64(val)
	case interface{ Float64() (float64, error) }:
		f, err := val.Float64()
		if err != nil {
			return 0
		}
		return finite(f)
	case string:
		return parseAmountString(val)
	default:
		return 0
	}
}

func parseAmountString(s string) float64 {
	cleaned := strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	cleaned = strings.TrimLeftFunc(cleaned, isCurrencyMark)

	prefix := leadingDecimal(cleaned)
	if prefix == "" {
		return 0
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

// leadingDecimal returns the longest prefix of s that is a decimal number
// with optional sign, fraction and exponent.
func leadingDecimal(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			frac++
		}
		if digits > 0 || frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return ""
	}
	end := i
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		exp := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			exp++
		}
		if exp > 0 {
			end = j
		}
	}
	return s[:end]
}

// isCurrencyMark matches the letters and symbols of a currency prefix
func isCurrencyMark(r rune) bool {
	return unicode.IsLetter(r) || unicode.Is(unicode.Sc, r)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// FormatAmount renders n with the default currency prefix, e.g. "RM 1,250,000"
func FormatAmount(n float64) string {
	return FormatAmountWith(DefaultCurrency, n)
}

// FormatAmountWith renders n with thousands grouping and up to three
// fraction digits after prefix. Zero renders as "<prefix> 0".
func FormatAmountWith(prefix string, n float64) string {
	if n == 0 {
		return prefix + " 0"
	}
	return prefix + " " + printer.Sprintf("%v", number.Decimal(n, number.MaxFractionDigits(3)))
}
