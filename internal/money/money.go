// Package money normalizes the monetary values found in lead events.
//
// Upstream sends revenue and cost as JSON numbers or as free-form text
// ("0,15", "€ 1.234,56", "1,234.56 EUR"). Parse turns all of them into a
// decimal rounded to cents, or an invalid NullDecimal when the input can't be
// read as an amount.
package money

import (
	"encoding/json"
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Places is the number of decimals amounts are rounded to.
const Places = 2

var null = decimal.NullDecimal{}

// Parse normalizes v. Supported inputs are nil, strings, json.Number,
// decimal.Decimal and the builtin numeric kinds. It never panics.
func Parse(v any) decimal.NullDecimal {
	switch x := v.(type) {
	case nil:
		return null
	case string:
		return ParseString(x)
	case json.Number:
		return ParseString(x.String())
	case decimal.Decimal:
		return valid(x)
	case decimal.NullDecimal:
		if !x.Valid {
			return null
		}
		return valid(x.Decimal)
	case float64:
		return fromFloat(x)
	case float32:
		return fromFloat(float64(x))
	case int:
		return valid(decimal.NewFromInt(int64(x)))
	case int8:
		return valid(decimal.NewFromInt(int64(x)))
	case int16:
		return valid(decimal.NewFromInt(int64(x)))
	case int32:
		return valid(decimal.NewFromInt(int64(x)))
	case int64:
		return valid(decimal.NewFromInt(x))
	case uint:
		return valid(decimal.NewFromUint64(uint64(x)))
	case uint8:
		return valid(decimal.NewFromUint64(uint64(x)))
	case uint16:
		return valid(decimal.NewFromUint64(uint64(x)))
	case uint32:
		return valid(decimal.NewFromUint64(uint64(x)))
	case uint64:
		return valid(decimal.NewFromUint64(x))
	default:
		return null
	}
}

// ParseString normalizes a textual amount.
//
// Separator rules: when both ',' and '.' occur, the one occurring last is the
// decimal separator and the other is grouping. A single ',' or a single '.'
// is the decimal separator. A separator repeated with no other kind present
// is grouping ("1.234.567").
func ParseString(s string) decimal.NullDecimal {
	body, negative, ok := clean(s)
	if !ok {
		return null
	}

	commas := strings.Count(body, ",")
	dots := strings.Count(body, ".")

	var decimalSep rune
	switch {
	case commas > 0 && dots > 0:
		if strings.LastIndex(body, ",") > strings.LastIndex(body, ".") {
			decimalSep = ','
		} else {
			decimalSep = '.'
		}
	case commas == 1:
		decimalSep = ','
	case dots == 1:
		decimalSep = '.'
	}

	intPart, fracPart := body, ""
	if decimalSep != 0 {
		i := strings.LastIndexByte(body, byte(decimalSep))
		intPart, fracPart = body[:i], body[i+1:]
	}

	var b strings.Builder
	b.Grow(len(body) + 2)
	if negative {
		b.WriteByte('-')
	}
	b.WriteString("0")
	b.WriteString(digitsOf(intPart))
	if frac := digitsOf(fracPart); frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}

	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return null
	}
	return valid(d)
}

// currencyCodes are the codes accepted around an amount.
var currencyCodes = []string{"EUR", "USD", "GBP", "CHF", "DKK", "NOK", "SEK", "PLN"}

// clean strips whitespace, a sign and leading or trailing currency symbols
// or codes. It fails when anything other than digits and separators remains,
// or when there are no digits at all.
func clean(s string) (body string, negative bool, ok bool) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\'' {
			return -1
		}
		return r
	}, s)

	for {
		trimmed := trimCurrencyPrefix(s)
		switch {
		case strings.HasPrefix(trimmed, "-"):
			if negative {
				return "", false, false
			}
			negative = true
			trimmed = trimmed[1:]
		case strings.HasPrefix(trimmed, "+"):
			trimmed = trimmed[1:]
		}
		if trimmed == s {
			break
		}
		s = trimmed
	}
	for {
		trimmed := trimCurrencySuffix(s)
		if trimmed == s {
			break
		}
		s = trimmed
	}

	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ',' || r == '.':
		default:
			return "", false, false
		}
	}
	if digits == 0 {
		return "", false, false
	}
	return s, negative, true
}

func isCurrencySymbol(r rune) bool {
	return unicode.Is(unicode.Sc, r)
}

func trimCurrencyPrefix(s string) string {
	if t := strings.TrimLeftFunc(s, isCurrencySymbol); t != s {
		return t
	}
	for _, code := range currencyCodes {
		if len(s) >= len(code) && strings.EqualFold(s[:len(code)], code) {
			return s[len(code):]
		}
	}
	return s
}

func trimCurrencySuffix(s string) string {
	if t := strings.TrimRightFunc(s, isCurrencySymbol); t != s {
		return t
	}
	for _, code := range currencyCodes {
		if n := len(s) - len(code); n >= 0 && strings.EqualFold(s[n:], code) {
			return s[:n]
		}
	}
	return s
}

func digitsOf(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func fromFloat(f float64) decimal.NullDecimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return null
	}
	return valid(decimal.NewFromFloat(f))
}

func valid(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d.Round(Places), Valid: true}
}
