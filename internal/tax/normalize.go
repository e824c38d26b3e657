package tax

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount coerces a caller-supplied price or shipping cost into a decimal.
// Missing, unparsable, non-finite and negative values become zero so a bad
// line item never fails checkout.
func ParseAmount(v any) decimal.Decimal {
	var d decimal.Decimal

	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		d = x
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero
		}
		d = *x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero
		}
		d = decimal.NewFromFloat(x)
	case float32:
		return ParseAmount(float64(x))
	case int:
		d = decimal.NewFromInt(int64(x))
	case int32:
		d = decimal.NewFromInt32(x)
	case int64:
		d = decimal.NewFromInt(x)
	case json.Number:
		return ParseAmount(string(x))
	case string:
		parsed, ok := parseDecimalString(x)
		if !ok {
			return decimal.Zero
		}
		d = parsed
	default:
		return decimal.Zero
	}

	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ParseQuantity coerces a caller-supplied quantity into a positive integer.
// Fractional values are truncated; missing, unparsable, zero and negative
// values become 1.
func ParseQuantity(v any) int {
	var q int64

	switch x := v.(type) {
	case int:
		q = int64(x)
	case int32:
		q = int64(x)
	case int64:
		q = x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || math.Abs(x) > math.MaxInt32 {
			return 1
		}
		q = int64(x)
	case float32:
		return ParseQuantity(float64(x))
	case json.Number:
		return ParseQuantity(string(x))
	case decimal.Decimal:
		q = x.IntPart()
	case string:
		if n, err := strconv.ParseInt(leadingInteger(strings.TrimSpace(x)), 10, 64); err == nil {
			q = n
		}
	}

	if q <= 0 || q > math.MaxInt32 {
		return 1
	}
	return int(q)
}

// parseDecimalString reads the longest numeric prefix of s, so "12abc" and
// "5 AED" parse as 12 and 5.
func parseDecimalString(s string) (decimal.Decimal, bool) {
	num := leadingNumber(strings.TrimSpace(s))
	if num == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// leadingNumber returns the longest prefix of s of the form
// [+-]digits[.digits][e[+-]digits]. Either side of the point may be empty but
// not both; an exponent counts only when it has digits.
func leadingNumber(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}

	digits := 0
	for ; i < len(s) && isDigit(s[i]); i++ {
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for ; i < len(s) && isDigit(s[i]); i++ {
			digits++
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
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j {
			end = k
		}
	}
	return s[:end]
}

// leadingInteger returns the longest prefix of s of the form [+-]digits.
func leadingInteger(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	start := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i == start {
		return ""
	}
	return s[:i]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// round2 rounds to two decimal places, halves toward positive infinity.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Shift(2).Add(decimal.New(5, -1)).Floor().Shift(-2)
}
