// Package numeric coerces untrusted storage values into safe float64s.
// It is the only place raw row values are interpreted; everything downstream
// works on finite numbers.
package numeric

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPrecision is the number of decimal digits SafeDivide rounds to.
const DefaultPrecision = 4

const dateLayout = "2006-01-02"

// ToNumber parses v as a number. Returns 0 for nil, non-numeric strings,
// NaN and ±Inf, and for any type that is not a recognized numeric shape.
// The database driver hands back NUMERIC columns as []byte, so byte slices
// take the string path.
func ToNumber(v interface{}) float64 {
	var f float64
	switch val := v.(type) {
	case nil:
		return 0
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int8:
		f = float64(val)
	case int16:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		f = float64(val)
	case uint:
		f = float64(val)
	case uint8:
		f = float64(val)
	case uint16:
		f = float64(val)
	case uint32:
		f = float64(val)
	case uint64:
		f = float64(val)
	case decimal.Decimal:
		f = val.InexactFloat64()
	case *decimal.Decimal:
		if val == nil {
			return 0
		}
		f = val.InexactFloat64()
	case json.Number:
		f = parseString(string(val))
	case string:
		f = parseString(val)
	case []byte:
		f = parseString(string(val))
	default:
		return 0
	}
	if !isFinite(f) {
		return 0
	}
	return f
}

// parseString accepts plain decimal and exponent notation. Literal "NaN" and
// "Infinity" parse successfully in strconv and are rejected by the caller's
// finiteness check; out-of-range values surface as ErrRange and become 0.
func parseString(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// ToString renders a row value as a label. nil becomes "".
func ToString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(dateLayout)
	case float64, float32, int, int32, int64:
		f := ToNumber(val)
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return ""
	}
}

// ToDate extracts a calendar date from a row value. Returns nil when the value
// is absent or cannot be read as a date; a missing date is a valid state, not
// an error.
func ToDate(v interface{}) *time.Time {
	var t time.Time
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		t = val
	case *time.Time:
		if val == nil {
			return nil
		}
		t = *val
	case string, []byte:
		s := strings.TrimSpace(ToString(val))
		if len(s) < len(dateLayout) {
			return nil
		}
		parsed, err := time.Parse(dateLayout, s[:len(dateLayout)])
		if err != nil {
			return nil
		}
		t = parsed
	default:
		return nil
	}
	if t.IsZero() {
		return nil
	}
	y, m, d := t.UTC().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &day
}

// SafeDivide returns numerator/denominator rounded to DefaultPrecision digits.
func SafeDivide(numerator, denominator float64) float64 {
	return SafeDividePrecision(numerator, denominator, DefaultPrecision)
}

// SafeDividePrecision returns numerator/denominator rounded to precision digits,
// or 0 when the denominator is zero, negative or non-finite, or the numerator is NaN.
func SafeDividePrecision(numerator, denominator float64, precision int) float64 {
	if math.IsNaN(numerator) || !isFinite(denominator) || denominator <= 0 {
		return 0
	}
	return Round(numerator/denominator, precision)
}

// WeightedAverage divides an accumulated weighted sum by its total weight.
func WeightedAverage(sum, weight float64) float64 {
	return SafeDivide(sum, weight)
}

// Round rounds half away from zero to precision decimal digits.
// Non-finite input rounds to 0.
func Round(value float64, precision int) float64 {
	if !isFinite(value) {
		return 0
	}
	return decimal.NewFromFloat(value).Round(int32(precision)).InexactFloat64()
}

// Clamp bounds value into [min, max]. NaN is treated as 0.
func Clamp(value, min, max float64) float64 {
	if math.IsNaN(value) {
		value = 0
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// NonNegative floors negative values to 0. NaN and +Inf are treated as 0
// so the result is always finite.
func NonNegative(value float64) float64 {
	if !isFinite(value) || value < 0 {
		return 0
	}
	return value
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
