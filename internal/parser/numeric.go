package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// cells that mean "no value" in report exports
var emptyMarkers = map[string]struct{}{
	"":  {},
	"—": {},
	"-": {},
	"–": {},
}

var localeCleaner = strings.NewReplacer(
	"\u00a0", "", // NBSP
	"\u202f", "", // NNBSP
	"\u2007", "", // figure space
	" ", "",
	"\t", "",
	"−", "-", // typographic minus
	"руб.", "",
	"руб", "",
	"р.", "",
	"₽", "",
	"$", "",
	"€", "",
	"%", "",
	"％", "",
)

// ParseLocaleNumber converts a cell into a finite number.
// Native numbers pass through; strings follow the ru-RU convention (space or NBSP
// thousands, comma decimals) and also accept "12.345,67". Returns nil when the
// cell holds no parseable finite value.
func ParseLocaleNumber(raw any) *float64 {
	switch v := raw.(type) {
	case nil:
		return nil
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return finite(float64(v))
	case int64:
		return finite(float64(v))
	case int32:
		return finite(float64(v))
	case string:
		return parseLocaleString(v)
	case *float64:
		if v == nil {
			return nil
		}
		return finite(*v)
	default:
		return parseLocaleString(fmt.Sprint(v))
	}
}

func parseLocaleString(s string) *float64 {
	s = strings.TrimSpace(s)
	if _, ok := emptyMarkers[s]; ok {
		return nil
	}

	// raw numeric cell values ("1200.5", "1.2E-05")
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return finite(f)
	}

	s = localeCleaner.Replace(s)

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		// 12.345,67
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case lastComma >= 0 && lastDot >= 0:
		// 12,345.67
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		s = strings.ReplaceAll(s[:lastComma], ",", "") + "." + s[lastComma+1:]
	case strings.Count(s, ".") > 1:
		// 1.234.567
		s = strings.ReplaceAll(s, ".", "")
	}

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	s = b.String()
	if s == "" || s == "-" || s == "." || s == "-." {
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return finite(f)
}

// ParsePercentToFraction parses a percentage or fraction.
// Values in (1,100] are percent-scale and divided by 100, values in [0,1] are
// already fractions, anything else is rejected.
func ParsePercentToFraction(raw any) *float64 {
	v := ParseLocaleNumber(raw)
	if v == nil {
		return nil
	}
	x := *v
	switch {
	case x > 1 && x <= 100:
		return Float(x / 100)
	case x >= 0 && x <= 1:
		return Float(x)
	default:
		return nil
	}
}

// SafeDivide returns nil when either side is unknown, the denominator is zero
// or the quotient is not finite.
func SafeDivide(num, den *float64) *float64 {
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	return finite(*num / *den)
}

// ClampFraction bounds x to [0,1]. The bool reports that clamping happened.
func ClampFraction(x *float64) (*float64, bool) {
	if x == nil {
		return nil, false
	}
	switch {
	case *x < 0:
		return Float(0), true
	case *x > 1:
		return Float(1), true
	}
	return Float(*x), false
}

// CoerceNonNegativeInt rounds x to the nearest integer and clamps negatives to 0.
// The bool reports that clamping happened. NaN and values at or above
// math.MaxInt are nil; callers holding a present value must report that.
func CoerceNonNegativeInt(x *float64) (*int, bool) {
	if x == nil || math.IsNaN(*x) {
		return nil, false
	}
	r := math.Round(*x)
	if r < 0 {
		return Int(0), true
	}
	// float64(math.MaxInt) rounds up to 2^63, itself out of range
	if r >= float64(math.MaxInt) {
		return nil, false
	}
	return Int(int(r)), false
}

// ClampNonNegative clamps a decimal quantity to >= 0.
func ClampNonNegative(x *float64) (*float64, bool) {
	if x == nil {
		return nil, false
	}
	if *x < 0 {
		return Float(0), true
	}
	return Float(*x), false
}

// RoundMoney rounds to kopecks.
func RoundMoney(x *float64) *float64 {
	if x == nil {
		return nil
	}
	return Float(decimal.NewFromFloat(*x).Round(2).InexactFloat64())
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func floatOf(i int) *float64 {
	f := float64(i)
	return &f
}

func valueOr(x *float64, def float64) float64 {
	if x == nil {
		return def
	}
	return *x
}
