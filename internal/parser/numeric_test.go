package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireFloat(t *testing.T, want float64, got *float64) {
	t.Helper()
	require.NotNil(t, got)
	assert.InDelta(t, want, *got, 1e-9)
}

func TestParseLocaleNumber(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   any
		want *float64
	}{
		{"ru money", "1 234 567,89 ₽", Float(1234567.89)},
		{"nbsp thousands", "1\u00a0200,50 ₽", Float(1200.5)},
		{"narrow nbsp", "12\u202f000", Float(12000)},
		{"percent glyph", "12%", Float(12)},
		{"rub suffix", "1 200 руб.", Float(1200)},
		{"dot thousands comma decimal", "12.345,67", Float(12345.67)},
		{"dot thousands", "1.234.567", Float(1234567)},
		{"raw cell value", "1200.5", Float(1200.5)},
		{"scientific", "1.2E-05", Float(0.000012)},
		{"negative", "-5", Float(-5)},
		{"typographic minus", "−7,5", Float(-7.5)},
		{"native int", 42, Float(42)},
		{"native float", 0.25, Float(0.25)},
		{"em dash", "—", nil},
		{"hyphen", "-", nil},
		{"empty", "", nil},
		{"spaces", "   ", nil},
		{"garbage", "abc", nil},
		{"nil", nil, nil},
		{"nan", math.NaN(), nil},
		{"inf", math.Inf(1), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseLocaleNumber(tc.in)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			requireFloat(t, *tc.want, got)
		})
	}
}

func TestParseLocaleNumberRoundTrip(t *testing.T) {
	t.Parallel()

	for _, v := range []float64{0, 7.5, 999.99, 1200.5, 1234567.89} {
		s := formatRU(v) + " ₽"
		requireFloat(t, v, ParseLocaleNumber(s))
	}
}

// formatRU renders v as "1 234 567,89".
func formatRU(v float64) string {
	whole := strconv.FormatInt(int64(v), 10)
	cents := int64(math.Round((v - math.Trunc(v)) * 100))

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s,%02d", b.String(), cents)
}

func TestParsePercentToFraction(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   any
		want *float64
	}{
		{"12%", Float(0.12)},
		{"25 %", Float(0.25)},
		{"0,5", Float(0.5)},
		{0.5, Float(0.5)},
		{1, Float(1)},
		{0, Float(0)},
		{100, Float(1)},
		{"100%", Float(1)},
		{150, nil},
		{-3, nil},
		{"", nil},
		{"n/a", nil},
	}
	for _, tc := range cases {
		got := ParsePercentToFraction(tc.in)
		if tc.want == nil {
			assert.Nil(t, got, "input %v", tc.in)
			continue
		}
		requireFloat(t, *tc.want, got)
	}
}

func TestSafeDivide(t *testing.T) {
	t.Parallel()

	assert.Nil(t, SafeDivide(Float(1), Float(0)))
	assert.Nil(t, SafeDivide(nil, Float(2)))
	assert.Nil(t, SafeDivide(Float(2), nil))
	requireFloat(t, 0.25, SafeDivide(Float(1), Float(4)))
}

func TestClampFraction(t *testing.T) {
	t.Parallel()

	got, clamped := ClampFraction(Float(1.5))
	requireFloat(t, 1, got)
	assert.True(t, clamped)

	got, clamped = ClampFraction(Float(-0.1))
	requireFloat(t, 0, got)
	assert.True(t, clamped)

	got, clamped = ClampFraction(Float(0.3))
	requireFloat(t, 0.3, got)
	assert.False(t, clamped)

	got, clamped = ClampFraction(nil)
	assert.Nil(t, got)
	assert.False(t, clamped)
}

func TestCoerceNonNegativeInt(t *testing.T) {
	t.Parallel()

	n, clamped := CoerceNonNegativeInt(Float(-3))
	require.NotNil(t, n)
	assert.Equal(t, 0, *n)
	assert.True(t, clamped)

	n, clamped = CoerceNonNegativeInt(Float(2.6))
	require.NotNil(t, n)
	assert.Equal(t, 3, *n)
	assert.False(t, clamped)

	n, _ = CoerceNonNegativeInt(Float(2.4))
	require.NotNil(t, n)
	assert.Equal(t, 2, *n)

	n, clamped = CoerceNonNegativeInt(nil)
	assert.Nil(t, n)
	assert.False(t, clamped)

	n, clamped = CoerceNonNegativeInt(Float(1e300))
	assert.Nil(t, n)
	assert.False(t, clamped)

	n, _ = CoerceNonNegativeInt(Float(math.NaN()))
	assert.Nil(t, n)
}

func TestRoundMoney(t *testing.T) {
	t.Parallel()

	requireFloat(t, 1200.51, RoundMoney(Float(1200.505)))
	requireFloat(t, 0.1, RoundMoney(Float(0.1)))
	assert.Nil(t, RoundMoney(nil))
}
