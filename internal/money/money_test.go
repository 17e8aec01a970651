package money

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParse_Strings(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0,15", "0.15"},
		{"1.234,56", "1234.56"},
		{"1,234.56", "1234.56"},
		{"€ 0.15", "0.15"},
		{"0.15", "0.15"},
		{"12", "12"},
		{"  7,5  ", "7.5"},
		{"1.234.567", "1234567"},
		{"1,234,567", "1234567"},
		{"1.234.567,891", "1234567.89"},
		{"EUR 2,50", "2.5"},
		{"2,50 EUR", "2.5"},
		{"2,50€", "2.5"},
		{"-3,10", "-3.1"},
		{"-€ 3,10", "-3.1"},
		{"€-3,10", "-3.1"},
		{"+4", "4"},
		{",5", "0.5"},
		{"5,", "5"},
		{"0,125", "0.13"},
		{"0,124", "0.12"},
		{"1 234,56", "1234.56"},
		{"1'234.56", "1234.56"},
		{"eur 1,50", "1.5"},
		{"USD-2.00", "-2"},
		{"£3", "3"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Parse(tt.in)
			if assert.True(t, got.Valid, "expected %q to parse", tt.in) {
				assert.True(t, decimal.RequireFromString(tt.want).Equal(got.Decimal),
					"Parse(%q) = %s, want %s", tt.in, got.Decimal, tt.want)
			}
		})
	}
}

func TestParse_Unparseable(t *testing.T) {
	for _, in := range []any{
		"",
		"   ",
		"€",
		"abc",
		"12abc34",
		"x5y",
		"abc5def",
		"5 apples",
		"EURO 5",
		"1e5",
		"--5",
		"n/a",
		true,
		[]string{"1"},
		map[string]any{"amount": 1},
		math.NaN(),
		math.Inf(1),
		nil,
	} {
		got := Parse(in)
		assert.False(t, got.Valid, "expected %#v to be unparseable, got %s", in, got.Decimal)
	}
}

func TestParse_Numbers(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"float64", 0.15, "0.15"},
		{"float64 rounding", 2.345, "2.35"},
		{"float32", float32(1.5), "1.5"},
		{"int", 42, "42"},
		{"int64", int64(-7), "-7"},
		{"uint8", uint8(3), "3"},
		{"json.Number", json.Number("1234.567"), "1234.57"},
		{"decimal", decimal.RequireFromString("9.999"), "10"},
		{"null decimal", decimal.NewNullDecimal(decimal.RequireFromString("1.1")), "1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.in)
			if assert.True(t, got.Valid) {
				assert.True(t, decimal.RequireFromString(tt.want).Equal(got.Decimal),
					"Parse(%v) = %s, want %s", tt.in, got.Decimal, tt.want)
			}
		})
	}
}

func TestParse_InvalidNullDecimalStaysNull(t *testing.T) {
	assert.False(t, Parse(decimal.NullDecimal{}).Valid)
}
