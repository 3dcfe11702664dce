// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents; shopspring/decimal is used only at the
// edges, for parsing user input and for rendering JSON numbers.
package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a signed amount in cents.
type Money struct {
	Cents int64
}

var errMoneyFormat = errors.New("invalid money format")

func Cents(c int64) Money { return Money{Cents: c} }

// ParseMoney parses a decimal string into cents, rounding half away from zero
// on the third decimal place. Both "12.34" and "12,34" are accepted.
//
//	ParseMoney("12.345") -> 1235
//	ParseMoney("-5")     -> -500
func ParseMoney(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return Money{}, errMoneyFormat
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, errMoneyFormat
	}
	return FromDecimal(d)
}

// FromDecimal converts d to cents. Values outside the int64 cent range fail.
func FromDecimal(d decimal.Decimal) (Money, error) {
	shifted := d.Round(2).Shift(2)
	if !shifted.IsInteger() || shifted.Abs().GreaterThan(decimal.NewFromInt(1<<62)) {
		return Money{}, errMoneyFormat
	}
	return Money{Cents: shifted.IntPart()}, nil
}

// ParseJSONAmount decodes a raw JSON number or numeric string. present is
// false when the field was absent or null.
func ParseJSONAmount(raw json.RawMessage) (m Money, present bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Money{}, false, nil
	}
	s := string(raw)
	if raw[0] == '"' {
		if s, err = strconv.Unquote(s); err != nil {
			return Money{}, true, errMoneyFormat
		}
		if strings.TrimSpace(s) == "" {
			return Money{}, false, nil
		}
	}
	m, err = ParseMoney(s)
	return m, true, err
}

func (m Money) Decimal() decimal.Decimal { return decimal.New(m.Cents, -2) }

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) Neg() Money { return Money{Cents: -m.Cents} }

func (m Money) IsPositive() bool { return m.Cents > 0 }

func (m Money) IsZero() bool { return m.Cents == 0 }

// Float64 is for display and percentages only.
func (m Money) Float64() float64 { return m.Decimal().InexactFloat64() }

// String renders with exactly two decimals, e.g. "70.00".
func (m Money) String() string { return m.Decimal().StringFixed(2) }

// MarshalJSON renders a JSON number without trailing zeros, e.g. 70 or 12.5.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	v, _, err := ParseJSONAmount(b)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Sum adds every amount.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total.Cents += a.Cents
	}
	return total
}
