// Package types provides domain models shared across quotekeeper components.
//
// Wire-agnostic design: nothing here knows about gRPC, HTTP or SQL. Storage
// rows and transport payloads are converted at the boundary (internal/core/db,
// internal/core/api). The only third-party dependencies are decimal (money
// arithmetic) and uuid (ids.go).
package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Record is a flat (optionally nested) view of a quote that rule conditions
// are evaluated against. Keys are condition field names; nested maps and
// slices are reachable with dot paths ("student_details.nationality").
type Record map[string]any

// Amount is a monetary or percentage quantity.
// Backed by decimal.Decimal so percent adjustments stay exact; serialised to
// JSON as a bare number rather than decimal's default quoted string.
type Amount struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Amount{}

var hundred = decimal.NewFromInt(100)

// NewAmount converts a float. Use ParseAmount for values that must be exact.
func NewAmount(f float64) Amount {
	return Amount{d: decimal.NewFromFloat(f)}
}

// NewAmountFromInt converts an integer.
func NewAmountFromInt(i int64) Amount {
	return Amount{d: decimal.NewFromInt(i)}
}

// ParseAmount parses a decimal string such as "1100.50".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{d: d}, nil
}

// MustAmount parses s and panics on malformed input. Intended for tests and
// constants.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Decimal() decimal.Decimal { return a.d }
func (a Amount) Add(b Amount) Amount      { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Sub(b Amount) Amount      { return Amount{d: a.d.Sub(b.d)} }
func (a Amount) Neg() Amount              { return Amount{d: a.d.Neg()} }
func (a Amount) Abs() Amount              { return Amount{d: a.d.Abs()} }
func (a Amount) IsZero() bool             { return a.d.IsZero() }
func (a Amount) IsNegative() bool         { return a.d.IsNegative() }
func (a Amount) Cmp(b Amount) int         { return a.d.Cmp(b.d) }
func (a Amount) Equal(b Amount) bool      { return a.d.Equal(b.d) }
func (a Amount) String() string           { return a.d.String() }

// MulInt multiplies by a whole number (e.g. price per week * weeks).
func (a Amount) MulInt(n int64) Amount {
	return Amount{d: a.d.Mul(decimal.NewFromInt(n))}
}

// Percent returns a * p / 100.
func (a Amount) Percent(p Amount) Amount {
	return Amount{d: a.d.Mul(p.d).Div(hundred)}
}

// Float64 returns the nearest float64; exact flag dropped.
func (a Amount) Float64() float64 {
	f, _ := a.d.Float64()
	return f
}

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.d.String()), nil
}

// UnmarshalJSON implements json.Unmarshaler.
// Accepts bare numbers and quoted decimal strings; null leaves zero.
func (a *Amount) UnmarshalJSON(data []byte) error {
	return a.d.UnmarshalJSON(data)
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(value any) error {
	return a.d.Scan(value)
}

// Value implements driver.Valuer.
func (a Amount) Value() (driver.Value, error) {
	return a.d.Value()
}

// Resource limits enforced by the condition evaluator.
const (
	// MaxPathDepth bounds dot-path resolution ("a.b.c...").
	MaxPathDepth = 16

	// MaxGroupDepth bounds condition-group nesting. Deeper subtrees are
	// compiled to invalid markers and never match.
	MaxGroupDepth = 32
)

// compile-time interface checks
var (
	_ json.Marshaler   = Amount{}
	_ json.Unmarshaler = (*Amount)(nil)
	_ driver.Valuer    = Amount{}
)
