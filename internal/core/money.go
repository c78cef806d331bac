// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents. Parsing goes through shopspring/decimal
// so user input such as "12.345" is rounded the same way on every platform.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmount is the largest amount a single record may hold. At this cap the
// int64 cent total of any store below 92 million records cannot overflow.
var MaxAmount = Money{Cents: 100_000_000_000}

// maxIntegerDigits bounds the size of accepted input before any arithmetic,
// so inputs like "1e100000000" are rejected without expanding them.
const maxIntegerDigits = 10

// ParseAmount converts user input to Money rounded to cents.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. Rounding
// is half away from zero on the third decimal place. Values that are not
// numbers, that are not positive once rounded, or that exceed MaxAmount yield
// a *ValidationError.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234 cents
//	ParseAmount("12,345") -> 1235 cents
//	ParseAmount("0.004")  -> error (rounds to zero)
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, &ValidationError{Field: FieldAmount, Reason: "must be a valid number"}
	}
	s = strings.ReplaceAll(s, ",", ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, &ValidationError{Field: FieldAmount, Reason: "must be a valid number"}
	}
	if d.Sign() <= 0 {
		return Money{}, &ValidationError{Field: FieldAmount, Reason: "must be greater than 0"}
	}

	// Digits before the decimal point, without rescaling d.
	magnitude := int64(d.NumDigits()) + int64(d.Exponent())
	if magnitude > maxIntegerDigits {
		return Money{}, &ValidationError{Field: FieldAmount, Reason: "is too large"}
	}
	if magnitude < -2 {
		// Below 0.001, rounds to zero.
		return Money{}, &ValidationError{Field: FieldAmount, Reason: "must be greater than 0"}
	}

	d = d.Round(2)
	if !d.IsPositive() {
		return Money{}, &ValidationError{Field: FieldAmount, Reason: "must be greater than 0"}
	}
	if d.GreaterThan(MaxAmount.Decimal()) {
		return Money{}, &ValidationError{Field: FieldAmount, Reason: "is too large"}
	}
	return Money{Cents: d.Shift(2).IntPart()}, nil
}

// MustParseAmount is ParseAmount for constants in seed data and tests.
func MustParseAmount(s string) Money {
	m, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with exactly two decimals, as stored on disk.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Units returns the amount as a float64 for display purposes.
// Use cents for calculations.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}
