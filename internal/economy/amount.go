package economy

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidAmount = errors.New("invalid amount")

// AmountKind tags the parsed form of an amount argument.
type AmountKind int

const (
	Absolute AmountKind = iota
	Percent
	KSuffix
	MSuffix
	All
	Half
)

// Amount is a parsed amount argument. It resolves to a concrete value
// only against a balance, since percent and keyword forms depend on it.
type Amount struct {
	Kind  AmountKind
	Value float64 // absolute value, suffix multiplicand, or percentage
}

// ParseAmount parses the textual amount forms accepted by every command
// that moves currency: bare integers with optional thousand separators,
// k/m suffixes with decimals, scientific notation, percentages, and the
// keywords all, max and half.
func ParseAmount(s string) (Amount, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return Amount{}, ErrInvalidAmount
	}

	switch s {
	case "all", "max":
		return Amount{Kind: All}, nil
	case "half":
		return Amount{Kind: Half}, nil
	}

	if p, ok := strings.CutSuffix(s, "%"); ok {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v <= 0 || v > 100 {
			return Amount{}, ErrInvalidAmount
		}
		return Amount{Kind: Percent, Value: v}, nil
	}
	if x, ok := strings.CutSuffix(s, "k"); ok {
		v, err := strconv.ParseFloat(x, 64)
		if err != nil || v <= 0 {
			return Amount{}, ErrInvalidAmount
		}
		return Amount{Kind: KSuffix, Value: v}, nil
	}
	if x, ok := strings.CutSuffix(s, "m"); ok {
		v, err := strconv.ParseFloat(x, 64)
		if err != nil || v <= 0 {
			return Amount{}, ErrInvalidAmount
		}
		return Amount{Kind: MSuffix, Value: v}, nil
	}

	// Bare integer or scientific notation. ParseFloat covers both.
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return Amount{}, ErrInvalidAmount
	}
	return Amount{Kind: Absolute, Value: v}, nil
}

// Resolve converts the amount to a concrete positive integer against the
// given balance. A result of zero or less is an error.
func (a Amount) Resolve(balance int64) (int64, error) {
	var n int64
	switch a.Kind {
	case Absolute:
		n = int64(math.Round(a.Value))
	case Percent:
		n = int64(math.Round(float64(balance) * a.Value / 100))
	case KSuffix:
		n = int64(math.Round(a.Value * 1_000))
	case MSuffix:
		n = int64(math.Round(a.Value * 1_000_000))
	case All:
		n = balance
	case Half:
		n = balance / 2
	}
	if n <= 0 {
		return 0, ErrInvalidAmount
	}
	return n, nil
}

// ResolveAmount parses and resolves in one step.
func ResolveAmount(s string, balance int64) (int64, error) {
	a, err := ParseAmount(s)
	if err != nil {
		return 0, err
	}
	return a.Resolve(balance)
}
