// Package models defines the core value types shared across the backtest engine.
package models

import (
	"fmt"
	"time"
)

// Right identifies the option right.
type Right string

const (
	RightCall Right = "call"
	RightPut  Right = "put"
)

// IsValid reports whether r is a known option right.
func (r Right) IsValid() bool {
	return r == RightCall || r == RightPut
}

// ContractKey uniquely identifies an option contract within a chain.
// Expiration is normalized to midnight UTC so keys compare by calendar date.
type ContractKey struct {
	Strike     float64
	Expiration time.Time
	Right      Right
}

// NewContractKey builds a normalized contract key.
func NewContractKey(strike float64, expiration time.Time, right Right) ContractKey {
	return ContractKey{
		Strike:     strike,
		Expiration: DateOf(expiration),
		Right:      right,
	}
}

// String returns a short human-readable identifier, e.g. "150C 2024-03-15".
func (k ContractKey) String() string {
	suffix := "C"
	if k.Right == RightPut {
		suffix = "P"
	}
	return fmt.Sprintf("%g%s %s", k.Strike, suffix, k.Expiration.Format("2006-01-02"))
}

// DateOf truncates t to midnight UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// OptionContract is one tradable contract from a daily chain snapshot.
// All pricing and sensitivity figures are externally supplied; the engine
// never derives them.
type OptionContract struct {
	Strike     float64
	Expiration time.Time
	Right      Right

	Bid float64
	Ask float64
	Mid float64

	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
	IV    float64

	Volume       int64
	OpenInterest int64

	DTE             int
	UnderlyingPrice float64
}

// Key returns the contract's identity key.
func (c *OptionContract) Key() ContractKey {
	return NewContractKey(c.Strike, c.Expiration, c.Right)
}

// Validate checks the required fields at the ingestion boundary so the
// engine can rely on them without per-access checks.
func (c *OptionContract) Validate() error {
	if !c.Right.IsValid() {
		return fmt.Errorf("invalid right %q", c.Right)
	}
	if c.Strike <= 0 {
		return fmt.Errorf("invalid strike %g", c.Strike)
	}
	if c.Expiration.IsZero() {
		return fmt.Errorf("missing expiration")
	}
	if c.Bid < 0 || c.Ask < 0 || c.Mid < 0 {
		return fmt.Errorf("negative quote (bid=%g ask=%g mid=%g)", c.Bid, c.Ask, c.Mid)
	}
	if c.Ask > 0 && c.Bid > c.Ask {
		return fmt.Errorf("crossed quote (bid=%g > ask=%g)", c.Bid, c.Ask)
	}
	return nil
}

// GreekSnapshot is one observation of a contract's Greeks.
type GreekSnapshot struct {
	Date            time.Time
	Delta           float64
	Gamma           float64
	Theta           float64
	Vega            float64
	Rho             float64
	IV              float64
	OptionPrice     float64
	UnderlyingPrice float64
	DTE             int

	// Stale marks a carried-forward snapshot: the contract was absent from
	// the day's chain, so the previous values were retained.
	Stale bool
}

// SnapshotOf captures a contract's Greeks as of date.
func SnapshotOf(c *OptionContract, date time.Time) GreekSnapshot {
	return GreekSnapshot{
		Date:            DateOf(date),
		Delta:           c.Delta,
		Gamma:           c.Gamma,
		Theta:           c.Theta,
		Vega:            c.Vega,
		Rho:             c.Rho,
		IV:              c.IV,
		OptionPrice:     c.Mid,
		UnderlyingPrice: c.UnderlyingPrice,
		DTE:             c.DTE,
	}
}
