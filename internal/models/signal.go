package models

import "time"

// SignalAction represents the direction of a strategy signal.
type SignalAction string

const (
	ActionBuy  SignalAction = "buy"
	ActionSell SignalAction = "sell"
)

// ContractSelection describes how a signal picks its contract: either an
// exact (strike, expiration, right) identity, or a delta + DTE target that
// the engine resolves against the day's chain.
type ContractSelection struct {
	// Exact identity. Used when Strike > 0 and Expiration is set.
	Strike     float64
	Expiration time.Time
	Right      Right

	// Target criteria, used when no exact identity is given.
	TargetDelta    float64
	DeltaTolerance float64
	MinDTE         int
	MaxDTE         int
}

// Exact reports whether the selection names a specific contract.
func (s ContractSelection) Exact() bool {
	return s.Strike > 0 && !s.Expiration.IsZero()
}

// SelectionMeta records how a target-based selection resolved, for
// compliance reporting.
type SelectionMeta struct {
	TargetDelta    float64
	ActualDelta    float64
	DeltaTolerance float64
	TargetDTE      int
	ActualDTE      int
	Candidates     int
}

// Signal is a strategy's request to open a position. Signals are ephemeral:
// produced and consumed within the same simulated day, in order.
type Signal struct {
	Action    SignalAction
	Selection ContractSelection
	Quantity  int
	Reason    string
	Meta      *SelectionMeta
}
