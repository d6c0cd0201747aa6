package models

import "time"

// Direction represents the side of a position.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// ExitReason classifies why a position was closed.
type ExitReason string

const (
	ExitProfitTarget ExitReason = "profit_target"
	ExitStopLoss     ExitReason = "stop_loss"
	ExitTimeDecay    ExitReason = "time_decay"
	ExitExpiration   ExitReason = "expiration"
	ExitManual       ExitReason = "manual"
	ExitBacktestEnd  ExitReason = "backtest_end"
)

// Compliance captures how closely an opening trade matched the strategy's
// delta and DTE targets. A nil DeltaCompliant or DTECompliant means the
// check had no underlying data and is excluded from the score, not failed.
type Compliance struct {
	TargetDelta    float64
	DeltaTolerance float64
	ActualDelta    float64
	DeltaCompliant *bool

	MinDTE       int
	MaxDTE       int
	ActualDTE    int
	DTECompliant *bool

	// Score is 0-100, averaged over the checks that have data.
	Score float64
}

// TradeExit is the exit update attached to an opening trade once the
// position closes.
type TradeExit struct {
	Date       time.Time
	Price      float64
	Commission float64
	Greeks     GreekSnapshot
	PnL        float64
	PnLPercent float64
	DaysHeld   int
	Reason     ExitReason
}

// Trade is an atomic fill record. It is immutable once recorded; exit
// information is attached later as an update, never rewritten.
type Trade struct {
	ID         string
	Date       time.Time
	Contract   ContractKey
	Direction  Direction
	Quantity   int
	FillPrice  float64
	Commission float64

	// CashDelta is the signed change to ledger cash caused by this fill.
	CashDelta float64

	Greeks GreekSnapshot

	// Compliance is set for opening trades only.
	Compliance *Compliance

	Exit *TradeExit
}

// EntryCost is the absolute capital committed at entry, excluding commission.
func (t *Trade) EntryCost(multiplier int) float64 {
	return t.FillPrice * float64(t.Quantity) * float64(multiplier)
}

// Closed reports whether the trade has an exit update.
func (t *Trade) Closed() bool {
	return t.Exit != nil
}

// Win reports whether the trade closed with a positive P&L.
func (t *Trade) Win() bool {
	return t.Exit != nil && t.Exit.PnL > 0
}
