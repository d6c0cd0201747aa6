package models

import "time"

// Fill is one executed quantity at a price, attributed to a trade record.
type Fill struct {
	TradeID  string
	Date     time.Time
	Quantity int
	Price    float64
}

// Position is an ownership aggregate over fills sharing one contract
// identity. It is open iff NetQuantity() != 0; a closed position is removed
// from the ledger's active set and never mutated again.
type Position struct {
	Contract  ContractKey
	Direction Direction
	EntryDate time.Time

	OpenFills  []Fill
	CloseFills []Fill

	// LastKnown is the most recent Greek snapshot for the contract. When the
	// contract disappears from the chain the previous values are retained
	// with Stale set.
	LastKnown GreekSnapshot
}

// NetQuantity is open quantity minus closed quantity, always >= 0.
func (p *Position) NetQuantity() int {
	var open, closed int
	for _, f := range p.OpenFills {
		open += f.Quantity
	}
	for _, f := range p.CloseFills {
		closed += f.Quantity
	}
	return open - closed
}

// IsOpen reports whether the position still has net quantity.
func (p *Position) IsOpen() bool {
	return p.NetQuantity() != 0
}

// AverageEntryPrice is the quantity-weighted mean of opening fill prices.
func (p *Position) AverageEntryPrice() float64 {
	var qty int
	var notional float64
	for _, f := range p.OpenFills {
		qty += f.Quantity
		notional += f.Price * float64(f.Quantity)
	}
	if qty == 0 {
		return 0
	}
	return notional / float64(qty)
}

// EntryCost is the absolute capital committed by the open fills, excluding
// commission.
func (p *Position) EntryCost(multiplier int) float64 {
	var cost float64
	for _, f := range p.OpenFills {
		cost += f.Price * float64(f.Quantity) * float64(multiplier)
	}
	return cost
}

// MarkValue values the remaining net quantity at price.
func (p *Position) MarkValue(price float64, multiplier int) float64 {
	return price * float64(p.NetQuantity()) * float64(multiplier)
}

// UnrealizedPnLPercent is the current P&L as a fraction of entry cost, signed
// by direction: a long gains when price rises, a short gains when it falls.
func (p *Position) UnrealizedPnLPercent(price float64) float64 {
	entry := p.AverageEntryPrice()
	if entry == 0 {
		return 0
	}
	pct := (price - entry) / entry
	if p.Direction == DirectionShort {
		pct = -pct
	}
	return pct
}

// DaysHeld counts calendar days from entry to asOf.
func (p *Position) DaysHeld(asOf time.Time) int {
	return int(DateOf(asOf).Sub(DateOf(p.EntryDate)).Hours() / 24)
}
