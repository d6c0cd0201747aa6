// Package portfolio provides authoritative cash and position bookkeeping
// for a backtest run.
package portfolio

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/manisahni/optionslab/internal/errors"
	"github.com/manisahni/optionslab/internal/logging"
	"github.com/manisahni/optionslab/internal/models"
)

// SyntheticClosePrice is the fixed near-zero price used when a position's
// contract can no longer be found in market data (treated as worthless).
const SyntheticClosePrice = 0.01

// ContractSource resolves contract identities against a day's chain. It is
// satisfied by *market.Snapshot.
type ContractSource interface {
	Lookup(models.ContractKey) (*models.OptionContract, bool)
}

// FillModel controls how fills are priced relative to the quoted spread.
type FillModel struct {
	// SpreadFactor scales fills between mid (0) and the touch (1): buys
	// fill at mid + factor*(ask-mid), sells at mid - factor*(mid-bid).
	SpreadFactor float64
	// CommissionPerContract is charged per contract on every fill.
	CommissionPerContract float64
}

// BuyFill returns the fill price for a buy.
func (m FillModel) BuyFill(c *models.OptionContract) float64 {
	return c.Mid + m.SpreadFactor*(c.Ask-c.Mid)
}

// SellFill returns the fill price for a sell.
func (m FillModel) SellFill(c *models.OptionContract) float64 {
	return c.Mid - m.SpreadFactor*(c.Mid-c.Bid)
}

// Commission returns the commission for qty contracts.
func (m FillModel) Commission(qty int) float64 {
	if qty < 0 {
		qty = -qty
	}
	return float64(qty) * m.CommissionPerContract
}

// Close is the outcome of closing a position: one exit fill applied to the
// whole remaining quantity.
type Close struct {
	Date       time.Time
	Price      float64
	Quantity   int
	Commission float64
	CashDelta  float64
	Greeks     models.GreekSnapshot
	Reason     models.ExitReason
	Synthetic  bool
}

// Ledger owns cash and the set of open positions for one backtest run. It
// is mutated only by the engine's single control thread; runs never share a
// ledger.
type Ledger struct {
	initialCapital float64
	cash           float64
	fillModel      FillModel
	multiplier     int

	positions map[models.ContractKey]*models.Position
	order     []models.ContractKey // insertion order of open positions

	trades    []*models.Trade
	snapshots []models.PortfolioSnapshot

	logger zerolog.Logger
}

// NewLedger creates a ledger with the given starting cash.
func NewLedger(initialCapital float64, fillModel FillModel, multiplier int, logger zerolog.Logger) *Ledger {
	return &Ledger{
		initialCapital: initialCapital,
		cash:           initialCapital,
		fillModel:      fillModel,
		multiplier:     multiplier,
		positions:      make(map[models.ContractKey]*models.Position),
		logger:         logger,
	}
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 { return l.cash }

// InitialCapital returns the starting cash.
func (l *Ledger) InitialCapital() float64 { return l.initialCapital }

// Multiplier returns the shares-per-contract multiplier.
func (l *Ledger) Multiplier() int { return l.multiplier }

// Trades returns the trade list in execution order.
func (l *Ledger) Trades() []*models.Trade { return l.trades }

// Snapshots returns the daily snapshot sequence.
func (l *Ledger) Snapshots() []models.PortfolioSnapshot { return l.snapshots }

// OpenPositions returns the open positions in the order they were opened.
func (l *Ledger) OpenPositions() []*models.Position {
	out := make([]*models.Position, 0, len(l.order))
	for _, key := range l.order {
		if p, ok := l.positions[key]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Position returns the open position for key, if any.
func (l *Ledger) Position(key models.ContractKey) (*models.Position, bool) {
	p, ok := l.positions[key]
	return p, ok
}

// ExecuteTrade opens (or adds to) a position with a single fill. A
// buy-to-open whose total cost exceeds available cash is rejected with
// ErrInsufficientFunds; short-side opens are unconditionally permitted
// because margin is not modeled (documented limitation).
func (l *Ledger) ExecuteTrade(id string, contract *models.OptionContract, quantity int, direction models.Direction, date time.Time) (*models.Trade, error) {
	if quantity <= 0 {
		return nil, errors.NewValidationError("quantity", quantity, "must be positive")
	}
	// Scaling into an existing position must match its side; netting down
	// goes through ClosePosition.
	if pos, ok := l.positions[contract.Key()]; ok && pos.Direction != direction {
		return nil, errors.NewValidationError("direction", direction,
			"conflicts with the open position's direction")
	}

	var fillPrice, cashDelta float64
	commission := l.fillModel.Commission(quantity)
	notional := func(price float64) float64 {
		return price * float64(quantity) * float64(l.multiplier)
	}

	switch direction {
	case models.DirectionLong:
		fillPrice = l.fillModel.BuyFill(contract)
		totalCost := notional(fillPrice) + commission
		if totalCost > l.cash {
			return nil, errors.ErrInsufficientFunds
		}
		cashDelta = -totalCost
	case models.DirectionShort:
		fillPrice = l.fillModel.SellFill(contract)
		cashDelta = notional(fillPrice) - commission
	default:
		return nil, errors.NewValidationError("direction", direction, "unknown direction")
	}

	l.cash += cashDelta

	trade := &models.Trade{
		ID:         id,
		Date:       models.DateOf(date),
		Contract:   contract.Key(),
		Direction:  direction,
		Quantity:   quantity,
		FillPrice:  fillPrice,
		Commission: commission,
		CashDelta:  cashDelta,
		Greeks:     models.SnapshotOf(contract, date),
	}
	l.trades = append(l.trades, trade)

	key := contract.Key()
	pos, ok := l.positions[key]
	if !ok {
		pos = &models.Position{
			Contract:  key,
			Direction: direction,
			EntryDate: trade.Date,
			LastKnown: trade.Greeks,
		}
		l.positions[key] = pos
		l.order = append(l.order, key)
	}
	pos.OpenFills = append(pos.OpenFills, models.Fill{
		TradeID:  trade.ID,
		Date:     trade.Date,
		Quantity: quantity,
		Price:    fillPrice,
	})

	logging.LogFill(l.logger, key.String(), string(direction), quantity, fillPrice, l.cash)
	return trade, nil
}

// ClosePosition flattens the position's full remaining quantity. When the
// contract is absent from the day's snapshot (expired), the close is
// synthetic at SyntheticClosePrice with reason expiration, which guarantees
// every open position terminates by the final simulated day.
func (l *Ledger) ClosePosition(pos *models.Position, contract *models.OptionContract, date time.Time, reason models.ExitReason) (*Close, error) {
	qty := pos.NetQuantity()
	if qty == 0 {
		return nil, errors.ErrPositionClosed
	}

	var price float64
	var greeks models.GreekSnapshot
	synthetic := contract == nil
	if synthetic {
		price = SyntheticClosePrice
		reason = models.ExitExpiration
		greeks = pos.LastKnown
		greeks.Date = models.DateOf(date)
		greeks.OptionPrice = price
		greeks.Stale = true
	} else {
		if pos.Direction == models.DirectionLong {
			price = l.fillModel.SellFill(contract)
		} else {
			price = l.fillModel.BuyFill(contract)
		}
		greeks = models.SnapshotOf(contract, date)
		greeks.OptionPrice = price
	}

	commission := l.fillModel.Commission(qty)
	notional := price * float64(qty) * float64(l.multiplier)

	var cashDelta float64
	if pos.Direction == models.DirectionLong {
		cashDelta = notional - commission
	} else {
		cashDelta = -notional - commission
	}
	l.cash += cashDelta

	pos.CloseFills = append(pos.CloseFills, models.Fill{
		Date:     models.DateOf(date),
		Quantity: qty,
		Price:    price,
	})

	// Terminal: remove from the active set.
	delete(l.positions, pos.Contract)
	for i, key := range l.order {
		if key == pos.Contract {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}

	return &Close{
		Date:       models.DateOf(date),
		Price:      price,
		Quantity:   qty,
		Commission: commission,
		CashDelta:  cashDelta,
		Greeks:     greeks,
		Reason:     reason,
		Synthetic:  synthetic,
	}, nil
}

// RefreshGreeks updates every open position's last-known snapshot from the
// day's chain. Contracts not found retain their previous values and are
// flagged stale.
func (l *Ledger) RefreshGreeks(snap ContractSource, date time.Time) {
	for _, pos := range l.OpenPositions() {
		if c, ok := snap.Lookup(pos.Contract); ok {
			pos.LastKnown = models.SnapshotOf(c, date)
		} else {
			pos.LastKnown.Stale = true
		}
	}
}

// ValuePositions marks every open position to market. Missing contracts
// value at 0 (conservative). Valuation is read-only and idempotent.
func (l *Ledger) ValuePositions(snap ContractSource) (float64, map[models.ContractKey]float64) {
	perPosition := make(map[models.ContractKey]float64, len(l.positions))
	var total float64
	for _, pos := range l.OpenPositions() {
		var value float64
		if c, ok := snap.Lookup(pos.Contract); ok {
			value = pos.MarkValue(c.Mid, l.multiplier)
			if pos.Direction == models.DirectionShort {
				value = -value
			}
		}
		perPosition[pos.Contract] = value
		total += value
	}
	return total, perPosition
}

// TakeSnapshot appends the end-of-day portfolio snapshot. It must be called
// exactly once per simulated day, after all trades for the day.
func (l *Ledger) TakeSnapshot(date time.Time, snap ContractSource) (models.PortfolioSnapshot, error) {
	day := models.DateOf(date)
	prevTotal := l.initialCapital
	if n := len(l.snapshots); n > 0 {
		last := l.snapshots[n-1]
		if !day.After(last.Date) {
			return models.PortfolioSnapshot{}, errors.Wrapf(errors.ErrOutOfOrderDate, "snapshot for %s after %s",
				day.Format("2006-01-02"), last.Date.Format("2006-01-02"))
		}
		prevTotal = last.TotalValue
	}

	positionsValue, _ := l.ValuePositions(snap)
	total := l.cash + positionsValue

	record := models.PortfolioSnapshot{
		Date:           day,
		Cash:           l.cash,
		PositionsValue: positionsValue,
		TotalValue:     total,
		DailyPnL:       total - prevTotal,
		CumulativePnL:  total - l.initialCapital,
		OpenPositions:  len(l.positions),
	}
	l.snapshots = append(l.snapshots, record)

	logging.LogSnapshot(l.logger, day, total, record.DailyPnL, record.OpenPositions)
	return record, nil
}
