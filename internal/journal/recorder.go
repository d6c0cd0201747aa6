// Package journal enriches trades with compliance metadata and reconciles
// exit outcomes against the strategy's declared targets.
package journal

import (
	"math"

	"github.com/google/uuid"

	"github.com/manisahni/optionslab/internal/config"
	"github.com/manisahni/optionslab/internal/models"
	"github.com/manisahni/optionslab/internal/portfolio"
)

// Recorder scores opening trades against the strategy configuration and
// attaches exit outcomes. It references the ledger's trades, never copies
// them.
type Recorder struct {
	strategy   config.StrategyConfig
	multiplier int
}

// NewRecorder creates a recorder for one backtest run.
func NewRecorder(strategy config.StrategyConfig, multiplier int) *Recorder {
	return &Recorder{strategy: strategy, multiplier: multiplier}
}

// NewTradeID returns a fresh trade identifier.
func (r *Recorder) NewTradeID() string {
	return uuid.NewString()
}

// RecordEntry attaches compliance metadata to an opening trade. Each check
// contributes 0 or 100 to the score; a check with no underlying data is
// excluded from the average, not scored as a failure.
func (r *Recorder) RecordEntry(trade *models.Trade, meta *models.SelectionMeta) {
	c := &models.Compliance{
		TargetDelta:    r.strategy.TargetDelta,
		DeltaTolerance: r.strategy.DeltaTolerance,
		ActualDelta:    trade.Greeks.Delta,
		MinDTE:         r.strategy.MinDTE,
		MaxDTE:         r.strategy.MaxDTE,
		ActualDTE:      trade.Greeks.DTE,
	}
	if meta != nil {
		c.ActualDelta = meta.ActualDelta
		c.ActualDTE = meta.ActualDTE
	}

	var sum float64
	var checks int

	// Delta targeting is right-agnostic: a put's -0.40 matches a 0.40 target.
	if c.ActualDelta != 0 && c.TargetDelta != 0 {
		diff := math.Abs(math.Abs(c.ActualDelta) - math.Abs(c.TargetDelta))
		ok := diff <= c.DeltaTolerance
		c.DeltaCompliant = &ok
		if ok {
			sum += 100
		}
		checks++
	}

	if c.MaxDTE > 0 {
		ok := c.ActualDTE >= c.MinDTE && c.ActualDTE <= c.MaxDTE
		c.DTECompliant = &ok
		if ok {
			sum += 100
		}
		checks++
	}

	if checks > 0 {
		c.Score = sum / float64(checks)
	}
	trade.Compliance = c
}

// RecordExit attaches the exit outcome to an opening trade. When a close
// covers several opening trades, the exit commission is allocated by
// quantity share.
func (r *Recorder) RecordExit(trade *models.Trade, close *portfolio.Close) {
	if trade.Exit != nil {
		return // immutable once attached
	}

	allocCommission := close.Commission
	if close.Quantity > 0 && trade.Quantity != close.Quantity {
		allocCommission = close.Commission * float64(trade.Quantity) / float64(close.Quantity)
	}

	entryCost := trade.EntryCost(r.multiplier)
	gross := (close.Price - trade.FillPrice) * float64(trade.Quantity) * float64(r.multiplier)
	if trade.Direction == models.DirectionShort {
		gross = -gross
	}
	pnl := gross - trade.Commission - allocCommission

	var pnlPct float64
	if entryCost != 0 {
		pnlPct = pnl / entryCost
	}

	daysHeld := int(close.Date.Sub(models.DateOf(trade.Date)).Hours() / 24)

	trade.Exit = &models.TradeExit{
		Date:       close.Date,
		Price:      close.Price,
		Commission: allocCommission,
		Greeks:     close.Greeks,
		PnL:        pnl,
		PnLPercent: pnlPct,
		DaysHeld:   daysHeld,
		Reason:     close.Reason,
	}
}
