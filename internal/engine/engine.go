// Package engine runs the day-by-day backtest simulation, wiring the
// market provider, strategy, ledger, recorder and Greek trackers together.
package engine

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/manisahni/optionslab/internal/config"
	"github.com/manisahni/optionslab/internal/errors"
	"github.com/manisahni/optionslab/internal/greeks"
	"github.com/manisahni/optionslab/internal/journal"
	"github.com/manisahni/optionslab/internal/logging"
	"github.com/manisahni/optionslab/internal/market"
	"github.com/manisahni/optionslab/internal/metrics"
	"github.com/manisahni/optionslab/internal/models"
	"github.com/manisahni/optionslab/internal/portfolio"
	"github.com/manisahni/optionslab/internal/strategy"
)

// Engine owns the ledger, recorder and trackers for the duration of one
// backtest run. Runs never share these instances; a host running parameter
// sweeps builds one engine per run.
type Engine struct {
	cfg      *config.Config
	provider market.Provider
	strat    strategy.Strategy

	ledger   *portfolio.Ledger
	recorder *journal.Recorder
	trackers map[*models.Position]*greeks.Tracker

	histories []PositionGreeks
	runLog    []LogEntry

	logger zerolog.Logger
}

// LogEntry records a recoverable per-day event. These never unwind the
// run; they are part of its output.
type LogEntry struct {
	Date    time.Time
	Kind    string // signal_unmatched, signal_rejected
	Message string
}

// PositionGreeks is the finished Greek history of one position.
type PositionGreeks struct {
	Contract models.ContractKey
	History  []models.GreekSnapshot
	Changes  greeks.Changes
	Patterns greeks.Patterns
}

// Result is the complete output of one run. A completed run always yields
// a fully reconciled trade log (every opened position has a matching close)
// and a gap-free snapshot sequence; an aborted run carries whatever had
// accumulated up to the failure point.
type Result struct {
	RunID          string
	Strategy       string
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital float64

	Trades        []*models.Trade
	Snapshots     []models.PortfolioSnapshot
	GreekHistory  []PositionGreeks
	Summary       metrics.Summary
	Scorecard     journal.Scorecard
	RunLog        []LogEntry
	TradingDays   int
	FinalValue    float64
	OpenPositions int
}

// New builds an engine for one run.
func New(cfg *config.Config, provider market.Provider, strat strategy.Strategy, logger zerolog.Logger) *Engine {
	fill := portfolio.FillModel{
		SpreadFactor:          cfg.Backtest.SpreadFactor,
		CommissionPerContract: cfg.Backtest.CommissionPerContract,
	}
	return &Engine{
		cfg:      cfg,
		provider: provider,
		strat:    strat,
		ledger:   portfolio.NewLedger(cfg.Backtest.InitialCapital, fill, cfg.Backtest.Multiplier, logger),
		recorder: journal.NewRecorder(cfg.Strategy, cfg.Backtest.Multiplier),
		trackers: make(map[*models.Position]*greeks.Tracker),
		logger:   logging.WithStrategy(logger, cfg.Strategy.Name),
	}
}

// Run executes the simulation over the configured date range. It processes
// dates strictly in ascending order; each date runs the fixed step sequence
// (refresh Greeks, evaluate exits, close, generate signals, execute
// entries, snapshot) whose ordering is load-bearing: Greeks must be fresh
// before exit decisions, and exits free capital for same-day entries.
//
// On a fatal condition the partial result is returned alongside the error
// for diagnostics.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	logger := logging.WithRun(e.logger, runID)

	start, err := e.cfg.Backtest.Start()
	if err != nil {
		return nil, errors.Wrap(err, "invalid backtest config")
	}
	end, err := e.cfg.Backtest.End()
	if err != nil {
		return nil, errors.Wrap(err, "invalid backtest config")
	}

	dates, err := e.provider.Dates(ctx, start, end)
	if err != nil {
		return nil, errors.Wrap(err, "listing trading dates")
	}
	if len(dates) == 0 {
		return nil, errors.NewFatalError(start, "no market data in date range", errors.ErrNoSnapshot)
	}

	var prev time.Time
	for i, date := range dates {
		if !prev.IsZero() && !date.After(prev) {
			return e.result(runID, start, end), errors.NewFatalError(date, "trading dates out of order", errors.ErrOutOfOrderDate)
		}
		prev = date

		final := i == len(dates)-1
		if err := e.runDay(ctx, logger, date, final); err != nil {
			return e.result(runID, start, end), err
		}

		select {
		case <-ctx.Done():
			return e.result(runID, start, end), errors.NewFatalError(date, "run cancelled", ctx.Err())
		default:
		}
	}

	res := e.result(runID, start, end)
	logger.Info().
		Int("trades", len(res.Trades)).
		Int("days", res.TradingDays).
		Float64("final_value", res.FinalValue).
		Msg("Backtest complete")
	return res, nil
}

// runDay executes the fixed per-date step sequence. On the final date the
// terminal closeout runs before the day's snapshot so the last snapshot
// reconciles exactly against cash.
func (e *Engine) runDay(ctx context.Context, logger zerolog.Logger, date time.Time, final bool) error {
	dayLog := logging.WithDate(logger, date)

	// 1. Load. A missing or corrupt snapshot for an expected date is fatal:
	// continuing would silently diverge from observable market state.
	snap, err := e.provider.GetSnapshot(ctx, date)
	if err != nil {
		return errors.NewFatalError(date, "loading market snapshot", err)
	}

	// 2. Refresh Greeks for open positions; absent contracts keep their
	// previous values flagged stale.
	e.ledger.RefreshGreeks(snap, date)
	for pos, tracker := range e.trackers {
		if c, ok := snap.Lookup(pos.Contract); ok {
			if err := tracker.Update(date, models.SnapshotOf(c, date)); err != nil {
				return errors.NewFatalError(date, "updating greek tracker", err)
			}
		}
	}

	// 3. Evaluate exits.
	type flagged struct {
		pos    *models.Position
		reason models.ExitReason
	}
	var exits []flagged
	for _, pos := range e.ledger.OpenPositions() {
		if ok, reason := e.strat.ShouldExit(pos, snap); ok {
			exits = append(exits, flagged{pos, reason})
		}
	}

	// 4. Close flagged positions.
	for _, f := range exits {
		if err := e.closePosition(dayLog, snap, f.pos, date, f.reason); err != nil {
			return err
		}
	}

	// 5. Generate signals. Order is preserved: later signals may depend on
	// capital freed by earlier ones.
	positionsValue, _ := e.ledger.ValuePositions(snap)
	mctx := strategy.MarketContext{
		Date:           date,
		Cash:           e.ledger.Cash(),
		PortfolioValue: e.ledger.Cash() + positionsValue,
		OpenPositions:  len(e.ledger.OpenPositions()),
	}
	signals := e.strat.GenerateSignals(snap, mctx)

	// 6. Execute entries.
	for _, sig := range signals {
		e.executeSignal(dayLog, snap, sig, date)
	}

	// Terminal closeout: flatten everything against the final snapshot.
	if final {
		for _, pos := range e.ledger.OpenPositions() {
			if err := e.closePosition(dayLog, snap, pos, date, models.ExitBacktestEnd); err != nil {
				return err
			}
		}
	}

	// 7. Snapshot, exactly once per day, after all fills.
	if _, err := e.ledger.TakeSnapshot(date, snap); err != nil {
		return errors.NewFatalError(date, "taking portfolio snapshot", err)
	}
	return nil
}

// closePosition flattens one position and reconciles its trades and
// tracker. A contract absent from the chain closes synthetically.
func (e *Engine) closePosition(logger zerolog.Logger, snap *market.Snapshot, pos *models.Position, date time.Time, reason models.ExitReason) error {
	contract, _ := snap.Lookup(pos.Contract) // nil means synthetic close

	cls, err := e.ledger.ClosePosition(pos, contract, date, reason)
	if err != nil {
		return errors.NewFatalError(date, "closing position", err)
	}

	for _, fill := range pos.OpenFills {
		if trade := e.tradeByID(fill.TradeID); trade != nil {
			e.recorder.RecordExit(trade, cls)
			logging.LogExit(logger, pos.Contract.String(), string(cls.Reason), trade.Exit.PnL, trade.Exit.DaysHeld)
		}
	}

	if tracker, ok := e.trackers[pos]; ok {
		tracker.SetExit(date, cls.Greeks)
		changes, _ := tracker.Changes()
		e.histories = append(e.histories, PositionGreeks{
			Contract: pos.Contract,
			History:  tracker.History(),
			Changes:  changes,
			Patterns: greeks.AnalyzePatterns(tracker),
		})
		delete(e.trackers, pos)
	}
	return nil
}

// executeSignal resolves, sizes and fills one entry signal. Failures here
// are recoverable: the signal is logged and skipped, the day continues.
func (e *Engine) executeSignal(logger zerolog.Logger, snap *market.Snapshot, sig models.Signal, date time.Time) {
	contract, meta := market.FindNearestContract(snap, sig.Selection, nil)
	if contract == nil {
		e.log(date, "signal_unmatched", sig.Reason)
		logging.LogSkippedSignal(logger, string(sig.Action), "no contract within tolerance")
		return
	}

	direction := models.DirectionLong
	if sig.Action == models.ActionSell {
		direction = models.DirectionShort
	}

	qty := sig.Quantity
	if qty <= 0 {
		var affordable bool
		qty, affordable = e.sizePosition(snap, contract, direction)
		if !affordable {
			e.log(date, "signal_rejected", "insufficient capital for one contract")
			logging.LogSkippedSignal(logger, string(sig.Action), "insufficient capital")
			return
		}
	}

	trade, err := e.ledger.ExecuteTrade(e.recorder.NewTradeID(), contract, qty, direction, date)
	if err != nil {
		if errors.Is(err, errors.ErrInsufficientFunds) {
			e.log(date, "signal_rejected", "insufficient cash at fill")
			logging.LogSkippedSignal(logger, string(sig.Action), "insufficient cash")
			return
		}
		e.log(date, "signal_rejected", err.Error())
		return
	}

	e.recorder.RecordEntry(trade, meta)

	if pos, ok := e.ledger.Position(contract.Key()); ok {
		if _, exists := e.trackers[pos]; !exists {
			e.trackers[pos] = greeks.NewTracker(trade.Greeks)
		}
	}
}

// sizePosition computes floor(portfolio_value × max_position_fraction /
// cost per contract), with a minimum of one contract when affordable.
// Short opens are not cash-constrained (margin is not modeled).
func (e *Engine) sizePosition(snap *market.Snapshot, contract *models.OptionContract, direction models.Direction) (int, bool) {
	fill := portfolio.FillModel{
		SpreadFactor:          e.cfg.Backtest.SpreadFactor,
		CommissionPerContract: e.cfg.Backtest.CommissionPerContract,
	}

	var price float64
	if direction == models.DirectionLong {
		price = fill.BuyFill(contract)
	} else {
		price = fill.SellFill(contract)
	}
	perContract := price*float64(e.cfg.Backtest.Multiplier) + e.cfg.Backtest.CommissionPerContract
	if perContract <= 0 {
		return 0, false
	}

	positionsValue, _ := e.ledger.ValuePositions(snap)
	portfolioValue := e.ledger.Cash() + positionsValue

	qty := int(math.Floor(portfolioValue * e.cfg.Strategy.MaxPositionFraction / perContract))
	if qty < 1 {
		qty = 1
	}

	if direction == models.DirectionLong {
		// Shrink to what cash actually covers; reject when even one
		// contract is out of reach.
		for qty > 0 && perContract*float64(qty) > e.ledger.Cash() {
			qty--
		}
		if qty == 0 {
			return 0, false
		}
	}
	return qty, true
}

func (e *Engine) tradeByID(id string) *models.Trade {
	for _, t := range e.ledger.Trades() {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (e *Engine) log(date time.Time, kind, message string) {
	e.runLog = append(e.runLog, LogEntry{Date: models.DateOf(date), Kind: kind, Message: message})
}

func (e *Engine) result(runID string, start, end time.Time) *Result {
	trades := e.ledger.Trades()
	snapshots := e.ledger.Snapshots()

	res := &Result{
		RunID:          runID,
		Strategy:       e.strat.Name(),
		StartDate:      start,
		EndDate:        end,
		InitialCapital: e.ledger.InitialCapital(),
		Trades:         trades,
		Snapshots:      snapshots,
		GreekHistory:   e.histories,
		Summary:        metrics.Calculate(snapshots, trades, e.ledger.InitialCapital()),
		Scorecard:      journal.ComplianceScorecard(trades),
		RunLog:         e.runLog,
		TradingDays:    len(snapshots),
		OpenPositions:  len(e.ledger.OpenPositions()),
	}
	if n := len(snapshots); n > 0 {
		res.FinalValue = snapshots[n-1].TotalValue
	} else {
		res.FinalValue = e.ledger.InitialCapital()
	}
	return res
}
