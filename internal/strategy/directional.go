package strategy

import (
	"fmt"

	"github.com/manisahni/optionslab/internal/config"
	"github.com/manisahni/optionslab/internal/market"
	"github.com/manisahni/optionslab/internal/models"
)

// Directional is a single-leg strategy: one option bought or sold at a
// delta + DTE target and held against profit, loss and time thresholds.
type Directional struct {
	cfg       config.StrategyConfig
	right     models.Right
	direction models.Direction
}

func newDirectional(cfg config.StrategyConfig, right models.Right, direction models.Direction) *Directional {
	return &Directional{cfg: cfg, right: right, direction: direction}
}

// Name implements Strategy.
func (d *Directional) Name() string { return d.cfg.Name }

// GenerateSignals opens one position at a time at the configured delta and
// DTE target. Quantity is left to the engine's capital-based sizing.
func (d *Directional) GenerateSignals(snap *market.Snapshot, mctx MarketContext) []models.Signal {
	if mctx.OpenPositions >= d.cfg.MaxOpenPositions {
		return nil
	}

	action := models.ActionBuy
	if d.direction == models.DirectionShort {
		action = models.ActionSell
	}

	return []models.Signal{{
		Action: action,
		Selection: models.ContractSelection{
			Right:          d.right,
			TargetDelta:    d.cfg.TargetDelta,
			DeltaTolerance: d.cfg.DeltaTolerance,
			MinDTE:         d.cfg.MinDTE,
			MaxDTE:         d.cfg.MaxDTE,
		},
		Reason: fmt.Sprintf("%s entry at %.2f delta, %d-%d DTE",
			d.cfg.Name, d.cfg.TargetDelta, d.cfg.MinDTE, d.cfg.MaxDTE),
	}}
}

// ShouldExit applies the exit rules in precedence order: expiration, then
// stop loss, then profit target, then time decay.
func (d *Directional) ShouldExit(pos *models.Position, snap *market.Snapshot) (bool, models.ExitReason) {
	contract, ok := snap.Lookup(pos.Contract)
	if !ok {
		// Contract gone from the chain: expired, close synthetically.
		return true, models.ExitExpiration
	}
	if contract.DTE <= 0 {
		return true, models.ExitExpiration
	}

	pnlPct := pos.UnrealizedPnLPercent(contract.Mid)

	if d.cfg.StopLossPct > 0 && pnlPct <= -d.cfg.StopLossPct {
		return true, models.ExitStopLoss
	}
	if d.cfg.ProfitTargetPct > 0 && pnlPct >= d.cfg.ProfitTargetPct {
		return true, models.ExitProfitTarget
	}
	if d.cfg.ExitDTE > 0 && contract.DTE <= d.cfg.ExitDTE {
		return true, models.ExitTimeDecay
	}
	if d.cfg.MaxHoldDays > 0 && pos.DaysHeld(snap.Date) >= d.cfg.MaxHoldDays {
		return true, models.ExitTimeDecay
	}

	return false, ""
}
