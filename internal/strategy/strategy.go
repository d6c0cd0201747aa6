// Package strategy defines the strategy capability set and the built-in
// option strategies. Strategies are purely advisory: they never mutate
// engine or ledger state.
package strategy

import (
	"fmt"
	"time"

	"github.com/manisahni/optionslab/internal/config"
	"github.com/manisahni/optionslab/internal/market"
	"github.com/manisahni/optionslab/internal/models"
)

// MarketContext is the read-only portfolio view handed to a strategy when
// generating signals.
type MarketContext struct {
	Date           time.Time
	Cash           float64
	PortfolioValue float64
	OpenPositions  int
}

// Strategy produces entry signals and decides exits.
type Strategy interface {
	Name() string

	// GenerateSignals returns the day's entry signals, in execution order.
	GenerateSignals(snap *market.Snapshot, mctx MarketContext) []models.Signal

	// ShouldExit decides whether the position should be closed and why.
	// When several exit conditions apply on the same day the strategy's
	// precedence decides; the engine only executes the decision.
	ShouldExit(pos *models.Position, snap *market.Snapshot) (bool, models.ExitReason)
}

// New builds the configured strategy.
func New(cfg config.StrategyConfig) (Strategy, error) {
	switch cfg.Name {
	case "long_call":
		return newDirectional(cfg, models.RightCall, models.DirectionLong), nil
	case "long_put":
		return newDirectional(cfg, models.RightPut, models.DirectionLong), nil
	case "short_put":
		return newDirectional(cfg, models.RightPut, models.DirectionShort), nil
	case "short_call":
		return newDirectional(cfg, models.RightCall, models.DirectionShort), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Name)
	}
}
