// Package sweep runs a grid of strategy parameter combinations as
// independent backtests over a bounded worker pool.
package sweep

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/manisahni/optionslab/internal/config"
	"github.com/manisahni/optionslab/internal/engine"
	"github.com/manisahni/optionslab/internal/market"
	"github.com/manisahni/optionslab/internal/strategy"
)

// Grid lists the parameter values to combine. Empty axes fall back to the
// base strategy's value for that parameter.
type Grid struct {
	TargetDeltas  []float64
	ProfitTargets []float64
	StopLosses    []float64
}

// Outcome is one finished variant. Err is set when the variant's run
// aborted; Result then holds whatever had accumulated.
type Outcome struct {
	Strategy config.StrategyConfig
	Result   *engine.Result
	Err      error
}

// Runner executes sweep grids against a shared market provider. The
// provider is read-only across variants, so a CachedProvider amortizes
// snapshot loading over the whole grid.
type Runner struct {
	base     *config.Config
	provider market.Provider
	workers  int
	logger   zerolog.Logger
}

// NewRunner builds a runner. workers <= 0 uses one worker per CPU.
func NewRunner(base *config.Config, provider market.Provider, workers int, logger zerolog.Logger) *Runner {
	return &Runner{
		base:     base,
		provider: provider,
		workers:  workers,
		logger:   logger,
	}
}

// Expand produces the strategy variants of a grid against a base
// strategy, in deterministic order.
func Expand(base config.StrategyConfig, grid Grid) []config.StrategyConfig {
	deltas := grid.TargetDeltas
	if len(deltas) == 0 {
		deltas = []float64{base.TargetDelta}
	}
	targets := grid.ProfitTargets
	if len(targets) == 0 {
		targets = []float64{base.ProfitTargetPct}
	}
	stops := grid.StopLosses
	if len(stops) == 0 {
		stops = []float64{base.StopLossPct}
	}

	variants := make([]config.StrategyConfig, 0, len(deltas)*len(targets)*len(stops))
	for _, d := range deltas {
		for _, pt := range targets {
			for _, sl := range stops {
				v := base
				v.TargetDelta = d
				v.ProfitTargetPct = pt
				v.StopLossPct = sl
				variants = append(variants, v)
			}
		}
	}
	return variants
}

// Run executes every variant and returns outcomes sorted by total return,
// best first. Each variant gets its own engine and ledger; nothing is
// shared between variants except the provider.
func (r *Runner) Run(ctx context.Context, variants []config.StrategyConfig) []Outcome {
	outcomes := make([]Outcome, len(variants))

	pool := newWorkerPool(r.workers)
	pool.start()

	var wg sync.WaitGroup
	for i, variant := range variants {
		i, variant := i, variant
		wg.Add(1)
		ok := pool.submit(func() {
			defer wg.Done()
			outcomes[i] = r.runVariant(ctx, variant)
		})
		if !ok {
			wg.Done()
			outcomes[i] = Outcome{Strategy: variant, Err: ctx.Err()}
		}
	}
	wg.Wait()
	pool.stop()

	sort.SliceStable(outcomes, func(a, b int) bool {
		return outcomeReturn(outcomes[a]) > outcomeReturn(outcomes[b])
	})
	return outcomes
}

func (r *Runner) runVariant(ctx context.Context, variant config.StrategyConfig) Outcome {
	cfg := *r.base
	cfg.Strategy = variant

	logger := r.logger.With().
		Float64("target_delta", variant.TargetDelta).
		Float64("profit_target", variant.ProfitTargetPct).
		Float64("stop_loss", variant.StopLossPct).
		Logger()

	strat, err := strategy.New(variant)
	if err != nil {
		return Outcome{Strategy: variant, Err: err}
	}

	res, err := engine.New(&cfg, r.provider, strat, logger).Run(ctx)
	return Outcome{Strategy: variant, Result: res, Err: err}
}

func outcomeReturn(o Outcome) float64 {
	if o.Err != nil || o.Result == nil {
		return -1e18
	}
	return o.Result.Summary.TotalReturnPct
}
