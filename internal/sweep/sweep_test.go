package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/manisahni/optionslab/internal/config"
	"github.com/manisahni/optionslab/internal/market"
	"github.com/manisahni/optionslab/internal/models"
)

func baseStrategy() config.StrategyConfig {
	return config.StrategyConfig{
		Name:                "long_call",
		Right:               "call",
		TargetDelta:         0.40,
		DeltaTolerance:      0.05,
		MinDTE:              30,
		MaxDTE:              45,
		ProfitTargetPct:     0.50,
		StopLossPct:         0.30,
		MaxHoldDays:         21,
		ExitDTE:             3,
		MaxPositionFraction: 0.10,
		MaxOpenPositions:    1,
	}
}

func TestExpandFullGrid(t *testing.T) {
	grid := Grid{
		TargetDeltas:  []float64{0.30, 0.40},
		ProfitTargets: []float64{0.50, 1.00},
		StopLosses:    []float64{0.25, 0.50},
	}
	variants := Expand(baseStrategy(), grid)
	if len(variants) != 8 {
		t.Fatalf("len(variants) = %d, want 8", len(variants))
	}

	// Deterministic nesting: delta outermost, stop loss innermost.
	first := variants[0]
	if first.TargetDelta != 0.30 || first.ProfitTargetPct != 0.50 || first.StopLossPct != 0.25 {
		t.Errorf("first variant = %.2f/%.2f/%.2f, want 0.30/0.50/0.25",
			first.TargetDelta, first.ProfitTargetPct, first.StopLossPct)
	}
	second := variants[1]
	if second.StopLossPct != 0.50 {
		t.Errorf("second variant stop loss = %v, want 0.50", second.StopLossPct)
	}
	last := variants[7]
	if last.TargetDelta != 0.40 || last.ProfitTargetPct != 1.00 || last.StopLossPct != 0.50 {
		t.Errorf("last variant = %.2f/%.2f/%.2f, want 0.40/1.00/0.50",
			last.TargetDelta, last.ProfitTargetPct, last.StopLossPct)
	}

	// Non-grid fields carry over from the base untouched.
	for i, v := range variants {
		if v.Name != "long_call" || v.DeltaTolerance != 0.05 || v.MaxDTE != 45 {
			t.Errorf("variant %d lost base fields: %+v", i, v)
		}
	}
}

func TestExpandEmptyAxesFallBackToBase(t *testing.T) {
	base := baseStrategy()

	variants := Expand(base, Grid{})
	if len(variants) != 1 {
		t.Fatalf("len(variants) = %d, want 1", len(variants))
	}
	if variants[0] != base {
		t.Errorf("variant = %+v, want base unchanged", variants[0])
	}

	variants = Expand(base, Grid{ProfitTargets: []float64{0.25, 0.50, 0.75}})
	if len(variants) != 3 {
		t.Fatalf("len(variants) = %d, want 3", len(variants))
	}
	for _, v := range variants {
		if v.TargetDelta != base.TargetDelta || v.StopLossPct != base.StopLossPct {
			t.Errorf("missing axes should keep base values, got %+v", v)
		}
	}
}

// One-day market: the matching variant buys at the ask side and is
// force-closed at the bid side the same day, so it loses the spread plus
// commissions. The non-matching variant never trades and finishes flat,
// which sorts it ahead. An invalid variant errors and sorts last.
func TestRunnerRunSortsOutcomes(t *testing.T) {
	provider := market.NewMemoryProvider()
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	contract := models.OptionContract{
		Strike:     150,
		Expiration: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Right:      models.RightCall,
		Bid:        4.90,
		Ask:        5.10,
		Mid:        5.00,
		Delta:      0.42,
		Theta:      -0.05,
		IV:         0.30,
		DTE:        43,
	}
	if err := provider.AddDay(day, []models.OptionContract{contract}); err != nil {
		t.Fatal(err)
	}

	base := &config.Config{
		Backtest: config.BacktestConfig{
			StartDate:             "2024-02-01",
			EndDate:               "2024-02-01",
			InitialCapital:        10000,
			CommissionPerContract: 0.65,
			SpreadFactor:          0.5,
			Multiplier:            100,
		},
		Strategy: baseStrategy(),
	}

	matching := baseStrategy()
	flat := baseStrategy()
	flat.TargetDelta = 0.10
	broken := baseStrategy()
	broken.Name = "iron_condor"

	runner := NewRunner(base, provider, 2, zerolog.Nop())
	outcomes := runner.Run(context.Background(), []config.StrategyConfig{matching, broken, flat})
	if len(outcomes) != 3 {
		t.Fatalf("len(outcomes) = %d, want 3", len(outcomes))
	}

	best := outcomes[0]
	if best.Err != nil {
		t.Fatalf("best outcome errored: %v", best.Err)
	}
	if best.Strategy.TargetDelta != 0.10 {
		t.Errorf("best outcome delta = %v, want the flat 0.10 variant", best.Strategy.TargetDelta)
	}
	if len(best.Result.Trades) != 0 {
		t.Errorf("flat variant traded %d times", len(best.Result.Trades))
	}
	if best.Result.Summary.TotalReturnPct != 0 {
		t.Errorf("flat variant return = %v, want 0", best.Result.Summary.TotalReturnPct)
	}

	mid := outcomes[1]
	if mid.Err != nil {
		t.Fatalf("matching outcome errored: %v", mid.Err)
	}
	if mid.Strategy.TargetDelta != 0.40 {
		t.Errorf("second outcome delta = %v, want 0.40", mid.Strategy.TargetDelta)
	}
	if len(mid.Result.Trades) != 1 {
		t.Fatalf("matching variant trades = %d, want 1", len(mid.Result.Trades))
	}
	if mid.Result.Summary.TotalReturnPct >= 0 {
		t.Errorf("spread round trip should lose, return = %v", mid.Result.Summary.TotalReturnPct)
	}

	worst := outcomes[2]
	if worst.Err == nil {
		t.Error("invalid variant should carry an error")
	}
	if worst.Strategy.Name != "iron_condor" {
		t.Errorf("worst outcome = %q, want the broken variant", worst.Strategy.Name)
	}
}

// Variants must not share ledgers: running the same variant twice in one
// sweep yields two independent, identical results.
func TestRunnerRunIsolatesVariants(t *testing.T) {
	provider := market.NewMemoryProvider()
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if err := provider.AddDay(day, []models.OptionContract{{
		Strike:     150,
		Expiration: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Right:      models.RightCall,
		Bid:        4.90,
		Ask:        5.10,
		Mid:        5.00,
		Delta:      0.42,
		DTE:        43,
	}}); err != nil {
		t.Fatal(err)
	}

	base := &config.Config{
		Backtest: config.BacktestConfig{
			StartDate:             "2024-02-01",
			EndDate:               "2024-02-01",
			InitialCapital:        10000,
			CommissionPerContract: 0.65,
			SpreadFactor:          0.5,
			Multiplier:            100,
		},
		Strategy: baseStrategy(),
	}

	runner := NewRunner(base, provider, 4, zerolog.Nop())
	outcomes := runner.Run(context.Background(),
		[]config.StrategyConfig{baseStrategy(), baseStrategy(), baseStrategy()})

	for i, o := range outcomes {
		if o.Err != nil {
			t.Fatalf("outcome %d errored: %v", i, o.Err)
		}
		if len(o.Result.Trades) != 1 {
			t.Errorf("outcome %d trades = %d, want 1", i, len(o.Result.Trades))
		}
		if o.Result.FinalValue != outcomes[0].Result.FinalValue {
			t.Errorf("outcome %d final value = %v, want %v",
				i, o.Result.FinalValue, outcomes[0].Result.FinalValue)
		}
	}
}
