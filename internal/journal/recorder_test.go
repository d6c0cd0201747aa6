package journal

import (
	"math"
	"testing"
	"time"

	"github.com/manisahni/optionslab/internal/config"
	"github.com/manisahni/optionslab/internal/models"
	"github.com/manisahni/optionslab/internal/portfolio"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testStrategy() config.StrategyConfig {
	return config.StrategyConfig{
		Name:           "long_call",
		Right:          "call",
		TargetDelta:    0.40,
		DeltaTolerance: 0.05,
		MinDTE:         30,
		MaxDTE:         45,
	}
}

func openTrade(delta float64, dte int) *models.Trade {
	return &models.Trade{
		ID:        "t1",
		Date:      date(2024, 2, 1),
		Direction: models.DirectionLong,
		Quantity:  1,
		FillPrice: 5.05,
		Greeks:    models.GreekSnapshot{Delta: delta, DTE: dte},
	}
}

func TestRecordEntryScoring(t *testing.T) {
	tests := []struct {
		name      string
		delta     float64
		dte       int
		wantScore float64
		deltaOK   *bool
		dteOK     *bool
	}{
		{"both compliant", 0.42, 35, 100, boolPtr(true), boolPtr(true)},
		{"delta miss dte hit", 0.30, 35, 50, boolPtr(false), boolPtr(true)},
		{"delta hit dte miss", 0.42, 50, 50, boolPtr(true), boolPtr(false)},
		{"both miss", 0.30, 50, 0, boolPtr(false), boolPtr(false)},
		// A put's negative delta scores against the absolute target.
		{"put delta compliant", -0.42, 35, 100, boolPtr(true), boolPtr(true)},
		// Zero delta means no delta data: the check is excluded, not failed.
		{"no delta data", 0, 35, 100, nil, boolPtr(true)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecorder(testStrategy(), 100)
			trade := openTrade(tt.delta, tt.dte)
			r.RecordEntry(trade, nil)

			c := trade.Compliance
			if c == nil {
				t.Fatal("compliance not attached")
			}
			if c.Score != tt.wantScore {
				t.Errorf("score = %v, want %v", c.Score, tt.wantScore)
			}
			if !samePtr(c.DeltaCompliant, tt.deltaOK) {
				t.Errorf("DeltaCompliant = %v, want %v", fmtPtr(c.DeltaCompliant), fmtPtr(tt.deltaOK))
			}
			if !samePtr(c.DTECompliant, tt.dteOK) {
				t.Errorf("DTECompliant = %v, want %v", fmtPtr(c.DTECompliant), fmtPtr(tt.dteOK))
			}
			if c.Score < 0 || c.Score > 100 {
				t.Errorf("score %v outside [0,100]", c.Score)
			}
		})
	}
}

func TestRecordEntryUsesSelectionMeta(t *testing.T) {
	r := NewRecorder(testStrategy(), 100)
	trade := openTrade(0.42, 35)
	meta := &models.SelectionMeta{ActualDelta: 0.30, ActualDTE: 50}
	r.RecordEntry(trade, meta)

	c := trade.Compliance
	if c.ActualDelta != 0.30 || c.ActualDTE != 50 {
		t.Errorf("meta not preferred over trade greeks: %+v", c)
	}
	if c.Score != 0 {
		t.Errorf("score = %v, want 0 with both checks failing", c.Score)
	}
}

func TestRecordExitLong(t *testing.T) {
	r := NewRecorder(testStrategy(), 100)
	trade := openTrade(0.42, 35)
	trade.Commission = 0.65

	cls := &portfolio.Close{
		Date:       date(2024, 2, 10),
		Price:      7.00,
		Quantity:   1,
		Commission: 0.65,
		Reason:     models.ExitProfitTarget,
	}
	r.RecordExit(trade, cls)

	if trade.Exit == nil {
		t.Fatal("exit not attached")
	}
	if math.Abs(trade.Exit.PnL-193.70) > 1e-9 {
		t.Errorf("pnl = %v, want 193.70", trade.Exit.PnL)
	}
	wantPct := 193.70 / 505.0
	if math.Abs(trade.Exit.PnLPercent-wantPct) > 1e-9 {
		t.Errorf("pnl pct = %v, want %v", trade.Exit.PnLPercent, wantPct)
	}
	if trade.Exit.DaysHeld != 9 {
		t.Errorf("days held = %d, want 9", trade.Exit.DaysHeld)
	}
	if trade.Exit.Reason != models.ExitProfitTarget {
		t.Errorf("reason = %v", trade.Exit.Reason)
	}
}

func TestRecordExitShort(t *testing.T) {
	r := NewRecorder(testStrategy(), 100)
	trade := openTrade(-0.42, 35)
	trade.Direction = models.DirectionShort
	trade.FillPrice = 5.00
	trade.Commission = 0.65

	// Short gains when the option cheapens.
	cls := &portfolio.Close{
		Date:       date(2024, 2, 10),
		Price:      3.00,
		Quantity:   1,
		Commission: 0.65,
		Reason:     models.ExitProfitTarget,
	}
	r.RecordExit(trade, cls)

	want := (5.00-3.00)*100 - 1.30
	if math.Abs(trade.Exit.PnL-want) > 1e-9 {
		t.Errorf("short pnl = %v, want %v", trade.Exit.PnL, want)
	}
}

func TestRecordExitIdempotent(t *testing.T) {
	r := NewRecorder(testStrategy(), 100)
	trade := openTrade(0.42, 35)

	first := &portfolio.Close{Date: date(2024, 2, 10), Price: 7.00, Quantity: 1, Reason: models.ExitProfitTarget}
	r.RecordExit(trade, first)
	attached := trade.Exit

	second := &portfolio.Close{Date: date(2024, 2, 11), Price: 1.00, Quantity: 1, Reason: models.ExitStopLoss}
	r.RecordExit(trade, second)

	if trade.Exit != attached {
		t.Error("exit rewritten; must be immutable once attached")
	}
}

func TestRecordExitCommissionAllocation(t *testing.T) {
	r := NewRecorder(testStrategy(), 100)
	trade := openTrade(0.42, 35)
	trade.Quantity = 2

	// Close covers 5 contracts across several opening trades; this trade's
	// share is 2/5 of the exit commission.
	cls := &portfolio.Close{
		Date:       date(2024, 2, 10),
		Price:      6.00,
		Quantity:   5,
		Commission: 3.25,
		Reason:     models.ExitTimeDecay,
	}
	r.RecordExit(trade, cls)

	if math.Abs(trade.Exit.Commission-1.30) > 1e-9 {
		t.Errorf("allocated commission = %v, want 1.30", trade.Exit.Commission)
	}
}

func boolPtr(b bool) *bool { return &b }

func samePtr(got, want *bool) bool {
	if got == nil || want == nil {
		return got == nil && want == nil
	}
	return *got == *want
}

func fmtPtr(p *bool) interface{} {
	if p == nil {
		return "nil"
	}
	return *p
}
