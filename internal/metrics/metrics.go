// Package metrics derives performance figures from a completed backtest's
// snapshot sequence and trade log. Everything here is a pure function of
// its inputs.
package metrics

import (
	"encoding/json"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/manisahni/optionslab/internal/models"
)

// TradingDaysPerYear scales daily return figures to annual ones.
const TradingDaysPerYear = 252

// Summary holds the aggregate performance metrics of one run.
type Summary struct {
	TotalReturnPct      float64
	AnnualizedReturnPct float64
	SharpeRatio         float64
	SortinoRatio        float64
	MaxDrawdownPct      float64

	TotalTrades   int
	WinningTrades int
	LosingTrades  int

	WinRatePct float64
	// ProfitFactor is gross profit over gross loss: +Inf when gross loss is
	// zero with at least one winner, 0 when there are no trades.
	ProfitFactor    float64
	AverageWin      float64
	AverageLoss     float64
	LargestWin      float64
	LargestLoss     float64
	AverageDaysHeld float64
}

// MarshalJSON emits null for a non-finite profit factor. The in-memory
// value stays +Inf (a run that closes only winners has zero gross loss);
// encoding/json has no representation for it and would fail the whole
// document otherwise.
func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	aux := struct {
		plain
		ProfitFactor *float64
	}{plain: plain(s)}
	if !math.IsInf(s.ProfitFactor, 0) && !math.IsNaN(s.ProfitFactor) {
		aux.ProfitFactor = &s.ProfitFactor
	}
	return json.Marshal(aux)
}

// Calculate computes the summary for a snapshot sequence and trade log.
func Calculate(snapshots []models.PortfolioSnapshot, trades []*models.Trade, initialCapital float64) Summary {
	s := Summary{}

	if len(snapshots) > 0 {
		final := snapshots[len(snapshots)-1].TotalValue
		s.TotalReturnPct = (final - initialCapital) / initialCapital * 100
		s.AnnualizedReturnPct = annualize(snapshots, initialCapital, final)
		s.MaxDrawdownPct = maxDrawdown(snapshots, initialCapital) * 100

		returns := dailyReturns(snapshots, initialCapital)
		s.SharpeRatio = sharpe(returns)
		s.SortinoRatio = sortino(returns)
	}

	var grossProfit, grossLoss, daysHeld float64
	var closed int
	for _, t := range trades {
		if t.Exit == nil {
			continue
		}
		closed++
		pnl := t.Exit.PnL
		daysHeld += float64(t.Exit.DaysHeld)
		if pnl > 0 {
			s.WinningTrades++
			grossProfit += pnl
			s.AverageWin += pnl
			if pnl > s.LargestWin {
				s.LargestWin = pnl
			}
		} else {
			s.LosingTrades++
			grossLoss += -pnl
			s.AverageLoss += pnl
			if pnl < s.LargestLoss {
				s.LargestLoss = pnl
			}
		}
	}
	s.TotalTrades = closed

	if closed > 0 {
		s.WinRatePct = float64(s.WinningTrades) / float64(closed) * 100
		s.AverageDaysHeld = daysHeld / float64(closed)
	}
	if s.WinningTrades > 0 {
		s.AverageWin /= float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AverageLoss /= float64(s.LosingTrades)
	}

	switch {
	case closed == 0:
		s.ProfitFactor = 0
	case grossLoss == 0 && s.WinningTrades > 0:
		s.ProfitFactor = math.Inf(1)
	case grossLoss > 0:
		s.ProfitFactor = grossProfit / grossLoss
	}

	return s
}

// dailyReturns builds the day-over-day return series, with initial capital
// as the base for the first day.
func dailyReturns(snapshots []models.PortfolioSnapshot, initialCapital float64) []float64 {
	returns := make([]float64, 0, len(snapshots))
	prev := initialCapital
	for _, snap := range snapshots {
		if prev != 0 {
			returns = append(returns, (snap.TotalValue-prev)/prev)
		}
		prev = snap.TotalValue
	}
	return returns
}

func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, err := stats.Mean(returns)
	if err != nil {
		return 0
	}
	sd, err := stats.StandardDeviation(returns)
	if err != nil || sd == 0 {
		return 0
	}
	return mean / sd * math.Sqrt(TradingDaysPerYear)
}

func sortino(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, err := stats.Mean(returns)
	if err != nil {
		return 0
	}

	// Downside deviation: root mean square of negative returns only.
	var sumSq float64
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
		}
	}
	downside := math.Sqrt(sumSq / float64(len(returns)))
	if downside == 0 {
		return 0
	}
	return mean / downside * math.Sqrt(TradingDaysPerYear)
}

func maxDrawdown(snapshots []models.PortfolioSnapshot, initialCapital float64) float64 {
	peak := initialCapital
	var maxDD float64
	for _, snap := range snapshots {
		if snap.TotalValue > peak {
			peak = snap.TotalValue
		}
		if peak > 0 {
			dd := (peak - snap.TotalValue) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func annualize(snapshots []models.PortfolioSnapshot, initialCapital, final float64) float64 {
	first := snapshots[0].Date
	last := snapshots[len(snapshots)-1].Date
	days := last.Sub(first).Hours()/24 + 1
	if days <= 0 || initialCapital <= 0 || final <= 0 {
		return 0
	}
	years := days / 365
	if years == 0 {
		return 0
	}
	return (math.Pow(final/initialCapital, 1/years) - 1) * 100
}
