package report

import (
	"fmt"
	"io"
	"math"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/manisahni/optionslab/internal/engine"
	"github.com/manisahni/optionslab/internal/models"
	"github.com/manisahni/optionslab/internal/store"
	"github.com/manisahni/optionslab/pkg/utils"
)

var (
	gain = color.New(color.FgGreen).SprintfFunc()
	loss = color.New(color.FgRed).SprintfFunc()
	dim  = color.New(color.Faint).SprintfFunc()
)

// pnlCell colors a signed dollar amount.
func pnlCell(v float64) string {
	s := fmt.Sprintf("%+.2f", v)
	switch {
	case v > 0:
		return gain("%s", s)
	case v < 0:
		return loss("%s", s)
	default:
		return s
	}
}

func ratioCell(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", v)
}

// RenderSummary prints the run summary and compliance scorecard.
func RenderSummary(w io.Writer, res *engine.Result) {
	fmt.Fprintf(w, "\nRun %s  %s  %s to %s  (%d trading days)\n\n",
		dim("%s", res.RunID), res.Strategy,
		res.StartDate.Format(dateLayout), res.EndDate.Format(dateLayout),
		res.TradingDays)

	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetColumnSeparator("")
	table.SetBorder(false)

	s := res.Summary
	table.Append([]string{"Initial capital", utils.FormatCurrency(res.InitialCapital)})
	table.Append([]string{"Final value", utils.FormatCurrency(res.FinalValue)})
	table.Append([]string{"Total return", pnlCell(s.TotalReturnPct) + "%"})
	table.Append([]string{"Annualized return", pnlCell(s.AnnualizedReturnPct) + "%"})
	table.Append([]string{"Sharpe ratio", ratioCell(s.SharpeRatio)})
	table.Append([]string{"Sortino ratio", ratioCell(s.SortinoRatio)})
	table.Append([]string{"Max drawdown", fmt.Sprintf("%.2f%%", s.MaxDrawdownPct)})
	table.Append([]string{"Trades", fmt.Sprintf("%d (%d W / %d L)", s.TotalTrades, s.WinningTrades, s.LosingTrades)})
	table.Append([]string{"Win rate", fmt.Sprintf("%.1f%%", s.WinRatePct)})
	table.Append([]string{"Profit factor", ratioCell(s.ProfitFactor)})
	table.Append([]string{"Avg days held", fmt.Sprintf("%.1f", s.AverageDaysHeld)})
	table.Render()

	card := res.Scorecard
	fmt.Fprintf(w, "\nCompliance: %.1f overall  delta %.1f%%  dte %.1f%%  (%d compliant, %d not)\n",
		card.OverallScore, card.DeltaCompliancePct, card.DTECompliancePct,
		card.CompliantTrades, card.NonCompliantTrades)

	if res.OpenPositions > 0 {
		fmt.Fprintf(w, "%s\n", loss("%d positions still open (aborted run)", res.OpenPositions))
	}
	if len(res.RunLog) > 0 {
		fmt.Fprintf(w, "%s\n", dim("%d signals skipped, see run log", len(res.RunLog)))
	}
}

// RenderTrades prints the trade log as a table.
func RenderTrades(w io.Writer, trades []*models.Trade) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Date", "Contract", "Dir", "Qty", "Fill", "Exit", "PnL", "Days", "Reason", "Score"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetBorder(false)

	for _, t := range trades {
		exitPrice, pnl, days, reason := "-", "-", "-", "open"
		if t.Exit != nil {
			exitPrice = fmt.Sprintf("%.2f", t.Exit.Price)
			pnl = pnlCell(t.Exit.PnL)
			days = fmt.Sprintf("%d", t.Exit.DaysHeld)
			reason = string(t.Exit.Reason)
		}
		score := "-"
		if t.Compliance != nil {
			score = fmt.Sprintf("%.0f", t.Compliance.Score)
		}
		table.Append([]string{
			t.Date.Format(dateLayout),
			t.Contract.String(),
			string(t.Direction),
			fmt.Sprintf("%d", t.Quantity),
			fmt.Sprintf("%.2f", t.FillPrice),
			exitPrice,
			pnl,
			days,
			reason,
			score,
		})
	}
	table.Render()
}

// RenderRuns prints stored run summaries, newest first.
func RenderRuns(w io.Writer, runs []store.RunRecord) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Run", "Strategy", "Period", "Return", "Sharpe", "MaxDD", "Trades", "Win%", "Score"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetBorder(false)

	for _, r := range runs {
		table.Append([]string{
			shortID(r.ID),
			r.Strategy,
			fmt.Sprintf("%s..%s", r.StartDate.Format(dateLayout), r.EndDate.Format(dateLayout)),
			pnlCell(r.TotalReturnPct) + "%",
			ratioCell(r.SharpeRatio),
			fmt.Sprintf("%.1f%%", r.MaxDrawdownPct),
			fmt.Sprintf("%d", r.TotalTrades),
			fmt.Sprintf("%.1f", r.WinRatePct),
			fmt.Sprintf("%.0f", r.ComplianceScore),
		})
	}
	table.Render()
}

// RenderGreekHistory prints per-position Greek evolution and patterns.
func RenderGreekHistory(w io.Writer, res *engine.Result) {
	for _, pg := range res.GreekHistory {
		fmt.Fprintf(w, "\n%s\n", pg.Contract.String())

		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Date", "Delta", "Gamma", "Theta", "Vega", "IV", "Price", "DTE"})
		table.SetAlignment(tablewriter.ALIGN_RIGHT)
		table.SetBorder(false)
		for _, g := range pg.History {
			stale := ""
			if g.Stale {
				stale = "*"
			}
			table.Append([]string{
				g.Date.Format(dateLayout) + stale,
				fmt.Sprintf("%.3f", g.Delta),
				fmt.Sprintf("%.4f", g.Gamma),
				fmt.Sprintf("%.4f", g.Theta),
				fmt.Sprintf("%.4f", g.Vega),
				fmt.Sprintf("%.1f%%", g.IV*100),
				fmt.Sprintf("%.2f", g.OptionPrice),
				fmt.Sprintf("%d", g.DTE),
			})
		}
		table.Render()

		p := pg.Patterns
		if p.ThetaAcceleration || p.DeltaDecay || p.IVCrush {
			fmt.Fprint(w, "patterns:")
			if p.ThetaAcceleration {
				fmt.Fprintf(w, " theta-acceleration (%+.1f%%)", p.ThetaChangePct*100)
			}
			if p.DeltaDecay {
				fmt.Fprintf(w, " delta-decay (%+.1f%%)", p.DeltaChangePct*100)
			}
			if p.IVCrush {
				fmt.Fprintf(w, " iv-crush (%+.1f%%)", p.IVChangePct*100)
			}
			fmt.Fprintln(w)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
