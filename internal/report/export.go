// Package report renders backtest results for humans and exports them
// as CSV for downstream analysis.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/manisahni/optionslab/internal/engine"
	"github.com/manisahni/optionslab/internal/errors"
	"github.com/manisahni/optionslab/internal/models"
)

const dateLayout = "2006-01-02"

// tradeRow is the CSV shape of one trade with its exit, if any.
type tradeRow struct {
	ID          string  `csv:"trade_id"`
	Date        string  `csv:"date"`
	Strike      float64 `csv:"strike"`
	Expiration  string  `csv:"expiration"`
	Right       string  `csv:"right"`
	Direction   string  `csv:"direction"`
	Quantity    int     `csv:"quantity"`
	FillPrice   float64 `csv:"fill_price"`
	Commission  float64 `csv:"commission"`
	CashDelta   float64 `csv:"cash_delta"`
	EntryDelta  float64 `csv:"entry_delta"`
	EntryIV     float64 `csv:"entry_iv"`
	EntryDTE    int     `csv:"entry_dte"`
	Score       float64 `csv:"compliance_score"`

	ExitDate   string `csv:"exit_date"`
	ExitPrice  string `csv:"exit_price"`
	PnL        string `csv:"pnl"`
	PnLPercent string `csv:"pnl_pct"`
	DaysHeld   string `csv:"days_held"`
	ExitReason string `csv:"exit_reason"`
}

// snapshotRow is the CSV shape of one daily portfolio snapshot.
type snapshotRow struct {
	Date           string  `csv:"date"`
	Cash           float64 `csv:"cash"`
	PositionsValue float64 `csv:"positions_value"`
	TotalValue     float64 `csv:"total_value"`
	DailyPnL       float64 `csv:"daily_pnl"`
	CumulativePnL  float64 `csv:"cumulative_pnl"`
	OpenPositions  int     `csv:"open_positions"`
}

// summaryRow is the CSV shape of the run summary, one row per run.
type summaryRow struct {
	RunID               string  `csv:"run_id"`
	Strategy            string  `csv:"strategy"`
	StartDate           string  `csv:"start_date"`
	EndDate             string  `csv:"end_date"`
	InitialCapital      float64 `csv:"initial_capital"`
	FinalValue          float64 `csv:"final_value"`
	TotalReturnPct      float64 `csv:"total_return_pct"`
	AnnualizedReturnPct float64 `csv:"annualized_return_pct"`
	SharpeRatio         float64 `csv:"sharpe_ratio"`
	SortinoRatio        float64 `csv:"sortino_ratio"`
	MaxDrawdownPct      float64 `csv:"max_drawdown_pct"`
	TotalTrades         int     `csv:"total_trades"`
	WinRatePct          float64 `csv:"win_rate_pct"`
	ProfitFactor        float64 `csv:"profit_factor"`
	ComplianceScore     float64 `csv:"compliance_score"`
}

// ExportResult writes trades.csv, snapshots.csv and summary.csv into dir.
// dir is created if it does not exist.
func ExportResult(dir string, res *engine.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating export directory %s", dir)
	}
	if err := ExportTrades(filepath.Join(dir, "trades.csv"), res.Trades); err != nil {
		return err
	}
	if err := ExportSnapshots(filepath.Join(dir, "snapshots.csv"), res.Snapshots); err != nil {
		return err
	}
	return exportSummary(filepath.Join(dir, "summary.csv"), res)
}

// ExportTrades writes the trade log as CSV.
func ExportTrades(path string, trades []*models.Trade) error {
	rows := make([]tradeRow, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, toTradeRow(t))
	}
	return writeCSV(path, &rows)
}

// ExportSnapshots writes the daily snapshot sequence as CSV.
func ExportSnapshots(path string, snapshots []models.PortfolioSnapshot) error {
	rows := make([]snapshotRow, 0, len(snapshots))
	for _, s := range snapshots {
		rows = append(rows, snapshotRow{
			Date:           s.Date.Format(dateLayout),
			Cash:           s.Cash,
			PositionsValue: s.PositionsValue,
			TotalValue:     s.TotalValue,
			DailyPnL:       s.DailyPnL,
			CumulativePnL:  s.CumulativePnL,
			OpenPositions:  s.OpenPositions,
		})
	}
	return writeCSV(path, &rows)
}

func exportSummary(path string, res *engine.Result) error {
	rows := []summaryRow{{
		RunID:               res.RunID,
		Strategy:            res.Strategy,
		StartDate:           res.StartDate.Format(dateLayout),
		EndDate:             res.EndDate.Format(dateLayout),
		InitialCapital:      res.InitialCapital,
		FinalValue:          res.FinalValue,
		TotalReturnPct:      res.Summary.TotalReturnPct,
		AnnualizedReturnPct: res.Summary.AnnualizedReturnPct,
		SharpeRatio:         res.Summary.SharpeRatio,
		SortinoRatio:        res.Summary.SortinoRatio,
		MaxDrawdownPct:      res.Summary.MaxDrawdownPct,
		TotalTrades:         res.Summary.TotalTrades,
		WinRatePct:          res.Summary.WinRatePct,
		ProfitFactor:        res.Summary.ProfitFactor,
		ComplianceScore:     res.Scorecard.OverallScore,
	}}
	return writeCSV(path, &rows)
}

func toTradeRow(t *models.Trade) tradeRow {
	row := tradeRow{
		ID:         t.ID,
		Date:       t.Date.Format(dateLayout),
		Strike:     t.Contract.Strike,
		Expiration: t.Contract.Expiration.Format(dateLayout),
		Right:      string(t.Contract.Right),
		Direction:  string(t.Direction),
		Quantity:   t.Quantity,
		FillPrice:  t.FillPrice,
		Commission: t.Commission,
		CashDelta:  t.CashDelta,
		EntryDelta: t.Greeks.Delta,
		EntryIV:    t.Greeks.IV,
		EntryDTE:   t.Greeks.DTE,
	}
	if t.Compliance != nil {
		row.Score = t.Compliance.Score
	}
	if t.Exit != nil {
		row.ExitDate = t.Exit.Date.Format(dateLayout)
		row.ExitPrice = fmt.Sprintf("%.4f", t.Exit.Price)
		row.PnL = fmt.Sprintf("%.2f", t.Exit.PnL)
		row.PnLPercent = fmt.Sprintf("%.2f", t.Exit.PnLPercent*100)
		row.DaysHeld = fmt.Sprintf("%d", t.Exit.DaysHeld)
		row.ExitReason = string(t.Exit.Reason)
	}
	return row
}

func writeCSV(path string, rows interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(rows, f); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}
