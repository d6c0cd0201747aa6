package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/manisahni/optionslab/internal/errors"
	"github.com/manisahni/optionslab/internal/models"
	"github.com/manisahni/optionslab/internal/report"
	"github.com/manisahni/optionslab/internal/store"
	"github.com/manisahni/optionslab/pkg/utils"
)

func newRunsCmd(app *App) *cobra.Command {
	var (
		strategyFilter string
		limit          int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return errors.ErrDatabaseError
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			runs, err := app.Store.ListRuns(ctx, store.RunFilter{
				Strategy: strategyFilter,
				Limit:    limit,
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(runs)
			}
			if len(runs) == 0 {
				output.Info("No stored runs.")
				return nil
			}
			report.RenderRuns(output.Writer(), runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&strategyFilter, "strategy", "", "filter by strategy name")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")

	return cmd
}

func newShowCmd(app *App) *cobra.Command {
	var showTrades bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return errors.ErrDatabaseError
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			run, err := app.Store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(run)
			}

			output.Bold("Run %s  %s", run.ID, run.Strategy)
			output.Printf("Period:      %s to %s\n",
				run.StartDate.Format("2006-01-02"), run.EndDate.Format("2006-01-02"))
			output.Printf("Capital:     %s -> %s\n",
				utils.FormatCurrency(run.InitialCapital), utils.FormatCurrency(run.FinalValue))
			output.Printf("Return:      %s (annualized %s)\n",
				utils.FormatPercent(run.TotalReturnPct), utils.FormatPercent(run.AnnualizedReturnPct))
			output.Printf("Sharpe:      %.2f  Sortino: %.2f  MaxDD: %.2f%%\n",
				run.SharpeRatio, run.SortinoRatio, run.MaxDrawdownPct)
			output.Printf("Trades:      %d  Win rate: %.1f%%  Compliance: %.0f\n",
				run.TotalTrades, run.WinRatePct, run.ComplianceScore)

			if showTrades {
				trades, err := app.Store.GetTrades(ctx, run.ID)
				if err != nil {
					return err
				}
				output.Println()
				report.RenderTrades(output.Writer(), asTradePtrs(trades))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showTrades, "trades", false, "include the trade log")

	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export a stored run as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return errors.ErrDatabaseError
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			run, err := app.Store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			trades, err := app.Store.GetTrades(ctx, run.ID)
			if err != nil {
				return err
			}
			snapshots, err := app.Store.GetSnapshots(ctx, run.ID)
			if err != nil {
				return err
			}

			if dir == "" {
				dir = filepath.Join(app.Config.Output.ExportDir, run.ID)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			if err := report.ExportTrades(filepath.Join(dir, "trades.csv"), asTradePtrs(trades)); err != nil {
				return err
			}
			if err := report.ExportSnapshots(filepath.Join(dir, "snapshots.csv"), snapshots); err != nil {
				return err
			}

			output.Success("Exported run %s to %s", run.ID, dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "output directory (default: export_dir/<run-id>)")

	return cmd
}

func asTradePtrs(trades []models.Trade) []*models.Trade {
	out := make([]*models.Trade, len(trades))
	for i := range trades {
		out[i] = &trades[i]
	}
	return out
}
