package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/manisahni/optionslab/internal/engine"
	"github.com/manisahni/optionslab/internal/market"
	"github.com/manisahni/optionslab/internal/report"
	"github.com/manisahni/optionslab/internal/strategy"
)

func newRunCmd(app *App) *cobra.Command {
	var (
		exportDir  string
		showTrades bool
		showGreeks bool
		noSave     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a backtest",
		Long: `Replay the configured date range day by day, executing the configured
strategy against option chain snapshots loaded from the data directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
			defer cancel()

			provider, err := newProvider(app)
			if err != nil {
				return err
			}

			strat, err := strategy.New(app.Config.Strategy)
			if err != nil {
				return err
			}

			res, err := engine.New(app.Config, provider, strat, app.Logger).Run(ctx)
			if err != nil {
				if res != nil {
					output.Warning("Run aborted: %v", err)
					output.Dim("Partial results through %d trading days", res.TradingDays)
				}
				return err
			}

			if output.IsJSON() {
				if err := output.JSON(res); err != nil {
					return err
				}
			} else {
				report.RenderSummary(output.Writer(), res)
				if showTrades {
					output.Println()
					report.RenderTrades(output.Writer(), res.Trades)
				}
				if showGreeks {
					report.RenderGreekHistory(output.Writer(), res)
				}
			}

			if !noSave && app.Store != nil {
				if err := app.Store.SaveRun(ctx, res); err != nil {
					output.Warning("Failed to save run: %v", err)
				} else {
					output.Dim("Saved as run %s", res.RunID)
				}
			}

			if exportDir != "" {
				if err := report.ExportResult(exportDir, res); err != nil {
					return err
				}
				output.Dim("Exported CSV to %s", exportDir)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&exportDir, "export", "", "export trades, snapshots and summary CSV to directory")
	cmd.Flags().BoolVar(&showTrades, "trades", false, "print the full trade log")
	cmd.Flags().BoolVar(&showGreeks, "greeks", false, "print per-position Greek evolution")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not persist the run")

	return cmd
}

// newProvider builds the chain snapshot source for a run. CSV loads are
// memoized so sweeps over the same range read each file once.
func newProvider(app *App) (market.Provider, error) {
	csvProvider, err := market.NewChainCSVProvider(app.Config.Backtest.DataDir)
	if err != nil {
		return nil, err
	}
	return market.NewCachedProvider(csvProvider), nil
}
