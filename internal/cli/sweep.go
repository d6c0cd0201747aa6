package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/manisahni/optionslab/internal/sweep"
)

func newSweepCmd(app *App) *cobra.Command {
	var (
		deltas  []float64
		targets []float64
		stops   []float64
		workers int
		save    bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a parameter sweep",
		Long: `Run the configured backtest once per combination of the given parameter
values, in parallel, and rank the outcomes by total return. Axes left
unset keep the configured strategy value.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Hour)
			defer cancel()

			provider, err := newProvider(app)
			if err != nil {
				return err
			}

			grid := sweep.Grid{
				TargetDeltas:  deltas,
				ProfitTargets: targets,
				StopLosses:    stops,
			}
			variants := sweep.Expand(app.Config.Strategy, grid)
			if len(variants) < 2 {
				output.Warning("Grid has %d combination(s); use --delta, --profit-target or --stop-loss to vary parameters", len(variants))
			}

			output.Info("Sweeping %d combinations", len(variants))
			runner := sweep.NewRunner(app.Config, provider, workers, app.Logger)
			outcomes := runner.Run(ctx, variants)

			if save && app.Store != nil {
				for _, o := range outcomes {
					if o.Err != nil || o.Result == nil {
						continue
					}
					if err := app.Store.SaveRun(ctx, o.Result); err != nil {
						output.Warning("Failed to save run %s: %v", o.Result.RunID, err)
					}
				}
			}

			if output.IsJSON() {
				return output.JSON(outcomes)
			}
			renderOutcomes(output, outcomes)
			return nil
		},
	}

	cmd.Flags().Float64SliceVar(&deltas, "delta", nil, "target delta values to sweep")
	cmd.Flags().Float64SliceVar(&targets, "profit-target", nil, "profit target fractions to sweep")
	cmd.Flags().Float64SliceVar(&stops, "stop-loss", nil, "stop loss fractions to sweep")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent backtests (default: one per CPU)")
	cmd.Flags().BoolVar(&save, "save", false, "persist every sweep run")

	return cmd
}

func renderOutcomes(output *Output, outcomes []sweep.Outcome) {
	table := tablewriter.NewWriter(output.Writer())
	table.SetHeader([]string{"Delta", "Target", "Stop", "Return", "Sharpe", "MaxDD", "Trades", "Win%"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetBorder(false)

	for _, o := range outcomes {
		row := []string{
			fmt.Sprintf("%.2f", o.Strategy.TargetDelta),
			fmt.Sprintf("%.2f", o.Strategy.ProfitTargetPct),
			fmt.Sprintf("%.2f", o.Strategy.StopLossPct),
		}
		if o.Err != nil || o.Result == nil {
			row = append(row, "error", "-", "-", "-", "-")
		} else {
			s := o.Result.Summary
			row = append(row,
				fmt.Sprintf("%+.2f%%", s.TotalReturnPct),
				fmt.Sprintf("%.2f", s.SharpeRatio),
				fmt.Sprintf("%.1f%%", s.MaxDrawdownPct),
				fmt.Sprintf("%d", s.TotalTrades),
				fmt.Sprintf("%.1f", s.WinRatePct),
			)
		}
		table.Append(row)
	}
	table.Render()

	for _, o := range outcomes {
		if o.Err != nil {
			output.Error("delta=%.2f target=%.2f stop=%.2f: %v",
				o.Strategy.TargetDelta, o.Strategy.ProfitTargetPct, o.Strategy.StopLossPct, o.Err)
		}
	}
}
