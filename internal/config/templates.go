package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# optionslab backtest configuration

[backtest]
# Simulation date range (inclusive), YYYY-MM-DD
start_date = "2024-01-02"
end_date = "2024-06-28"
# Starting cash
initial_capital = 10000.0
# Commission charged per contract per fill
commission_per_contract = 0.65
# Fill placement between mid (0.0) and the touch (1.0)
spread_factor = 0.5
# Shares per contract
multiplier = 100
# Directory of daily option chain snapshot CSV files
data_dir = ""

[strategy]
# Strategy: long_call, long_put, short_put
name = "long_call"
# Option right to trade: call, put
right = "call"
# Entry targeting
target_delta = 0.40
delta_tolerance = 0.05
min_dte = 30
max_dte = 45
# Exit criteria
profit_target_pct = 0.50
stop_loss_pct = 0.30
max_hold_days = 21
exit_dte = 7
# Sizing
max_position_fraction = 0.10
max_open_positions = 1

[output]
# SQLite database for completed runs (defaults next to this file)
db_path = ""
# Directory for CSV exports
export_dir = ""
`

// createTemplateConfig writes a template config.toml so a first run has
// something concrete to edit.
func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil // already exists
	}

	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing template config: %w", err)
	}

	return nil
}
