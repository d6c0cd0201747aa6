// Package config provides configuration management for the backtester.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Backtest BacktestConfig `mapstructure:"backtest"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Output   OutputConfig   `mapstructure:"output"`
}

// BacktestConfig holds the simulation parameters for one run.
type BacktestConfig struct {
	StartDate             string  `mapstructure:"start_date"` // YYYY-MM-DD
	EndDate               string  `mapstructure:"end_date"`
	InitialCapital        float64 `mapstructure:"initial_capital"`
	CommissionPerContract float64 `mapstructure:"commission_per_contract"`
	// SpreadFactor scales fills between mid (0) and the touch (1):
	// buys fill at mid + factor*(ask-mid), sells at mid - factor*(mid-bid).
	SpreadFactor float64 `mapstructure:"spread_factor"`
	Multiplier   int     `mapstructure:"multiplier"` // shares per contract
	DataDir      string  `mapstructure:"data_dir"`
}

// StrategyConfig is the immutable per-backtest record of entry and exit
// criteria the strategy trades against and compliance is scored against.
type StrategyConfig struct {
	Name                string  `mapstructure:"name"`  // long_call, long_put, short_put
	Right               string  `mapstructure:"right"` // call, put
	TargetDelta         float64 `mapstructure:"target_delta"`
	DeltaTolerance      float64 `mapstructure:"delta_tolerance"`
	MinDTE              int     `mapstructure:"min_dte"`
	MaxDTE              int     `mapstructure:"max_dte"`
	ProfitTargetPct     float64 `mapstructure:"profit_target_pct"` // 0.50 = +50%
	StopLossPct         float64 `mapstructure:"stop_loss_pct"`     // 0.30 = -30%
	MaxHoldDays         int     `mapstructure:"max_hold_days"`
	ExitDTE             int     `mapstructure:"exit_dte"` // close when DTE falls to this
	MaxPositionFraction float64 `mapstructure:"max_position_fraction"`
	MaxOpenPositions    int     `mapstructure:"max_open_positions"`
}

// OutputConfig holds result persistence and export configuration.
type OutputConfig struct {
	DBPath    string `mapstructure:"db_path"`
	ExportDir string `mapstructure:"export_dir"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/optionslab"
	}
	return filepath.Join(home, ".config", "optionslab")
}

// Load loads configuration from the specified TOML file. If path is empty,
// it falls back to config.toml in the default config directory, creating a
// template there on first use.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(DefaultConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && path == "" {
			if terr := createTemplateConfig(DefaultConfigDir()); terr != nil {
				return nil, fmt.Errorf("creating template config: %w", terr)
			}
			return nil, fmt.Errorf("no config found; template written to %s", filepath.Join(DefaultConfigDir(), "config.toml"))
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyEnvOverrides(cfg)

	// An explicit empty db_path in the file beats the viper default.
	if cfg.Output.DBPath == "" {
		cfg.Output.DBPath = filepath.Join(DefaultConfigDir(), "optionslab.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backtest.initial_capital", 10000.0)
	v.SetDefault("backtest.commission_per_contract", 0.65)
	v.SetDefault("backtest.spread_factor", 0.5)
	v.SetDefault("backtest.multiplier", 100)
	v.SetDefault("strategy.name", "long_call")
	v.SetDefault("strategy.right", "call")
	v.SetDefault("strategy.target_delta", 0.40)
	v.SetDefault("strategy.delta_tolerance", 0.05)
	v.SetDefault("strategy.min_dte", 30)
	v.SetDefault("strategy.max_dte", 45)
	v.SetDefault("strategy.profit_target_pct", 0.50)
	v.SetDefault("strategy.stop_loss_pct", 0.30)
	v.SetDefault("strategy.max_hold_days", 21)
	v.SetDefault("strategy.exit_dte", 7)
	v.SetDefault("strategy.max_position_fraction", 0.10)
	v.SetDefault("strategy.max_open_positions", 1)
	v.SetDefault("output.db_path", filepath.Join(DefaultConfigDir(), "optionslab.db"))
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPTIONSLAB_DATA_DIR"); v != "" {
		cfg.Backtest.DataDir = v
	}
	if v := os.Getenv("OPTIONSLAB_DB_PATH"); v != "" {
		cfg.Output.DBPath = v
	}
}

// Validate validates the configuration. Any violation is a start-time fatal
// error; the engine never starts with an invalid config.
func (c *Config) Validate() error {
	start, err := c.Backtest.Start()
	if err != nil {
		return fmt.Errorf("invalid start_date: %w", err)
	}
	end, err := c.Backtest.End()
	if err != nil {
		return fmt.Errorf("invalid end_date: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("end_date must not be before start_date")
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be positive")
	}
	if c.Backtest.CommissionPerContract < 0 {
		return fmt.Errorf("commission_per_contract must be non-negative")
	}
	if c.Backtest.SpreadFactor < 0 || c.Backtest.SpreadFactor > 1 {
		return fmt.Errorf("spread_factor must be between 0 and 1")
	}
	if c.Backtest.Multiplier <= 0 {
		return fmt.Errorf("multiplier must be positive")
	}
	return c.Strategy.Validate()
}

// Validate validates the strategy criteria.
func (s *StrategyConfig) Validate() error {
	if s.Right != "call" && s.Right != "put" {
		return fmt.Errorf("right must be 'call' or 'put', got %q", s.Right)
	}
	if s.TargetDelta < -1 || s.TargetDelta > 1 {
		return fmt.Errorf("target_delta must be between -1 and 1")
	}
	if s.DeltaTolerance < 0 {
		return fmt.Errorf("delta_tolerance must be non-negative")
	}
	if s.MinDTE > s.MaxDTE {
		return fmt.Errorf("min_dte (%d) must not exceed max_dte (%d)", s.MinDTE, s.MaxDTE)
	}
	if s.MinDTE < 0 {
		return fmt.Errorf("min_dte must be non-negative")
	}
	if s.ProfitTargetPct < 0 || s.StopLossPct < 0 {
		return fmt.Errorf("profit_target_pct and stop_loss_pct must be non-negative")
	}
	if s.MaxPositionFraction <= 0 || s.MaxPositionFraction > 1 {
		return fmt.Errorf("max_position_fraction must be in (0, 1]")
	}
	if s.MaxOpenPositions < 1 {
		return fmt.Errorf("max_open_positions must be at least 1")
	}
	return nil
}

// Start parses the configured start date.
func (b *BacktestConfig) Start() (time.Time, error) {
	return parseDate(b.StartDate, "start_date")
}

// End parses the configured end date.
func (b *BacktestConfig) End() (time.Time, error) {
	return parseDate(b.EndDate, "end_date")
}

func parseDate(s, field string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD: %w", field, err)
	}
	return t, nil
}
