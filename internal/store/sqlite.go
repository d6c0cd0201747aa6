package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/manisahni/optionslab/internal/engine"
	"github.com/manisahni/optionslab/internal/errors"
	"github.com/manisahni/optionslab/internal/models"
	"github.com/manisahni/optionslab/pkg/utils"
)

// SQLiteStore implements RunStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed run store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Completed backtest runs
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		strategy TEXT NOT NULL,
		start_date DATETIME NOT NULL,
		end_date DATETIME NOT NULL,
		initial_capital REAL NOT NULL,
		final_value REAL NOT NULL,
		total_return_pct REAL,
		annualized_return_pct REAL,
		sharpe_ratio REAL,
		sortino_ratio REAL,
		max_drawdown_pct REAL,
		win_rate_pct REAL,
		profit_factor REAL,
		total_trades INTEGER,
		compliance_score REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Trade log per run
	CREATE TABLE IF NOT EXISTS run_trades (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		date DATETIME NOT NULL,
		strike REAL NOT NULL,
		expiration DATETIME NOT NULL,
		option_right TEXT NOT NULL,
		direction TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		fill_price REAL NOT NULL,
		commission REAL NOT NULL,
		cash_delta REAL NOT NULL,
		entry_delta REAL,
		entry_dte INTEGER,
		compliance_score REAL,
		exit_date DATETIME,
		exit_price REAL,
		exit_reason TEXT,
		pnl REAL,
		pnl_percent REAL,
		days_held INTEGER,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_run_trades_run ON run_trades(run_id);

	-- Daily portfolio snapshots per run
	CREATE TABLE IF NOT EXISTS run_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		date DATETIME NOT NULL,
		cash REAL NOT NULL,
		positions_value REAL NOT NULL,
		total_value REAL NOT NULL,
		daily_pnl REAL NOT NULL,
		cumulative_pnl REAL NOT NULL,
		open_positions INTEGER NOT NULL,
		UNIQUE(run_id, date),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_run_snapshots_run ON run_snapshots(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun persists a completed run with its trade log and snapshots in one
// transaction. Writes are retried with backoff since a concurrent sweep
// can hold the database briefly.
func (s *SQLiteStore) SaveRun(ctx context.Context, result *engine.Result) error {
	return utils.Retry(ctx, utils.DefaultRetryConfig(), func() error {
		return s.saveRun(ctx, result)
	})
}

func (s *SQLiteStore) saveRun(ctx context.Context, result *engine.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrDatabaseError, err.Error())
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, strategy, start_date, end_date, initial_capital, final_value,
			total_return_pct, annualized_return_pct, sharpe_ratio, sortino_ratio,
			max_drawdown_pct, win_rate_pct, profit_factor, total_trades, compliance_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.Strategy, result.StartDate, result.EndDate,
		result.InitialCapital, result.FinalValue,
		result.Summary.TotalReturnPct, result.Summary.AnnualizedReturnPct,
		result.Summary.SharpeRatio, result.Summary.SortinoRatio,
		result.Summary.MaxDrawdownPct, result.Summary.WinRatePct,
		result.Summary.ProfitFactor, result.Summary.TotalTrades,
		result.Scorecard.OverallScore)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	tradeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_trades (id, run_id, date, strike, expiration, option_right, direction,
			quantity, fill_price, commission, cash_delta, entry_delta, entry_dte,
			compliance_score, exit_date, exit_price, exit_reason, pnl, pnl_percent, days_held)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing trade insert: %w", err)
	}
	defer tradeStmt.Close()

	for _, t := range result.Trades {
		var complianceScore sql.NullFloat64
		if t.Compliance != nil {
			complianceScore = sql.NullFloat64{Float64: t.Compliance.Score, Valid: true}
		}

		var exitDate sql.NullTime
		var exitPrice, pnl, pnlPct sql.NullFloat64
		var exitReason sql.NullString
		var daysHeld sql.NullInt64
		if t.Exit != nil {
			exitDate = sql.NullTime{Time: t.Exit.Date, Valid: true}
			exitPrice = sql.NullFloat64{Float64: t.Exit.Price, Valid: true}
			exitReason = sql.NullString{String: string(t.Exit.Reason), Valid: true}
			pnl = sql.NullFloat64{Float64: t.Exit.PnL, Valid: true}
			pnlPct = sql.NullFloat64{Float64: t.Exit.PnLPercent, Valid: true}
			daysHeld = sql.NullInt64{Int64: int64(t.Exit.DaysHeld), Valid: true}
		}

		_, err = tradeStmt.ExecContext(ctx,
			t.ID, result.RunID, t.Date, t.Contract.Strike, t.Contract.Expiration,
			string(t.Contract.Right), string(t.Direction), t.Quantity, t.FillPrice,
			t.Commission, t.CashDelta, t.Greeks.Delta, t.Greeks.DTE,
			complianceScore, exitDate, exitPrice, exitReason, pnl, pnlPct, daysHeld)
		if err != nil {
			return fmt.Errorf("inserting trade %s: %w", t.ID, err)
		}
	}

	snapStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_snapshots (run_id, date, cash, positions_value, total_value,
			daily_pnl, cumulative_pnl, open_positions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing snapshot insert: %w", err)
	}
	defer snapStmt.Close()

	for _, snap := range result.Snapshots {
		_, err = snapStmt.ExecContext(ctx, result.RunID, snap.Date, snap.Cash,
			snap.PositionsValue, snap.TotalValue, snap.DailyPnL,
			snap.CumulativePnL, snap.OpenPositions)
		if err != nil {
			return fmt.Errorf("inserting snapshot %s: %w", snap.Date.Format("2006-01-02"), err)
		}
	}

	return tx.Commit()
}

// GetRun fetches one run summary.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, strategy, start_date, end_date, initial_capital, final_value,
			total_return_pct, annualized_return_pct, sharpe_ratio, sortino_ratio,
			max_drawdown_pct, win_rate_pct, profit_factor, total_trades,
			compliance_score, created_at
		FROM runs WHERE id = ?`, id)

	var r RunRecord
	err := row.Scan(&r.ID, &r.Strategy, &r.StartDate, &r.EndDate, &r.InitialCapital,
		&r.FinalValue, &r.TotalReturnPct, &r.AnnualizedReturnPct, &r.SharpeRatio,
		&r.SortinoRatio, &r.MaxDrawdownPct, &r.WinRatePct, &r.ProfitFactor,
		&r.TotalTrades, &r.ComplianceScore, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching run: %w", err)
	}
	return &r, nil
}

// ListRuns returns run summaries, most recent first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	query := `
		SELECT id, strategy, start_date, end_date, initial_capital, final_value,
			total_return_pct, annualized_return_pct, sharpe_ratio, sortino_ratio,
			max_drawdown_pct, win_rate_pct, profit_factor, total_trades,
			compliance_score, created_at
		FROM runs`
	var args []interface{}
	if filter.Strategy != "" {
		query += " WHERE strategy = ?"
		args = append(args, filter.Strategy)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Strategy, &r.StartDate, &r.EndDate, &r.InitialCapital,
			&r.FinalValue, &r.TotalReturnPct, &r.AnnualizedReturnPct, &r.SharpeRatio,
			&r.SortinoRatio, &r.MaxDrawdownPct, &r.WinRatePct, &r.ProfitFactor,
			&r.TotalTrades, &r.ComplianceScore, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetTrades returns a run's trade log in execution order.
func (s *SQLiteStore) GetTrades(ctx context.Context, runID string) ([]models.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, strike, expiration, option_right, direction, quantity, fill_price,
			commission, cash_delta, entry_delta, entry_dte, compliance_score,
			exit_date, exit_price, exit_reason, pnl, pnl_percent, days_held
		FROM run_trades WHERE run_id = ? ORDER BY date, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("fetching trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var t models.Trade
		var strike float64
		var expiration time.Time
		var right, direction string
		var complianceScore, exitPrice, pnl, pnlPct sql.NullFloat64
		var exitDate sql.NullTime
		var exitReason sql.NullString
		var daysHeld sql.NullInt64

		if err := rows.Scan(&t.ID, &t.Date, &strike, &expiration, &right, &direction,
			&t.Quantity, &t.FillPrice, &t.Commission, &t.CashDelta,
			&t.Greeks.Delta, &t.Greeks.DTE, &complianceScore,
			&exitDate, &exitPrice, &exitReason, &pnl, &pnlPct, &daysHeld); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}

		t.Contract = models.NewContractKey(strike, expiration, models.Right(right))
		t.Direction = models.Direction(direction)
		if complianceScore.Valid {
			t.Compliance = &models.Compliance{Score: complianceScore.Float64}
		}
		if exitDate.Valid {
			t.Exit = &models.TradeExit{
				Date:       exitDate.Time,
				Price:      exitPrice.Float64,
				Reason:     models.ExitReason(exitReason.String),
				PnL:        pnl.Float64,
				PnLPercent: pnlPct.Float64,
				DaysHeld:   int(daysHeld.Int64),
			}
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// GetSnapshots returns a run's daily snapshot sequence in date order.
func (s *SQLiteStore) GetSnapshots(ctx context.Context, runID string) ([]models.PortfolioSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, cash, positions_value, total_value, daily_pnl, cumulative_pnl, open_positions
		FROM run_snapshots WHERE run_id = ? ORDER BY date`, runID)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []models.PortfolioSnapshot
	for rows.Next() {
		var s models.PortfolioSnapshot
		if err := rows.Scan(&s.Date, &s.Cash, &s.PositionsValue, &s.TotalValue,
			&s.DailyPnL, &s.CumulativePnL, &s.OpenPositions); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
