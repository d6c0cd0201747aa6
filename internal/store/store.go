// Package store provides persistence for completed backtest runs.
package store

import (
	"context"
	"time"

	"github.com/manisahni/optionslab/internal/engine"
	"github.com/manisahni/optionslab/internal/models"
)

// RunStore defines the interface for run persistence.
type RunStore interface {
	SaveRun(ctx context.Context, result *engine.Result) error
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error)
	GetTrades(ctx context.Context, runID string) ([]models.Trade, error)
	GetSnapshots(ctx context.Context, runID string) ([]models.PortfolioSnapshot, error)
	Close() error
}

// RunRecord is the stored summary row of one run.
type RunRecord struct {
	ID                  string
	Strategy            string
	StartDate           time.Time
	EndDate             time.Time
	InitialCapital      float64
	FinalValue          float64
	TotalReturnPct      float64
	AnnualizedReturnPct float64
	SharpeRatio         float64
	SortinoRatio        float64
	MaxDrawdownPct      float64
	WinRatePct          float64
	ProfitFactor        float64
	TotalTrades         int
	ComplianceScore     float64
	CreatedAt           time.Time
}

// RunFilter restricts ListRuns output.
type RunFilter struct {
	Strategy string
	Limit    int
}
