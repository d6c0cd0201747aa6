package models

import "time"

// PortfolioSnapshot is the end-of-day state of the ledger. Snapshots form an
// ordered append-only sequence; TotalValue[n] = TotalValue[n-1] + DailyPnL[n].
type PortfolioSnapshot struct {
	Date           time.Time
	Cash           float64
	PositionsValue float64
	TotalValue     float64
	DailyPnL       float64
	CumulativePnL  float64
	OpenPositions  int
}
