package portfolio

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"github.com/manisahni/optionslab/internal/models"
)

// Property: cash conservation. Every fill moves cash by exactly its
// CashDelta, so at any point cash equals initial capital plus the sum of
// all deltas, and after flattening everything the books balance exactly.
func TestProperty_CashConservation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	qtyGen := gen.IntRange(1, 5)
	bidGen := gen.Float64Range(0.10, 20.0)
	spreadGen := gen.Float64Range(0, 1.0)
	countGen := gen.IntRange(1, 8)
	shortGen := gen.Bool()

	properties.Property("cash equals initial plus sum of fill deltas", prop.ForAll(
		func(count, qty int, bid, spread float64, short bool) bool {
			fill := FillModel{SpreadFactor: 0.5, CommissionPerContract: 0.65}
			l := NewLedger(1e9, fill, 100, zerolog.Nop())

			direction := models.DirectionLong
			if short {
				direction = models.DirectionShort
			}

			var deltaSum float64
			for i := 0; i < count; i++ {
				c := &models.OptionContract{
					Strike:     100 + float64(i),
					Expiration: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
					Right:      models.RightCall,
					Bid:        bid,
					Ask:        bid + spread,
					Mid:        bid + spread/2,
					DTE:        30,
				}
				trade, err := l.ExecuteTrade(fmt.Sprintf("t%d", i), c, qty, direction, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
				if err != nil {
					return false
				}
				deltaSum += trade.CashDelta
			}

			if math.Abs(l.Cash()-(1e9+deltaSum)) > 1e-6 {
				return false
			}

			// Flatten everything; the books must still balance.
			for _, pos := range l.OpenPositions() {
				cls, err := l.ClosePosition(pos, nil, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), models.ExitManual)
				if err != nil {
					return false
				}
				deltaSum += cls.CashDelta
			}

			return math.Abs(l.Cash()-(1e9+deltaSum)) <= 1e-6 && len(l.OpenPositions()) == 0
		},
		countGen, qtyGen, bidGen, spreadGen, shortGen,
	))

	properties.TestingRun(t)
}

// Property: snapshot chain integrity. Over random day sequences of
// trades at drifting prices, every snapshot's total equals the previous
// total plus that day's P&L, and cumulative P&L equals total minus
// initial capital.
func TestProperty_SnapshotChainIntegrity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	daysGen := gen.IntRange(1, 10)
	priceGen := gen.Float64Range(1.0, 10.0)
	driftGen := gen.Float64Range(-0.50, 0.50)
	qtyGen := gen.IntRange(1, 3)

	properties.Property("each total extends the previous by the daily pnl", prop.ForAll(
		func(days, qty int, price, drift float64) bool {
			fill := FillModel{SpreadFactor: 0.5, CommissionPerContract: 0.65}
			l := NewLedger(1e6, fill, 100, zerolog.Nop())

			expiration := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)
			for day := 0; day < days; day++ {
				p := price + drift*float64(day)
				if p < 0.01 {
					p = 0.01
				}
				c := &models.OptionContract{
					Strike:     100 + float64(day),
					Expiration: expiration,
					Right:      models.RightCall,
					Bid:        p,
					Ask:        p + 0.10,
					Mid:        p + 0.05,
					DTE:        60 - day,
				}
				date := time.Date(2024, 2, 1+day, 0, 0, 0, 0, time.UTC)
				if _, err := l.ExecuteTrade(fmt.Sprintf("t%d", day), c, qty, models.DirectionLong, date); err != nil {
					return false
				}
				if _, err := l.TakeSnapshot(date, fakeChain{c.Key(): c}); err != nil {
					return false
				}
			}

			snaps := l.Snapshots()
			if len(snaps) != days {
				return false
			}
			prev := l.InitialCapital()
			for _, s := range snaps {
				if math.Abs(s.TotalValue-(s.Cash+s.PositionsValue)) > 1e-6 {
					return false
				}
				if math.Abs(s.TotalValue-(prev+s.DailyPnL)) > 1e-6 {
					return false
				}
				if math.Abs(s.CumulativePnL-(s.TotalValue-l.InitialCapital())) > 1e-6 {
					return false
				}
				prev = s.TotalValue
			}
			return true
		},
		daysGen, qtyGen, priceGen, driftGen,
	))

	properties.TestingRun(t)
}

// Property: a full round trip realizes exactly the quantity-scaled price
// move minus both commissions, for longs and shorts symmetrically.
func TestProperty_RoundTripPnL(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	entryGen := gen.Float64Range(0.50, 20.0)
	exitGen := gen.Float64Range(0.01, 30.0)
	qtyGen := gen.IntRange(1, 10)
	shortGen := gen.Bool()

	properties.Property("realized cash change matches price move", prop.ForAll(
		func(entry, exit float64, qty int, short bool) bool {
			fill := FillModel{SpreadFactor: 0, CommissionPerContract: 0.65}
			l := NewLedger(1e9, fill, 100, zerolog.Nop())

			direction := models.DirectionLong
			if short {
				direction = models.DirectionShort
			}

			mk := func(price float64) *models.OptionContract {
				return &models.OptionContract{
					Strike:     100,
					Expiration: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
					Right:      models.RightPut,
					Bid:        price,
					Ask:        price,
					Mid:        price,
					DTE:        30,
				}
			}

			if _, err := l.ExecuteTrade("t1", mk(entry), qty, direction, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)); err != nil {
				return false
			}
			pos, ok := l.Position(mk(entry).Key())
			if !ok {
				return false
			}
			if _, err := l.ClosePosition(pos, mk(exit), time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), models.ExitManual); err != nil {
				return false
			}

			move := (exit - entry) * float64(qty) * 100
			if short {
				move = -move
			}
			want := 1e9 + move - 2*0.65*float64(qty)
			return math.Abs(l.Cash()-want) <= 1e-6
		},
		entryGen, exitGen, qtyGen, shortGen,
	))

	properties.TestingRun(t)
}
