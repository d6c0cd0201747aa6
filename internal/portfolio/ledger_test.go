package portfolio

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/manisahni/optionslab/internal/errors"
	"github.com/manisahni/optionslab/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeChain satisfies ContractSource for ledger tests.
type fakeChain map[models.ContractKey]*models.OptionContract

func (f fakeChain) Lookup(key models.ContractKey) (*models.OptionContract, bool) {
	c, ok := f[key]
	return c, ok
}

func testContract(strike float64, bid, ask float64) *models.OptionContract {
	return &models.OptionContract{
		Strike:     strike,
		Expiration: date(2024, 3, 15),
		Right:      models.RightCall,
		Bid:        bid,
		Ask:        ask,
		Mid:        (bid + ask) / 2,
		Delta:      0.42,
		DTE:        35,
	}
}

func testLedger(capital float64) *Ledger {
	fill := FillModel{SpreadFactor: 0.5, CommissionPerContract: 0.65}
	return NewLedger(capital, fill, 100, zerolog.Nop())
}

func TestFillModelPricing(t *testing.T) {
	m := FillModel{SpreadFactor: 0.5, CommissionPerContract: 0.65}
	c := testContract(150, 4.90, 5.10)

	if got := m.BuyFill(c); math.Abs(got-5.05) > 1e-9 {
		t.Errorf("BuyFill = %v, want 5.05", got)
	}
	if got := m.SellFill(c); math.Abs(got-4.95) > 1e-9 {
		t.Errorf("SellFill = %v, want 4.95", got)
	}
	if got := m.Commission(3); math.Abs(got-1.95) > 1e-9 {
		t.Errorf("Commission(3) = %v, want 1.95", got)
	}
	if got := m.Commission(-3); math.Abs(got-1.95) > 1e-9 {
		t.Errorf("Commission(-3) = %v, want 1.95", got)
	}
}

func TestLongRoundTrip(t *testing.T) {
	l := testLedger(10000)
	entry := testContract(150, 4.90, 5.10)

	trade, err := l.ExecuteTrade("t1", entry, 1, models.DirectionLong, date(2024, 2, 1))
	if err != nil {
		t.Fatalf("ExecuteTrade: %v", err)
	}
	if math.Abs(trade.FillPrice-5.05) > 1e-9 {
		t.Errorf("fill price = %v, want 5.05", trade.FillPrice)
	}
	if math.Abs(l.Cash()-9494.35) > 1e-9 {
		t.Errorf("cash after entry = %v, want 9494.35", l.Cash())
	}

	pos, ok := l.Position(entry.Key())
	if !ok {
		t.Fatal("position not opened")
	}

	exit := testContract(150, 7.00, 7.00)
	cls, err := l.ClosePosition(pos, exit, date(2024, 2, 10), models.ExitProfitTarget)
	if err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}
	if cls.Price != 7.00 {
		t.Errorf("close price = %v, want 7.00", cls.Price)
	}
	if cls.Synthetic {
		t.Error("close with live quote must not be synthetic")
	}
	if math.Abs(l.Cash()-10193.70) > 1e-9 {
		t.Errorf("final cash = %v, want 10193.70", l.Cash())
	}
	if _, open := l.Position(entry.Key()); open {
		t.Error("closed position still in active set")
	}
}

func TestBuyRejectedWhenUnderfunded(t *testing.T) {
	l := testLedger(100)
	c := testContract(150, 4.90, 5.10) // one contract costs 505.65

	cashBefore := l.Cash()
	_, err := l.ExecuteTrade("t1", c, 1, models.DirectionLong, date(2024, 2, 1))
	if !errors.Is(err, errors.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	// A rejected entry must leave no trace.
	if l.Cash() != cashBefore {
		t.Errorf("cash changed on rejected trade: %v", l.Cash())
	}
	if len(l.Trades()) != 0 {
		t.Errorf("trade recorded for rejected entry")
	}
	if len(l.OpenPositions()) != 0 {
		t.Errorf("position opened for rejected entry")
	}
}

func TestOppositeDirectionFillRejected(t *testing.T) {
	l := testLedger(10000)
	c := testContract(150, 4.90, 5.10)

	if _, err := l.ExecuteTrade("t1", c, 1, models.DirectionLong, date(2024, 2, 1)); err != nil {
		t.Fatalf("ExecuteTrade: %v", err)
	}
	cashBefore := l.Cash()

	// Selling against a long holding must go through ClosePosition, not
	// stack as another opening fill.
	_, err := l.ExecuteTrade("t2", c, 1, models.DirectionShort, date(2024, 2, 2))
	var verr *errors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if l.Cash() != cashBefore {
		t.Errorf("cash changed on rejected fill: %v", l.Cash())
	}
	pos, ok := l.Position(c.Key())
	if !ok || pos.NetQuantity() != 1 {
		t.Errorf("position mutated by rejected fill: %+v", pos)
	}
	if len(l.Trades()) != 1 {
		t.Errorf("trades = %d, want 1", len(l.Trades()))
	}
}

func TestShortOpenAlwaysPermitted(t *testing.T) {
	// Margin is not modeled, so a short open succeeds even with zero cash.
	l := testLedger(0)
	c := testContract(150, 4.90, 5.10)

	trade, err := l.ExecuteTrade("t1", c, 2, models.DirectionShort, date(2024, 2, 1))
	if err != nil {
		t.Fatalf("short open rejected: %v", err)
	}
	if math.Abs(trade.FillPrice-4.95) > 1e-9 {
		t.Errorf("short fill = %v, want 4.95", trade.FillPrice)
	}
	// Premium collected minus commission.
	want := 4.95*2*100 - 1.30
	if math.Abs(l.Cash()-want) > 1e-9 {
		t.Errorf("cash after short open = %v, want %v", l.Cash(), want)
	}
}

func TestSyntheticCloseForMissingContract(t *testing.T) {
	l := testLedger(10000)
	c := testContract(150, 4.90, 5.10)

	if _, err := l.ExecuteTrade("t1", c, 1, models.DirectionLong, date(2024, 2, 1)); err != nil {
		t.Fatalf("ExecuteTrade: %v", err)
	}
	pos, _ := l.Position(c.Key())

	cls, err := l.ClosePosition(pos, nil, date(2024, 3, 16), models.ExitStopLoss)
	if err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}
	if !cls.Synthetic {
		t.Error("close without contract must be synthetic")
	}
	if cls.Price != SyntheticClosePrice {
		t.Errorf("synthetic price = %v, want %v", cls.Price, SyntheticClosePrice)
	}
	// Reason is forced to expiration regardless of what the caller flagged.
	if cls.Reason != models.ExitExpiration {
		t.Errorf("synthetic reason = %v, want expiration", cls.Reason)
	}
	if !cls.Greeks.Stale {
		t.Error("synthetic close must carry stale greeks")
	}
}

func TestCloseAlreadyClosedPosition(t *testing.T) {
	l := testLedger(10000)
	c := testContract(150, 4.90, 5.10)

	if _, err := l.ExecuteTrade("t1", c, 1, models.DirectionLong, date(2024, 2, 1)); err != nil {
		t.Fatalf("ExecuteTrade: %v", err)
	}
	pos, _ := l.Position(c.Key())
	if _, err := l.ClosePosition(pos, c, date(2024, 2, 5), models.ExitManual); err != nil {
		t.Fatalf("first close: %v", err)
	}

	if _, err := l.ClosePosition(pos, c, date(2024, 2, 6), models.ExitManual); !errors.Is(err, errors.ErrPositionClosed) {
		t.Errorf("second close err = %v, want ErrPositionClosed", err)
	}
}

func TestValuePositionsIsIdempotent(t *testing.T) {
	l := testLedger(10000)
	c := testContract(150, 4.90, 5.10)
	if _, err := l.ExecuteTrade("t1", c, 2, models.DirectionLong, date(2024, 2, 1)); err != nil {
		t.Fatalf("ExecuteTrade: %v", err)
	}

	chain := fakeChain{c.Key(): c}
	first, _ := l.ValuePositions(chain)
	second, _ := l.ValuePositions(chain)
	if first != second {
		t.Errorf("valuation not idempotent: %v then %v", first, second)
	}
	if want := 5.00 * 2 * 100; first != want {
		t.Errorf("long mark = %v, want %v", first, want)
	}
}

func TestValuePositionsShortAndMissing(t *testing.T) {
	l := testLedger(10000)
	short := testContract(150, 4.90, 5.10)
	gone := testContract(160, 2.00, 2.20)

	if _, err := l.ExecuteTrade("t1", short, 1, models.DirectionShort, date(2024, 2, 1)); err != nil {
		t.Fatalf("short: %v", err)
	}
	if _, err := l.ExecuteTrade("t2", gone, 1, models.DirectionLong, date(2024, 2, 1)); err != nil {
		t.Fatalf("long: %v", err)
	}

	// Chain only has the short's contract; the long marks at 0.
	chain := fakeChain{short.Key(): short}
	total, per := l.ValuePositions(chain)
	if want := -5.00 * 100; total != want {
		t.Errorf("total = %v, want %v (short is a liability)", total, want)
	}
	if per[gone.Key()] != 0 {
		t.Errorf("missing contract valued at %v, want 0", per[gone.Key()])
	}
}

func TestTakeSnapshotOrdering(t *testing.T) {
	l := testLedger(10000)
	chain := fakeChain{}

	if _, err := l.TakeSnapshot(date(2024, 2, 1), chain); err != nil {
		t.Fatalf("first snapshot: %v", err)
	}
	if _, err := l.TakeSnapshot(date(2024, 2, 1), chain); !errors.Is(err, errors.ErrOutOfOrderDate) {
		t.Errorf("duplicate date err = %v, want ErrOutOfOrderDate", err)
	}
	if _, err := l.TakeSnapshot(date(2024, 1, 31), chain); !errors.Is(err, errors.ErrOutOfOrderDate) {
		t.Errorf("backwards date err = %v, want ErrOutOfOrderDate", err)
	}
	if _, err := l.TakeSnapshot(date(2024, 2, 2), chain); err != nil {
		t.Errorf("next day snapshot: %v", err)
	}
}

func TestSnapshotChainIntegrity(t *testing.T) {
	l := testLedger(10000)
	c := testContract(150, 4.90, 5.10)
	chain := fakeChain{c.Key(): c}

	if _, err := l.TakeSnapshot(date(2024, 2, 1), chain); err != nil {
		t.Fatal(err)
	}
	if _, err := l.ExecuteTrade("t1", c, 1, models.DirectionLong, date(2024, 2, 2)); err != nil {
		t.Fatal(err)
	}
	if _, err := l.TakeSnapshot(date(2024, 2, 2), chain); err != nil {
		t.Fatal(err)
	}
	pos, _ := l.Position(c.Key())
	if _, err := l.ClosePosition(pos, c, date(2024, 2, 3), models.ExitManual); err != nil {
		t.Fatal(err)
	}
	if _, err := l.TakeSnapshot(date(2024, 2, 3), chain); err != nil {
		t.Fatal(err)
	}

	snaps := l.Snapshots()
	prev := l.InitialCapital()
	for i, s := range snaps {
		if math.Abs(s.TotalValue-(prev+s.DailyPnL)) > 1e-9 {
			t.Errorf("day %d: total %v != prev %v + daily %v", i, s.TotalValue, prev, s.DailyPnL)
		}
		if math.Abs(s.CumulativePnL-(s.TotalValue-l.InitialCapital())) > 1e-9 {
			t.Errorf("day %d: cumulative pnl inconsistent", i)
		}
		prev = s.TotalValue
	}
}
