package market

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/manisahni/optionslab/internal/errors"
	"github.com/manisahni/optionslab/internal/models"
)

func TestMemoryProvider(t *testing.T) {
	p := NewMemoryProvider()
	if err := p.AddDay(date(2024, 2, 1), []models.OptionContract{contract(150, models.RightCall, 0.42, 35)}); err != nil {
		t.Fatal(err)
	}
	if err := p.AddDay(date(2024, 2, 2), []models.OptionContract{contract(150, models.RightCall, 0.44, 34)}); err != nil {
		t.Fatal(err)
	}

	snap, err := p.GetSnapshot(context.Background(), date(2024, 2, 1))
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if snap.Len() != 1 {
		t.Errorf("Len() = %d", snap.Len())
	}

	if _, err := p.GetSnapshot(context.Background(), date(2024, 2, 3)); !errors.Is(err, errors.ErrNoSnapshot) {
		t.Errorf("missing date err = %v, want ErrNoSnapshot", err)
	}

	dates, err := p.Dates(context.Background(), date(2024, 1, 1), date(2024, 12, 31))
	if err != nil {
		t.Fatal(err)
	}
	if len(dates) != 2 || !dates[0].Before(dates[1]) {
		t.Errorf("Dates() = %v, want 2 ascending", dates)
	}
}

// countingProvider counts GetSnapshot calls through to the inner data.
type countingProvider struct {
	inner *MemoryProvider
	calls atomic.Int64
}

func (c *countingProvider) GetSnapshot(ctx context.Context, d time.Time) (*Snapshot, error) {
	c.calls.Add(1)
	return c.inner.GetSnapshot(ctx, d)
}

func (c *countingProvider) Dates(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	return c.inner.Dates(ctx, from, to)
}

func TestCachedProviderMemoizes(t *testing.T) {
	mem := NewMemoryProvider()
	if err := mem.AddDay(date(2024, 2, 1), []models.OptionContract{contract(150, models.RightCall, 0.42, 35)}); err != nil {
		t.Fatal(err)
	}
	counting := &countingProvider{inner: mem}
	cached := NewCachedProvider(counting)

	for i := 0; i < 5; i++ {
		if _, err := cached.GetSnapshot(context.Background(), date(2024, 2, 1)); err != nil {
			t.Fatal(err)
		}
	}
	if got := counting.calls.Load(); got != 1 {
		t.Errorf("inner calls = %d, want 1", got)
	}

	// Errors are not cached.
	for i := 0; i < 2; i++ {
		if _, err := cached.GetSnapshot(context.Background(), date(2024, 2, 2)); !errors.Is(err, errors.ErrNoSnapshot) {
			t.Fatalf("err = %v", err)
		}
	}
	if got := counting.calls.Load(); got != 3 {
		t.Errorf("inner calls = %d, want 3 (misses pass through)", got)
	}
}
