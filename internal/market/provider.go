package market

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/manisahni/optionslab/internal/errors"
	"github.com/manisahni/optionslab/internal/models"
)

// Provider supplies the option chain snapshot for each trading date.
type Provider interface {
	// GetSnapshot returns the chain for date, or errors.ErrNoSnapshot when
	// the provider has no data for it.
	GetSnapshot(ctx context.Context, date time.Time) (*Snapshot, error)

	// Dates lists the trading dates with data in [from, to], ascending.
	Dates(ctx context.Context, from, to time.Time) ([]time.Time, error)
}

// MemoryProvider is an in-memory Provider, used by tests and parameter
// sweeps that reuse one loaded data set.
type MemoryProvider struct {
	days map[time.Time]*Snapshot
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{days: make(map[time.Time]*Snapshot)}
}

// AddDay validates and stores the chain for one date.
func (p *MemoryProvider) AddDay(date time.Time, contracts []models.OptionContract) error {
	snap, err := NewSnapshot(date, contracts)
	if err != nil {
		return err
	}
	p.days[snap.Date] = snap
	return nil
}

// GetSnapshot implements Provider.
func (p *MemoryProvider) GetSnapshot(_ context.Context, date time.Time) (*Snapshot, error) {
	snap, ok := p.days[models.DateOf(date)]
	if !ok {
		return nil, errors.ErrNoSnapshot
	}
	return snap, nil
}

// Dates implements Provider.
func (p *MemoryProvider) Dates(_ context.Context, from, to time.Time) ([]time.Time, error) {
	from, to = models.DateOf(from), models.DateOf(to)
	var dates []time.Time
	for d := range p.days {
		if !d.Before(from) && !d.After(to) {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// CachedProvider memoizes snapshots from an underlying provider. Caching is
// correct because published chain data never changes; the mutex makes the
// cache safe to share across concurrent, otherwise isolated runs.
type CachedProvider struct {
	inner Provider
	mu    sync.RWMutex
	cache map[time.Time]*Snapshot
}

// NewCachedProvider wraps inner with a snapshot cache.
func NewCachedProvider(inner Provider) *CachedProvider {
	return &CachedProvider{inner: inner, cache: make(map[time.Time]*Snapshot)}
}

// GetSnapshot implements Provider.
func (p *CachedProvider) GetSnapshot(ctx context.Context, date time.Time) (*Snapshot, error) {
	key := models.DateOf(date)

	p.mu.RLock()
	snap, ok := p.cache[key]
	p.mu.RUnlock()
	if ok {
		return snap, nil
	}

	snap, err := p.inner.GetSnapshot(ctx, date)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[key] = snap
	p.mu.Unlock()
	return snap, nil
}

// Dates implements Provider.
func (p *CachedProvider) Dates(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	return p.inner.Dates(ctx, from, to)
}
