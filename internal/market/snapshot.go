// Package market supplies daily option chain snapshots to the engine.
package market

import (
	"time"

	"github.com/manisahni/optionslab/internal/errors"
	"github.com/manisahni/optionslab/internal/models"
)

// Snapshot is the set of tradable contracts for one trading date, keyed by
// (strike, expiration, right). Contract data for a past date is immutable
// once published, so snapshots are safe to cache and share read-only.
type Snapshot struct {
	Date      time.Time
	contracts map[models.ContractKey]*models.OptionContract
	keys      []models.ContractKey // insertion order, for deterministic iteration
}

// NewSnapshot validates the contracts and builds a snapshot. A duplicate
// (strike, expiration, right) within one date is a data-integrity error.
func NewSnapshot(date time.Time, contracts []models.OptionContract) (*Snapshot, error) {
	s := &Snapshot{
		Date:      models.DateOf(date),
		contracts: make(map[models.ContractKey]*models.OptionContract, len(contracts)),
		keys:      make([]models.ContractKey, 0, len(contracts)),
	}
	for i := range contracts {
		c := contracts[i]
		if err := c.Validate(); err != nil {
			return nil, errors.NewDataError("snapshot", date, "invalid contract", err)
		}
		key := c.Key()
		if _, ok := s.contracts[key]; ok {
			return nil, errors.NewDataError("snapshot", date, key.String(), errors.ErrDuplicateContract)
		}
		s.contracts[key] = &c
		s.keys = append(s.keys, key)
	}
	return s, nil
}

// Lookup returns the contract for key, if present.
func (s *Snapshot) Lookup(key models.ContractKey) (*models.OptionContract, bool) {
	c, ok := s.contracts[key]
	return c, ok
}

// Contracts returns all contracts in insertion order.
func (s *Snapshot) Contracts() []*models.OptionContract {
	out := make([]*models.OptionContract, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.contracts[k])
	}
	return out
}

// Len returns the number of contracts in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.keys)
}

// UnderlyingPrice returns the underlying price reported by the chain, or 0
// for an empty snapshot.
func (s *Snapshot) UnderlyingPrice() float64 {
	if len(s.keys) == 0 {
		return 0
	}
	return s.contracts[s.keys[0]].UnderlyingPrice
}
