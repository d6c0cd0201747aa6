// Package greeks maintains per-position time series of Greek snapshots for
// pattern analysis and reporting.
package greeks

import (
	"time"

	"github.com/manisahni/optionslab/internal/errors"
	"github.com/manisahni/optionslab/internal/models"
)

// Tracker owns the append-only Greek history of one position: one entry
// snapshot, zero or more intermediate snapshots, one exit snapshot. The
// entry snapshot is never overwritten.
type Tracker struct {
	history []models.GreekSnapshot
	current models.GreekSnapshot
	exit    *models.GreekSnapshot
}

// NewTracker initializes the history with the entry snapshot.
func NewTracker(entry models.GreekSnapshot) *Tracker {
	return &Tracker{
		history: []models.GreekSnapshot{entry},
		current: entry,
	}
}

// Update appends a snapshot while the position is open. Calling Update
// after the exit snapshot has been recorded is a caller error.
func (t *Tracker) Update(date time.Time, snap models.GreekSnapshot) error {
	if t.exit != nil {
		return errors.ErrPositionClosed
	}
	snap.Date = models.DateOf(date)
	t.history = append(t.history, snap)
	t.current = snap
	return nil
}

// SetExit records the terminal snapshot. If the terminal date equals the
// last history date, that entry is replaced rather than duplicated, except
// when the history holds only the entry snapshot: a same-day exit then
// appends, since the entry snapshot is never overwritten.
func (t *Tracker) SetExit(date time.Time, snap models.GreekSnapshot) {
	if t.exit != nil {
		return
	}
	snap.Date = models.DateOf(date)
	last := t.history[len(t.history)-1]
	if !last.Date.Equal(snap.Date) || len(t.history) == 1 {
		t.history = append(t.history, snap)
	} else {
		t.history[len(t.history)-1] = snap
	}
	t.current = snap
	t.exit = &snap
}

// Entry returns the entry snapshot.
func (t *Tracker) Entry() models.GreekSnapshot { return t.history[0] }

// Current returns the most recent snapshot.
func (t *Tracker) Current() models.GreekSnapshot { return t.current }

// Exit returns the terminal snapshot, if recorded.
func (t *Tracker) Exit() (models.GreekSnapshot, bool) {
	if t.exit == nil {
		return models.GreekSnapshot{}, false
	}
	return *t.exit, true
}

// History returns the snapshot series in chronological order.
func (t *Tracker) History() []models.GreekSnapshot {
	out := make([]models.GreekSnapshot, len(t.history))
	copy(out, t.history)
	return out
}

// Changes is the exit-minus-entry difference of each tracked figure.
type Changes struct {
	Delta           float64
	Gamma           float64
	Theta           float64
	Vega            float64
	Rho             float64
	IV              float64
	OptionPrice     float64
	UnderlyingPrice float64
	DTE             int
}

// Changes returns exit minus entry for each Greek. It is absent until the
// exit snapshot has been recorded.
func (t *Tracker) Changes() (Changes, bool) {
	if t.exit == nil {
		return Changes{}, false
	}
	entry, exit := t.history[0], *t.exit
	return Changes{
		Delta:           exit.Delta - entry.Delta,
		Gamma:           exit.Gamma - entry.Gamma,
		Theta:           exit.Theta - entry.Theta,
		Vega:            exit.Vega - entry.Vega,
		Rho:             exit.Rho - entry.Rho,
		IV:              exit.IV - entry.IV,
		OptionPrice:     exit.OptionPrice - entry.OptionPrice,
		UnderlyingPrice: exit.UnderlyingPrice - entry.UnderlyingPrice,
		DTE:             exit.DTE - entry.DTE,
	}, true
}
