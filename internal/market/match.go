package market

import (
	"math"

	"github.com/manisahni/optionslab/internal/models"
)

// TieBreak orders two candidates whose delta distance to the target is
// equal. It returns true when a should be preferred over b.
type TieBreak func(a, b *models.OptionContract) bool

// PreferHigherOpenInterest is the default tie-break: the more liquid
// contract wins, then the lower strike for determinism.
func PreferHigherOpenInterest(a, b *models.OptionContract) bool {
	if a.OpenInterest != b.OpenInterest {
		return a.OpenInterest > b.OpenInterest
	}
	return a.Strike < b.Strike
}

// FindNearestContract resolves a signal's contract selection against the
// snapshot. Exact selections look up the identity key directly. Target
// selections pick the candidate with the smallest absolute delta distance
// within the configured DTE range; a candidate clears only if that distance
// is within the tolerance. Returns nil when nothing matches.
func FindNearestContract(snap *Snapshot, sel models.ContractSelection, tieBreak TieBreak) (*models.OptionContract, *models.SelectionMeta) {
	if tieBreak == nil {
		tieBreak = PreferHigherOpenInterest
	}

	if sel.Exact() {
		c, ok := snap.Lookup(models.NewContractKey(sel.Strike, sel.Expiration, sel.Right))
		if !ok {
			return nil, nil
		}
		return c, &models.SelectionMeta{
			TargetDelta:    c.Delta,
			ActualDelta:    c.Delta,
			DeltaTolerance: 0,
			TargetDTE:      c.DTE,
			ActualDTE:      c.DTE,
			Candidates:     1,
		}
	}

	// Delta distances computed from float arithmetic are never exactly
	// equal; ties are equality within this epsilon.
	const tieEpsilon = 1e-9

	target := math.Abs(sel.TargetDelta)
	var best *models.OptionContract
	var bestDiff float64
	candidates := 0

	for _, c := range snap.Contracts() {
		if c.Right != sel.Right {
			continue
		}
		if c.DTE < sel.MinDTE || c.DTE > sel.MaxDTE {
			continue
		}
		candidates++

		diff := math.Abs(math.Abs(c.Delta) - target)
		switch {
		case best == nil || diff < bestDiff-tieEpsilon:
			best = c
			bestDiff = diff
		case math.Abs(diff-bestDiff) <= tieEpsilon && tieBreak(c, best):
			best = c
			bestDiff = diff
		}
	}

	if best == nil || bestDiff > sel.DeltaTolerance {
		return nil, nil
	}

	return best, &models.SelectionMeta{
		TargetDelta:    sel.TargetDelta,
		ActualDelta:    best.Delta,
		DeltaTolerance: sel.DeltaTolerance,
		TargetDTE:      (sel.MinDTE + sel.MaxDTE) / 2,
		ActualDTE:      best.DTE,
		Candidates:     candidates,
	}
}
