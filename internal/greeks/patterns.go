package greeks

import "math"

// Patterns summarizes recognizable behaviors in a position's Greek history.
type Patterns struct {
	// ThetaAcceleration: time decay sped up over the holding period.
	ThetaAcceleration bool
	// DeltaDecay: the option drifted away from the money.
	DeltaDecay bool
	// IVCrush: implied volatility collapsed by CrushThreshold or more
	// relative to entry.
	IVCrush bool

	ThetaChangePct float64
	DeltaChangePct float64
	IVChangePct    float64
}

// CrushThreshold is the relative IV drop treated as a crush.
const CrushThreshold = 0.20

// AnalyzePatterns inspects a tracker's history for theta acceleration,
// delta decay and IV crush. It needs at least two snapshots; with fewer it
// returns the zero value.
func AnalyzePatterns(t *Tracker) Patterns {
	history := t.History()
	if len(history) < 2 {
		return Patterns{}
	}

	entry := history[0]
	last := history[len(history)-1]

	var p Patterns

	if entry.Theta != 0 {
		p.ThetaChangePct = (math.Abs(last.Theta) - math.Abs(entry.Theta)) / math.Abs(entry.Theta)
		// Decay accelerates when the daily bleed grows materially.
		p.ThetaAcceleration = p.ThetaChangePct > 0.10
	}

	if entry.Delta != 0 {
		p.DeltaChangePct = (math.Abs(last.Delta) - math.Abs(entry.Delta)) / math.Abs(entry.Delta)
		p.DeltaDecay = p.DeltaChangePct < -0.25
	}

	if entry.IV != 0 {
		p.IVChangePct = (last.IV - entry.IV) / entry.IV
		// The division is inexact, so the boundary needs slack: a drop
		// computed as -0.19999999999999996 is still a crush.
		p.IVCrush = p.IVChangePct <= -CrushThreshold+1e-9
	}

	return p
}
