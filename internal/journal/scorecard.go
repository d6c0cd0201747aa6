package journal

import "github.com/manisahni/optionslab/internal/models"

// Scorecard aggregates compliance over a trade log. Percentages are
// computed over only the trades for which the relevant check has data,
// defaulting to 100% compliant when no trade carries the check (vacuous
// truth). OverallScore is 0 when there are no trades at all.
type Scorecard struct {
	OverallScore       float64
	DeltaCompliancePct float64
	DTECompliancePct   float64
	CompliantTrades    int
	NonCompliantTrades int
}

// ComplianceScorecard builds the aggregate compliance view of a trade log.
func ComplianceScorecard(trades []*models.Trade) Scorecard {
	card := Scorecard{
		DeltaCompliancePct: 100,
		DTECompliancePct:   100,
	}

	var scoreSum float64
	var scored, deltaTotal, deltaOK, dteTotal, dteOK int

	for _, t := range trades {
		c := t.Compliance
		if c == nil {
			continue
		}

		hasCheck := false
		allOK := true

		if c.DeltaCompliant != nil {
			hasCheck = true
			deltaTotal++
			if *c.DeltaCompliant {
				deltaOK++
			} else {
				allOK = false
			}
		}
		if c.DTECompliant != nil {
			hasCheck = true
			dteTotal++
			if *c.DTECompliant {
				dteOK++
			} else {
				allOK = false
			}
		}

		if !hasCheck {
			continue
		}

		scoreSum += c.Score
		scored++
		if allOK {
			card.CompliantTrades++
		} else {
			card.NonCompliantTrades++
		}
	}

	if scored > 0 {
		card.OverallScore = scoreSum / float64(scored)
	}
	if deltaTotal > 0 {
		card.DeltaCompliancePct = 100 * float64(deltaOK) / float64(deltaTotal)
	}
	if dteTotal > 0 {
		card.DTECompliancePct = 100 * float64(dteOK) / float64(dteTotal)
	}

	return card
}
