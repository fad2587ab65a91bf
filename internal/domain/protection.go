package domain

import (
	"fmt"
	"math"
	"time"
)

// Limiting-factor labels, reported verbatim in analyses and history.
const (
	FactorNone        = "Aucun traitement"
	FactorFuture      = "Traitement futur"
	FactorPersistence = "Persistance"
	FactorGrowth      = "Pousse (dilution)"
)

// Protection is the residual fungicide cover for one parcel on one date.
type Protection struct {
	Score          float64    `json:"score"`
	LimitingFactor string     `json:"facteur_limitant"`
	LastTreatment  *Treatment `json:"dernier_traitement,omitempty"`
}

// ComputeProtection scores residual protection 0-10 from the parcel's most
// recent treatment, taking the worst of three competing depletion causes:
//
//   - time decay: linear from 10 to 0 over the product's persistence window;
//   - growth dilution (contact and penetrant products only): new shoot
//     growth dilutes surface residue at the current stage's growth
//     coefficient per elapsed day;
//   - leaching: once cumulative rain since application exceeds the product's
//     threshold, protection drops to 0 outright regardless of the other two.
//
// No treatment at all yields (0, "Aucun traitement"). A treatment dated
// after evalDate yields a flat 10: the product keeps this quirk on purpose,
// treating a planned application as full cover for planning screens.
func ComputeProtection(treatments []Treatment, evalDate time.Time, h History, stage Stage) (Protection, error) {
	if len(treatments) == 0 {
		return Protection{Score: 0, LimitingFactor: FactorNone}, nil
	}

	last := treatments[0]
	for _, t := range treatments[1:] {
		if t.Date > last.Date {
			last = t
		}
	}

	treatDate, err := ParseDate(last.Date)
	if err != nil {
		return Protection{}, fmt.Errorf("treatment for %q: %w", last.Parcel, err)
	}

	elapsed := int(evalDate.Sub(treatDate).Hours() / 24)
	if elapsed < 0 {
		return Protection{Score: 10, LimitingFactor: FactorFuture, LastTreatment: &last}, nil
	}

	carac := last.Characteristics
	score := math.Max(0, 10-float64(elapsed)/float64(carac.PersistenceDays)*10)
	factor := FactorPersistence

	if carac.Type == ProductContact || carac.Type == ProductPenetrant {
		growthScore := math.Max(0, 10-float64(elapsed)*GrowthCoefficient(stage))
		if growthScore < score {
			score = growthScore
			factor = FactorGrowth
		}
	}

	rainSince := h.RainBetween(last.Date, evalDate.Format(DateFormat))
	if rainSince > carac.LeachingThresholdMM {
		score = 0
		factor = fmt.Sprintf("Lessivage (%.1fmm)", rainSince)
	}

	return Protection{Score: round1(score), LimitingFactor: factor, LastTreatment: &last}, nil
}
