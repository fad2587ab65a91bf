package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalysisRecord(t *testing.T) {
	last := treatment("2026-06-01", "bouillie_bordelaise")
	a := Analysis{
		Parcel:    "Les Restanques",
		Date:      "2026-06-10",
		Stage:     StageFloraison,
		Phenology: Phenology{GDD: 620, EstimatedStage: StageFloraison, Forecast: "Prévision : nouaison dans ~4 jours."},
		WaterBalance: WaterBalance{Pct: 55, Level: WaterSurveillance},
		Infection: InfectionRisk{
			Score: 8.4,
			Level: RiskFort,
			IPI:   IPIResult{Status: IPIComputed, Score: 70, Level: RiskFort},
		},
		Powdery:    PowderyRisk{Score: 3.1, Level: RiskFaible},
		Protection: Protection{Score: 2.5, LimitingFactor: FactorGrowth, LastTreatment: &last},
		Decision:   Decision{Score: 5.9, Action: "TRAITER", Urgency: UrgencyHaute},
		Forecast3d: RainForecast{TotalMM: 14.5},
	}

	rec := a.Record()

	assert.Equal(t, "Les Restanques", rec.Parcel)
	assert.Equal(t, StageFloraison, rec.Stage)
	assert.Equal(t, 620, rec.GDD)
	assert.Equal(t, 8.4, rec.RiskScore)
	assert.Equal(t, UrgencyHaute, rec.Urgency)
	assert.Equal(t, "2026-06-01", rec.LastTreatmentDate)
	assert.Equal(t, "Prévision : nouaison dans ~4 jours.", rec.StageAlert)
	assert.Equal(t, 14.5, rec.Rain3dMM)
	if assert.NotNil(t, rec.IPI) {
		assert.Equal(t, 70, *rec.IPI)
	}
}

func TestAnalysisRecord_SentinelIPIAndNoTreatment(t *testing.T) {
	a := Analysis{
		Parcel:     "Le Clos",
		Date:       "2026-02-10",
		Stage:      StageRepos,
		Infection:  InfectionRisk{IPI: IPIResult{Status: IPIDormant}},
		Protection: Protection{Score: 0, LimitingFactor: FactorNone},
	}

	rec := a.Record()

	assert.Nil(t, rec.IPI)
	assert.Empty(t, rec.LastTreatmentDate)
	assert.Equal(t, FactorNone, rec.LimitingFactor)
}
