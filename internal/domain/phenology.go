package domain

import (
	"fmt"
	"time"
)

// gddThresholds maps cumulative GDD (base 10°C by default) to the stage the
// vine is estimated to have reached. Ascending; the final "repos" entry
// closes the vegetative cycle.
var gddThresholds = []struct {
	GDD   int
	Stage Stage
}{
	{180, StageDebourrement},
	{300, StagePousse10cm},
	{500, StagePreFloraison},
	{600, StageFloraison},
	{750, StageNouaison},
	{900, StageFermetureGrappe},
	{1200, StageVeraison},
	{1500, StageMaturation},
	{1800, StageRepos},
}

// forecastHorizonDays bounds how far ahead the next-stage forecast walks
// through forecast weather records.
const forecastHorizonDays = 7

// Phenology is the thermal-time state of one parcel.
type Phenology struct {
	GDD            int    `json:"gdd_cumul"`
	EstimatedStage Stage  `json:"estimated_stage"`
	NextStage      Stage  `json:"next_stage,omitempty"`
	NextStageGDD   int    `json:"next_stage_gdd,omitempty"`
	Mode           string `json:"mode"`
	Forecast       string `json:"forecast"`
	// DaysToNext is the forecast days until the next stage threshold is
	// reached: -1 when not reached within the horizon (or not forecastable),
	// 0 when the threshold is already met.
	DaysToNext int `json:"days_to_next"`
}

// ComputePhenology accumulates growing degree-days from the season start
// (biofix or March 1st) through today and maps the total onto the stage
// threshold table, then projects when the next threshold will be crossed
// using up to seven days of forecast records.
//
// A manually dormant parcel short-circuits: GDD stays at 0 and the next
// milestone is always bud-break at 180 GDD.
func ComputePhenology(h History, parcel Parcel, baseTemp float64, today time.Time) Phenology {
	if parcel.Stage == StageRepos {
		return Phenology{
			GDD:            0,
			EstimatedStage: StageRepos,
			NextStage:      StageDebourrement,
			NextStageGDD:   180,
			Mode:           "En dormance (calcul GDD inactif)",
			Forecast:       "Prévision inactive (dormance)",
			DaysToNext:     -1,
		}
	}

	start, fromBiofix := SeasonStart(parcel.Biofix, today)
	mode := "1er Mars (Estimation)"
	if fromBiofix {
		mode = fmt.Sprintf("Biofix (%s)", start.Format(DateFormat))
	}

	var sum float64
	for _, date := range h.SortedDates() {
		t, err := ParseDate(date)
		if err != nil || t.Before(start) || t.After(today) {
			continue
		}
		sum += h[date].DailyGDD
	}
	gdd := int(sum)

	p := Phenology{
		GDD:            gdd,
		EstimatedStage: StageRepos,
		Mode:           mode,
	}
	for _, th := range gddThresholds {
		if gdd >= th.GDD {
			p.EstimatedStage = th.Stage
		} else {
			p.NextStage = th.Stage
			p.NextStageGDD = th.GDD
			break
		}
	}

	p.Forecast, p.DaysToNext = forecastNextStage(h, p, baseTemp, today)
	return p
}

// forecastNextStage walks forecast records after today, accumulating
// projected daily GDD until the gap to the next threshold closes.
func forecastNextStage(h History, p Phenology, baseTemp float64, today time.Time) (string, int) {
	if p.NextStage == "" {
		return "Cycle végétatif estimé terminé.", -1
	}
	gap := float64(p.NextStageGDD - p.GDD)
	if gap <= 0 {
		return fmt.Sprintf("Stade '%s' déjà atteint.", p.NextStage), 0
	}

	var projected float64
	for i, date := range h.FutureDates(today, forecastHorizonDays) {
		projected += max(0, h[date].TempMean-baseTemp)
		if projected >= gap {
			days := i + 1
			return fmt.Sprintf("Prévision : %s dans ~%d jours.", p.NextStage, days), days
		}
	}
	return fmt.Sprintf("%s non atteint dans les 7 prochains jours.", p.NextStage), -1
}
