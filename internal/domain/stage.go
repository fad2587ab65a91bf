package domain

// Stage is an ordered phenological growth stage. Values are the product's
// French stage names; they are stored and reported verbatim.
type Stage string

const (
	StageRepos           Stage = "repos"
	StageDebourrement    Stage = "debourrement"
	StagePousse10cm      Stage = "pousse_10cm"
	StagePreFloraison    Stage = "pre_floraison"
	StageFloraison       Stage = "floraison"
	StageNouaison        Stage = "nouaison"
	StageFermetureGrappe Stage = "fermeture_grappe"
	StageVeraison        Stage = "veraison"
	StageMaturation      Stage = "maturation"
)

// riskCoefficients scales infection-risk scores by how exposed the vine is
// at each stage. Flowering is the most sensitive window; dormant vines
// cannot be infected at all.
var riskCoefficients = map[Stage]float64{
	StageRepos:           0.0,
	StageDebourrement:    0.8,
	StagePousse10cm:      1.5,
	StagePreFloraison:    1.8,
	StageFloraison:       2.0,
	StageNouaison:        1.8,
	StageFermetureGrappe: 1.5,
	StageVeraison:        0.7,
	StageMaturation:      0.3,
}

// growthCoefficients drives the growth-dilution decay of contact and
// penetrant products: fast shoot growth dilutes surface residue. A distinct
// table from riskCoefficients: peak growth (10cm shoots) is well before
// peak infection sensitivity (flowering).
var growthCoefficients = map[Stage]float64{
	StageRepos:           0.0,
	StageDebourrement:    0.5,
	StagePousse10cm:      2.0,
	StagePreFloraison:    1.8,
	StageFloraison:       1.0,
	StageNouaison:        0.8,
	StageFermetureGrappe: 0.5,
	StageVeraison:        0.2,
	StageMaturation:      0.1,
}

// KnownStage reports whether s is part of the stage set. Stage updates must
// be validated with this before mutating configuration.
func KnownStage(s Stage) bool {
	_, ok := riskCoefficients[s]
	return ok
}

// RiskCoefficient returns the infection-risk multiplier for a stage,
// defaulting to 1.0 for unknown stages.
func RiskCoefficient(s Stage) float64 {
	if c, ok := riskCoefficients[s]; ok {
		return c
	}
	return 1.0
}

// GrowthCoefficient returns the growth-dilution speed for a stage,
// defaulting to 1.0 for unknown stages.
func GrowthCoefficient(s Stage) float64 {
	if c, ok := growthCoefficients[s]; ok {
		return c
	}
	return 1.0
}

// varietySensitivities maps varietal names to downy-mildew sensitivity on a
// 1-9 scale (9 = very sensitive). Immutable reference data.
var varietySensitivities = map[string]int{
	"Chardonnay":         7,
	"Cabernet Sauvignon": 6,
	"Merlot":             7,
	"Grenache":           5,
	"Syrah":              6,
	"Pinot Noir":         8,
	"Sauvignon":          7,
	"Carignan":           4,
	"Mourvèdre":          5,
	"Cinsault":           5,
	"Ugni Blanc":         6,
	"Viognier":           6,
	"Caladoc":            6,
}

// defaultSensitivity is assumed for varieties absent from the table.
const defaultSensitivity = 5

// SensitivityAverage returns the mean varietal sensitivity for a parcel's
// plantings. An empty list yields the default sensitivity.
func SensitivityAverage(varieties []string) float64 {
	if len(varieties) == 0 {
		return defaultSensitivity
	}
	total := 0
	for _, v := range varieties {
		s, ok := varietySensitivities[v]
		if !ok {
			s = defaultSensitivity
		}
		total += s
	}
	return float64(total) / float64(len(varieties))
}

// RiskLevel is a three-tier classification shared by the heuristic models.
type RiskLevel string

const (
	RiskFaible RiskLevel = "FAIBLE"
	RiskMoyen  RiskLevel = "MOYEN"
	RiskFort   RiskLevel = "FORT"
)

// riskLevelFor tiers a 0-10 score: FORT >= 7, MOYEN >= 4, FAIBLE otherwise.
func riskLevelFor(score float64) RiskLevel {
	switch {
	case score >= 7:
		return RiskFort
	case score >= 4:
		return RiskMoyen
	default:
		return RiskFaible
	}
}
