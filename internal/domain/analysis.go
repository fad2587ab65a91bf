package domain

// Urgency tiers the final treatment decision.
type Urgency string

const (
	UrgencyHaute   Urgency = "haute"
	UrgencyMoyenne Urgency = "moyenne"
	UrgencyFaible  Urgency = "faible"
)

// InfectionRisk is the downy-mildew assessment: the simple 3-day heuristic
// score plus the IPI severity evaluation.
type InfectionRisk struct {
	Score float64   `json:"score"`
	Level RiskLevel `json:"niveau"`
	IPI   IPIResult `json:"ipi"`
}

// PowderyRisk is the 7-day powdery-mildew assessment.
type PowderyRisk struct {
	Score float64   `json:"score"`
	Level RiskLevel `json:"niveau"`
}

// Decision is the per-parcel recommendation derived from risk minus
// protection, with any secondary alerts.
type Decision struct {
	Score           float64 `json:"score"`
	Action          string  `json:"action"`
	Urgency         Urgency `json:"urgence"`
	PreventiveAlert string  `json:"alerte_preventive,omitempty"`
	PowderyAlert    string  `json:"alerte_oidium,omitempty"`
}

// RainForecast summarizes expected rainfall over the coming days.
type RainForecast struct {
	TotalMM float64  `json:"pluie_totale"`
	Dates   []string `json:"dates,omitempty"`
}

// Analysis is the engine's sole output contract: everything the models
// produced for one parcel on one date, merged into a single immutable
// record.
type Analysis struct {
	Parcel       string        `json:"parcelle"`
	Date         string        `json:"date_analyse"`
	Varieties    []string      `json:"cepages"`
	Stage        Stage         `json:"stade"`
	Weather      *WeatherDay   `json:"meteo_actuelle,omitempty"`
	Phenology    Phenology     `json:"gdd"`
	WaterBalance WaterBalance  `json:"bilan_hydrique"`
	Infection    InfectionRisk `json:"risque_infection"`
	Powdery      PowderyRisk   `json:"risque_oidium"`
	Protection   Protection    `json:"protection_actuelle"`
	Decision     Decision      `json:"decision"`
	Forecast3d   RainForecast  `json:"previsions_3j"`
}

// AnalysisRecord is the simplified row appended to the campaign history and
// published to the external history collaborator.
type AnalysisRecord struct {
	Date              string     `json:"date"`
	Parcel            string     `json:"parcelle"`
	Stage             Stage      `json:"stade"`
	GDD               int        `json:"gdd_cumul"`
	EstimatedStage    Stage      `json:"gdd_stade_estime"`
	WaterPct          float64    `json:"bilan_hydrique_pct"`
	WaterLevel        WaterLevel `json:"alerte_hydrique"`
	RiskScore         float64    `json:"risque_mildiou_score"`
	RiskLevel         RiskLevel  `json:"risque_mildiou_niveau"`
	IPI               *int       `json:"ipi,omitempty"`
	PowderyScore      float64    `json:"risque_oidium_score"`
	PowderyLevel      RiskLevel  `json:"risque_oidium_niveau"`
	ProtectionScore   float64    `json:"protection_score"`
	LastTreatmentDate string     `json:"dernier_traitement,omitempty"`
	LimitingFactor    string     `json:"facteur_limitant"`
	DecisionScore     float64    `json:"decision_score"`
	Action            string     `json:"action"`
	Urgency           Urgency    `json:"urgence"`
	PowderyAlert      string     `json:"alerte_oidium,omitempty"`
	StageAlert        string     `json:"alerte_stade,omitempty"`
	Rain3dMM          float64    `json:"pluie_3j"`
}

// Record flattens an Analysis into its history row.
func (a Analysis) Record() AnalysisRecord {
	rec := AnalysisRecord{
		Date:            a.Date,
		Parcel:          a.Parcel,
		Stage:           a.Stage,
		GDD:             a.Phenology.GDD,
		EstimatedStage:  a.Phenology.EstimatedStage,
		WaterPct:        a.WaterBalance.Pct,
		WaterLevel:      a.WaterBalance.Level,
		RiskScore:       a.Infection.Score,
		RiskLevel:       a.Infection.Level,
		PowderyScore:    a.Powdery.Score,
		PowderyLevel:    a.Powdery.Level,
		ProtectionScore: a.Protection.Score,
		LimitingFactor:  a.Protection.LimitingFactor,
		DecisionScore:   a.Decision.Score,
		Action:          a.Decision.Action,
		Urgency:         a.Decision.Urgency,
		PowderyAlert:    a.Decision.PowderyAlert,
		StageAlert:      a.Phenology.Forecast,
		Rain3dMM:        a.Forecast3d.TotalMM,
	}
	if a.Infection.IPI.Computed() {
		score := a.Infection.IPI.Score
		rec.IPI = &score
	}
	if a.Protection.LastTreatment != nil {
		rec.LastTreatmentDate = a.Protection.LastTreatment.Date
	}
	return rec
}
