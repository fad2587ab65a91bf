package store

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vitisense/vinesentry/internal/domain"
)

// AnalysisRepo implements engine.AnalysisRecorder on SQLite and serves the
// campaign-history queries built on top of it. Re-analyzing a parcel on the
// same day overwrites that day's row instead of duplicating it.
type AnalysisRepo struct {
	db *gorm.DB
}

// NewAnalysisRepo creates the campaign history repository.
func NewAnalysisRepo(db *gorm.DB) *AnalysisRepo {
	return &AnalysisRepo{db: db}
}

// Record upserts one history row keyed by parcel and date.
func (r *AnalysisRepo) Record(ctx context.Context, rec domain.AnalysisRecord) error {
	year := 0
	if len(rec.Date) >= 4 {
		year, _ = strconv.Atoi(rec.Date[:4])
	}

	row := analysisRow{
		Parcel:            rec.Parcel,
		Date:              rec.Date,
		CampaignYear:      year,
		Stage:             string(rec.Stage),
		GDD:               rec.GDD,
		EstimatedStage:    string(rec.EstimatedStage),
		WaterPct:          rec.WaterPct,
		WaterLevel:        string(rec.WaterLevel),
		RiskScore:         rec.RiskScore,
		RiskLevel:         string(rec.RiskLevel),
		IPI:               rec.IPI,
		PowderyScore:      rec.PowderyScore,
		PowderyLevel:      string(rec.PowderyLevel),
		ProtectionScore:   rec.ProtectionScore,
		LastTreatmentDate: rec.LastTreatmentDate,
		LimitingFactor:    rec.LimitingFactor,
		DecisionScore:     rec.DecisionScore,
		Action:            rec.Action,
		Urgency:           string(rec.Urgency),
		PowderyAlert:      rec.PowderyAlert,
		StageAlert:        rec.StageAlert,
		Rain3dMM:          rec.Rain3dMM,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "parcel"}, {Name: "date"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("record analysis: %w", err)
	}
	return nil
}

// ListParcel returns the most recent history rows for one parcel, newest
// first, capped at limit.
func (r *AnalysisRepo) ListParcel(ctx context.Context, parcel string, limit int) ([]domain.AnalysisRecord, error) {
	var rows []analysisRow
	if err := r.db.WithContext(ctx).
		Where("parcel = ?", parcel).
		Order("date DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("history for %q: %w", parcel, err)
	}
	return toRecords(rows), nil
}

// HighUrgency returns rows flagged haute urgence dated on or after since.
func (r *AnalysisRepo) HighUrgency(ctx context.Context, since string) ([]domain.AnalysisRecord, error) {
	var rows []analysisRow
	if err := r.db.WithContext(ctx).
		Where("urgency = ? AND date >= ?", string(domain.UrgencyHaute), since).
		Order("date DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("high urgency since %s: %w", since, err)
	}
	return toRecords(rows), nil
}

// Between returns all rows dated within [from, to], oldest first, as used by
// the CSV export.
func (r *AnalysisRepo) Between(ctx context.Context, from, to string) ([]domain.AnalysisRecord, error) {
	var rows []analysisRow
	if err := r.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", from, to).
		Order("date, parcel").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("history between %s and %s: %w", from, to, err)
	}
	return toRecords(rows), nil
}

// CampaignSummary aggregates one parcel's season.
type CampaignSummary struct {
	Parcel         string
	Analyses       int
	HighUrgency    int
	MeanRisk       float64
	MeanProtection float64
	LastDate       string
}

// CampaignReport summarizes a campaign year per parcel.
func (r *AnalysisRepo) CampaignReport(ctx context.Context, year int) ([]CampaignSummary, error) {
	var summaries []CampaignSummary
	err := r.db.WithContext(ctx).Model(&analysisRow{}).
		Select("parcel, COUNT(*) AS analyses, SUM(CASE WHEN urgency = ? THEN 1 ELSE 0 END) AS high_urgency, AVG(risk_score) AS mean_risk, AVG(protection_score) AS mean_protection, MAX(date) AS last_date",
			string(domain.UrgencyHaute)).
		Where("campaign_year = ?", year).
		Group("parcel").Order("parcel").
		Scan(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("campaign report %d: %w", year, err)
	}
	return summaries, nil
}

func toRecords(rows []analysisRow) []domain.AnalysisRecord {
	records := make([]domain.AnalysisRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, domain.AnalysisRecord{
			Date:              row.Date,
			Parcel:            row.Parcel,
			Stage:             domain.Stage(row.Stage),
			GDD:               row.GDD,
			EstimatedStage:    domain.Stage(row.EstimatedStage),
			WaterPct:          row.WaterPct,
			WaterLevel:        domain.WaterLevel(row.WaterLevel),
			RiskScore:         row.RiskScore,
			RiskLevel:         domain.RiskLevel(row.RiskLevel),
			IPI:               row.IPI,
			PowderyScore:      row.PowderyScore,
			PowderyLevel:      domain.RiskLevel(row.PowderyLevel),
			ProtectionScore:   row.ProtectionScore,
			LastTreatmentDate: row.LastTreatmentDate,
			LimitingFactor:    row.LimitingFactor,
			DecisionScore:     row.DecisionScore,
			Action:            row.Action,
			Urgency:           domain.Urgency(row.Urgency),
			PowderyAlert:      row.PowderyAlert,
			StageAlert:        row.StageAlert,
			Rain3dMM:          row.Rain3dMM,
		})
	}
	return records
}
