package store

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/vitisense/vinesentry/internal/domain"
	"github.com/vitisense/vinesentry/internal/observability"
)

// TreatmentRepo implements engine.TreatmentSource on SQLite. The log is
// append-only; characteristics are snapshotted at application time so later
// catalog changes never rewrite history.
type TreatmentRepo struct {
	db      *gorm.DB
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewTreatmentRepo creates the treatment repository.
func NewTreatmentRepo(db *gorm.DB, logger *slog.Logger, metrics *observability.Metrics) *TreatmentRepo {
	return &TreatmentRepo{db: db, logger: logger, metrics: metrics}
}

// Append records one application. Products missing from the catalog get
// conservative default characteristics rather than failing the entry.
func (r *TreatmentRepo) Append(ctx context.Context, parcel, date, product string, doseKgHa float64) (domain.Treatment, error) {
	if _, err := domain.ParseDate(date); err != nil {
		return domain.Treatment{}, err
	}

	carac, ok := domain.CatalogLookup(product)
	if !ok {
		carac = domain.DefaultFungicide(product)
		r.logger.Warn("product not in catalog, using defaults", "product", product)
	}
	if doseKgHa <= 0 {
		doseKgHa = carac.ReferenceDoseKgHa
	}

	row := treatmentRow{
		Parcel:              parcel,
		Date:                date,
		Product:             product,
		DoseKgHa:            doseKgHa,
		ProductName:         carac.Name,
		ProductType:         string(carac.Type),
		PersistenceDays:     carac.PersistenceDays,
		LeachingThresholdMM: carac.LeachingThresholdMM,
		ReferenceDoseKgHa:   carac.ReferenceDoseKgHa,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Treatment{}, fmt.Errorf("append treatment: %w", err)
	}

	r.metrics.TreatmentsRecorded.Inc()
	r.logger.Info("treatment recorded", "parcel", parcel, "product", product, "date", date, "dose_kg_ha", doseKgHa)
	return row.toDomain(), nil
}

// TreatmentsFor returns all applications on one parcel, oldest first.
func (r *TreatmentRepo) TreatmentsFor(ctx context.Context, parcel string) ([]domain.Treatment, error) {
	var rows []treatmentRow
	if err := r.db.WithContext(ctx).Where("parcel = ?", parcel).Order("date").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("treatments for %q: %w", parcel, err)
	}
	return toTreatments(rows), nil
}

// Between returns all applications across parcels dated within [from, to],
// as used by the IFT report.
func (r *TreatmentRepo) Between(ctx context.Context, from, to string) ([]domain.Treatment, error) {
	var rows []treatmentRow
	if err := r.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", from, to).
		Order("date").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("treatments between %s and %s: %w", from, to, err)
	}
	return toTreatments(rows), nil
}

func toTreatments(rows []treatmentRow) []domain.Treatment {
	treatments := make([]domain.Treatment, 0, len(rows))
	for _, row := range rows {
		treatments = append(treatments, row.toDomain())
	}
	return treatments
}

func (row treatmentRow) toDomain() domain.Treatment {
	return domain.Treatment{
		Parcel:   row.Parcel,
		Date:     row.Date,
		Product:  row.Product,
		DoseKgHa: row.DoseKgHa,
		Characteristics: domain.Fungicide{
			Name:                row.ProductName,
			Type:                domain.ProductType(row.ProductType),
			PersistenceDays:     row.PersistenceDays,
			LeachingThresholdMM: row.LeachingThresholdMM,
			ReferenceDoseKgHa:   row.ReferenceDoseKgHa,
		},
	}
}
