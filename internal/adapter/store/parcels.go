package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/vitisense/vinesentry/internal/domain"
	"github.com/vitisense/vinesentry/internal/engine"
)

// ErrUnknownStage is returned when a stage update names a stage outside the
// phenological table.
var ErrUnknownStage = errors.New("unknown growth stage")

// ParcelRepo implements engine.ParcelSource on SQLite.
type ParcelRepo struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewParcelRepo creates the parcel repository.
func NewParcelRepo(db *gorm.DB, logger *slog.Logger) *ParcelRepo {
	return &ParcelRepo{db: db, logger: logger}
}

// Seed inserts the default vineyard blocks when the table is empty, so a
// fresh install produces reports immediately.
func (r *ParcelRepo) Seed(ctx context.Context) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&parcelRow{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count parcels: %w", err)
	}
	if count > 0 {
		return nil
	}

	defaults := []parcelRow{
		{Name: "Les Restanques", AreaHa: 1.2, Varieties: []string{"Grenache", "Syrah"}, Stage: string(domain.StageRepos)},
		{Name: "Le Clos", AreaHa: 0.8, Varieties: []string{"Chardonnay"}, Stage: string(domain.StageRepos)},
	}
	if err := r.db.WithContext(ctx).Create(&defaults).Error; err != nil {
		return fmt.Errorf("seed parcels: %w", err)
	}
	r.logger.Info("seeded default parcels", "count", len(defaults))
	return nil
}

// Parcels lists every managed parcel.
func (r *ParcelRepo) Parcels(ctx context.Context) ([]domain.Parcel, error) {
	var rows []parcelRow
	if err := r.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list parcels: %w", err)
	}
	parcels := make([]domain.Parcel, 0, len(rows))
	for _, row := range rows {
		parcels = append(parcels, row.toDomain())
	}
	return parcels, nil
}

// Parcel fetches one parcel by name.
func (r *ParcelRepo) Parcel(ctx context.Context, name string) (domain.Parcel, error) {
	var row parcelRow
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Parcel{}, engine.ErrParcelNotFound
	}
	if err != nil {
		return domain.Parcel{}, fmt.Errorf("fetch parcel %q: %w", name, err)
	}
	return row.toDomain(), nil
}

// UpdateStage sets a parcel's observed growth stage. Reaching bud-break
// records today as the biofix when none is set; returning to dormancy clears
// it for the next season.
func (r *ParcelRepo) UpdateStage(ctx context.Context, name string, stage domain.Stage) error {
	if !domain.KnownStage(stage) {
		return fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}

	var row parcelRow
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.ErrParcelNotFound
	}
	if err != nil {
		return fmt.Errorf("fetch parcel %q: %w", name, err)
	}

	row.Stage = string(stage)
	switch stage {
	case domain.StageDebourrement:
		if row.Biofix == nil {
			today := domain.Today()
			row.Biofix = &today
			r.logger.Info("biofix recorded", "parcel", name, "date", today.Format(domain.DateFormat))
		}
	case domain.StageRepos:
		row.Biofix = nil
	}

	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("update parcel %q: %w", name, err)
	}
	return nil
}

func (row parcelRow) toDomain() domain.Parcel {
	return domain.Parcel{
		Name:      row.Name,
		AreaHa:    row.AreaHa,
		Varieties: row.Varieties,
		Stage:     domain.Stage(row.Stage),
		Biofix:    row.Biofix,
	}
}
