package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vitisense/vinesentry/internal/domain"
)

// WeatherRepo implements engine.WeatherStore on SQLite, one row per day.
type WeatherRepo struct {
	db *gorm.DB
}

// NewWeatherRepo creates the weather repository.
func NewWeatherRepo(db *gorm.DB) *WeatherRepo {
	return &WeatherRepo{db: db}
}

// Load reads the whole persisted history.
func (r *WeatherRepo) Load(ctx context.Context) (domain.History, error) {
	var rows []weatherDayRow
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load weather: %w", err)
	}

	h := make(domain.History, len(rows))
	for _, row := range rows {
		h[row.Date] = domain.WeatherDay{
			TempMin:       row.TempMin,
			TempMax:       row.TempMax,
			TempMean:      row.TempMean,
			Precipitation: row.Precipitation,
			Humidity:      row.Humidity,
			ETP:           row.ETP,
			DailyGDD:      row.DailyGDD,
		}
	}
	return h, nil
}

// Save upserts every day of h and deletes rows h no longer contains, keeping
// the table in step with the pruned in-memory history.
func (r *WeatherRepo) Save(ctx context.Context, h domain.History) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dates := make([]string, 0, len(h))
		for date, day := range h {
			dates = append(dates, date)
			row := weatherDayRow{
				Date:          date,
				TempMin:       day.TempMin,
				TempMax:       day.TempMax,
				TempMean:      day.TempMean,
				Precipitation: day.Precipitation,
				Humidity:      day.Humidity,
				ETP:           day.ETP,
				DailyGDD:      day.DailyGDD,
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("upsert weather %s: %w", date, err)
			}
		}

		if len(dates) == 0 {
			return nil
		}
		if err := tx.Where("date NOT IN ?", dates).Delete(&weatherDayRow{}).Error; err != nil {
			return fmt.Errorf("prune weather: %w", err)
		}
		return nil
	})
}
