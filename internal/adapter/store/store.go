// Package store persists parcels, treatments, weather, and the campaign
// history in a single SQLite database via GORM. The CGO-free glebarez driver
// keeps the binary cross-compilable.
package store

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens (or creates) the SQLite database at path and migrates the
// schema.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.AutoMigrate(
		&parcelRow{},
		&treatmentRow{},
		&weatherDayRow{},
		&analysisRow{},
	); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	return db, nil
}

type parcelRow struct {
	ID        uint     `gorm:"primaryKey"`
	Name      string   `gorm:"uniqueIndex"`
	AreaHa    float64
	Varieties []string `gorm:"serializer:json"`
	Stage     string
	Biofix    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type treatmentRow struct {
	ID       uint   `gorm:"primaryKey"`
	Parcel   string `gorm:"index"`
	Date     string `gorm:"index"`
	Product  string
	DoseKgHa float64

	// Product characteristics frozen at application time.
	ProductName         string
	ProductType         string
	PersistenceDays     int
	LeachingThresholdMM float64
	ReferenceDoseKgHa   float64

	CreatedAt time.Time
}

type weatherDayRow struct {
	Date          string `gorm:"primaryKey"`
	TempMin       *float64
	TempMax       *float64
	TempMean      float64
	Precipitation *float64
	Humidity      *float64
	ETP           *float64
	DailyGDD      float64
	UpdatedAt     time.Time
}

type analysisRow struct {
	ID           uint   `gorm:"primaryKey"`
	Parcel       string `gorm:"index:idx_parcel_date,unique"`
	Date         string `gorm:"index:idx_parcel_date,unique"`
	CampaignYear int    `gorm:"index"`

	Stage             string
	GDD               int
	EstimatedStage    string
	WaterPct          float64
	WaterLevel        string
	RiskScore         float64
	RiskLevel         string
	IPI               *int
	PowderyScore      float64
	PowderyLevel      string
	ProtectionScore   float64
	LastTreatmentDate string
	LimitingFactor    string
	DecisionScore     float64
	Action            string
	Urgency           string
	PowderyAlert      string
	StageAlert        string
	Rain3dMM          float64

	CreatedAt time.Time
	UpdatedAt time.Time
}
