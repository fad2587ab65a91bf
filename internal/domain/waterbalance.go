package domain

import (
	"math"
	"time"
)

// WaterLevel tiers the readily-available water reserve (RFU).
type WaterLevel string

const (
	WaterDormance     WaterLevel = "Dormance"
	WaterStressFort   WaterLevel = "STRESS FORT"
	WaterSurveillance WaterLevel = "SURVEILLANCE"
	WaterConfortable  WaterLevel = "CONFORTABLE"
)

// WaterBalance is the state of the soil water reservoir for one parcel.
// DailyPct carries the reserve percentage for every computed day so the
// surrounding application can chart the season.
type WaterBalance struct {
	Pct       float64            `json:"rfu_pct"`
	ReserveMM float64            `json:"rfu_mm"`
	MaxMM     float64            `json:"rfu_max_mm"`
	Level     WaterLevel         `json:"level"`
	DailyPct  map[string]float64 `json:"daily_pct,omitempty"`
}

// ComputeWaterBalance runs a daily bucket model over the growing season:
// the reservoir starts full at the season start (biofix or March 1st), each
// day adds precipitation and subtracts reference evapotranspiration, and the
// level is clamped to [0, maxMM]. Missing rain or ETP values count as 0.
//
// Tier thresholds: <=30% STRESS FORT, <=60% SURVEILLANCE, else CONFORTABLE;
// a dormant parcel always reports Dormance.
func ComputeWaterBalance(h History, parcel Parcel, maxMM float64, today time.Time) WaterBalance {
	start, _ := SeasonStart(parcel.Biofix, today)

	reserve := maxMM
	daily := make(map[string]float64)
	for _, date := range h.SortedDates() {
		t, err := ParseDate(date)
		if err != nil || t.Before(start) || t.After(today) {
			continue
		}
		day := h[date]
		reserve += day.Rain()
		if day.ETP != nil {
			reserve -= *day.ETP
		}
		reserve = math.Max(0, math.Min(maxMM, reserve))
		if maxMM > 0 {
			daily[date] = round1(reserve / maxMM * 100)
		} else {
			daily[date] = 0
		}
	}

	pct := 0.0
	if maxMM > 0 {
		pct = reserve / maxMM * 100
	}

	level := WaterConfortable
	switch {
	case parcel.Stage == StageRepos:
		level = WaterDormance
	case pct <= 30:
		level = WaterStressFort
	case pct <= 60:
		level = WaterSurveillance
	}

	return WaterBalance{
		Pct:       round1(pct),
		ReserveMM: round1(reserve),
		MaxMM:     maxMM,
		Level:     level,
		DailyPct:  daily,
	}
}
