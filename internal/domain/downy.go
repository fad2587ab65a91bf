package domain

import "math"

// DownyMildewRisk scores downy-mildew infection pressure from the last three
// days of weather (an extension of the "3-10 rule": 10mm of rain at >=10°C on
// 10cm shoots). The window is oldest-first with nil entries for missing days.
//
// Mean temperature is computed over wet days (>1mm) when any exist, otherwise
// over all recorded days, so on marginal-rain days the score reflects the
// conditions the spores actually saw.
//
// Returns (0, FAIBLE) when no usable weather is available: degraded input,
// not an error.
func DownyMildewRisk(window []*WeatherDay, stageCoef, sensitivity float64) (float64, RiskLevel) {
	if len(window) == 0 {
		return 0, RiskFaible
	}

	var (
		rainTotal float64
		tempSum   float64
		tempCount int
		wetSum    float64
		wetCount  int
		humidSum  float64
		humidN    int
	)
	for _, day := range window {
		if day == nil {
			continue
		}
		rain := day.Rain()
		rainTotal += rain
		tempSum += day.TempMean
		tempCount++
		if rain > 1 {
			wetSum += day.TempMean
			wetCount++
		}
		if day.Humidity != nil {
			humidSum += *day.Humidity
			humidN++
		}
	}
	if tempCount == 0 {
		return 0, RiskFaible
	}

	tempMean := tempSum / float64(tempCount)
	if wetCount > 0 {
		tempMean = wetSum / float64(wetCount)
	}

	base := 0.0
	switch {
	case rainTotal >= 10:
		base += 5
	case rainTotal >= 5:
		base += 3
	case rainTotal >= 2:
		base += 1
	}
	switch {
	case tempMean >= 20 && tempMean <= 25:
		base += 4
	case tempMean >= 15 && tempMean <= 28:
		base += 2
	case tempMean >= 10 && tempMean <= 30:
		base += 1
	}
	if humidN == 0 {
		return 0, RiskFaible
	}
	if humidSum/float64(humidN) > 85 {
		base++
	}

	score := clampScore(base * stageCoef * (sensitivity / 5))
	return round1(score), riskLevelFor(score)
}

// clampScore bounds a heuristic score to the 0-10 scale.
func clampScore(v float64) float64 {
	return math.Min(10, math.Max(0, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
