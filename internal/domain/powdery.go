package domain

// PowderyMildewRisk scores powdery-mildew pressure over the last seven days.
// Per recorded day: max temperature >= 33°C kills the fungus (-2); warm and
// humid (20-28°C, >=60% RH) is the high-risk band (+3); mild and humid
// (15-30°C, >=50% RH) sustains it (+1); rain >= 5mm washes spores (-1 more).
// Daily scores floor at -2. The sum is normalized against the best possible
// score (3 per counted day) onto a 0-10 scale, then scaled by stageCoef/1.5.
//
// Returns (0, FAIBLE) when no day in the window carries data.
func PowderyMildewRisk(window []*WeatherDay, stageCoef float64) (float64, RiskLevel) {
	if len(window) == 0 {
		return 0, RiskFaible
	}

	total := 0
	counted := 0
	for _, day := range window {
		if day == nil {
			continue
		}
		counted++
		total += powderyDayScore(day)
	}
	if counted == 0 {
		return 0, RiskFaible
	}

	normalized := float64(total) / float64(counted*3) * 10
	if normalized < 0 {
		normalized = 0
	}
	score := clampScore(normalized * (stageCoef / 1.5))
	return round1(score), riskLevelFor(score)
}

func powderyDayScore(day *WeatherDay) int {
	score := 0
	tempMax := day.TempMax
	humid := day.Humidity
	switch {
	case tempMax != nil && *tempMax >= 33:
		score = -2
	case tempMax != nil && humid != nil && *tempMax >= 20 && *tempMax <= 28 && *humid >= 60:
		score = 3
	case tempMax != nil && humid != nil && *tempMax >= 15 && *tempMax <= 30 && *humid >= 50:
		score = 1
	}
	if day.Precipitation != nil && *day.Precipitation >= 5 {
		score--
	}
	if score < -2 {
		score = -2
	}
	return score
}
