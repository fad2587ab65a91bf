package domain

import "math"

// ipiTable is the Infection Potential Index reference table: for each
// representative mean temperature (°C), leaf-wetness duration (hours) maps to
// a severity index (0-100). Both axes are sparse and irregular; lookups
// interpolate bilinearly between the bounding keys.
var ipiTable = map[int]map[int]int{
	10: {6: 10, 9: 20, 12: 30, 15: 40, 18: 50},
	13: {5: 10, 7: 20, 10: 30, 12: 40, 15: 60, 18: 80},
	16: {4: 10, 6: 20, 8: 30, 10: 50, 12: 70, 15: 90},
	19: {3: 10, 5: 20, 7: 40, 9: 60, 11: 80, 13: 100},
	21: {3: 10, 4: 20, 6: 50, 8: 80, 10: 100},
	24: {3: 10, 4: 30, 6: 70, 8: 100},
	27: {3: 20, 5: 60, 7: 100},
}

// ipiTempKeys is the ascending temperature axis of ipiTable.
var ipiTempKeys = []int{10, 13, 16, 19, 21, 24, 27}

// ipiDurationKeys returns the ascending duration axis for one temperature row.
func ipiDurationKeys(temp int) []int {
	switch temp {
	case 10:
		return []int{6, 9, 12, 15, 18}
	case 13:
		return []int{5, 7, 10, 12, 15, 18}
	case 16:
		return []int{4, 6, 8, 10, 12, 15}
	case 19:
		return []int{3, 5, 7, 9, 11, 13}
	case 21:
		return []int{3, 4, 6, 8, 10}
	case 24:
		return []int{3, 4, 6, 8}
	case 27:
		return []int{3, 5, 7}
	default:
		return nil
	}
}

// IPISeverity estimates potential infection severity (0-100) from the mean
// temperature during the infection event and the estimated leaf-wetness
// duration. Temperatures outside [10, 27]°C return 0: the table is only
// validated in that range, so out-of-range input is a defined zero, not a
// missing-data condition.
func IPISeverity(tempMean, wetnessHours float64) int {
	if tempMean < 10 || tempMean > 27 {
		return 0
	}

	t0, t1 := boundingKeys(ipiTempKeys, tempMean)
	ipi0 := interpolateDuration(t0, wetnessHours)
	if t0 == t1 {
		return int(math.Round(math.Max(0, ipi0)))
	}
	ipi1 := interpolateDuration(t1, wetnessHours)
	ipi := interpolate(tempMean, float64(t0), ipi0, float64(t1), ipi1)
	return int(math.Round(math.Max(0, ipi)))
}

// interpolateDuration interpolates severity along the duration axis of one
// temperature row, clamping at the row's edges.
func interpolateDuration(temp int, hours float64) float64 {
	row := ipiTable[temp]
	keys := ipiDurationKeys(temp)
	d0, d1 := boundingKeys(keys, hours)
	return interpolate(hours, float64(d0), float64(row[d0]), float64(d1), float64(row[d1]))
}

// boundingKeys finds the two ascending keys that bracket value, clamping to
// the first or last key when value falls outside the axis.
func boundingKeys(keys []int, value float64) (int, int) {
	if value <= float64(keys[0]) {
		return keys[0], keys[0]
	}
	last := keys[len(keys)-1]
	if value >= float64(last) {
		return last, last
	}
	for i := 0; i < len(keys)-1; i++ {
		if float64(keys[i]) <= value && value < float64(keys[i+1]) {
			return keys[i], keys[i+1]
		}
	}
	return last, last
}

// interpolate is plain linear interpolation; degenerate segments return y0.
func interpolate(x, x0, y0, x1, y1 float64) float64 {
	if x1 == x0 {
		return y0
	}
	return y0 + (x-x0)*(y1-y0)/(x1-x0)
}

// EstimateWetnessDuration derives leaf-wetness hours from daily rain and
// humidity: below 2mm leaves are assumed to dry off, light rain wets for
// 0.8h/mm, heavier rain for 1.2h/mm, high humidity slows drying, capped at
// a full day. Missing inputs yield 0.
func EstimateWetnessDuration(precipitation, humidity *float64) float64 {
	if precipitation == nil || humidity == nil {
		return 0
	}
	rain, humid := *precipitation, *humidity
	if rain < 2 {
		return 0
	}
	duration := rain * 1.2
	if rain < 5 {
		duration = rain * 0.8
	}
	switch {
	case humid > 90:
		duration *= 1.3
	case humid > 80:
		duration *= 1.1
	}
	return math.Min(duration, 24)
}

// IPIStatus distinguishes a computed severity from the not-applicable states.
// The states are contractual: reporting and the persisted history display
// them differently from a genuine low score.
type IPIStatus int

const (
	// IPIComputed means Score and Level carry a real severity estimate.
	IPIComputed IPIStatus = iota
	// IPIDormant means the parcel is in vegetative rest; no host tissue to infect.
	IPIDormant
	// IPIInsufficientRain means no day in the window reached the 2mm trigger.
	IPIInsufficientRain
	// IPINoWetness means rain fell but the estimated wetness duration was zero.
	IPINoWetness
)

// IPIResult is the outcome of an IPI evaluation. Score and Level are only
// meaningful when Status is IPIComputed.
type IPIResult struct {
	Status IPIStatus `json:"status"`
	Score  int       `json:"score"`
	Level  RiskLevel `json:"level,omitempty"`
}

// Computed reports whether the result carries a real severity estimate.
func (r IPIResult) Computed() bool { return r.Status == IPIComputed }

// LevelLabel renders the tier for display, including the not-applicable
// sentinels used by reports and the analysis history.
func (r IPIResult) LevelLabel() string {
	switch r.Status {
	case IPIDormant:
		return "NUL (Repos végétatif)"
	case IPIInsufficientRain:
		return "FAIBLE (Pluie Insuff.)"
	case IPINoWetness:
		return "FAIBLE (Humect. Nulle)"
	default:
		return string(r.Level)
	}
}

// EvaluateIPI applies the IPI usage policy over a 3-day window: pick the day
// with the most rain, require at least 2mm and a dormancy coefficient above
// zero, estimate wetness, and compute severity for that day. Tiers:
// FORT >= 60, MOYEN >= 30, FAIBLE otherwise.
func EvaluateIPI(window []*WeatherDay, stageCoef float64) IPIResult {
	if stageCoef <= 0 {
		return IPIResult{Status: IPIDormant}
	}

	var wettest *WeatherDay
	for _, day := range window {
		if day == nil {
			continue
		}
		if wettest == nil || day.Rain() > wettest.Rain() {
			wettest = day
		}
	}
	if wettest == nil || wettest.Rain() < 2 {
		return IPIResult{Status: IPIInsufficientRain}
	}

	wetness := EstimateWetnessDuration(wettest.Precipitation, wettest.Humidity)
	if wetness <= 0 {
		return IPIResult{Status: IPINoWetness}
	}

	score := IPISeverity(wettest.TempMean, wetness)
	var level RiskLevel
	switch {
	case score >= 60:
		level = RiskFort
	case score >= 30:
		level = RiskMoyen
	default:
		level = RiskFaible
	}
	return IPIResult{Status: IPIComputed, Score: score, Level: level}
}
