package domain

import "time"

// Parcel is one vineyard block. Identity is the name; the growth stage is
// set manually by the grower and the biofix is the observed bud-break date,
// cleared again whenever the parcel returns to dormancy.
type Parcel struct {
	Name      string     `json:"name"`
	AreaHa    float64    `json:"area_ha"`
	Varieties []string   `json:"varieties"`
	Stage     Stage      `json:"current_stage"`
	Biofix    *time.Time `json:"biofix_date,omitempty"`
}

// SeasonStart returns the date GDD and water-balance accumulation begin:
// the biofix when it falls in the current year and is not in the future,
// otherwise March 1st of the current year. The second return reports
// whether the biofix was used.
func SeasonStart(biofix *time.Time, today time.Time) (time.Time, bool) {
	marchFirst := time.Date(today.Year(), time.March, 1, 0, 0, 0, 0, time.UTC)
	if biofix == nil {
		return marchFirst, false
	}
	if biofix.Year() == today.Year() && !biofix.After(today) {
		return *biofix, true
	}
	return marchFirst, false
}
