package domain

import (
	"fmt"
	"sort"
	"time"
)

// DateFormat is the ISO day key used for all date-indexed data.
const DateFormat = "2006-01-02"

// WeatherDay is one day of weather for the vineyard's location. Pointer
// fields are nil when the provider did not report them; TempMean and
// DailyGDD are derived on merge.
type WeatherDay struct {
	TempMin       *float64 `json:"temp_min,omitempty"`
	TempMax       *float64 `json:"temp_max,omitempty"`
	TempMean      float64  `json:"temp_mean"`
	Precipitation *float64 `json:"precipitation_mm,omitempty"`
	Humidity      *float64 `json:"relative_humidity_pct,omitempty"`
	ETP           *float64 `json:"et0_mm,omitempty"`
	DailyGDD      float64  `json:"daily_gdd"`
}

// Rain returns the day's precipitation, treating a missing value as 0.
func (d WeatherDay) Rain() float64 {
	if d.Precipitation == nil {
		return 0
	}
	return *d.Precipitation
}

// History is the in-memory day-indexed weather store, keyed by ISO date.
// It is append-only with overwrite-by-date: repeated fetches merge into it
// and it is read-only during an analysis pass.
type History map[string]WeatherDay

// Merge folds one fetched day into the history. Only fields present in the
// update replace stored values, so a provider outage that returns partial
// records never erases previously known data. TempMean and DailyGDD are
// recomputed from the merged record.
func (h History) Merge(date string, upd WeatherDay, baseTemp float64) {
	day := h[date]
	if upd.TempMin != nil {
		day.TempMin = upd.TempMin
	}
	if upd.TempMax != nil {
		day.TempMax = upd.TempMax
	}
	if upd.Precipitation != nil {
		day.Precipitation = upd.Precipitation
	}
	if upd.Humidity != nil {
		day.Humidity = upd.Humidity
	}
	if upd.ETP != nil {
		day.ETP = upd.ETP
	}
	day.TempMean = deriveTempMean(day.TempMin, day.TempMax)
	day.DailyGDD = max(0, day.TempMean-baseTemp)
	h[date] = day
}

// deriveTempMean averages min and max, falls back to whichever is present,
// and defaults to 0 when neither is.
func deriveTempMean(tempMin, tempMax *float64) float64 {
	switch {
	case tempMin != nil && tempMax != nil:
		return (*tempMin + *tempMax) / 2
	case tempMax != nil:
		return *tempMax
	case tempMin != nil:
		return *tempMin
	default:
		return 0
	}
}

// SortedDates returns every known date in chronological order. ISO date
// strings sort lexicographically, so no parsing is needed.
func (h History) SortedDates() []string {
	dates := make([]string, 0, len(h))
	for d := range h {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Window returns the records for the `days` dates ending at `end` inclusive,
// oldest first. Missing dates yield nil entries so callers can distinguish
// "no record" from an empty record.
func (h History) Window(end time.Time, days int) []*WeatherDay {
	window := make([]*WeatherDay, 0, days)
	for i := days - 1; i >= 0; i-- {
		key := end.AddDate(0, 0, -i).Format(DateFormat)
		if day, ok := h[key]; ok {
			d := day
			window = append(window, &d)
		} else {
			window = append(window, nil)
		}
	}
	return window
}

// FutureDates returns up to n known dates strictly after `after`, ascending.
func (h History) FutureDates(after time.Time, n int) []string {
	cutoff := after.Format(DateFormat)
	var dates []string
	for _, d := range h.SortedDates() {
		if d > cutoff {
			dates = append(dates, d)
		}
	}
	if len(dates) > n {
		dates = dates[:n]
	}
	return dates
}

// RainBetween sums precipitation over all known dates in [from, to],
// bounds given as ISO date strings.
func (h History) RainBetween(from, to string) float64 {
	var total float64
	for date, day := range h {
		if date >= from && date <= to {
			total += day.Rain()
		}
	}
	return total
}

// Pruned returns a copy keeping only the last 366 days relative to today
// plus any date in the current calendar year. Bounds the persisted history
// without ever cutting into the running season.
func (h History) Pruned(today time.Time) History {
	kept := make(History, len(h))
	for date, day := range h {
		t, err := ParseDate(date)
		if err != nil {
			continue
		}
		if today.Sub(t) <= 366*24*time.Hour || t.Year() == today.Year() {
			kept[date] = day
		}
	}
	return kept
}

// ParseDate parses an ISO day key. Invalid date strings indicate a
// programmer error upstream and are surfaced loudly.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
