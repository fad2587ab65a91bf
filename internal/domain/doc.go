// Package domain implements the vineyard disease decision engine: pure,
// weather-driven risk and growth models for downy mildew, powdery mildew,
// residual fungicide protection, vine water stress, and phenological
// development.
//
// # Data Source
//
// Daily weather records come from the Open-Meteo forecast API (fetched by the
// adapter layer) and are merged into an in-memory day-indexed history. Each
// record carries min/max temperature, precipitation, mean relative humidity,
// and FAO Penman-Monteith reference evapotranspiration (ET0). Fields may be
// missing for any given day; every model degrades to an explicit fallback
// value instead of failing.
//
// # Scoring Conventions
//
// All heuristic risk scores live on a 0-10 scale with three tiers:
//
//	FORT   score >= 7
//	MOYEN  score >= 4
//	FAIBLE otherwise
//
// The IPI severity index lives on a 0-100 scale (FORT >= 60, MOYEN >= 30).
// Residual protection is also 0-10, where 10 means a freshly applied product.
//
// # Vocabulary
//
// Growth stages, tiers, and alert texts keep the product's French vocabulary
// (repos, debourrement, floraison, ... and FAIBLE/MOYEN/FORT) because they
// are contractual values: they appear in the persisted analysis history and
// in every downstream report.
//
// # Phenology
//
// Thermal time is tracked as growing degree-days (GDD): the daily sum of
// max(0, mean temperature - base temperature), accumulated from either a
// manually observed bud-break date ("biofix") or March 1st of the current
// year. Fixed GDD thresholds map the cumulative sum to an estimated stage.
package domain
