// Command analyze runs a one-shot advisory cycle from the terminal: it
// refreshes the weather history, analyses one or all parcels, and prints the
// bulletin in French. It can also record a treatment, change a parcel's
// phenological stage, and print the IFT or campaign reports.
//
// Usage:
//
//	go run ./cmd/analyze                                   # toutes les parcelles
//	go run ./cmd/analyze -parcel "Le Clos"                 # une seule parcelle
//	go run ./cmd/analyze -parcel "Le Clos" -stage floraison
//	go run ./cmd/analyze -parcel "Le Clos" -treat bouillie_bordelaise -dose 2.0
//	go run ./cmd/analyze -ift -from 2026-03-01 -to 2026-08-31
//	go run ./cmd/analyze -campaign 2026
//	go run ./cmd/analyze -export historique.csv
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/vitisense/vinesentry/internal/adapter/openmeteo"
	"github.com/vitisense/vinesentry/internal/adapter/store"
	"github.com/vitisense/vinesentry/internal/config"
	"github.com/vitisense/vinesentry/internal/domain"
	"github.com/vitisense/vinesentry/internal/engine"
	"github.com/vitisense/vinesentry/internal/observability"
)

func main() {
	parcel := flag.String("parcel", "", "parcel name (default: analyse all parcels)")
	stage := flag.String("stage", "", "set the parcel's phenological stage (requires -parcel)")
	treat := flag.String("treat", "", "record a treatment with this product (requires -parcel)")
	dose := flag.Float64("dose", 0, "applied dose in kg/ha (0 = product reference dose)")
	date := flag.String("date", "", "treatment date YYYY-MM-DD (default: today)")
	ift := flag.Bool("ift", false, "print the treatment frequency index report")
	campaign := flag.Int("campaign", 0, "print the campaign summary for this year")
	export := flag.String("export", "", "write the simplified analysis history to this CSV file")
	from := flag.String("from", "", "report period start YYYY-MM-DD")
	to := flag.String("to", "", "report period end YYYY-MM-DD")
	flag.Parse()

	if code := run(*parcel, *stage, *treat, *dose, *date, *ift, *campaign, *export, *from, *to); code != 0 {
		os.Exit(code)
	}
}

func run(parcel, stage, treat string, dose float64, date string, ift bool, campaign int, export, from, to string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		return 1
	}

	// Keep structured logs off the bulletin output.
	logger := observability.NewLogger("warn", "text")
	metrics := observability.NewMetrics()

	db, err := store.Open(cfg.SQLitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open database %s: %v\n", cfg.SQLitePath, err)
		return 1
	}

	parcels := store.NewParcelRepo(db, logger)
	treatments := store.NewTreatmentRepo(db, logger, metrics)
	weather := store.NewWeatherRepo(db)
	analyses := store.NewAnalysisRepo(db)

	ctx := context.Background()

	if err := parcels.Seed(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: seed parcels: %v\n", err)
		return 1
	}

	year := domain.Today().Year()
	if from == "" {
		from = fmt.Sprintf("%d-01-01", year)
	}
	if to == "" {
		to = fmt.Sprintf("%d-12-31", year)
	}

	switch {
	case stage != "":
		return runStage(ctx, parcels, parcel, stage)
	case treat != "":
		return runTreatment(ctx, treatments, parcel, treat, dose, date)
	case ift:
		return runIFT(ctx, treatments, from, to)
	case campaign != 0:
		return runCampaign(ctx, analyses, campaign)
	case export != "":
		return runExport(ctx, analyses, export, from, to)
	}

	client := openmeteo.NewClient(cfg.WeatherBaseURL, cfg.WeatherTimeout, logger)
	provider := openmeteo.NewCachedProvider(client, cfg.WeatherCacheTTL)
	refresher := engine.NewRefresher(provider, weather, logger, metrics,
		cfg.Latitude, cfg.Longitude, cfg.WeatherPastDays, cfg.WeatherForecastDays, cfg.BaseTempGDD)

	thresholds := engine.DefaultThresholds()
	thresholds.RainAlertMM = cfg.RainAlertMM
	thresholds.LowProtection = cfg.LowProtectionThreshold
	analyzer := engine.NewAnalyzer(parcels, treatments, engine.MultiRecorder{analyses},
		logger, metrics, thresholds, cfg.RFUMaxMM, cfg.BaseTempGDD)

	h, err := refresher.Refresh(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: refresh weather: %v\n", err)
		return 1
	}

	if parcel != "" {
		analysis, err := analyzer.AnalyzeParcel(ctx, parcel, h)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: analyse %s: %v\n", parcel, err)
			return 1
		}
		printBulletin(analysis)
		return 0
	}

	results, err := analyzer.AnalyzeAll(ctx, h)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: analyse parcels: %v\n", err)
		return 1
	}
	for _, analysis := range results {
		printBulletin(analysis)
	}
	return 0
}

func runStage(ctx context.Context, parcels *store.ParcelRepo, parcel, stage string) int {
	if parcel == "" {
		fmt.Fprintln(os.Stderr, "FATAL: -stage requires -parcel")
		return 1
	}
	if err := parcels.UpdateStage(ctx, parcel, domain.Stage(stage)); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: update stage: %v\n", err)
		return 1
	}
	fmt.Printf("Stade de %q mis à jour : %s\n", parcel, stage)
	return 0
}

func runTreatment(ctx context.Context, treatments *store.TreatmentRepo, parcel, product string, dose float64, date string) int {
	if parcel == "" {
		fmt.Fprintln(os.Stderr, "FATAL: -treat requires -parcel")
		return 1
	}
	if date == "" {
		date = domain.Today().Format(domain.DateFormat)
	}
	t, err := treatments.Append(ctx, parcel, date, product, dose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: record treatment: %v\n", err)
		return 1
	}
	fmt.Printf("Traitement enregistré : %s sur %q le %s (%.2f kg/ha)\n",
		t.Characteristics.Name, t.Parcel, t.Date, t.DoseKgHa)
	return 0
}

func runIFT(ctx context.Context, treatments *store.TreatmentRepo, from, to string) int {
	all, err := treatments.Between(ctx, from, to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load treatments: %v\n", err)
		return 1
	}
	summary := domain.ComputeIFT(all, from, to)

	fmt.Printf("=== IFT %s ===\n", summary.Period)
	for _, d := range summary.Details {
		fmt.Printf("  %s  %-20s %-24s %.2f\n", d.Date, d.Parcel, d.Product, d.IFT)
	}
	fmt.Printf("Total : %.2f sur %d traitement(s)\n", summary.Total, summary.Count)
	return 0
}

func runCampaign(ctx context.Context, analyses *store.AnalysisRepo, year int) int {
	report, err := analyses.CampaignReport(ctx, year)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: campaign report: %v\n", err)
		return 1
	}

	fmt.Printf("=== Campagne %d ===\n", year)
	if len(report) == 0 {
		fmt.Println("Aucune analyse enregistrée.")
		return 0
	}
	fmt.Printf("  %-20s %10s %14s %12s %12s %12s\n",
		"Parcelle", "Analyses", "Urgence haute", "Risque moy.", "Protec. moy.", "Dernière")
	for _, s := range report {
		fmt.Printf("  %-20s %10d %14d %12.1f %12.1f %12s\n",
			s.Parcel, s.Analyses, s.HighUrgency, s.MeanRisk, s.MeanProtection, s.LastDate)
	}
	return 0
}

func runExport(ctx context.Context, analyses *store.AnalysisRepo, path, from, to string) int {
	records, err := analyses.Between(ctx, from, to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load history: %v\n", err)
		return 1
	}

	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: create %s: %v\n", path, err)
		return 1
	}
	defer f.Close()

	w := csv.NewWriter(f)
	_ = w.Write([]string{"date", "parcelle", "risque", "protection", "decision_score"})
	for _, r := range records {
		_ = w.Write([]string{
			r.Date, r.Parcel,
			strconv.FormatFloat(r.RiskScore, 'f', 1, 64),
			strconv.FormatFloat(r.ProtectionScore, 'f', 1, 64),
			strconv.FormatFloat(r.DecisionScore, 'f', 1, 64),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: write %s: %v\n", path, err)
		return 1
	}

	fmt.Printf("Historique exporté : %s (%d lignes)\n", path, len(records))
	return 0
}

// ── Bulletin ──

func printBulletin(a domain.Analysis) {
	fmt.Printf("\n=== %s - %s ===\n", a.Parcel, a.Date)
	fmt.Printf("Cépages : %s | Stade : %s\n", strings.Join(a.Varieties, ", "), a.Stage)

	fmt.Printf("Phénologie : %d GDD (%s) - %s\n", a.Phenology.GDD, a.Phenology.Mode, a.Phenology.Forecast)
	fmt.Printf("Bilan hydrique : %.0f%% (%.0f/%.0f mm) - %s\n",
		a.WaterBalance.Pct, a.WaterBalance.ReserveMM, a.WaterBalance.MaxMM, a.WaterBalance.Level)

	fmt.Printf("Mildiou : score %.1f (%s), IPI %s\n",
		a.Infection.Score, a.Infection.Level, a.Infection.IPI.LevelLabel())
	fmt.Printf("Oïdium : score %.1f (%s)\n", a.Powdery.Score, a.Powdery.Level)

	fmt.Printf("Protection : %.1f/10 (%s)", a.Protection.Score, a.Protection.LimitingFactor)
	if a.Protection.LastTreatment != nil {
		fmt.Printf(" - dernier traitement %s le %s",
			a.Protection.LastTreatment.Characteristics.Name, a.Protection.LastTreatment.Date)
	}
	fmt.Println()

	fmt.Printf("Pluie prévue 3j : %.1f mm\n", a.Forecast3d.TotalMM)

	fmt.Printf("\nDécision [%s] : %s\n", strings.ToUpper(string(a.Decision.Urgency)), a.Decision.Action)
	if a.Decision.PreventiveAlert != "" {
		fmt.Printf("Alerte : %s\n", a.Decision.PreventiveAlert)
	}
	if a.Decision.PowderyAlert != "" {
		fmt.Printf("Alerte : %s\n", a.Decision.PowderyAlert)
	}
}
