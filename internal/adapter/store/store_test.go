package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vitisense/vinesentry/internal/domain"
	"github.com/vitisense/vinesentry/internal/engine"
	"github.com/vitisense/vinesentry/internal/observability"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fp(v float64) *float64 { return &v }

// --- ParcelRepo ---

func TestParcelRepo_SeedOnlyOnce(t *testing.T) {
	repo := NewParcelRepo(testDB(t), testLogger())
	ctx := context.Background()

	require.NoError(t, repo.Seed(ctx))
	require.NoError(t, repo.Seed(ctx))

	parcels, err := repo.Parcels(ctx)
	require.NoError(t, err)
	require.Len(t, parcels, 2)
	assert.Equal(t, "Le Clos", parcels[0].Name)
	assert.Equal(t, "Les Restanques", parcels[1].Name)
	assert.Equal(t, domain.StageRepos, parcels[0].Stage)
	assert.Equal(t, []string{"Grenache", "Syrah"}, parcels[1].Varieties)
}

func TestParcelRepo_ParcelNotFound(t *testing.T) {
	repo := NewParcelRepo(testDB(t), testLogger())

	_, err := repo.Parcel(context.Background(), "inconnue")
	assert.ErrorIs(t, err, engine.ErrParcelNotFound)
}

func TestParcelRepo_UpdateStage(t *testing.T) {
	day, err := domain.ParseDate("2026-04-02")
	require.NoError(t, err)
	domain.SetClock(clockwork.NewFakeClockAt(day.Add(8 * time.Hour)))
	t.Cleanup(func() { domain.SetClock(nil) })

	repo := NewParcelRepo(testDB(t), testLogger())
	ctx := context.Background()
	require.NoError(t, repo.Seed(ctx))

	t.Run("bud-break records biofix", func(t *testing.T) {
		require.NoError(t, repo.UpdateStage(ctx, "Le Clos", domain.StageDebourrement))

		p, err := repo.Parcel(ctx, "Le Clos")
		require.NoError(t, err)
		assert.Equal(t, domain.StageDebourrement, p.Stage)
		require.NotNil(t, p.Biofix)
		assert.Equal(t, "2026-04-02", p.Biofix.Format(domain.DateFormat))
	})

	t.Run("later stages keep the biofix", func(t *testing.T) {
		require.NoError(t, repo.UpdateStage(ctx, "Le Clos", domain.StageFloraison))

		p, err := repo.Parcel(ctx, "Le Clos")
		require.NoError(t, err)
		require.NotNil(t, p.Biofix)
	})

	t.Run("dormancy clears the biofix", func(t *testing.T) {
		require.NoError(t, repo.UpdateStage(ctx, "Le Clos", domain.StageRepos))

		p, err := repo.Parcel(ctx, "Le Clos")
		require.NoError(t, err)
		assert.Nil(t, p.Biofix)
	})

	t.Run("unknown stage rejected", func(t *testing.T) {
		err := repo.UpdateStage(ctx, "Le Clos", "pleine_lune")
		assert.ErrorIs(t, err, ErrUnknownStage)
	})

	t.Run("unknown parcel rejected", func(t *testing.T) {
		err := repo.UpdateStage(ctx, "inconnue", domain.StageFloraison)
		assert.ErrorIs(t, err, engine.ErrParcelNotFound)
	})
}

// --- TreatmentRepo ---

func TestTreatmentRepo_AppendAndList(t *testing.T) {
	repo := NewTreatmentRepo(testDB(t), testLogger(), observability.NewMetricsForTesting())
	ctx := context.Background()

	_, err := repo.Append(ctx, "Le Clos", "2026-05-10", "bouillie_bordelaise", 0)
	require.NoError(t, err)
	_, err = repo.Append(ctx, "Le Clos", "2026-04-20", "cymoxanil", 0.25)
	require.NoError(t, err)
	_, err = repo.Append(ctx, "Les Restanques", "2026-05-01", "soufre", 0)
	require.NoError(t, err)

	treatments, err := repo.TreatmentsFor(ctx, "Le Clos")
	require.NoError(t, err)
	require.Len(t, treatments, 2)
	assert.Equal(t, "2026-04-20", treatments[0].Date)
	assert.Equal(t, 0.25, treatments[0].DoseKgHa)
	// Omitted dose falls back to the reference dose.
	assert.Equal(t, 2.0, treatments[1].DoseKgHa)
	assert.Equal(t, domain.ProductContact, treatments[1].Characteristics.Type)
	assert.Equal(t, 10, treatments[1].Characteristics.PersistenceDays)
}

func TestTreatmentRepo_UnknownProductGetsDefaults(t *testing.T) {
	repo := NewTreatmentRepo(testDB(t), testLogger(), observability.NewMetricsForTesting())

	tr, err := repo.Append(context.Background(), "Le Clos", "2026-05-10", "produit_maison", 1.5)
	require.NoError(t, err)

	assert.Equal(t, domain.ProductContact, tr.Characteristics.Type)
	assert.Equal(t, 7, tr.Characteristics.PersistenceDays)
	assert.Equal(t, "produit_maison", tr.Characteristics.Name)
}

func TestTreatmentRepo_RejectsBadDate(t *testing.T) {
	repo := NewTreatmentRepo(testDB(t), testLogger(), observability.NewMetricsForTesting())

	_, err := repo.Append(context.Background(), "Le Clos", "10/05/2026", "soufre", 0)
	assert.Error(t, err)
}

func TestTreatmentRepo_Between(t *testing.T) {
	repo := NewTreatmentRepo(testDB(t), testLogger(), observability.NewMetricsForTesting())
	ctx := context.Background()

	for _, date := range []string{"2026-03-15", "2026-05-10", "2026-08-01"} {
		_, err := repo.Append(ctx, "Le Clos", date, "soufre", 0)
		require.NoError(t, err)
	}

	treatments, err := repo.Between(ctx, "2026-04-01", "2026-07-31")
	require.NoError(t, err)
	require.Len(t, treatments, 1)
	assert.Equal(t, "2026-05-10", treatments[0].Date)
}

// --- WeatherRepo ---

func TestWeatherRepo_RoundtripAndPrune(t *testing.T) {
	repo := NewWeatherRepo(testDB(t))
	ctx := context.Background()

	h := domain.History{
		"2026-06-09": {TempMin: fp(15), TempMax: fp(25), TempMean: 20, Precipitation: fp(3), Humidity: fp(80), ETP: fp(4), DailyGDD: 10},
		"2026-06-10": {TempMin: fp(16), TempMax: fp(26), TempMean: 21, DailyGDD: 11},
	}
	require.NoError(t, repo.Save(ctx, h))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(h, loaded); diff != "" {
		t.Fatalf("roundtrip mismatch (-want +got):\n%s", diff)
	}

	// Saving a history without a date removes its row.
	delete(h, "2026-06-09")
	h["2026-06-10"] = domain.WeatherDay{TempMin: fp(17), TempMax: fp(27), TempMean: 22, DailyGDD: 12}
	require.NoError(t, repo.Save(ctx, h))

	loaded, err = repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 22.0, loaded["2026-06-10"].TempMean)
}

func TestWeatherRepo_EmptyLoad(t *testing.T) {
	repo := NewWeatherRepo(testDB(t))

	h, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h)
}

// --- AnalysisRepo ---

func record(parcel, date string, urgency domain.Urgency) domain.AnalysisRecord {
	return domain.AnalysisRecord{
		Parcel:    parcel,
		Date:      date,
		Stage:     domain.StageFloraison,
		RiskScore: 6.5,
		RiskLevel: domain.RiskMoyen,
		Urgency:   urgency,
		Action:    "Surveiller",
	}
}

func TestAnalysisRepo_UpsertSameDay(t *testing.T) {
	repo := NewAnalysisRepo(testDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, record("Le Clos", "2026-06-10", domain.UrgencyFaible)))

	// A re-analysis later the same day replaces the row.
	updated := record("Le Clos", "2026-06-10", domain.UrgencyHaute)
	ipi := 70
	updated.IPI = &ipi
	require.NoError(t, repo.Record(ctx, updated))

	records, err := repo.ListParcel(ctx, "Le Clos", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.UrgencyHaute, records[0].Urgency)
	require.NotNil(t, records[0].IPI)
	assert.Equal(t, 70, *records[0].IPI)
}

func TestAnalysisRepo_ListParcelNewestFirst(t *testing.T) {
	repo := NewAnalysisRepo(testDB(t))
	ctx := context.Background()

	for _, date := range []string{"2026-06-08", "2026-06-10", "2026-06-09"} {
		require.NoError(t, repo.Record(ctx, record("Le Clos", date, domain.UrgencyFaible)))
	}
	require.NoError(t, repo.Record(ctx, record("Les Restanques", "2026-06-10", domain.UrgencyFaible)))

	records, err := repo.ListParcel(ctx, "Le Clos", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2026-06-10", records[0].Date)
	assert.Equal(t, "2026-06-09", records[1].Date)
}

func TestAnalysisRepo_HighUrgency(t *testing.T) {
	repo := NewAnalysisRepo(testDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, record("Le Clos", "2026-06-01", domain.UrgencyHaute)))
	require.NoError(t, repo.Record(ctx, record("Le Clos", "2026-06-10", domain.UrgencyHaute)))
	require.NoError(t, repo.Record(ctx, record("Les Restanques", "2026-06-10", domain.UrgencyFaible)))

	records, err := repo.HighUrgency(ctx, "2026-06-05")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2026-06-10", records[0].Date)
	assert.Equal(t, "Le Clos", records[0].Parcel)
}

func TestAnalysisRepo_CampaignReport(t *testing.T) {
	repo := NewAnalysisRepo(testDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, record("Le Clos", "2026-06-09", domain.UrgencyHaute)))
	require.NoError(t, repo.Record(ctx, record("Le Clos", "2026-06-10", domain.UrgencyFaible)))
	require.NoError(t, repo.Record(ctx, record("Les Restanques", "2026-06-10", domain.UrgencyFaible)))
	require.NoError(t, repo.Record(ctx, record("Le Clos", "2025-06-10", domain.UrgencyHaute)))

	summaries, err := repo.CampaignReport(ctx, 2026)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "Le Clos", summaries[0].Parcel)
	assert.Equal(t, 2, summaries[0].Analyses)
	assert.Equal(t, 1, summaries[0].HighUrgency)
	assert.InDelta(t, 6.5, summaries[0].MeanRisk, 0.001)
	assert.Equal(t, "2026-06-10", summaries[0].LastDate)
	assert.Equal(t, "Les Restanques", summaries[1].Parcel)
}
