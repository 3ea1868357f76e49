package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrissnell/actisum/internal/activity"
	"github.com/chrissnell/actisum/pkg/config"
)

func sampleResults(t *testing.T, c activity.Config) []activity.Result {
	t.Helper()
	p, err := activity.NewProcessor(c, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	counts := make([]int, 2*activity.DefaultDayLength)
	for i := range counts {
		if i%activity.DefaultDayLength >= 120 {
			counts[i] = 400
		}
	}
	series := activity.NewRawSeries("S1", activity.Monday, counts)
	series.Start = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	return []activity.Result{
		p.Process(series),
		p.Process(activity.RawSeries{SubjectID: "S2", StartWeekday: activity.Monday}),
	}
}

func TestNewRunDigest(t *testing.T) {
	a, err := NewRun(activity.DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := NewRun(activity.DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == b.ID {
		t.Errorf("runs should get distinct ids")
	}
	if a.Digest != b.Digest || len(a.Digest) != 64 {
		t.Errorf("equal configurations should share a digest: %s / %s", a.Digest, b.Digest)
	}

	c := activity.DefaultConfig()
	c.NonwearWindow = 90
	other, err := NewRun(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other.Digest == a.Digest {
		t.Errorf("different configurations should differ in digest")
	}
}

func TestFlatten(t *testing.T) {
	c := activity.DefaultConfig()
	c.OutputGranularity = activity.GranularityRollup
	results := sampleResults(t, c)
	run, err := NewRun(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rs, err := flatten(run, results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rs.run.Subjects != 2 || rs.run.Rejected != 1 {
		t.Errorf("unexpected run row %+v", rs.run)
	}
	if len(rs.days) != 0 || len(rs.rollups) != 1 {
		t.Errorf("rollup runs store rollups only, got %d days / %d rollups", len(rs.days), len(rs.rollups))
	}
	if rs.subjects[0].Days != 2 {
		t.Errorf("expected the rollup day count on the subject row, got %d", rs.subjects[0].Days)
	}

	var metrics map[string]float64
	if err := json.Unmarshal([]byte(rs.rollups[0].Metrics), &metrics); err != nil {
		t.Fatalf("metrics are not JSON: %v", err)
	}
	if metrics["wear_minutes"] != activity.DefaultDayLength-120 {
		t.Errorf("unexpected wear_minutes %.1f", metrics["wear_minutes"])
	}
}

func TestSQLiteStoreSaveRun(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	c := activity.DefaultConfig()
	results := sampleResults(t, c)
	run, err := NewRun(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.SaveRun(ctx, run, results); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	subjects, err := store.Subjects(ctx, run.ID.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subjects) != 2 {
		t.Fatalf("expected 2 subjects, got %d", len(subjects))
	}
	if subjects[0].Status != "accepted" || subjects[0].ValidDays != 2 || !subjects[0].Eligible {
		t.Errorf("unexpected subject row %+v", subjects[0])
	}
	if subjects[1].Status != "rejected" || subjects[1].Reason == "" {
		t.Errorf("expected the rejection to be stored, got %+v", subjects[1])
	}

	days, err := store.Days(ctx, run.ID.String(), "S1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}
	if days[1].Weekday != int(activity.Tuesday) || days[1].WearMinutes != activity.DefaultDayLength-120 {
		t.Errorf("unexpected day row %+v", days[1])
	}
	if days[1].Date == nil || !days[1].Date.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date %v", days[1].Date)
	}

	if err := store.SaveRun(ctx, run, results); err == nil {
		t.Errorf("saving the same run twice should fail")
	}
}

func TestManager(t *testing.T) {
	ctx := context.Background()

	empty, err := NewManager(ctx, config.StorageData{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty.Enabled() {
		t.Errorf("no backends are configured")
	}

	m, err := NewManager(ctx, config.StorageData{
		SQLite: &config.SQLiteData{Path: filepath.Join(t.TempDir(), "runs.db")},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer m.Close()
	if !m.Enabled() || len(m.Engines) != 1 {
		t.Fatalf("expected one SQLite backend")
	}

	c := activity.DefaultConfig()
	run, err := NewRun(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.SaveRun(ctx, run, sampleResults(t, c)); err != nil {
		t.Errorf("SaveRun failed: %v", err)
	}
	if h := m.Health()["sqlite"]; h.Status != HealthHealthy {
		t.Errorf("expected a healthy SQLite backend, got %+v", h)
	}

	if err := m.SaveRun(ctx, run, sampleResults(t, c)); err == nil {
		t.Errorf("saving the same run twice should fail")
	}
	if h := m.Health()["sqlite"]; h.Status != HealthUnhealthy || h.Error == "" {
		t.Errorf("expected the failed write to be recorded, got %+v", h)
	}
}

func TestHealthTracker(t *testing.T) {
	ht := NewHealthTracker()
	if ht.IsHealthy("sqlite", time.Minute) {
		t.Errorf("an unknown backend is not healthy")
	}

	ht.Record("sqlite", "run 1", nil)
	if !ht.IsHealthy("sqlite", time.Minute) {
		t.Errorf("expected sqlite to be healthy")
	}
	if ht.IsHealthy("sqlite", -time.Second) {
		t.Errorf("stale health should not count")
	}

	ht.Record("sqlite", "run 2", os.ErrClosed)
	h, ok := ht.Get("sqlite")
	if !ok || h.Status != HealthUnhealthy || h.Message != "run 2" {
		t.Errorf("unexpected health %+v", h)
	}
	if len(ht.All()) != 1 {
		t.Errorf("expected one backend, got %v", ht.All())
	}
}

// TestTimescaleDBStore runs against a real database when
// ACTISUM_TEST_PG_DSN is set
func TestTimescaleDBStore(t *testing.T) {
	dsn := os.Getenv("ACTISUM_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("ACTISUM_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	store, err := NewTimescaleDBStore(ctx, dsn, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	c := activity.DefaultConfig()
	run, err := NewRun(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.SaveRun(ctx, run, sampleResults(t, c)); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	var stored int64
	if err := store.db.Model(&DayRow{}).Where("run_id = ?", run.ID.String()).Count(&stored).Error; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored != 2 {
		t.Errorf("expected 2 stored days, got %d", stored)
	}
}
