package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"plantwatch/internal/models"
	"plantwatch/internal/risk"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "plantwatch.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testReading(machine string, score float64, status risk.Status) *models.Reading {
	return &models.Reading{
		Machine:   machine,
		Timestamp: time.Now().UTC(),
		Values:    map[string]float64{"temp": 72, "vibration": 31},
		Status:    status,
		Score:     score,
	}
}

func TestSQLiteInsertAndFetch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Insert(ctx, testReading("cnc", float64(10*i), risk.StatusWarning)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Insert(ctx, testReading("hydraulic_press", 55, risk.StatusCritical)); err != nil {
		t.Fatal(err)
	}

	rows, err := s.Readings(ctx, "cnc")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("cnc rows: got %d, want 3", len(rows))
	}
	if rows[0].Values["temp"] != 72 {
		t.Errorf("values not round-tripped: %+v", rows[0].Values)
	}

	latest, err := s.Latest(ctx, "cnc")
	if err != nil {
		t.Fatal(err)
	}
	if latest.Score != 20 {
		t.Errorf("latest score: got %v, want 20", latest.Score)
	}
}

func TestSQLiteLatestNoRows(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Latest(context.Background(), "cnc")
	if !errors.Is(err, ErrNoReadings) {
		t.Fatalf("got %v, want ErrNoReadings", err)
	}
}

func TestSQLiteClear(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, testReading("cnc", 10, risk.StatusNormal)); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(ctx, testReading("industrial_fan", 10, risk.StatusNormal)); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(ctx, "cnc"); err != nil {
		t.Fatal(err)
	}

	rows, err := s.Readings(ctx, "cnc")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("cnc rows after clear: got %d", len(rows))
	}

	// Other machines untouched.
	rows, err = s.Readings(ctx, "industrial_fan")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("industrial_fan rows: got %d, want 1", len(rows))
	}
}

func TestSQLiteMaintenanceHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	last, err := s.LastMaintenance(ctx, "cnc")
	if err != nil {
		t.Fatal(err)
	}
	if last != 0 {
		t.Errorf("no history: got %v, want 0", last)
	}

	for _, rt := range []float64{1200, 6400} {
		if err := s.RecordMaintenance(ctx, "cnc", rt); err != nil {
			t.Fatal(err)
		}
	}
	last, err = s.LastMaintenance(ctx, "cnc")
	if err != nil {
		t.Fatal(err)
	}
	if last != 6400 {
		t.Errorf("last maintenance: got %v, want 6400", last)
	}
}

func TestSQLiteRejectsInvalidReading(t *testing.T) {
	s := openTestStore(t)
	err := s.Insert(context.Background(), &models.Reading{Machine: "cnc"})
	if !errors.Is(err, models.ErrZeroTimestamp) {
		t.Fatalf("got %v, want ErrZeroTimestamp", err)
	}
}
