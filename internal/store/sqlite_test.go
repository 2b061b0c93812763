package store

import (
	"context"
	"path/filepath"
	"testing"
)

func setupSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s := NewSQLiteStore(filepath.Join(t.TempDir(), "minima.db"))
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreSaveAndList(t *testing.T) {
	s := setupSQLiteStore(t)
	ctx := context.Background()

	if err := s.SaveMinimum(ctx, "run-1", -1.0, []float64{1, 2, 3}); err != nil {
		t.Fatalf("SaveMinimum failed: %v", err)
	}
	if err := s.SaveMinimum(ctx, "run-1", -3.0, []float64{4, 5, 6}); err != nil {
		t.Fatalf("SaveMinimum failed: %v", err)
	}
	if err := s.SaveMinimum(ctx, "run-2", -9.0, []float64{7, 8, 9}); err != nil {
		t.Fatalf("SaveMinimum failed: %v", err)
	}

	minima, err := s.ListMinima(ctx, "run-1", 0)
	if err != nil {
		t.Fatalf("ListMinima failed: %v", err)
	}
	if len(minima) != 2 {
		t.Fatalf("Expected 2 minima for run-1, got %d", len(minima))
	}
	if minima[0].Energy != -3.0 {
		t.Errorf("Expected lowest first, got %f", minima[0].Energy)
	}
	if len(minima[0].Coords) != 3 || minima[0].Coords[0] != 4 {
		t.Errorf("Coords round trip failed: %v", minima[0].Coords)
	}
}

func TestSQLiteStoreListLimit(t *testing.T) {
	s := setupSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.SaveMinimum(ctx, "run-1", float64(-i), []float64{float64(i)}); err != nil {
			t.Fatalf("SaveMinimum failed: %v", err)
		}
	}

	minima, err := s.ListMinima(ctx, "run-1", 2)
	if err != nil {
		t.Fatalf("ListMinima failed: %v", err)
	}
	if len(minima) != 2 {
		t.Errorf("Expected limit of 2, got %d", len(minima))
	}
}

func TestSQLiteStoreLowest(t *testing.T) {
	s := setupSQLiteStore(t)
	ctx := context.Background()

	if _, ok, err := s.Lowest(ctx, "run-1"); err != nil || ok {
		t.Fatalf("Expected no minimum yet (ok=%v, err=%v)", ok, err)
	}

	if err := s.SaveMinimum(ctx, "run-1", -2.0, []float64{1}); err != nil {
		t.Fatalf("SaveMinimum failed: %v", err)
	}
	if err := s.SaveMinimum(ctx, "run-1", -7.5, []float64{2}); err != nil {
		t.Fatalf("SaveMinimum failed: %v", err)
	}

	m, ok, err := s.Lowest(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("Lowest failed (ok=%v, err=%v)", ok, err)
	}
	if m.Energy != -7.5 {
		t.Errorf("Expected -7.5, got %f", m.Energy)
	}
}

func TestSQLiteStoreStorageAdapter(t *testing.T) {
	s := setupSQLiteStore(t)
	ctx := context.Background()

	sink := s.Storage(ctx, "run-adapter")
	sink(-1.0, []float64{1, 2})
	sink(-4.0, []float64{3, 4})

	m, ok, err := s.Lowest(ctx, "run-adapter")
	if err != nil || !ok {
		t.Fatalf("Lowest failed (ok=%v, err=%v)", ok, err)
	}
	if m.Energy != -4.0 {
		t.Errorf("Expected -4.0, got %f", m.Energy)
	}
}

func TestSQLiteStoreUninitialized(t *testing.T) {
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "x.db"))

	if err := s.SaveMinimum(context.Background(), "run", -1, []float64{1}); err == nil {
		t.Error("Expected error before Init")
	}
}

func TestSQLiteStoreInitRequiresPath(t *testing.T) {
	s := NewSQLiteStore("")
	if err := s.Init(context.Background()); err == nil {
		t.Error("Expected error for empty path")
	}
}
