package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setupTestStore creates a temporary directory and returns an FSStore for testing.
func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()

	tempDir := t.TempDir()
	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}

	return store, tempDir
}

// createTestCheckpoint creates a checkpoint with test data.
func createTestCheckpoint(runID string) *Checkpoint {
	return &Checkpoint{
		RunID:        runID,
		Coords:       []float64{0.1, -0.4, 0.9, 1.2, 0.0, -0.7},
		MarkovEnergy: -2.414,
		BestEnergy:   -3.0,
		BestCoords:   []float64{0.0, -0.5, 1.0, 1.1, 0.1, -0.6},
		Steps:        500,
		Timestamp:    time.Now(),
		Config: RunConfig{
			Potential:   "lj",
			Atoms:       2,
			Steps:       1000,
			Temperature: 1.0,
			Stepsize:    0.5,
			Seed:        42,
		},
	}
}

func TestNewFSStore(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	if store == nil {
		t.Fatal("Expected non-nil store")
	}

	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		t.Fatal("Base directory was not created")
	}
}

func TestSaveCheckpoint(t *testing.T) {
	store, tempDir := setupTestStore(t)

	runID := "test-run-123"
	checkpoint := createTestCheckpoint(runID)

	if err := store.SaveCheckpoint(runID, checkpoint); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "runs", runID, "checkpoint.json")
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Fatalf("Checkpoint file was not created at %s", expectedPath)
	}

	// The atomic write must not leave a temp file behind.
	tempPath := expectedPath + ".tmp"
	if _, err := os.Stat(tempPath); !os.IsNotExist(err) {
		t.Errorf("Temp file should not exist after save: %s", tempPath)
	}
}

func TestSaveCheckpoint_EmptyRunID(t *testing.T) {
	store, _ := setupTestStore(t)
	checkpoint := createTestCheckpoint("any-id")

	if err := store.SaveCheckpoint("", checkpoint); err == nil {
		t.Fatal("Expected error for empty runID")
	}
}

func TestSaveCheckpoint_NilCheckpoint(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.SaveCheckpoint("test-run", nil); err == nil {
		t.Fatal("Expected error for nil checkpoint")
	}
}

func TestSaveCheckpoint_Overwrite(t *testing.T) {
	store, _ := setupTestStore(t)

	runID := "test-run-overwrite"
	checkpoint1 := createTestCheckpoint(runID)
	checkpoint1.Steps = 100

	checkpoint2 := createTestCheckpoint(runID)
	checkpoint2.Steps = 200

	if err := store.SaveCheckpoint(runID, checkpoint1); err != nil {
		t.Fatalf("First save failed: %v", err)
	}
	if err := store.SaveCheckpoint(runID, checkpoint2); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, err := store.LoadCheckpoint(runID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Steps != 200 {
		t.Errorf("Expected Steps=200, got %d", loaded.Steps)
	}
}

func TestLoadCheckpoint(t *testing.T) {
	store, _ := setupTestStore(t)

	runID := "test-run-load"
	original := createTestCheckpoint(runID)

	if err := store.SaveCheckpoint(runID, original); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	loaded, err := store.LoadCheckpoint(runID)
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}

	if loaded.RunID != original.RunID {
		t.Errorf("RunID mismatch: expected %s, got %s", original.RunID, loaded.RunID)
	}
	if loaded.MarkovEnergy != original.MarkovEnergy {
		t.Errorf("MarkovEnergy mismatch: expected %f, got %f", original.MarkovEnergy, loaded.MarkovEnergy)
	}
	if loaded.Steps != original.Steps {
		t.Errorf("Steps mismatch: expected %d, got %d", original.Steps, loaded.Steps)
	}
	if len(loaded.Coords) != len(original.Coords) {
		t.Errorf("Coords length mismatch: expected %d, got %d", len(original.Coords), len(loaded.Coords))
	}
	if loaded.Config.Potential != original.Config.Potential {
		t.Errorf("Config.Potential mismatch: expected %s, got %s", original.Config.Potential, loaded.Config.Potential)
	}
}

func TestLoadCheckpoint_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.LoadCheckpoint("nonexistent-run")
	if err == nil {
		t.Fatal("Expected error for nonexistent checkpoint")
	}

	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected NotFoundError, got %T: %v", err, err)
	}
}

func TestLoadCheckpoint_EmptyRunID(t *testing.T) {
	store, _ := setupTestStore(t)

	if _, err := store.LoadCheckpoint(""); err == nil {
		t.Fatal("Expected error for empty runID")
	}
}

func TestListCheckpoints_Empty(t *testing.T) {
	store, _ := setupTestStore(t)

	infos, err := store.ListCheckpoints()
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("Expected empty list, got %d checkpoints", len(infos))
	}
}

func TestListCheckpoints_Multiple(t *testing.T) {
	store, _ := setupTestStore(t)

	runs := []string{"run-1", "run-2", "run-3"}
	for _, runID := range runs {
		if err := store.SaveCheckpoint(runID, createTestCheckpoint(runID)); err != nil {
			t.Fatalf("Failed to save checkpoint %s: %v", runID, err)
		}
	}

	infos, err := store.ListCheckpoints()
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(infos) != len(runs) {
		t.Fatalf("Expected %d checkpoints, got %d", len(runs), len(infos))
	}

	seen := make(map[string]bool)
	for _, info := range infos {
		seen[info.RunID] = true
		if info.Potential != "lj" {
			t.Errorf("Expected potential lj, got %s", info.Potential)
		}
	}
	for _, runID := range runs {
		if !seen[runID] {
			t.Errorf("Checkpoint %s missing from listing", runID)
		}
	}
}

func TestDeleteCheckpoint(t *testing.T) {
	store, tempDir := setupTestStore(t)

	runID := "test-run-delete"
	if err := store.SaveCheckpoint(runID, createTestCheckpoint(runID)); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	if err := store.DeleteCheckpoint(runID); err != nil {
		t.Fatalf("DeleteCheckpoint failed: %v", err)
	}

	runDir := filepath.Join(tempDir, "runs", runID)
	if _, err := os.Stat(runDir); !os.IsNotExist(err) {
		t.Errorf("Run directory should be removed: %s", runDir)
	}

	if _, err := store.LoadCheckpoint(runID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected NotFoundError after delete, got %v", err)
	}
}

func TestDeleteCheckpoint_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	err := store.DeleteCheckpoint("nonexistent-run")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
}
