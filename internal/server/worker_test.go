package server

import (
	"context"
	"testing"

	"basinhop/internal/store"
)

func TestRunJob_Quadratic(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testConfig())

	if err := runJob(context.Background(), jm, nil, nil, job.ID); err != nil {
		t.Fatalf("runJob failed: %v", err)
	}

	got, _ := jm.GetJob(job.ID)
	if got.State != StateCompleted {
		t.Errorf("State = %s, want completed", got.State)
	}
	if got.Steps != 50 {
		t.Errorf("Steps = %d, want 50", got.Steps)
	}
	if got.BestEnergy > 1e-6 {
		t.Errorf("BestEnergy = %v, quadratic quench should reach 0", got.BestEnergy)
	}
	if len(got.BestCoords) != 2 {
		t.Errorf("BestCoords length = %d, want 2", len(got.BestCoords))
	}
	if got.EndTime == nil {
		t.Error("EndTime should be set on completion")
	}
}

func TestRunJob_UnknownJob(t *testing.T) {
	jm := NewJobManager()

	if err := runJob(context.Background(), jm, nil, nil, "nonexistent"); err == nil {
		t.Error("runJob with unknown ID should fail")
	}
}

func TestRunJob_InvalidPotential(t *testing.T) {
	jm := NewJobManager()
	cfg := testConfig()
	cfg.Potential = "bogus"
	job := jm.CreateJob(cfg)

	if err := runJob(context.Background(), jm, nil, nil, job.ID); err == nil {
		t.Fatal("runJob with unknown potential should fail")
	}

	got, _ := jm.GetJob(job.ID)
	if got.State != StateFailed {
		t.Errorf("State = %s, want failed", got.State)
	}
	if got.Error == "" {
		t.Error("Error message should be set")
	}
}

func TestRunJob_Cancelled(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := runJob(ctx, jm, nil, nil, job.ID); err == nil {
		t.Fatal("runJob on cancelled context should return an error")
	}

	got, _ := jm.GetJob(job.ID)
	if got.State != StateCancelled {
		t.Errorf("State = %s, want cancelled", got.State)
	}
	if got.EndTime == nil {
		t.Error("EndTime should be set on cancellation")
	}
}

func TestRunJob_Checkpoints(t *testing.T) {
	jm := NewJobManager()
	cfg := testConfig()
	cfg.CheckpointInterval = 10
	job := jm.CreateJob(cfg)

	fsStore, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	if err := runJob(context.Background(), jm, fsStore, nil, job.ID); err != nil {
		t.Fatalf("runJob failed: %v", err)
	}

	checkpoint, err := fsStore.LoadCheckpoint(job.ID)
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if checkpoint.Steps != 50 {
		t.Errorf("Checkpoint steps = %d, want 50", checkpoint.Steps)
	}
	if checkpoint.Config.Potential != "quadratic" {
		t.Errorf("Checkpoint potential = %s, want quadratic", checkpoint.Config.Potential)
	}
	if len(checkpoint.Coords) != 2 {
		t.Errorf("Checkpoint coords length = %d, want 2", len(checkpoint.Coords))
	}
}

func TestRunJob_MinimaDB(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testConfig())

	db := store.NewSQLiteStore(t.TempDir() + "/minima.db")
	if err := db.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer db.Close()

	if err := runJob(context.Background(), jm, nil, db, job.ID); err != nil {
		t.Fatalf("runJob failed: %v", err)
	}

	minima, err := db.ListMinima(context.Background(), job.ID, 0)
	if err != nil {
		t.Fatalf("ListMinima failed: %v", err)
	}
	if len(minima) == 0 {
		t.Fatal("Expected persisted minima")
	}

	lowest, found, err := db.Lowest(context.Background(), job.ID)
	if err != nil || !found {
		t.Fatalf("Lowest failed: found=%v err=%v", found, err)
	}
	if lowest.Energy > 1e-6 {
		t.Errorf("Lowest energy = %v, want ~0", lowest.Energy)
	}
}
