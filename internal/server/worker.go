package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"basinhop/internal/bh"
	"basinhop/internal/runner"
	"basinhop/internal/store"
)

// stepBatch is the number of hopping steps run between cancellation checks.
const stepBatch = 10

// broadcastInterval throttles progress events to SSE/websocket clients.
const broadcastInterval = 500 * time.Millisecond

// lowestMinimaKept bounds the per-job minima store.
const lowestMinimaKept = 20

// minimaEnergyTol is the dedupe tolerance for the per-job minima store.
const minimaEnergyTol = 1e-6

// runJob executes a basin hopping job in the background.
// If checkpointStore is not nil and the job has checkpointInterval > 0,
// periodic checkpoints are saved. If minimaDB is not nil, every accepted
// minimum is also persisted there.
func runJob(ctx context.Context, jm *JobManager, checkpointStore store.Store, minimaDB *store.SQLiteStore, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}
	cfg := job.Config

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID, "potential", cfg.Potential, "steps", cfg.Steps)

	coords, err := runner.InitialCoords(cfg)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	minima := store.NewMinimaStore(lowestMinimaKept, minimaEnergyTol)

	storage := minima.Storage()
	if minimaDB != nil {
		dbStorage := minimaDB.Storage(ctx, jobID)
		memStorage := storage
		storage = func(energy float64, coords []float64) {
			memStorage(energy, coords)
			dbStorage(energy, coords)
		}
	}

	stagnation := bh.NewStagnationTracker(cfg.Patience, minimaEnergyTol)

	// The observer runs synchronously inside driver.Run, so the plain
	// counter is safe.
	var accepted int
	driver, err := runner.NewDriver(cfg, coords,
		bh.WithStorage(storage),
		bh.WithObserver(func(_ float64, _ []float64, acc bool) {
			if acc {
				accepted++
			}
		}),
		bh.WithObserver(stagnation.Notify),
	)
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to initialize driver: %w", err))
		return err
	}

	start := time.Now()
	lastBroadcast := time.Time{}
	nextCheckpoint := cfg.CheckpointInterval

	for done := 0; done < cfg.Steps; {
		select {
		case <-ctx.Done():
			markJobCancelled(jm, jobID)
			broadcastJobState(jm, jobID)
			return ctx.Err()
		default:
		}

		batch := stepBatch
		if rem := cfg.Steps - done; rem < batch {
			batch = rem
		}

		if err := driver.Run(batch); err != nil {
			markJobFailed(jm, jobID, err)
			broadcastJobState(jm, jobID)
			return err
		}
		done += batch

		updateProgress(jm, jobID, driver, minima, accepted)

		if time.Since(lastBroadcast) >= broadcastInterval {
			broadcastJobState(jm, jobID)
			lastBroadcast = time.Now()
		}

		if checkpointStore != nil && cfg.CheckpointInterval > 0 && driver.Steps() >= nextCheckpoint {
			if err := saveJobCheckpoint(jm, checkpointStore, driver, minima, jobID); err != nil {
				slog.Error("Failed to save checkpoint", "job_id", jobID, "error", err)
			}
			nextCheckpoint += cfg.CheckpointInterval
		}

		if stagnation.Stale() {
			slog.Info("Stopping job early, chain stagnated", "job_id", jobID, "steps", driver.Steps())
			break
		}
	}

	elapsed := time.Since(start)

	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	best, _ := minima.Lowest()
	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"steps", driver.Steps(),
		"best_energy", best.Energy,
		"accept_ratio", float64(accepted)/float64(driver.Steps()),
	)

	broadcastJobState(jm, jobID)
	return nil
}

// updateProgress copies the driver's current state into the job record.
func updateProgress(jm *JobManager, jobID string, driver *bh.Driver, minima *store.MinimaStore, accepted int) {
	best, ok := minima.Lowest()
	jm.UpdateJob(jobID, func(j *Job) {
		j.MarkovEnergy = driver.MarkovEnergy()
		j.Steps = driver.Steps()
		j.Accepted = accepted
		if ok {
			j.BestEnergy = best.Energy
			j.BestCoords = best.Coords
		}
	})
}

// broadcastJobState sends the job's current state to all stream subscribers.
func broadcastJobState(jm *JobManager, jobID string) {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return
	}

	jm.mu.RLock()
	event := ProgressEvent{
		JobID:        job.ID,
		State:        job.State,
		Steps:        job.Steps,
		MarkovEnergy: job.MarkovEnergy,
		BestEnergy:   job.BestEnergy,
		AcceptRatio:  job.AcceptRatio(),
		Timestamp:    time.Now(),
	}
	jm.mu.RUnlock()

	jm.broadcaster.Broadcast(event)
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
}

// saveJobCheckpoint saves the current Markov state of a running job.
func saveJobCheckpoint(jm *JobManager, checkpointStore store.Store, driver *bh.Driver, minima *store.MinimaStore, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	best, _ := minima.Lowest()
	checkpoint := store.NewCheckpoint(
		jobID,
		driver.Coords(),
		driver.MarkovEnergy(),
		best.Coords,
		best.Energy,
		driver.Steps(),
		job.Config,
	)

	if err := checkpointStore.SaveCheckpoint(jobID, checkpoint); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	slog.Info("Checkpoint saved",
		"job_id", jobID,
		"steps", driver.Steps(),
		"best_energy", best.Energy,
	)
	return nil
}
