package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"basinhop/internal/store"

	"github.com/spf13/cobra"
)

var resumeSteps int

var resumeCmd = &cobra.Command{
	Use:   "resume [run-id]",
	Short: "Resume a checkpointed run",
	Long: `Continues a basin hopping run from its saved checkpoint. The Markov
configuration is restored and re-quenched (which is idempotent), step
numbering continues from the stored cumulative count, and the updated
checkpoint is written back when the run finishes.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().IntVar(&resumeSteps, "steps", 1000, "Additional hopping steps")
	resumeCmd.Flags().StringVar(&configPath, "config", "", "YAML config overriding stored tunables (must stay compatible)")
	resumeCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Base directory for checkpoints and traces")
	resumeCmd.Flags().BoolVar(&traceEnabled, "trace", false, "Append to the run's JSONL step trace")
	resumeCmd.Flags().BoolVar(&traceCoords, "trace-coords", false, "Include coordinates in trace entries")
	resumeCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database for accepted minima (optional)")
	resumeCmd.Flags().IntVar(&saveLowest, "save-lowest", 5, "Number of lowest minima to keep and print")

	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	runID := args[0]

	fsStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	checkpoint, err := fsStore.LoadCheckpoint(runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no checkpoint found for run %s", runID)
		}
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := checkpoint.Validate(); err != nil {
		return fmt.Errorf("checkpoint for run %s is corrupt: %w", runID, err)
	}

	cfg := checkpoint.Config
	if configPath != "" {
		override := cfg
		if err := loadConfigFile(configPath, &override); err != nil {
			return err
		}
		if err := checkpoint.IsCompatible(override); err != nil {
			return fmt.Errorf("config is incompatible with checkpoint: %w", err)
		}
		cfg = override
	}
	cfg.Steps = resumeSteps

	// Shift the seed so the resumed chain does not replay the random
	// stream the original run already consumed.
	cfg.Seed += int64(checkpoint.Steps)

	slog.Info("Resuming run",
		"run_id", runID,
		"completed_steps", checkpoint.Steps,
		"additional_steps", cfg.Steps,
		"markov_energy", checkpoint.MarkovEnergy,
	)

	return executeRun(cmd.Context(), cfg, runID, checkpoint.Coords, checkpoint.Steps, fsStore, true)
}
