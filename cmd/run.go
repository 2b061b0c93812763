package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"basinhop/internal/bh"
	"basinhop/internal/runner"
	"basinhop/internal/store"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	configPath             string
	flagPotential          string
	flagAtoms              int
	flagDim                int
	flagSteps              int
	flagTemperature        float64
	flagStepsize           float64
	flagSeed               int64
	flagQuenchTol          float64
	flagQuenchMaxIter      int
	flagPatience           int
	flagCheckpointInterval int

	dataDir      string
	traceEnabled bool
	traceCoords  bool
	dbPath       string
	saveLowest   int
)

// cliStepBatch is the number of hopping steps run between interrupt checks.
const cliStepBatch = 100

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a basin hopping optimization",
	Long: `Runs basin hopping on the selected potential and prints the lowest
minima found. State can be checkpointed for later resumption, every accepted
minimum can be traced to a JSONL file, and minima can be collected in a
SQLite database.`,
	RunE: runHopping,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML config file (flags override file values)")
	runCmd.Flags().StringVar(&flagPotential, "potential", "lj", "Potential: lj, quadratic, rosenbrock")
	runCmd.Flags().IntVar(&flagAtoms, "atoms", 13, "Number of atoms (lj potential)")
	runCmd.Flags().IntVar(&flagDim, "dim", 2, "Dimensionality (quadratic potential)")
	runCmd.Flags().IntVar(&flagSteps, "steps", 1000, "Number of hopping steps")
	runCmd.Flags().Float64Var(&flagTemperature, "temperature", 1.0, "Metropolis temperature")
	runCmd.Flags().Float64Var(&flagStepsize, "stepsize", 0.5, "Initial displacement stepsize")
	runCmd.Flags().Int64Var(&flagSeed, "seed", 42, "Random seed")
	runCmd.Flags().Float64Var(&flagQuenchTol, "quench-tol", 0, "Quench RMS gradient tolerance (0 = default)")
	runCmd.Flags().IntVar(&flagQuenchMaxIter, "quench-max-iter", 0, "Quench iteration budget (0 = default)")
	runCmd.Flags().IntVar(&flagPatience, "patience", 0, "Stop after N steps without a new lowest energy (0 = disabled)")
	runCmd.Flags().IntVar(&flagCheckpointInterval, "checkpoint-interval", 0, "Steps between checkpoints (0 = disabled)")
	runCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Base directory for checkpoints and traces")
	runCmd.Flags().BoolVar(&traceEnabled, "trace", false, "Write a JSONL step trace under the data directory")
	runCmd.Flags().BoolVar(&traceCoords, "trace-coords", false, "Include coordinates in trace entries")
	runCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database for accepted minima (optional)")
	runCmd.Flags().IntVar(&saveLowest, "save-lowest", 5, "Number of lowest minima to keep and print")

	rootCmd.AddCommand(runCmd)
}

func runHopping(cmd *cobra.Command, args []string) error {
	cfg, err := resolveRunConfig(cmd)
	if err != nil {
		return err
	}

	runID := uuid.New().String()

	coords, err := runner.InitialCoords(cfg)
	if err != nil {
		return err
	}

	var fsStore store.Store
	if cfg.CheckpointInterval > 0 {
		fsStore, err = store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create checkpoint store: %w", err)
		}
	}

	return executeRun(cmd.Context(), cfg, runID, coords, 0, fsStore, false)
}

// executeRun drives a basin hopping chain to completion: it wires up minima
// collection, optional tracing, optional SQLite persistence and periodic
// checkpointing, then runs the chain in batches so SIGINT lands between
// batches and the final state can still be checkpointed.
func executeRun(ctx context.Context, cfg store.RunConfig, runID string, coords []float64, startStep int, fsStore store.Store, appendTrace bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting basin hopping",
		"run_id", runID,
		"potential", cfg.Potential,
		"steps", cfg.Steps,
		"temperature", cfg.Temperature,
		"seed", cfg.Seed,
	)

	minima := store.NewMinimaStore(saveLowest, 1e-6)
	storage := minima.Storage()

	if dbPath != "" {
		db := store.NewSQLiteStore(dbPath)
		if err := db.Init(ctx); err != nil {
			return fmt.Errorf("failed to open minima database: %w", err)
		}
		defer db.Close()

		dbStorage := db.Storage(ctx, runID)
		memStorage := storage
		storage = func(energy float64, coords []float64) {
			memStorage(energy, coords)
			dbStorage(energy, coords)
		}
	}

	options := []bh.Option{bh.WithStorage(storage)}

	if traceEnabled {
		tw, err := store.NewTraceWriter(dataDir, runID, appendTrace, startStep)
		if err != nil {
			return fmt.Errorf("failed to create trace writer: %w", err)
		}
		defer tw.Close()
		tw.IncludeCoords = traceCoords
		options = append(options, bh.WithObserver(tw.Observer()))
	}

	var accepted int
	options = append(options, bh.WithObserver(func(_ float64, _ []float64, acc bool) {
		if acc {
			accepted++
		}
	}))

	stagnation := bh.NewStagnationTracker(cfg.Patience, 1e-6)
	options = append(options, bh.WithObserver(stagnation.Notify))

	driver, err := runner.NewDriver(cfg, coords, options...)
	if err != nil {
		return err
	}

	start := time.Now()
	nextCheckpoint := cfg.CheckpointInterval
	interrupted := false

loop:
	for done := 0; done < cfg.Steps; {
		select {
		case <-ctx.Done():
			interrupted = true
			break loop
		default:
		}

		batch := cliStepBatch
		if rem := cfg.Steps - done; rem < batch {
			batch = rem
		}

		if err := driver.Run(batch); err != nil {
			return err
		}
		done += batch

		if fsStore != nil && cfg.CheckpointInterval > 0 && driver.Steps() >= nextCheckpoint {
			if err := saveRunCheckpoint(fsStore, cfg, runID, driver, minima, startStep); err != nil {
				slog.Error("Failed to save checkpoint", "run_id", runID, "error", err)
			}
			nextCheckpoint += cfg.CheckpointInterval
		}

		if stagnation.Stale() {
			slog.Info("Stopping early, chain stagnated", "run_id", runID, "steps", driver.Steps())
			break
		}
	}

	elapsed := time.Since(start)
	totalSteps := startStep + driver.Steps()

	if fsStore != nil {
		if err := saveRunCheckpoint(fsStore, cfg, runID, driver, minima, startStep); err != nil {
			slog.Error("Failed to save final checkpoint", "run_id", runID, "error", err)
		}
	}

	if interrupted {
		slog.Warn("Run interrupted", "run_id", runID, "steps", totalSteps)
	}

	slog.Info("Basin hopping finished",
		"run_id", runID,
		"elapsed", elapsed,
		"steps", totalSteps,
		"accepted", accepted,
		"markov_energy", driver.MarkovEnergy(),
	)

	fmt.Printf("Run %s: %d steps in %s (%d accepted)\n",
		runID, totalSteps, elapsed.Round(time.Millisecond), accepted)
	printLowestMinima(minima)

	return nil
}

func printLowestMinima(minima *store.MinimaStore) {
	all := minima.Minima()
	if len(all) == 0 {
		fmt.Println("No minima recorded.")
		return
	}

	fmt.Println("Lowest minima:")
	for i, m := range all {
		fmt.Printf("  %2d  %.6f\n", i+1, m.Energy)
	}
}

// saveRunCheckpoint persists the chain's current Markov state, using the
// cumulative step count so resumed runs keep numbering.
func saveRunCheckpoint(fsStore store.Store, cfg store.RunConfig, runID string, driver *bh.Driver, minima *store.MinimaStore, startStep int) error {
	best, _ := minima.Lowest()
	checkpoint := store.NewCheckpoint(
		runID,
		driver.Coords(),
		driver.MarkovEnergy(),
		best.Coords,
		best.Energy,
		startStep+driver.Steps(),
		cfg,
	)
	if err := fsStore.SaveCheckpoint(runID, checkpoint); err != nil {
		return err
	}

	slog.Debug("Checkpoint saved", "run_id", runID, "steps", checkpoint.Steps)
	return nil
}
