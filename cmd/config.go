package cmd

import (
	"fmt"
	"os"

	"basinhop/internal/store"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// defaultRunConfig returns the built-in run defaults, applied before any
// config file or flags.
func defaultRunConfig() store.RunConfig {
	return store.RunConfig{
		Potential:   "lj",
		Atoms:       13,
		Steps:       1000,
		Temperature: 1.0,
		Stepsize:    0.5,
		Seed:        42,
	}
}

// loadConfigFile overlays YAML values from path onto cfg.
func loadConfigFile(path string, cfg *store.RunConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyRunFlags overlays explicitly set flags onto cfg. Only flags the user
// actually passed override the file, so precedence is
// defaults < config file < flags.
func applyRunFlags(cmd *cobra.Command, cfg *store.RunConfig) {
	flags := cmd.Flags()
	if flags.Changed("potential") {
		cfg.Potential = flagPotential
	}
	if flags.Changed("atoms") {
		cfg.Atoms = flagAtoms
	}
	if flags.Changed("dim") {
		cfg.Dim = flagDim
	}
	if flags.Changed("steps") {
		cfg.Steps = flagSteps
	}
	if flags.Changed("temperature") {
		cfg.Temperature = flagTemperature
	}
	if flags.Changed("stepsize") {
		cfg.Stepsize = flagStepsize
	}
	if flags.Changed("seed") {
		cfg.Seed = flagSeed
	}
	if flags.Changed("quench-tol") {
		cfg.QuenchTol = flagQuenchTol
	}
	if flags.Changed("quench-max-iter") {
		cfg.QuenchMaxIter = flagQuenchMaxIter
	}
	if flags.Changed("patience") {
		cfg.Patience = flagPatience
	}
	if flags.Changed("checkpoint-interval") {
		cfg.CheckpointInterval = flagCheckpointInterval
	}
}

// resolveRunConfig builds the effective run configuration from defaults, the
// optional --config file, and explicitly set flags.
func resolveRunConfig(cmd *cobra.Command) (store.RunConfig, error) {
	cfg := defaultRunConfig()
	if configPath != "" {
		if err := loadConfigFile(configPath, &cfg); err != nil {
			return cfg, err
		}
	}
	applyRunFlags(cmd, &cfg)

	if cfg.CoordLen() <= 0 {
		return cfg, fmt.Errorf("invalid potential config: %q", cfg.Potential)
	}
	return cfg, nil
}
