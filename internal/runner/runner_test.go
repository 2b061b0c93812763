package runner

import (
	"testing"

	"basinhop/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPotential(t *testing.T) {
	tests := []struct {
		name    string
		cfg     store.RunConfig
		wantErr bool
	}{
		{"lj", store.RunConfig{Potential: "lj", Atoms: 13}, false},
		{"lj too few atoms", store.RunConfig{Potential: "lj", Atoms: 1}, true},
		{"quadratic", store.RunConfig{Potential: "quadratic", Dim: 3}, false},
		{"quadratic no dim", store.RunConfig{Potential: "quadratic"}, true},
		{"rosenbrock", store.RunConfig{Potential: "rosenbrock"}, false},
		{"unknown", store.RunConfig{Potential: "bogus"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pot, err := BuildPotential(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, pot)
		})
	}
}

func TestInitialCoords(t *testing.T) {
	ljCfg := store.RunConfig{Potential: "lj", Atoms: 5, Seed: 7}
	coords, err := InitialCoords(ljCfg)
	require.NoError(t, err)
	assert.Len(t, coords, 15)

	again, err := InitialCoords(ljCfg)
	require.NoError(t, err)
	assert.Equal(t, coords, again, "same seed should give same start")

	quadCfg := store.RunConfig{Potential: "quadratic", Dim: 4, Seed: 7}
	coords, err = InitialCoords(quadCfg)
	require.NoError(t, err)
	assert.Len(t, coords, 4)
	for _, x := range coords {
		assert.GreaterOrEqual(t, x, -5.0)
		assert.Less(t, x, 5.0)
	}

	_, err = InitialCoords(store.RunConfig{Potential: "bogus"})
	assert.Error(t, err)
}

func TestNewDriver(t *testing.T) {
	cfg := store.RunConfig{
		Potential:   "quadratic",
		Dim:         2,
		Temperature: 1.0,
		Stepsize:    0.5,
		Seed:        3,
	}

	coords, err := InitialCoords(cfg)
	require.NoError(t, err)

	driver, err := NewDriver(cfg, coords)
	require.NoError(t, err)

	require.NoError(t, driver.Run(20))
	assert.Equal(t, 20, driver.Steps())
	assert.InDelta(t, 0.0, driver.MarkovEnergy(), 1e-6,
		"quadratic chain should sit at the global minimum")
}

func TestNewDriver_CoordsMismatch(t *testing.T) {
	cfg := store.RunConfig{Potential: "quadratic", Dim: 2, Seed: 1}

	_, err := NewDriver(cfg, []float64{1, 2, 3})
	assert.Error(t, err)
}

func TestNewDriver_UnknownPotential(t *testing.T) {
	cfg := store.RunConfig{Potential: "bogus", Seed: 1}

	_, err := NewDriver(cfg, []float64{1})
	assert.Error(t, err)
}

func TestNewDriver_DefaultStepsize(t *testing.T) {
	cfg := store.RunConfig{Potential: "quadratic", Dim: 2, Seed: 1}

	coords, err := InitialCoords(cfg)
	require.NoError(t, err)

	// Stepsize 0 falls back to the default rather than freezing the chain.
	driver, err := NewDriver(cfg, coords)
	require.NoError(t, err)
	require.NoError(t, driver.Run(5))
	assert.Equal(t, 5, driver.Steps())
}
