package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "navbake.yaml")
	data := `
build:
  tile_size: 64
  partition_method: monotone
  inclusion_bounds:
    - min: [0, -5, 0]
      max: [100, 50, 100]
scheduler:
  worker_pool_size: 3
  tick_interval: 25ms
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, float32(64), cfg.Build.TileSize)
	assert.Equal(t, PartitionMonotone, cfg.Build.PartitionMethod)
	require.Len(t, cfg.Build.InclusionBounds, 1)
	assert.Equal(t, [3]float32{100, 50, 100}, cfg.Build.InclusionBounds[0].Max)
	assert.Equal(t, 3, cfg.Scheduler.WorkerPool())
	assert.Equal(t, 25*time.Millisecond, cfg.Scheduler.TickInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched fields keep defaults
	assert.Equal(t, float32(0.3), cfg.Build.CellSize)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("build: [1, 2"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "parsing config")
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := Default()
	cfg.Build.TileSize = 0
	cfg.Build.MaxVertsPerPoly = 2
	cfg.Build.PartitionMethod = "voronoi"
	cfg.Scheduler.MaxQueuedTiles = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4)
}

func TestDerivedValues(t *testing.T) {
	cfg := Default()
	assert.GreaterOrEqual(t, cfg.Scheduler.WorkerPool(), 1)
	// radius 0.6 / cs 0.3 = 2 cells, +3 border cells
	assert.InDelta(t, 1.5, cfg.Build.BorderPaddingOrDefault(), 1e-5)
	cfg.Build.BorderPadding = 4
	assert.Equal(t, float32(4), cfg.Build.BorderPaddingOrDefault())
	assert.Equal(t, float32(0.3), cfg.Scheduler.DirtyMargin(0.3))
	cfg.Scheduler.DirtyAreaMargin = 0
	assert.Equal(t, float32(0), cfg.Scheduler.DirtyMargin(0.3))
}
