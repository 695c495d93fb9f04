package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/gorustyt/navbake/common"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// PartitionMethod selects how walkable cells are split into polygons.
type PartitionMethod string

const (
	PartitionWatershed PartitionMethod = "watershed"
	PartitionMonotone  PartitionMethod = "monotone"
	PartitionLayers    PartitionMethod = "layers"
)

// Config is the root configuration of the baker.
type Config struct {
	Build     BuildConfig     `yaml:"build"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	World     WorldConfig     `yaml:"world"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
}

// BuildConfig holds the voxelization and agent parameters. All of them are
// fixed for a grid version.
type BuildConfig struct {
	TileSize        float32         `yaml:"tile_size"` // world units
	CellSize        float32         `yaml:"cell_size"`
	CellHeight      float32         `yaml:"cell_height"`
	BorderPadding   float32         `yaml:"border_padding"` // 0 = derived from agent radius
	AgentRadius     float32         `yaml:"agent_radius"`
	AgentHeight     float32         `yaml:"agent_height"`
	AgentMaxClimb   float32         `yaml:"agent_max_climb"`
	AgentMaxSlope   float32         `yaml:"agent_max_slope"` // degrees
	MaxVertsPerPoly int             `yaml:"max_verts_per_poly"`
	MinRegionArea   int             `yaml:"min_region_area"` // cells
	PartitionMethod PartitionMethod `yaml:"partition_method"`
	MaxLayers       int             `yaml:"max_layers"`
	InclusionBounds []BoxConfig     `yaml:"inclusion_bounds"`
}

type BoxConfig struct {
	Min [3]float32 `yaml:"min"`
	Max [3]float32 `yaml:"max"`
}

// SchedulerConfig bounds the background build.
type SchedulerConfig struct {
	MaxActiveTiles  uint32        `yaml:"max_active_tiles"` // 0 = derived from grid size
	WorkerPoolSize  int           `yaml:"worker_pool_size"` // 0 = NumCPU-1, at least 1
	MaxQueuedTiles  int           `yaml:"max_queued_tiles"`
	DirtyAreaMargin float32       `yaml:"dirty_area_margin"` // < 0 = one cell
	TickInterval    time.Duration `yaml:"tick_interval"`
}

// WorldConfig describes the procedural demo world baked by the CLI.
type WorldConfig struct {
	Bounds BoxConfig `yaml:"bounds"`
	Seed   int64     `yaml:"seed"`
}

type StoreConfig struct {
	Path string `yaml:"path"` // empty disables persistence
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Console    bool   `yaml:"console"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Build: BuildConfig{
			TileSize:        32,
			CellSize:        0.3,
			CellHeight:      0.2,
			AgentRadius:     0.6,
			AgentHeight:     2.0,
			AgentMaxClimb:   0.9,
			AgentMaxSlope:   45,
			MaxVertsPerPoly: 6,
			MinRegionArea:   8,
			PartitionMethod: PartitionWatershed,
			MaxLayers:       32,
		},
		Scheduler: SchedulerConfig{
			MaxQueuedTiles:  64,
			DirtyAreaMargin: -1,
			TickInterval:    10 * time.Millisecond,
		},
		World: WorldConfig{
			Bounds: BoxConfig{Min: [3]float32{0, -10, 0}, Max: [3]float32{256, 40, 256}},
			Seed:   1,
		},
		Log: LogConfig{
			Level:      "info",
			Console:    true,
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// Load loads config from a YAML file.
// If the file doesn't exist, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var err error
	b := c.Build
	positive := func(name string, v float32) {
		if !(v > 0) {
			err = multierr.Append(err, fmt.Errorf("build.%s must be positive, got %v", name, v))
		}
	}
	positive("tile_size", b.TileSize)
	positive("cell_size", b.CellSize)
	positive("cell_height", b.CellHeight)
	positive("agent_height", b.AgentHeight)
	if b.AgentRadius < 0 || b.AgentMaxClimb < 0 || b.BorderPadding < 0 {
		err = multierr.Append(err, errors.New("build agent_radius, agent_max_climb and border_padding must not be negative"))
	}
	if b.AgentMaxSlope <= 0 || b.AgentMaxSlope >= 90 {
		err = multierr.Append(err, fmt.Errorf("build.agent_max_slope must be in (0, 90), got %v", b.AgentMaxSlope))
	}
	if b.CellSize > 0 && b.TileSize > 0 && b.TileSize < b.CellSize {
		err = multierr.Append(err, errors.New("build.tile_size must cover at least one cell"))
	}
	if b.MaxVertsPerPoly < 3 {
		err = multierr.Append(err, fmt.Errorf("build.max_verts_per_poly must be >= 3, got %d", b.MaxVertsPerPoly))
	}
	if b.MaxLayers < 1 || b.MaxLayers > 255 {
		err = multierr.Append(err, fmt.Errorf("build.max_layers must be in [1, 255], got %d", b.MaxLayers))
	}
	switch b.PartitionMethod {
	case PartitionWatershed, PartitionMonotone, PartitionLayers:
	default:
		err = multierr.Append(err, fmt.Errorf("build.partition_method %q is unknown", b.PartitionMethod))
	}
	for i, box := range b.InclusionBounds {
		if !box.valid() {
			err = multierr.Append(err, fmt.Errorf("build.inclusion_bounds[%d] has min > max", i))
		}
	}
	if c.Scheduler.WorkerPoolSize < 0 {
		err = multierr.Append(err, errors.New("scheduler.worker_pool_size must not be negative"))
	}
	if c.Scheduler.MaxQueuedTiles < 1 {
		err = multierr.Append(err, errors.New("scheduler.max_queued_tiles must be >= 1"))
	}
	if !c.World.Bounds.valid() {
		err = multierr.Append(err, errors.New("world.bounds has min > max"))
	}
	return err
}

// Box converts the YAML form into a common.Box.
func (b BoxConfig) Box() common.Box {
	return common.NewBox(common.Vec3(b.Min), common.Vec3(b.Max))
}

func (b BoxConfig) valid() bool {
	return b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1] && b.Min[2] <= b.Max[2]
}

// BorderPaddingOrDefault returns the configured padding, or
// (ceil(radius/cs)+3)*cs when unset.
func (b BuildConfig) BorderPaddingOrDefault() float32 {
	if b.BorderPadding > 0 {
		return b.BorderPadding
	}
	walkableRadius := float32(math.Ceil(float64(b.AgentRadius / b.CellSize)))
	return (walkableRadius + 3) * b.CellSize
}

// WorkerPool returns the number of concurrent build slots.
func (s SchedulerConfig) WorkerPool() int {
	if s.WorkerPoolSize > 0 {
		return s.WorkerPoolSize
	}
	return max(runtime.NumCPU()-1, 1)
}

// DirtyMargin returns the safety margin dirty areas are grown by.
func (s SchedulerConfig) DirtyMargin(cellSize float32) float32 {
	if s.DirtyAreaMargin < 0 {
		return cellSize
	}
	return s.DirtyAreaMargin
}
