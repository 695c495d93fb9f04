package recast

import (
	"math"

	"github.com/gorustyt/navbake/common"
	"github.com/gorustyt/navbake/config"
)

// RcConfig holds the per-tile build parameters in cell units.
type RcConfig struct {
	TileX, TileY int32
	Cs, Ch       float32

	TileBounds common.Box // unpadded tile bounds
	Bounds     common.Box // heightfield bounds, tile bounds grown by the border
	Width      int        // heightfield width including border, in cells
	Height     int        // heightfield depth including border, in cells
	BorderSize int        // in cells
	TileCells  int        // tile edge length without border, in cells

	WalkableSlopeAngle float32 // degrees
	WalkableHeight     int
	WalkableClimb      int
	WalkableRadius     int
	AgentRadius        float32

	MaxVertsPerPoly int
	MinRegionArea   int
	MaxLayers       int
	Partition       config.PartitionMethod

	// Voxels outside every inclusion box are discarded when non-empty.
	InclusionBounds []common.Box
}

// TileCells is the tile edge length in cells. The tile world size is always
// a whole number of cells.
func TileCells(b config.BuildConfig) int {
	return max(int(b.TileSize/b.CellSize), 1)
}

// TileWorldSize is the world-space edge length of one tile.
func TileWorldSize(b config.BuildConfig) float32 {
	return float32(TileCells(b)) * b.CellSize
}

// BorderCells is the border padding in cells.
func BorderCells(b config.BuildConfig) int {
	return int(math.Ceil(float64(b.BorderPaddingOrDefault() / b.CellSize)))
}

// NewRcConfig derives the build parameters of tile (x, y) whose unpadded
// bounds are tileBounds.
func NewRcConfig(b config.BuildConfig, x, y int32, tileBounds common.Box, inclusion []common.Box) RcConfig {
	cfg := RcConfig{
		TileX:              x,
		TileY:              y,
		Cs:                 b.CellSize,
		Ch:                 b.CellHeight,
		TileBounds:         tileBounds,
		TileCells:          TileCells(b),
		BorderSize:         BorderCells(b),
		WalkableSlopeAngle: b.AgentMaxSlope,
		WalkableHeight:     int(math.Ceil(float64(b.AgentHeight / b.CellHeight))),
		WalkableClimb:      int(math.Floor(float64(b.AgentMaxClimb / b.CellHeight))),
		WalkableRadius:     int(math.Ceil(float64(b.AgentRadius / b.CellSize))),
		AgentRadius:        b.AgentRadius,
		MaxVertsPerPoly:    b.MaxVertsPerPoly,
		MinRegionArea:      b.MinRegionArea,
		MaxLayers:          b.MaxLayers,
		Partition:          b.PartitionMethod,
		InclusionBounds:    inclusion,
	}
	pad := float32(cfg.BorderSize) * cfg.Cs
	cfg.Bounds = tileBounds.ExpandXYZ(pad, 0, pad)
	cfg.Width = cfg.TileCells + 2*cfg.BorderSize
	cfg.Height = cfg.TileCells + 2*cfg.BorderSize
	return cfg
}

// QueryBounds is the box geometry must be gathered from.
func (c RcConfig) QueryBounds() common.Box {
	return c.Bounds
}
