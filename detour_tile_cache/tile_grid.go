package detour_tile_cache

import (
	"math"

	"github.com/gorustyt/navbake/common"
)

// TileGrid maps world positions to tile coordinates. Tile ids are y*Width+x.
type TileGrid struct {
	Bounds   common.Box
	TileSize float32
	Width    int32
	Height   int32
}

func NewTileGrid(bounds common.Box, tileSize float32) TileGrid {
	size := bounds.Size()
	return TileGrid{
		Bounds:   bounds,
		TileSize: tileSize,
		Width:    max(int32(math.Ceil(float64(size[0]/tileSize))), 1),
		Height:   max(int32(math.Ceil(float64(size[2]/tileSize))), 1),
	}
}

func (g TileGrid) NumTiles() int { return int(g.Width) * int(g.Height) }

func (g TileGrid) TileID(x, y int32) int { return int(y)*int(g.Width) + int(x) }

func (g TileGrid) TileCoord(id int) (x, y int32) {
	return int32(id % int(g.Width)), int32(id / int(g.Width))
}

func (g TileGrid) Contains(x, y int32) bool {
	return x >= 0 && y >= 0 && x < g.Width && y < g.Height
}

// TileBounds is the unpadded box of tile (x, y); y spans the grid height.
func (g TileGrid) TileBounds(x, y int32) common.Box {
	o := g.Bounds.Min
	return common.Box{
		Min: common.Vec3{o[0] + float32(x)*g.TileSize, g.Bounds.Min[1], o[2] + float32(y)*g.TileSize},
		Max: common.Vec3{o[0] + float32(x+1)*g.TileSize, g.Bounds.Max[1], o[2] + float32(y+1)*g.TileSize},
	}
}

// TileRange returns the tiles box overlaps. A box edge lying exactly on a
// tile boundary does not reach into the next tile. ok is false when the box
// misses the grid or has a NaN coordinate.
func (g TileGrid) TileRange(box common.Box) (x0, y0, x1, y1 int32, ok bool) {
	o := g.Bounds.Min
	size := float64(g.TileSize)
	fx0 := math.Floor(float64(box.Min[0]-o[0]) / size)
	fy0 := math.Floor(float64(box.Min[2]-o[2]) / size)
	fx1 := math.Ceil(float64(box.Max[0]-o[0])/size) - 1
	fy1 := math.Ceil(float64(box.Max[2]-o[2])/size) - 1
	// Comparisons with NaN are false.
	if !(fx0 <= fx1 && fy0 <= fy1 &&
		fx0 < float64(g.Width) && fy0 < float64(g.Height) && fx1 >= 0 && fy1 >= 0) {
		return 0, 0, 0, 0, false
	}
	x0, y0 = int32(max(fx0, 0)), int32(max(fy0, 0))
	x1 = int32(min(fx1, float64(g.Width-1)))
	y1 = int32(min(fy1, float64(g.Height-1)))
	return x0, y0, x1, y1, true
}
