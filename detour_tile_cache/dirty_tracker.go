package detour_tile_cache

import (
	"sync"

	"github.com/gorustyt/navbake/common"
	"github.com/gorustyt/navbake/geom"
)

// DirtyTracker collects changed world areas and turns them into per-tile
// dirty bits. Reporting is safe from any goroutine; Flush must run on the
// goroutine that owns the tiles.
type DirtyTracker struct {
	mu      sync.Mutex
	pending []geom.DirtyArea

	margin      float32
	modifierPad float32
	climb       float32
}

// NewDirtyTracker grows every area by margin before looking up tiles.
// Modifier areas are grown by modifierPad as well, matching the expansion
// applied when a modifier is rasterized. climb widens cached layer bounds
// vertically when matching modifier areas to layers.
func NewDirtyTracker(margin, modifierPad, climb float32) *DirtyTracker {
	return &DirtyTracker{margin: margin, modifierPad: modifierPad, climb: climb}
}

func (t *DirtyTracker) ReportDirtyArea(box common.Box, kind geom.DirtyKind) {
	t.Report(geom.DirtyArea{Box: box, Kind: kind})
}

func (t *DirtyTracker) Report(area geom.DirtyArea) {
	t.mu.Lock()
	t.pending = append(t.pending, area)
	t.mu.Unlock()
}

func (t *DirtyTracker) HasPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending) > 0
}

func (t *DirtyTracker) grow(area geom.DirtyArea) common.Box {
	pad := t.margin
	if area.Kind == geom.DirtyModifier {
		pad += t.modifierPad
	}
	return area.Box.Expand(pad)
}

// Touches reports whether a pending area reaches tile (x, y).
func (t *DirtyTracker) Touches(grid TileGrid, x, y int32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, area := range t.pending {
		x0, y0, x1, y1, ok := grid.TileRange(t.grow(area))
		if ok && x >= x0 && x <= x1 && y >= y0 && y <= y1 {
			return true
		}
	}
	return false
}

// Flush applies and clears every pending area. It returns the number of
// tiles whose dirty state changed.
func (t *DirtyTracker) Flush(grid TileGrid, tiles []*TileUnit) int {
	t.mu.Lock()
	pending := t.pending
	t.pending = nil
	t.mu.Unlock()

	touched := 0
	for _, area := range pending {
		box := t.grow(area)
		x0, y0, x1, y1, ok := grid.TileRange(box)
		if !ok {
			continue
		}
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				tile := tiles[grid.TileID(x, y)]
				if t.apply(tile, box, area.Kind) {
					touched++
				}
			}
		}
	}
	return touched
}

func (t *DirtyTracker) apply(tile *TileUnit, box common.Box, kind geom.DirtyKind) bool {
	switch kind {
	case geom.DirtyGeometry:
		tile.markDirty(func(d *DirtyState) { d.MarkGeometry() })
		return true
	case geom.DirtyModifier:
		if tile.geometryInFlight() {
			// Cached layer bounds are about to be replaced.
			tile.markDirty(func(d *DirtyState) { d.MarkAllLayers() })
			return true
		}
		marked := false
		for _, l := range tile.layers {
			if l.Bounds.ExpandXYZ(0, t.climb, 0).Intersects(box) {
				layer := uint(l.Layer)
				tile.markDirty(func(d *DirtyState) { d.MarkLayer(layer) })
				marked = true
			}
		}
		return marked
	default:
		return false
	}
}
