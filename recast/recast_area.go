package recast

import (
	"fmt"

	"github.com/gorustyt/navbake/common"
	"github.com/gorustyt/navbake/geom"
)

// footprint is the cell-space extent of a modifier clamped to a grid.
type footprint struct {
	minX, minZ, maxX, maxZ int
	minY, maxY             int
}

// modifierFootprint finds the grid cells a modifier may touch. ok is false
// when the modifier lies completely outside the grid.
func modifierFootprint(m geom.AreaModifier, bmin common.Vec3, cs, ch float32, xSize, zSize int) (fp footprint, ok bool) {
	b := m.Bounds()
	fp = footprint{
		minX: int((b.Min[0] - bmin[0]) / cs),
		minY: int((b.Min[1] - bmin[1]) / ch),
		minZ: int((b.Min[2] - bmin[2]) / cs),
		maxX: int((b.Max[0] - bmin[0]) / cs),
		maxY: int((b.Max[1] - bmin[1]) / ch),
		maxZ: int((b.Max[2] - bmin[2]) / cs),
	}
	// Early-out if the shape is outside the bounds of the grid.
	if fp.maxX < 0 || fp.minX >= xSize || fp.maxZ < 0 || fp.minZ >= zSize {
		return fp, false
	}
	// Clamp relevant bound coordinates to the grid.
	fp.minX = max(fp.minX, 0)
	fp.maxX = min(fp.maxX, xSize-1)
	fp.minZ = max(fp.minZ, 0)
	fp.maxZ = min(fp.maxZ, zSize-1)
	return fp, true
}

// modifierCovers tests the xz position of a cell center against the shape.
func modifierCovers(m geom.AreaModifier, p common.Vec3) bool {
	switch m.Shape {
	case geom.ShapeCylinder:
		c := m.Cylinder
		return common.Sqr(p[0]-c.Base[0])+common.Sqr(p[2]-c.Base[2]) < common.Sqr(c.Radius)
	case geom.ShapeBox:
		// the footprint is the box
		return true
	case geom.ShapeConvex:
		return common.PointInPoly2D(m.Convex.Points, p)
	default:
		panic(fmt.Sprintf("recast: unknown modifier %s", m.Shape))
	}
}

// RcMarkModifierArea assigns the modifier's area to every walkable span of
// the compact heightfield inside the modifier volume.
func RcMarkModifierArea(m geom.AreaModifier, chf *RcCompactHeightfield) {
	fp, ok := modifierFootprint(m, chf.Bmin, chf.Cs, chf.Ch, chf.Width, chf.Height)
	if !ok {
		return
	}
	for z := fp.minZ; z <= fp.maxZ; z++ {
		for x := fp.minX; x <= fp.maxX; x++ {
			center := common.Vec3{
				chf.Bmin[0] + (float32(x)+0.5)*chf.Cs,
				0,
				chf.Bmin[2] + (float32(z)+0.5)*chf.Cs,
			}
			if !modifierCovers(m, center) {
				continue
			}
			cell := chf.Cells[x+z*chf.Width]
			for i := cell.Index; i < cell.Index+cell.Count; i++ {
				// Skip if span is removed.
				if chf.Areas[i] == RC_NULL_AREA {
					continue
				}
				// Mark if y extents overlap.
				y := int(chf.Spans[i].Y)
				if y >= fp.minY && y <= fp.maxY {
					chf.Areas[i] = m.Area
				}
			}
		}
	}
}

// RcMarkLayerModifierArea is RcMarkModifierArea for a decompressed layer.
func RcMarkLayerModifierArea(m geom.AreaModifier, layer *DtTileCacheLayer) {
	hdr := layer.Header
	bmin := hdr.Bounds.Min
	bmin[1] = hdr.Ybase
	w, h := int(hdr.Width), int(hdr.Height)
	fp, ok := modifierFootprint(m, bmin, hdr.Cs, hdr.Ch, w, h)
	if !ok {
		return
	}
	for z := fp.minZ; z <= fp.maxZ; z++ {
		for x := fp.minX; x <= fp.maxX; x++ {
			idx := x + z*w
			if layer.Heights[idx] == DT_TILECACHE_NULL_HEIGHT || layer.Areas[idx] == RC_NULL_AREA {
				continue
			}
			y := int(layer.Heights[idx])
			if y < fp.minY || y > fp.maxY {
				continue
			}
			center := common.Vec3{
				bmin[0] + (float32(x)+0.5)*hdr.Cs,
				0,
				bmin[2] + (float32(z)+0.5)*hdr.Cs,
			}
			if modifierCovers(m, center) {
				layer.Areas[idx] = m.Area
			}
		}
	}
}
