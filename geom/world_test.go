package geom

import (
	"testing"

	"github.com/gorustyt/navbake/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(x0, y0, z0, x1, y1, z1 float32) common.Box {
	return common.Box{Min: common.Vec3{x0, y0, z0}, Max: common.Vec3{x1, y1, z1}}
}

func TestWorldQueryUsesGridIndex(t *testing.T) {
	w := NewWorld(10)
	near, area := w.AddMesh(Quad(0, 0, 5, 5, 0))
	assert.Equal(t, DirtyGeometry, area.Kind)
	assert.Equal(t, box(0, 0, 0, 5, 0, 5), area.Box)
	_, _ = w.AddMesh(Quad(100, 100, 110, 110, 0))

	res := w.Query(box(-1, -1, -1, 6, 1, 6))
	assert.Len(t, res.Triangles, 2)
	assert.True(t, res.HasGeometry())

	res = w.Query(box(50, -1, 50, 60, 1, 60))
	assert.False(t, res.HasGeometry())

	removed, ok := w.RemoveMesh(near)
	require.True(t, ok)
	assert.Equal(t, area.Box, removed.Box)
	assert.Empty(t, w.Query(box(-1, -1, -1, 6, 1, 6)).Triangles)

	_, ok = w.RemoveMesh(near)
	assert.False(t, ok)
}

func TestWorldQueryDeduplicatesMeshesSpanningCells(t *testing.T) {
	w := NewWorld(4)
	w.AddMesh(Quad(0, 0, 20, 20, 0))
	res := w.Query(box(-1, -1, -1, 21, 1, 21))
	assert.Len(t, res.Triangles, 2)
}

func TestWorldModifierKinds(t *testing.T) {
	w := NewWorld(10)
	static := BoxModifier(box(0, 0, 0, 1, 1, 1), 5, false)
	dynamic := CylinderModifier(common.Vec3{10, 0, 10}, 2, 3, 7, true)

	_, a := w.AddModifier(static)
	assert.Equal(t, DirtyGeometry, a.Kind)
	id, a := w.AddModifier(dynamic)
	assert.Equal(t, DirtyModifier, a.Kind)
	assert.Equal(t, box(8, 0, 8, 12, 3, 12), a.Box)

	moved := dynamic
	moved.Cylinder.Base = common.Vec3{20, 0, 10}
	a, ok := w.MoveModifier(id, moved)
	require.True(t, ok)
	assert.Equal(t, DirtyModifier, a.Kind)
	assert.Equal(t, box(8, 0, 8, 22, 3, 12), a.Box)

	res := w.Query(box(15, -1, 5, 25, 5, 15))
	require.Len(t, res.Modifiers, 1)
	assert.Equal(t, uint8(7), res.Modifiers[0].Area)

	_, ok = w.RemoveModifier(id)
	assert.True(t, ok)
	assert.Empty(t, w.Query(box(15, -1, 5, 25, 5, 15)).Modifiers)
}

func TestWorldOffMeshLinks(t *testing.T) {
	w := NewWorld(10)
	id, a := w.AddOffMeshLink(OffMeshLink{Start: common.Vec3{1, 0, 1}, End: common.Vec3{4, 2, 1}, Radius: 0.5})
	assert.Equal(t, DirtyModifier, a.Kind)
	assert.Len(t, w.Query(box(0, -1, 0, 2, 1, 2)).OffMeshLinks, 1)
	_, ok := w.RemoveOffMeshLink(id)
	assert.True(t, ok)
	assert.Empty(t, w.Query(box(0, -1, 0, 2, 1, 2)).OffMeshLinks)
}

func TestModifierExpand(t *testing.T) {
	c := CylinderModifier(common.Vec3{0, 0, 0}, 1, 2, 3, true).Expand(0.5, 0.2)
	assert.InDelta(t, 1.5, c.Cylinder.Radius, 1e-6)
	assert.InDelta(t, 2.2, c.Cylinder.Height, 1e-6)

	b := BoxModifier(box(0, 0, 0, 1, 1, 1), 3, false).Expand(0.5, 0.2)
	assert.Equal(t, box(-0.5, -0.2, -0.5, 1.5, 1.2, 1.5), b.Box)

	square := []common.Vec3{{0, 0, 0}, {0, 0, 2}, {2, 0, 2}, {2, 0, 0}}
	cv := ConvexModifier(square, 0, 1, 3, false).Expand(1, 0.2)
	bounds := cv.Bounds()
	assert.Less(t, bounds.Min[0], float32(0))
	assert.Greater(t, bounds.Max[2], float32(2))
	assert.InDelta(t, -0.2, bounds.Min[1], 1e-6)
	assert.True(t, common.PointInPoly2D(cv.Convex.Points, common.Vec3{-0.3, 0, 1}))
}

func TestModifierUnknownShapePanics(t *testing.T) {
	assert.Panics(t, func() { AreaModifier{}.Bounds() })
	assert.Panics(t, func() { AreaModifier{Shape: 9}.Expand(1, 1) })
}

func TestShapesWinding(t *testing.T) {
	for _, tri := range Quad(0, 0, 1, 1, 0) {
		assert.InDelta(t, 1, common.TriNormalY(tri[0], tri[1], tri[2]), 1e-6)
	}
	hm := Heightmap(common.Vec3{0, 0, 0}, 4, 1, func(x, z float32) float32 { return 0 })
	assert.Len(t, hm, 32)
	for _, tri := range hm {
		assert.Greater(t, common.TriNormalY(tri[0], tri[1], tri[2]), float32(0.99))
	}
	up := 0
	for _, tri := range BoxMesh(box(0, 0, 0, 1, 1, 1)) {
		if common.TriNormalY(tri[0], tri[1], tri[2]) > 0.5 {
			up++
		}
	}
	assert.Equal(t, 2, up)
}
