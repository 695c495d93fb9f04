package detour_tile_cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirtyStateMarks(t *testing.T) {
	var d DirtyState
	assert.False(t, d.IsDirty())
	assert.False(t, d.IsLayerDirty(0))

	d.MarkLayer(2)
	assert.True(t, d.IsDirty())
	assert.True(t, d.IsLayerDirty(2))
	assert.False(t, d.IsLayerDirty(1))

	d.MarkAllLayers()
	assert.True(t, d.IsLayerDirty(1))

	d.MarkGeometry()
	assert.True(t, d.RebuildGeometry)
	assert.False(t, d.RebuildLayers)
	assert.True(t, d.IsLayerDirty(7))

	d.Clear()
	assert.False(t, d.IsDirty())
}

func TestDirtyStateAppendIsUnion(t *testing.T) {
	var a, b DirtyState
	a.MarkLayer(1)
	b.MarkLayer(3)

	ab, ba := a.Clone(), b.Clone()
	ab.Append(b)
	ba.Append(a)
	for _, d := range []DirtyState{ab, ba} {
		assert.True(t, d.IsLayerDirty(1))
		assert.True(t, d.IsLayerDirty(3))
		assert.False(t, d.IsLayerDirty(2))
		assert.True(t, d.Covers(a))
		assert.True(t, d.Covers(b))
	}
	assert.False(t, a.Covers(b))

	var g DirtyState
	g.MarkGeometry()
	assert.True(t, g.Covers(ab))
	assert.False(t, ab.Covers(g))
}

func TestDirtyStateCloneIsIndependent(t *testing.T) {
	var a DirtyState
	a.MarkLayer(0)
	c := a.Clone()
	c.MarkLayer(5)
	assert.False(t, a.IsLayerDirty(5))
	assert.True(t, c.IsLayerDirty(0))
}
