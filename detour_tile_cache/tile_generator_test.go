package detour_tile_cache

import (
	"testing"

	"github.com/gorustyt/navbake/common"
	"github.com/stretchr/testify/assert"
)

func TestAbortRebuildReturnsToPendingDirty(t *testing.T) {
	tile := newTileUnit(0, 0, common.NewBox(common.Vec3{0, 0, 0}, common.Vec3{8, 10, 8}))
	tile.markDirty(func(d *DirtyState) { d.MarkLayer(2) })
	assert.Equal(t, TilePendingDirty, tile.State())

	// What Prepare and dispatch do to a tile.
	tile.inFlight.Append(tile.dirty)
	tile.dirty.Clear()
	tile.state = TileBuilding

	tile.markDirty(func(d *DirtyState) { d.MarkLayer(5) })
	assert.Equal(t, TileBuilding, tile.State())

	tile.AbortRebuild()
	assert.Equal(t, TilePendingDirty, tile.State())
	dirty := tile.Dirty()
	assert.True(t, dirty.IsLayerDirty(2))
	assert.True(t, dirty.IsLayerDirty(5))
	assert.False(t, dirty.IsLayerDirty(3))
	assert.False(t, tile.inFlight.IsDirty())
}

func TestFinishRebuildKeepsLaterDirt(t *testing.T) {
	tile := newTileUnit(0, 0, common.NewBox(common.Vec3{0, 0, 0}, common.Vec3{8, 10, 8}))
	tile.markDirty(func(d *DirtyState) { d.MarkLayer(1) })
	tile.inFlight.Append(tile.dirty)
	tile.dirty.Clear()
	tile.state = TileCommitting

	tile.FinishRebuild(&buildOutput{})
	assert.Equal(t, TileClean, tile.State())

	tile.inFlight.Append(DirtyState{RebuildGeometry: true})
	tile.state = TileBuilding
	tile.markDirty(func(d *DirtyState) { d.MarkLayer(4) })
	tile.FinishRebuild(&buildOutput{})
	assert.Equal(t, TilePendingDirty, tile.State())
	dirty := tile.Dirty()
	assert.True(t, dirty.IsLayerDirty(4))
}
