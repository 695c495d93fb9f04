package tilestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gorustyt/navbake/common"
	"github.com/gorustyt/navbake/detour"
	"github.com/gorustyt/navbake/detour_tile_cache"
	"github.com/gorustyt/navbake/recast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func blob(x, y, layer int32) []byte {
	return detour.EncodeTileData(&detour.DtTileData{
		Header: detour.DtMeshHeader{
			X: x, Y: y, Layer: layer,
			Bounds: common.NewBox(common.Vec3{0, 0, 0}, common.Vec3{8, 1, 8}),
		},
		Nvp:   4,
		Verts: []float32{0, 0, 0, 0, 0, 8, 8, 0, 8, 8, 0, 0},
		Polys: []uint16{0, 1, 2, 3},
		Areas: []uint8{63},
	})
}

func finished(x, y, layer int32) recast.FinishedTileLayer {
	return recast.FinishedTileLayer{X: x, Y: y, Layer: layer, Data: blob(x, y, layer), PolyCount: 1}
}

func openTestStore(t *testing.T) *Store {
	s, err := Open(filepath.Join(t.TempDir(), "nested", "tiles.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("", nil)
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestApplyMirrorsCommits(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Apply(ctx, detour_tile_cache.Commit{
		X: 1, Y: 2, Version: 1, Geometry: true,
		Layers: []recast.FinishedTileLayer{finished(1, 2, 0), finished(1, 2, 1), finished(1, 2, 2)},
	}))
	require.NoError(t, s.Apply(ctx, detour_tile_cache.Commit{
		X: 0, Y: 0, Version: 1, Geometry: true,
		Layers: []recast.FinishedTileLayer{finished(0, 0, 0)},
	}))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// Layer rebuild: layer 1 replaced, layer 2 became empty.
	require.NoError(t, s.Apply(ctx, detour_tile_cache.Commit{
		X: 1, Y: 2, Version: 2,
		Layers: []recast.FinishedTileLayer{finished(1, 2, 1), {X: 1, Y: 2, Layer: 2}},
	}))
	layers, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, layers, 3)
	assert.Equal(t, Layer{X: 0, Y: 0, Layer: 0, Version: 1, Data: blob(0, 0, 0)}, layers[0])
	assert.EqualValues(t, 1, layers[1].Version)
	assert.EqualValues(t, 1, layers[2].Layer)
	assert.EqualValues(t, 2, layers[2].Version)

	// Geometry commit without layers clears the tile.
	require.NoError(t, s.Apply(ctx, detour_tile_cache.Commit{X: 1, Y: 2, Version: 3, Geometry: true}))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRestoreFillsNavMesh(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	listener := s.Listener(ctx)
	listener(detour_tile_cache.Commit{X: 3, Y: 1, Version: 1, Geometry: true,
		Layers: []recast.FinishedTileLayer{finished(3, 1, 0), finished(3, 1, 1)}})
	// A blob stored under the wrong coordinates is skipped.
	listener(detour_tile_cache.Commit{X: 0, Y: 0, Version: 1, Geometry: true,
		Layers: []recast.FinishedTileLayer{{X: 0, Y: 0, Layer: 0, Data: blob(5, 5, 0)}}})

	mesh, err := detour.NewDtNavMesh(detour.DtNavMeshParams{TileWidth: 8, TileHeight: 8, MaxTiles: 8})
	require.NoError(t, err)
	shared := detour.NewShared(mesh)
	restored, err := s.Restore(ctx, shared)
	require.NoError(t, err)
	assert.Equal(t, 2, restored)
	shared.Read(func(mesh *detour.DtNavMesh) {
		assert.Equal(t, 2, mesh.LayerCount(3, 1))
		assert.Zero(t, mesh.LayerCount(0, 0))
	})
}

func TestRestoreStopsWhenFull(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Apply(ctx, detour_tile_cache.Commit{X: 0, Y: 0, Version: 1, Geometry: true,
		Layers: []recast.FinishedTileLayer{finished(0, 0, 0), finished(0, 0, 1), finished(0, 0, 2)}}))

	mesh, err := detour.NewDtNavMesh(detour.DtNavMeshParams{TileWidth: 8, TileHeight: 8, MaxTiles: 2})
	require.NoError(t, err)
	restored, err := s.Restore(ctx, detour.NewShared(mesh))
	assert.ErrorIs(t, err, detour.ErrCapacity)
	assert.Equal(t, 2, restored)
}

func TestResetClearsStoredLayers(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	listener := s.Listener(ctx)
	listener(detour_tile_cache.Commit{X: 0, Y: 0, Version: 1, Geometry: true,
		Layers: []recast.FinishedTileLayer{finished(0, 0, 0), finished(0, 0, 1)}})
	listener(detour_tile_cache.Commit{X: 2, Y: 1, Version: 1, Geometry: true,
		Layers: []recast.FinishedTileLayer{finished(2, 1, 0)}})
	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	listener(detour_tile_cache.Commit{Version: 2, Reset: true})
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	listener(detour_tile_cache.Commit{X: 1, Y: 1, Version: 2, Geometry: true,
		Layers: []recast.FinishedTileLayer{finished(1, 1, 0)}})
	layers, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.EqualValues(t, 2, layers[0].Version)
}

func TestReopenKeepsLayers(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tiles.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Apply(ctx, detour_tile_cache.Commit{X: 0, Y: 0, Version: 7, Geometry: true,
		Layers: []recast.FinishedTileLayer{finished(0, 0, 0)}}))
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	layers, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.EqualValues(t, 7, layers[0].Version)
}
