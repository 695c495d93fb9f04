package detour

import (
	"sync"
	"testing"

	"github.com/gorustyt/navbake/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBlob(x, y, layer int32) []byte {
	return EncodeTileData(&DtTileData{
		Header: DtMeshHeader{
			X: x, Y: y, Layer: layer,
			Bounds: common.NewBox(common.Vec3{0, 0, 0}, common.Vec3{10, 1, 10}),
		},
		Nvp:   4,
		Verts: []float32{0, 0, 0, 0, 0, 10, 10, 0, 10, 10, 0, 0},
		Polys: []uint16{0, 1, 2, 3},
		Areas: []uint8{63},
	})
}

func newTestMesh(t *testing.T, maxTiles int32) *DtNavMesh {
	mesh, err := NewDtNavMesh(DtNavMeshParams{TileWidth: 10, TileHeight: 10, MaxTiles: maxTiles})
	require.NoError(t, err)
	return mesh
}

func TestNewNavMeshInvalidParams(t *testing.T) {
	_, err := NewDtNavMesh(DtNavMeshParams{TileWidth: 10, TileHeight: 10})
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestInsertAndRemoveLayers(t *testing.T) {
	mesh := newTestMesh(t, 8)
	for layer := int32(0); layer < 3; layer++ {
		ref, err := mesh.InsertLayer(1, 2, layer, testBlob(1, 2, layer))
		require.NoError(t, err)
		assert.NotZero(t, ref)
	}
	assert.Equal(t, 3, mesh.LayerCount(1, 2))
	assert.Equal(t, 3, mesh.TileCount())
	assert.Equal(t, 5, mesh.FreeTileCount())

	tiles := mesh.GetTilesAt(1, 2)
	require.Len(t, tiles, 3)
	for i, tile := range tiles {
		assert.Equal(t, int32(i), tile.Header().Layer)
	}

	refs := mesh.RemoveLayers(1, 2)
	assert.Len(t, refs, 3)
	assert.Zero(t, mesh.LayerCount(1, 2))
	assert.Equal(t, 8, mesh.FreeTileCount())
	for _, ref := range refs {
		assert.Nil(t, mesh.GetTileByRef(ref), "stale ref must not resolve")
	}
}

func TestInsertReplacesExistingLayer(t *testing.T) {
	mesh := newTestMesh(t, 2)
	first, err := mesh.InsertLayer(0, 0, 0, testBlob(0, 0, 0))
	require.NoError(t, err)
	second, err := mesh.InsertLayer(0, 0, 0, testBlob(0, 0, 0))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Nil(t, mesh.GetTileByRef(first))
	assert.NotNil(t, mesh.GetTileByRef(second))
	assert.Equal(t, 1, mesh.TileCount())
}

func TestSaltNeverZero(t *testing.T) {
	mesh := newTestMesh(t, 1)
	seen := map[DtTileRef]bool{}
	for i := 0; i < 1<<DT_SALT_BITS+3; i++ {
		ref, err := mesh.InsertLayer(0, 0, 0, testBlob(0, 0, 0))
		require.NoError(t, err)
		require.NotZero(t, ref)
		if i < 100 {
			assert.False(t, seen[ref])
			seen[ref] = true
		}
		mesh.RemoveLayers(0, 0)
	}
}

func TestCapacityError(t *testing.T) {
	mesh := newTestMesh(t, 2)
	_, err := mesh.InsertLayer(0, 0, 0, testBlob(0, 0, 0))
	require.NoError(t, err)
	_, err = mesh.InsertLayer(1, 0, 0, testBlob(1, 0, 0))
	require.NoError(t, err)

	_, err = mesh.InsertLayer(2, 0, 0, testBlob(2, 0, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapacity)
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, int32(2), capErr.MaxTiles)
	assert.Equal(t, 2, mesh.TileCount())
}

func TestInsertRejectsMismatchedBlob(t *testing.T) {
	mesh := newTestMesh(t, 4)
	_, err := mesh.InsertLayer(0, 0, 1, testBlob(0, 0, 0))
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = mesh.InsertLayer(0, 0, 0, []byte{0xff, 0xff})
	assert.Error(t, err)
	assert.Zero(t, mesh.TileCount())
}

func TestInitResetsTiles(t *testing.T) {
	mesh := newTestMesh(t, 4)
	_, err := mesh.InsertLayer(0, 0, 0, testBlob(0, 0, 0))
	require.NoError(t, err)
	require.NoError(t, mesh.Init(DtNavMeshParams{TileWidth: 5, TileHeight: 5, MaxTiles: 16}))
	assert.Zero(t, mesh.TileCount())
	assert.Equal(t, 16, mesh.MaxTiles())
	x, y := mesh.CalcTileLoc(common.Vec3{12, 0, 7})
	assert.Equal(t, int32(2), x)
	assert.Equal(t, int32(1), y)
}

func TestSharedWriteIsAtomicForReaders(t *testing.T) {
	mesh := newTestMesh(t, 8)
	shared := NewShared(mesh)
	require.NoError(t, shared.Write(func(m *DtNavMesh) error {
		for l := int32(0); l < 3; l++ {
			if _, err := m.InsertLayer(0, 0, l, testBlob(0, 0, l)); err != nil {
				return err
			}
		}
		return nil
	}))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			shared.Read(func(m *DtNavMesh) {
				assert.Equal(t, 3, m.LayerCount(0, 0))
			})
		}
	}()
	for i := 0; i < 200; i++ {
		require.NoError(t, shared.Write(func(m *DtNavMesh) error {
			m.RemoveLayers(0, 0)
			for l := int32(0); l < 3; l++ {
				if _, err := m.InsertLayer(0, 0, l, testBlob(0, 0, l)); err != nil {
					return err
				}
			}
			return nil
		}))
	}
	close(stop)
	wg.Wait()
}
