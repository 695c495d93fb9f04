package recast

import (
	"testing"

	"github.com/gorustyt/navbake/common"
	"github.com/gorustyt/navbake/config"
	"github.com/gorustyt/navbake/detour"
	"github.com/gorustyt/navbake/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilder(t *testing.T) *Builder {
	b, err := NewBuilder()
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func testTileConfig(mutate func(b *config.BuildConfig)) *RcConfig {
	b := config.Default().Build
	if mutate != nil {
		mutate(&b)
	}
	tw := TileWorldSize(b)
	tile := common.NewBox(common.Vec3{0, -10, 0}, common.Vec3{tw, 40, tw})
	cfg := NewRcConfig(b, 0, 0, tile, nil)
	return &cfg
}

func buildLayers(t *testing.T, b MeshBuilder, cfg *RcConfig, tris []geom.Triangle) ([]*DtTileCacheLayer, error) {
	hf, err := b.Voxelize(tris, nil, cfg)
	require.NoError(t, err)
	chf, err := b.Compact(b.Filter(hf, cfg), nil, cfg)
	require.NoError(t, err)
	return b.PartitionLayers(chf, cfg)
}

// flatLayer is a fully connected w x h layer at height 10.
func flatLayer(w, h int) *DtTileCacheLayer {
	l := &DtTileCacheLayer{
		Header: DtTileCacheLayerHeader{
			Width: int32(w), Height: int32(h),
			Cs: 0.3, Ch: 0.2,
			HMin: 10, HMax: 10,
			Bounds: common.NewBox(common.Vec3{0, 2, 0}, common.Vec3{float32(w) * 0.3, 2, float32(h) * 0.3}),
		},
		Heights: make([]uint16, w*h),
		Areas:   make([]uint8, w*h),
		Cons:    make([]uint8, w*h),
	}
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			i := x + z*w
			l.Heights[i] = 10
			l.Areas[i] = RC_WALKABLE_AREA
			for dir := 0; dir < 4; dir++ {
				nx, nz := x+common.GetDirOffsetX(dir), z+common.GetDirOffsetZ(dir)
				if nx >= 0 && nz >= 0 && nx < w && nz < h {
					l.Cons[i] |= 1 << dir
				}
			}
		}
	}
	return l
}

func TestNewRcConfigDerivesCellUnits(t *testing.T) {
	cfg := testTileConfig(nil)
	assert.Equal(t, 106, cfg.TileCells)
	assert.Equal(t, 10, cfg.WalkableHeight)
	assert.Equal(t, 4, cfg.WalkableClimb)
	assert.Equal(t, 2, cfg.WalkableRadius)
	assert.Equal(t, cfg.TileCells+2*cfg.BorderSize, cfg.Width)
	assert.InDelta(t, -float32(cfg.BorderSize)*cfg.Cs, cfg.Bounds.Min[0], 1e-5)
}

func TestFlatGroundGivesOneLayer(t *testing.T) {
	b := newTestBuilder(t)
	cfg := testTileConfig(nil)
	tw := cfg.TileBounds.Max[0]
	layers, err := buildLayers(t, b, cfg, geom.Quad(-5, -5, tw+5, tw+5, 0))
	require.NoError(t, err)
	require.Len(t, layers, 1)

	l := layers[0]
	assert.Equal(t, int32(cfg.TileCells), l.Header.Width)
	assert.Equal(t, cfg.TileCells*cfg.TileCells, l.WalkableCells())
	assert.Equal(t, int32(0), l.Header.TLayer)
	assert.InDelta(t, 0, l.Header.Bounds.Min[1], 0.21)
	assert.Equal(t, cfg.TileBounds.Min[0], l.Header.Bounds.Min[0])
	// interior cells are connected in all four directions
	mid := cfg.TileCells/2 + cfg.TileCells/2*cfg.TileCells
	assert.Equal(t, uint8(0xf), l.Cons[mid])
}

func TestBridgeGivesTwoLayers(t *testing.T) {
	b := newTestBuilder(t)
	cfg := testTileConfig(nil)
	tw := cfg.TileBounds.Max[0]
	tris := geom.Quad(-5, -5, tw+5, tw+5, 0)
	tris = append(tris, geom.Quad(5, 10, 25, 16, 5)...)

	layers, err := buildLayers(t, b, cfg, tris)
	require.NoError(t, err)
	require.Len(t, layers, 2)
	assert.Less(t, layers[0].Header.HMin, layers[1].Header.HMin)
	assert.Equal(t, cfg.TileCells*cfg.TileCells, layers[0].WalkableCells(), "ground under the bridge stays walkable")
	assert.Positive(t, layers[1].WalkableCells())
	assert.InDelta(t, 5, layers[1].Header.Bounds.Min[1], 0.41)
	assert.Equal(t, int32(1), layers[1].Header.TLayer)

	cfg.MaxLayers = 1
	_, err = buildLayers(t, b, cfg, tris)
	assert.ErrorIs(t, err, ErrTooManyLayers)
}

func TestSteepGeometryGivesNoLayers(t *testing.T) {
	b := newTestBuilder(t)
	cfg := testTileConfig(nil)
	wall := []geom.Triangle{
		{{5, 0, 5}, {5, 8, 5}, {5, 0, 20}},
		{{5, 8, 5}, {5, 8, 20}, {5, 0, 20}},
	}
	layers, err := buildLayers(t, b, cfg, wall)
	require.NoError(t, err)
	assert.Empty(t, layers)
}

func TestInclusionBoundsFilter(t *testing.T) {
	b := newTestBuilder(t)
	cfg := testTileConfig(nil)
	tw := cfg.TileBounds.Max[0]
	cfg.InclusionBounds = []common.Box{common.NewBox(common.Vec3{0, -10, 0}, common.Vec3{10, 40, 10})}
	layers, err := buildLayers(t, b, cfg, geom.Quad(-5, -5, tw+5, tw+5, 0))
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Less(t, layers[0].WalkableCells(), cfg.TileCells*cfg.TileCells/4)
	assert.Positive(t, layers[0].WalkableCells())
}

func TestInvalidConfigFailsVoxelize(t *testing.T) {
	b := newTestBuilder(t)
	cfg := testTileConfig(nil)
	cfg.Width = 0
	_, err := b.Voxelize(nil, nil, cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestVoxelSpansAreRasterized(t *testing.T) {
	b := newTestBuilder(t)
	cfg := testTileConfig(nil)
	hf, err := b.Voxelize(nil, []geom.VoxelSpan{
		{X: 3.05, Z: 3.05, MinY: -1, MaxY: 0, Area: RC_WALKABLE_AREA},
		{X: 3.05, Z: 3.05, MinY: 4, MaxY: 5, Area: RC_WALKABLE_AREA},
		{X: 900, Z: 3, MinY: 0, MaxY: 1, Area: RC_WALKABLE_AREA},
	}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, hf.SpanCount())
	assert.Equal(t, 2, hf.WalkableSpanCount())
}

func TestCompressRoundTrip(t *testing.T) {
	b := newTestBuilder(t)
	l := flatLayer(12, 9)
	l.Header.TX, l.Header.TY, l.Header.TLayer = 4, 5, 2
	l.Heights[7] = DT_TILECACHE_NULL_HEIGHT
	l.Areas[7] = RC_NULL_AREA

	cl, err := b.Compress(l)
	require.NoError(t, err)
	assert.Equal(t, int32(2), cl.Layer)
	assert.Equal(t, l.Header.Bounds, cl.Bounds)

	out, err := b.Decompress(cl)
	require.NoError(t, err)
	assert.Equal(t, l, out)
}

func TestDecompressCorrupt(t *testing.T) {
	b := newTestBuilder(t)
	cl, err := b.Compress(flatLayer(4, 4))
	require.NoError(t, err)

	bad := append([]byte(nil), cl.Data...)
	bad[0] ^= 0xff
	_, err = b.Decompress(CompressedLayer{Data: bad})
	assert.ErrorIs(t, err, ErrCorruptLayer)

	_, err = b.Decompress(CompressedLayer{Data: cl.Data[:10]})
	assert.ErrorIs(t, err, ErrCorruptLayer)

	_, err = b.Decompress(CompressedLayer{Data: cl.Data[:len(cl.Data)-3]})
	assert.ErrorIs(t, err, ErrCorruptLayer)
}

func TestMarkModifiersOnLayer(t *testing.T) {
	b := newTestBuilder(t)
	cfg := testTileConfig(func(bc *config.BuildConfig) { bc.AgentRadius = 0 })
	l := flatLayer(10, 10)
	b.MarkModifiers(l, []geom.AreaModifier{
		geom.CylinderModifier(common.Vec3{1.5, 1.5, 1.5}, 0.6, 2, 5, true),
		geom.CylinderModifier(common.Vec3{0.15, 10, 0.15}, 0.6, 2, 6, true),
	}, cfg)
	assert.Equal(t, uint8(5), l.Areas[4+4*10])
	assert.Equal(t, uint8(RC_WALKABLE_AREA), l.Areas[0])
	assert.Equal(t, uint8(RC_WALKABLE_AREA), l.Areas[9+9*10])
}

func TestStaticModifierMarkedOnCompact(t *testing.T) {
	b := newTestBuilder(t)
	cfg := testTileConfig(nil)
	tw := cfg.TileBounds.Max[0]
	hf, err := b.Voxelize(geom.Quad(-5, -5, tw+5, tw+5, 0), nil, cfg)
	require.NoError(t, err)
	box := geom.BoxModifier(common.NewBox(common.Vec3{10, -1, 10}, common.Vec3{12, 1, 12}), 7, false)
	chf, err := b.Compact(b.Filter(hf, cfg), []geom.AreaModifier{box}, cfg)
	require.NoError(t, err)
	layers, err := b.PartitionLayers(chf, cfg)
	require.NoError(t, err)
	require.Len(t, layers, 1)

	x := int(11 / cfg.Cs)
	assert.Equal(t, uint8(7), layers[0].Areas[x+x*cfg.TileCells])
	assert.Equal(t, uint8(RC_WALKABLE_AREA), layers[0].Areas[0])
}

func TestBuildPolyMeshRectangles(t *testing.T) {
	b := newTestBuilder(t)
	cfg := testTileConfig(nil)
	l := flatLayer(10, 10)

	mesh, err := b.BuildPolyMesh(l, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, mesh.NPolys())
	assert.Equal(t, 4, mesh.NVerts())
	assert.Equal(t, []uint16{0, 1, 2, 3, RC_MESH_NULL_IDX, RC_MESH_NULL_IDX}, mesh.Polys)

	cfg.MaxVertsPerPoly = 3
	mesh, err = b.BuildPolyMesh(l, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, mesh.NPolys())
	assert.Equal(t, 4, mesh.NVerts())

	cfg.MaxVertsPerPoly = 6
	cfg.Partition = config.PartitionMonotone
	mesh, err = b.BuildPolyMesh(l, cfg)
	require.NoError(t, err)
	assert.Equal(t, 10, mesh.NPolys())
}

func TestBuildPolyMeshSplitsAreas(t *testing.T) {
	b := newTestBuilder(t)
	cfg := testTileConfig(nil)
	l := flatLayer(10, 10)
	for z := 0; z < 10; z++ {
		for x := 5; x < 10; x++ {
			l.Areas[x+z*10] = 3
		}
	}
	mesh, err := b.BuildPolyMesh(l, cfg)
	require.NoError(t, err)
	require.Equal(t, 2, mesh.NPolys())
	assert.ElementsMatch(t, []uint8{RC_WALKABLE_AREA, 3}, mesh.Areas)
	assert.Equal(t, 6, mesh.NVerts())
}

func TestBuildPolyMeshDropsSmallRegions(t *testing.T) {
	b := newTestBuilder(t)
	cfg := testTileConfig(nil)
	l := flatLayer(10, 10)
	for i := range l.Areas {
		x, z := i%10, i/10
		inner := x >= 4 && x <= 5 && z >= 4 && z <= 5
		corner := x <= 1 && z <= 1
		if !inner && !corner {
			l.Areas[i] = RC_NULL_AREA
		}
	}
	cfg.MinRegionArea = 8
	mesh, err := b.BuildPolyMesh(l, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, mesh.NPolys(), "the small inner island is dropped, the edge one kept")

	cfg.MinRegionArea = 4
	mesh, err = b.BuildPolyMesh(l, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, mesh.NPolys())
}

func TestBuildPolyMeshTooManyVerts(t *testing.T) {
	b := newTestBuilder(t)
	cfg := testTileConfig(nil)
	cfg.MinRegionArea = 0
	l := flatLayer(200, 200)
	for i := range l.Cons {
		l.Cons[i] = 0
		l.Heights[i] = uint16(10 + (i%200+i/200)%2)
	}
	_, err := b.BuildPolyMesh(l, cfg)
	assert.ErrorIs(t, err, ErrTooManyVerts)
}

func TestSerializeTile(t *testing.T) {
	b := newTestBuilder(t)
	cfg := testTileConfig(nil)
	l := flatLayer(10, 10)
	l.Header.TX, l.Header.TY, l.Header.TLayer = 2, 3, 1

	empty, err := b.SerializeTile(&RcPolyMesh{Nvp: 6}, nil, l.Header)
	require.NoError(t, err)
	assert.True(t, empty.Empty())
	assert.Equal(t, int32(1), empty.Layer)

	mesh, err := b.BuildPolyMesh(l, cfg)
	require.NoError(t, err)
	links := []geom.OffMeshLink{
		{Start: common.Vec3{1, 2, 1}, End: common.Vec3{10, 0, 10}, Radius: 0.5, Area: 9},
		{Start: common.Vec3{50, 2, 1}, End: common.Vec3{10, 0, 10}, Radius: 0.5, Area: 9},
	}
	out, err := b.SerializeTile(mesh, links, l.Header)
	require.NoError(t, err)
	require.False(t, out.Empty())
	assert.Equal(t, 1, out.PolyCount)

	data, err := detour.DecodeTileData(out.Data)
	require.NoError(t, err)
	assert.Equal(t, int32(2), data.Header.X)
	assert.Equal(t, int32(1), data.Header.Layer)
	assert.Equal(t, 4, data.VertCount())
	assert.InDelta(t, 2.0, data.Verts[1], 1e-5)
	assert.InDelta(t, 3.0, data.Verts[6], 1e-5)
	require.Len(t, data.OffMeshCons, 1)
	assert.Equal(t, uint8(9), data.OffMeshCons[0].Area)
}
