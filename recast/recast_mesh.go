package recast

import (
	"errors"
	"fmt"

	"github.com/gorustyt/navbake/common"
	"github.com/gorustyt/navbake/config"
)

const RC_MESH_NULL_IDX = 0xffff

var ErrTooManyVerts = errors.New("recast: too many vertices")

// RcPolyMesh is the polygon mesh of one layer. Vertex coordinates are in
// cells relative to Bmin; y is the layer height value.
type RcPolyMesh struct {
	Verts []uint16 ///< The mesh vertices. [Form: (x, y, z) * #NVerts]
	Polys []uint16 ///< Polygon vertex indices, Nvp per polygon padded with RC_MESH_NULL_IDX.
	Areas []uint8  ///< The area id assigned to each polygon.
	Nvp   int      ///< The maximum number of vertices per polygon.
	Bmin  common.Vec3
	Cs    float32
	Ch    float32
}

func (m *RcPolyMesh) NPolys() int { return len(m.Areas) }
func (m *RcPolyMesh) NVerts() int { return len(m.Verts) / 3 }

type polyMeshBuilder struct {
	mesh   *RcPolyMesh
	lookup map[uint64]uint16
}

func (b *polyMeshBuilder) addVertex(x, y, z int) (uint16, error) {
	key := uint64(x)<<40 | uint64(z)<<20 | uint64(y)
	if i, ok := b.lookup[key]; ok {
		return i, nil
	}
	n := b.mesh.NVerts()
	if n >= RC_MESH_NULL_IDX {
		return 0, fmt.Errorf("%w: more than %d", ErrTooManyVerts, RC_MESH_NULL_IDX)
	}
	b.mesh.Verts = append(b.mesh.Verts, uint16(x), uint16(y), uint16(z))
	b.lookup[key] = uint16(n)
	return uint16(n), nil
}

func (b *polyMeshBuilder) addPoly(idx []uint16, area uint8) {
	for i := 0; i < b.mesh.Nvp; i++ {
		if i < len(idx) {
			b.mesh.Polys = append(b.mesh.Polys, idx[i])
		} else {
			b.mesh.Polys = append(b.mesh.Polys, RC_MESH_NULL_IDX)
		}
	}
	b.mesh.Areas = append(b.mesh.Areas, area)
}

// layerRegions labels connected walkable cells of equal area. It returns the
// per-cell region (-1 for none) and, per region, whether it survives the
// minimum area rule. Regions touching the tile edge always survive since
// they continue in the neighbour tile.
func layerRegions(layer *DtTileCacheLayer, minArea int) (reg []int32, keep []bool) {
	w, h := int(layer.Header.Width), int(layer.Header.Height)
	reg = make([]int32, w*h)
	for i := range reg {
		reg[i] = -1
	}
	walkable := func(i int) bool {
		return layer.Heights[i] != DT_TILECACHE_NULL_HEIGHT && layer.Areas[i] != RC_NULL_AREA
	}
	var stack []int
	for start := range reg {
		if !walkable(start) || reg[start] >= 0 {
			continue
		}
		r := int32(len(keep))
		size, border := 0, false
		reg[start] = r
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			x, z := i%w, i/w
			if x == 0 || z == 0 || x == w-1 || z == h-1 {
				border = true
			}
			for dir := 0; dir < 4; dir++ {
				if layer.Cons[i]&(1<<dir) == 0 {
					continue
				}
				nx, nz := x+common.GetDirOffsetX(dir), z+common.GetDirOffsetZ(dir)
				if nx < 0 || nz < 0 || nx >= w || nz >= h {
					continue
				}
				ni := nx + nz*w
				if !walkable(ni) || reg[ni] >= 0 || layer.Areas[ni] != layer.Areas[i] {
					continue
				}
				reg[ni] = r
				stack = append(stack, ni)
			}
		}
		keep = append(keep, border || size >= minArea)
	}
	return reg, keep
}

// RcBuildPolyMesh decomposes the walkable cells of a layer into convex
// polygons. Cells are merged into rectangles of one region, or into row
// strips for the monotone partition. A layer without walkable cells gives
// an empty mesh.
func RcBuildPolyMesh(layer *DtTileCacheLayer, cfg RcConfig) (*RcPolyMesh, error) {
	hdr := &layer.Header
	w, h := int(hdr.Width), int(hdr.Height)
	nvp := common.Clamp(cfg.MaxVertsPerPoly, 3, 6)
	b := &polyMeshBuilder{
		mesh: &RcPolyMesh{
			Nvp:  nvp,
			Bmin: common.Vec3{hdr.Bounds.Min[0], hdr.Ybase, hdr.Bounds.Min[2]},
			Cs:   hdr.Cs,
			Ch:   hdr.Ch,
		},
		lookup: make(map[uint64]uint16),
	}
	reg, keep := layerRegions(layer, cfg.MinRegionArea)
	covered := make([]bool, w*h)
	usable := func(i int, r int32) bool {
		return reg[i] == r && !covered[i]
	}

	const (
		dirPosZ = 1
		dirPosX = 2
	)
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			i := x + z*w
			r := reg[i]
			if r < 0 || !keep[r] || covered[i] {
				continue
			}
			x1 := x
			for x1+1 < w && usable(x1+1+z*w, r) && layer.Cons[x1+z*w]&(1<<dirPosX) != 0 {
				x1++
			}
			z1 := z
			for cfg.Partition != config.PartitionMonotone && z1+1 < h {
				ok := true
				for xx := x; xx <= x1 && ok; xx++ {
					n := xx + (z1+1)*w
					ok = usable(n, r) && layer.Cons[xx+z1*w]&(1<<dirPosZ) != 0
					if ok && xx < x1 {
						ok = layer.Cons[n]&(1<<dirPosX) != 0
					}
				}
				if !ok {
					break
				}
				z1++
			}
			for zz := z; zz <= z1; zz++ {
				for xx := x; xx <= x1; xx++ {
					covered[xx+zz*w] = true
				}
			}

			// Corners take the height of the cell they belong to.
			corners := [4][3]int{
				{x, int(layer.Heights[x+z*w]), z},
				{x, int(layer.Heights[x+z1*w]), z1 + 1},
				{x1 + 1, int(layer.Heights[x1+z1*w]), z1 + 1},
				{x1 + 1, int(layer.Heights[x1+z*w]), z},
			}
			var idx [4]uint16
			for c, v := range corners {
				vi, err := b.addVertex(v[0], v[1], v[2])
				if err != nil {
					return nil, err
				}
				idx[c] = vi
			}
			if nvp == 3 {
				b.addPoly([]uint16{idx[0], idx[1], idx[2]}, layer.Areas[i])
				b.addPoly([]uint16{idx[0], idx[2], idx[3]}, layer.Areas[i])
			} else {
				b.addPoly(idx[:], layer.Areas[i])
			}
		}
	}
	return b.mesh, nil
}
