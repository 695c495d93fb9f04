package recast

import (
	"fmt"

	"github.com/gorustyt/navbake/common"
	"github.com/gorustyt/navbake/detour"
	"github.com/gorustyt/navbake/geom"
)

// FinishedTileLayer is the output of one layer build. Data is nil when the
// layer turned out empty, which means the stored layer must be removed.
type FinishedTileLayer struct {
	X, Y      int32
	Layer     int32
	Bounds    common.Box
	Data      []byte
	PolyCount int
}

func (f FinishedTileLayer) Empty() bool { return f.Data == nil }

// RcSerializeTile converts the poly mesh into a navmesh tile blob. Off-mesh
// links are kept when their start point lies on this layer.
func RcSerializeTile(mesh *RcPolyMesh, links []geom.OffMeshLink, hdr DtTileCacheLayerHeader) (FinishedTileLayer, error) {
	out := FinishedTileLayer{X: hdr.TX, Y: hdr.TY, Layer: hdr.TLayer, Bounds: hdr.Bounds}
	if mesh == nil || mesh.NPolys() == 0 {
		return out, nil
	}
	if mesh.Nvp > detour.DT_VERTS_PER_POLYGON {
		return out, fmt.Errorf("serializing tile (%d,%d) layer %d: %d verts per polygon exceeds %d",
			hdr.TX, hdr.TY, hdr.TLayer, mesh.Nvp, detour.DT_VERTS_PER_POLYGON)
	}

	data := &detour.DtTileData{
		Header: detour.DtMeshHeader{X: hdr.TX, Y: hdr.TY, Layer: hdr.TLayer, Bounds: hdr.Bounds},
		Nvp:    int32(mesh.Nvp),
		Verts:  make([]float32, 0, len(mesh.Verts)),
		Polys:  mesh.Polys,
		Areas:  mesh.Areas,
	}
	for i := 0; i < mesh.NVerts(); i++ {
		v := mesh.Verts[i*3 : i*3+3]
		data.Verts = append(data.Verts,
			mesh.Bmin[0]+float32(v[0])*mesh.Cs,
			mesh.Bmin[1]+float32(v[1])*mesh.Ch,
			mesh.Bmin[2]+float32(v[2])*mesh.Cs,
		)
	}
	for _, l := range links {
		if !hdr.Bounds.ExpandXYZ(0, max(l.Radius, hdr.Ch), 0).Contains(l.Start) {
			continue
		}
		data.OffMeshCons = append(data.OffMeshCons, detour.DtOffMeshConnection{
			Start:         l.Start,
			End:           l.End,
			Rad:           l.Radius,
			Bidirectional: l.Bidirectional,
			Area:          l.Area,
		})
	}
	out.Data = detour.EncodeTileData(data)
	out.PolyCount = mesh.NPolys()
	return out, nil
}
