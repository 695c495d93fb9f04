package detour

import (
	"fmt"

	"github.com/gorustyt/navbake/common"
	"github.com/gorustyt/navbake/common/message"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	DT_NAVMESH_MAGIC     = 'D'<<24 | 'N'<<16 | 'A'<<8 | 'V' ///< 'DNAV'
	DT_NAVMESH_VERSION   = 1
	DT_VERTS_PER_POLYGON = 6
	DT_NULL_IDX          = 0xffff
)

const (
	fieldMagic protowire.Number = iota + 1
	fieldVersion
	fieldX
	fieldY
	fieldLayer
	fieldBmin
	fieldBmax
	fieldNvp
	fieldVerts
	fieldPolys
	fieldAreas
	fieldOffMeshCons
)

const (
	fieldConStart protowire.Number = iota + 1
	fieldConEnd
	fieldConRad
	fieldConBidir
	fieldConArea
)

// DtOffMeshConnection is a jump link stored with the tile owning its start.
type DtOffMeshConnection struct {
	Start         common.Vec3
	End           common.Vec3
	Rad           float32
	Bidirectional bool
	Area          uint8
}

// DtMeshHeader identifies the tile a blob belongs to.
type DtMeshHeader struct {
	Magic   uint32
	Version uint32
	X, Y    int32
	Layer   int32
	Bounds  common.Box
}

// DtTileData is the decoded content of one tile layer blob.
type DtTileData struct {
	Header DtMeshHeader
	// Nvp is the maximum vertex count per polygon; Polys holds Nvp indices
	// per polygon padded with DT_NULL_IDX.
	Nvp         int32
	Verts       []float32 // world space xyz
	Polys       []uint16
	Areas       []uint8
	OffMeshCons []DtOffMeshConnection
}

func (d *DtTileData) PolyCount() int { return len(d.Areas) }
func (d *DtTileData) VertCount() int { return len(d.Verts) / 3 }

// PolyVerts returns the vertex indices of polygon i.
func (d *DtTileData) PolyVerts(i int) []uint16 {
	p := d.Polys[i*int(d.Nvp) : (i+1)*int(d.Nvp)]
	for n, v := range p {
		if v == DT_NULL_IDX {
			return p[:n]
		}
	}
	return p
}

// EncodeTileData serializes a tile. Magic and version are filled in.
func EncodeTileData(d *DtTileData) []byte {
	e := message.NewEncoder(64 + len(d.Verts)*4 + len(d.Polys)*2 + len(d.Areas))
	e.Uint32(fieldMagic, DT_NAVMESH_MAGIC)
	e.Uint32(fieldVersion, DT_NAVMESH_VERSION)
	e.Int32(fieldX, d.Header.X)
	e.Int32(fieldY, d.Header.Y)
	e.Int32(fieldLayer, d.Header.Layer)
	e.Float32s(fieldBmin, d.Header.Bounds.Min[:])
	e.Float32s(fieldBmax, d.Header.Bounds.Max[:])
	e.Uint32(fieldNvp, uint32(d.Nvp))
	e.Float32s(fieldVerts, d.Verts)
	polys := make([]uint32, len(d.Polys))
	for i, v := range d.Polys {
		polys[i] = uint32(v)
	}
	e.Uint32s(fieldPolys, polys)
	if len(d.Areas) > 0 {
		e.Bytes(fieldAreas, d.Areas)
	}
	for _, con := range d.OffMeshCons {
		con := con
		e.Message(fieldOffMeshCons, func(sub *message.Encoder) {
			sub.Float32s(fieldConStart, con.Start[:])
			sub.Float32s(fieldConEnd, con.End[:])
			sub.Float32(fieldConRad, con.Rad)
			if con.Bidirectional {
				sub.Uint32(fieldConBidir, 1)
			}
			sub.Uint32(fieldConArea, uint32(con.Area))
		})
	}
	return e.Encode()
}

func decodeVec3(dst *common.Vec3, b []byte) error {
	vs, err := message.Float32s(b)
	if err != nil {
		return err
	}
	if len(vs) != 3 {
		return fmt.Errorf("%w: vector of %d components", message.ErrMalformed, len(vs))
	}
	copy(dst[:], vs)
	return nil
}

func checkHeader(h *DtMeshHeader) error {
	if h.Magic != DT_NAVMESH_MAGIC {
		return ErrWrongMagic
	}
	if h.Version != DT_NAVMESH_VERSION {
		return ErrWrongVersion
	}
	return nil
}

func decodeHeaderField(h *DtMeshHeader, f message.Field) (err error) {
	switch f.Num {
	case fieldMagic:
		h.Magic = f.Uint32()
	case fieldVersion:
		h.Version = f.Uint32()
	case fieldX:
		h.X = f.Int32()
	case fieldY:
		h.Y = f.Int32()
	case fieldLayer:
		h.Layer = f.Int32()
	case fieldBmin:
		err = decodeVec3(&h.Bounds.Min, f.Bytes)
	case fieldBmax:
		err = decodeVec3(&h.Bounds.Max, f.Bytes)
	}
	return err
}

// DecodeTileHeader reads only the header fields of a blob.
func DecodeTileHeader(b []byte) (DtMeshHeader, error) {
	var h DtMeshHeader
	if err := message.Walk(b, func(f message.Field) error { return decodeHeaderField(&h, f) }); err != nil {
		return h, fmt.Errorf("decoding tile header: %w", err)
	}
	return h, checkHeader(&h)
}

// DecodeTileData parses a blob produced by EncodeTileData.
func DecodeTileData(b []byte) (*DtTileData, error) {
	d := &DtTileData{}
	err := message.Walk(b, func(f message.Field) error {
		switch f.Num {
		case fieldNvp:
			d.Nvp = int32(f.Uint32())
		case fieldVerts:
			vs, err := message.Float32s(f.Bytes)
			if err != nil {
				return err
			}
			d.Verts = vs
		case fieldPolys:
			ps, err := message.Uint32s(f.Bytes)
			if err != nil {
				return err
			}
			d.Polys = make([]uint16, len(ps))
			for i, p := range ps {
				d.Polys[i] = uint16(p)
			}
		case fieldAreas:
			d.Areas = append([]uint8(nil), f.Bytes...)
		case fieldOffMeshCons:
			con, err := decodeOffMeshCon(f.Bytes)
			if err != nil {
				return err
			}
			d.OffMeshCons = append(d.OffMeshCons, con)
		default:
			return decodeHeaderField(&d.Header, f)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decoding tile data: %w", err)
	}
	if err := checkHeader(&d.Header); err != nil {
		return nil, err
	}
	if len(d.Verts)%3 != 0 || d.Nvp <= 0 && len(d.Areas) > 0 || len(d.Polys) != int(d.Nvp)*len(d.Areas) {
		return nil, fmt.Errorf("decoding tile data: %w: inconsistent polygon arrays", ErrInvalidParam)
	}
	for _, v := range d.Polys {
		if v != DT_NULL_IDX && int(v) >= d.VertCount() {
			return nil, fmt.Errorf("decoding tile data: %w: vertex index %d out of range", ErrInvalidParam, v)
		}
	}
	return d, nil
}

func decodeOffMeshCon(b []byte) (con DtOffMeshConnection, err error) {
	err = message.Walk(b, func(f message.Field) error {
		switch f.Num {
		case fieldConStart:
			return decodeVec3(&con.Start, f.Bytes)
		case fieldConEnd:
			return decodeVec3(&con.End, f.Bytes)
		case fieldConRad:
			con.Rad = f.Float32()
		case fieldConBidir:
			con.Bidirectional = f.Uint32() != 0
		case fieldConArea:
			con.Area = uint8(f.Uint32())
		}
		return nil
	})
	return con, err
}
