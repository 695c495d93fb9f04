package recast

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gorustyt/navbake/common"
	"github.com/gorustyt/navbake/common/rw"
	"github.com/klauspost/compress/zstd"
)

var ErrCorruptLayer = errors.New("recast: corrupt compressed layer")

// CompressedLayer is the cached, serialized form of one tile layer. It is
// what a layer-only rebuild starts from.
type CompressedLayer struct {
	Layer  int32
	Bounds common.Box
	Data   []byte
}

func writeLayerHeader(w *rw.ReaderWriter, hdr *DtTileCacheLayerHeader) {
	w.WriteUInt32(DT_TILECACHE_MAGIC)
	w.WriteUInt32(DT_TILECACHE_VERSION)
	w.WriteInt32(hdr.TX)
	w.WriteInt32(hdr.TY)
	w.WriteInt32(hdr.TLayer)
	w.WriteFloat32s(hdr.Bounds.Min[:])
	w.WriteFloat32s(hdr.Bounds.Max[:])
	w.WriteFloat32(hdr.Ybase)
	w.WriteFloat32(hdr.Cs)
	w.WriteFloat32(hdr.Ch)
	w.WriteInt32(hdr.Width)
	w.WriteInt32(hdr.Height)
	w.WriteUInt16(hdr.HMin)
	w.WriteUInt16(hdr.HMax)
}

func readLayerHeader(r *rw.ReaderWriter) (hdr DtTileCacheLayerHeader, err error) {
	if magic := r.ReadUInt32(); magic != DT_TILECACHE_MAGIC {
		return hdr, fmt.Errorf("%w: magic %#x", ErrCorruptLayer, magic)
	}
	if version := r.ReadUInt32(); version != DT_TILECACHE_VERSION {
		return hdr, fmt.Errorf("%w: version %d", ErrCorruptLayer, version)
	}
	hdr.TX = r.ReadInt32()
	hdr.TY = r.ReadInt32()
	hdr.TLayer = r.ReadInt32()
	r.ReadFloat32s(hdr.Bounds.Min[:])
	r.ReadFloat32s(hdr.Bounds.Max[:])
	hdr.Ybase = r.ReadFloat32()
	hdr.Cs = r.ReadFloat32()
	hdr.Ch = r.ReadFloat32()
	hdr.Width = r.ReadInt32()
	hdr.Height = r.ReadInt32()
	hdr.HMin = r.ReadUInt16()
	hdr.HMax = r.ReadUInt16()
	if err := r.Err(); err != nil {
		return hdr, fmt.Errorf("%w: %v", ErrCorruptLayer, err)
	}
	if hdr.Width <= 0 || hdr.Height <= 0 {
		return hdr, fmt.Errorf("%w: size %dx%d", ErrCorruptLayer, hdr.Width, hdr.Height)
	}
	return hdr, nil
}

// DtCompressLayer writes the layer header uncompressed followed by the zstd
// compressed grids. enc may be shared between goroutines.
func DtCompressLayer(enc *zstd.Encoder, layer *DtTileCacheLayer) CompressedLayer {
	n := len(layer.Heights)
	grids := make([]byte, 0, n*4)
	for _, h := range layer.Heights {
		grids = binary.LittleEndian.AppendUint16(grids, h)
	}
	grids = append(grids, layer.Areas...)
	grids = append(grids, layer.Cons...)

	w := rw.NewWriter()
	writeLayerHeader(w, &layer.Header)
	w.WriteBytes(enc.EncodeAll(grids, nil))
	return CompressedLayer{
		Layer:  layer.Header.TLayer,
		Bounds: layer.Header.Bounds,
		Data:   w.GetWriteBytes(),
	}
}

// DtDecompressLayer is the inverse of DtCompressLayer. dec may be shared
// between goroutines.
func DtDecompressLayer(dec *zstd.Decoder, data []byte) (*DtTileCacheLayer, error) {
	r := rw.NewReader(data)
	hdr, err := readLayerHeader(r)
	if err != nil {
		return nil, err
	}
	grids, err := dec.DecodeAll(r.ReadBytes(r.Size()), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptLayer, err)
	}
	n := int(hdr.Width) * int(hdr.Height)
	if len(grids) != n*4 {
		return nil, fmt.Errorf("%w: payload %d bytes, want %d", ErrCorruptLayer, len(grids), n*4)
	}
	layer := &DtTileCacheLayer{
		Header:  hdr,
		Heights: make([]uint16, n),
		Areas:   make([]uint8, n),
		Cons:    make([]uint8, n),
	}
	for i := range layer.Heights {
		layer.Heights[i] = binary.LittleEndian.Uint16(grids[i*2:])
	}
	copy(layer.Areas, grids[n*2:n*3])
	copy(layer.Cons, grids[n*3:])
	return layer, nil
}
