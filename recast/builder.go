package recast

import (
	"errors"
	"fmt"

	"github.com/gorustyt/navbake/geom"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/multierr"
)

var ErrInvalidConfig = errors.New("recast: invalid tile config")

// MeshBuilder is the voxel to polygon pipeline of one tile. Every method is
// a pure function of its arguments and may be called from any goroutine.
type MeshBuilder interface {
	Voxelize(tris []geom.Triangle, spans []geom.VoxelSpan, cfg *RcConfig) (*RcHeightfield, error)
	Filter(hf *RcHeightfield, cfg *RcConfig) *RcHeightfield
	Compact(hf *RcHeightfield, staticMods []geom.AreaModifier, cfg *RcConfig) (*RcCompactHeightfield, error)
	PartitionLayers(chf *RcCompactHeightfield, cfg *RcConfig) ([]*DtTileCacheLayer, error)
	Compress(layer *DtTileCacheLayer) (CompressedLayer, error)
	Decompress(cl CompressedLayer) (*DtTileCacheLayer, error)
	MarkModifiers(layer *DtTileCacheLayer, mods []geom.AreaModifier, cfg *RcConfig)
	BuildPolyMesh(layer *DtTileCacheLayer, cfg *RcConfig) (*RcPolyMesh, error)
	SerializeTile(mesh *RcPolyMesh, links []geom.OffMeshLink, hdr DtTileCacheLayerHeader) (FinishedTileLayer, error)
}

// Builder is the default MeshBuilder. Its zstd coders are safe for
// concurrent EncodeAll/DecodeAll calls, so one Builder serves every worker.
type Builder struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

var _ MeshBuilder = (*Builder)(nil)

func NewBuilder() (*Builder, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("creating layer encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("creating layer decoder: %w", err), enc.Close())
	}
	return &Builder{enc: enc, dec: dec}, nil
}

func (b *Builder) Close() error {
	b.dec.Close()
	return b.enc.Close()
}

func (b *Builder) Voxelize(tris []geom.Triangle, spans []geom.VoxelSpan, cfg *RcConfig) (*RcHeightfield, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Cs <= 0 || cfg.Ch <= 0 || !cfg.Bounds.IsValid() {
		return nil, fmt.Errorf("%w: %dx%d cells, cs %v ch %v", ErrInvalidConfig, cfg.Width, cfg.Height, cfg.Cs, cfg.Ch)
	}
	hf := NewRcHeightfield(cfg.Width, cfg.Height, cfg.Bounds, cfg.Cs, cfg.Ch)
	RcRasterizeTriangles(tris, cfg.WalkableSlopeAngle, hf, cfg.WalkableClimb)
	RcRasterizeSpans(spans, hf, cfg.WalkableClimb)
	return hf, nil
}

// Filter runs on the whole padded heightfield so the ledge and clearance
// filters see past the tile edge.
func (b *Builder) Filter(hf *RcHeightfield, cfg *RcConfig) *RcHeightfield {
	RcFilterLowHangingWalkableObstacles(cfg.WalkableClimb, hf)
	RcFilterLedgeSpans(cfg.WalkableHeight, cfg.WalkableClimb, hf)
	RcFilterWalkableLowHeightSpans(cfg.WalkableHeight, hf)
	RcFilterInclusionBounds(cfg.InclusionBounds, float32(cfg.WalkableRadius)*cfg.Cs, hf)
	return hf
}

func (b *Builder) Compact(hf *RcHeightfield, staticMods []geom.AreaModifier, cfg *RcConfig) (*RcCompactHeightfield, error) {
	chf := RcBuildCompactHeightfield(cfg.WalkableHeight, cfg.WalkableClimb, hf)
	chf.BorderSize = cfg.BorderSize
	RcErodeWalkableArea(cfg.WalkableRadius, chf)
	for _, m := range staticMods {
		RcMarkModifierArea(m.Expand(cfg.AgentRadius, cfg.Ch), chf)
	}
	return chf, nil
}

func (b *Builder) PartitionLayers(chf *RcCompactHeightfield, cfg *RcConfig) ([]*DtTileCacheLayer, error) {
	return RcBuildHeightfieldLayers(chf, *cfg)
}

func (b *Builder) Compress(layer *DtTileCacheLayer) (CompressedLayer, error) {
	return DtCompressLayer(b.enc, layer), nil
}

func (b *Builder) Decompress(cl CompressedLayer) (*DtTileCacheLayer, error) {
	return DtDecompressLayer(b.dec, cl.Data)
}

func (b *Builder) MarkModifiers(layer *DtTileCacheLayer, mods []geom.AreaModifier, cfg *RcConfig) {
	for _, m := range mods {
		RcMarkLayerModifierArea(m.Expand(cfg.AgentRadius, cfg.Ch), layer)
	}
}

func (b *Builder) BuildPolyMesh(layer *DtTileCacheLayer, cfg *RcConfig) (*RcPolyMesh, error) {
	return RcBuildPolyMesh(layer, *cfg)
}

func (b *Builder) SerializeTile(mesh *RcPolyMesh, links []geom.OffMeshLink, hdr DtTileCacheLayerHeader) (FinishedTileLayer, error) {
	return RcSerializeTile(mesh, links, hdr)
}
