package detour_tile_cache

import (
	"fmt"

	"github.com/gorustyt/navbake/common"
	"github.com/gorustyt/navbake/geom"
	"github.com/gorustyt/navbake/recast"
)

type TileState uint8

const (
	TileClean TileState = iota
	TilePendingDirty
	TileQueued
	TileBuilding
	TileCommitting
)

func (s TileState) String() string {
	switch s {
	case TileClean:
		return "clean"
	case TilePendingDirty:
		return "pending_dirty"
	case TileQueued:
		return "queued"
	case TileBuilding:
		return "building"
	case TileCommitting:
		return "committing"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// BuildError is a failed MeshBuilder stage of one tile.
type BuildError struct {
	Stage string
	X, Y  int32
	Layer int32
	Err   error
}

func (e *BuildError) Error() string {
	if e.Layer >= 0 {
		return fmt.Sprintf("tile (%d,%d) layer %d: %s: %v", e.X, e.Y, e.Layer, e.Stage, e.Err)
	}
	return fmt.Sprintf("tile (%d,%d): %s: %v", e.X, e.Y, e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// TileUnit is the build state of one tile. It is owned by the scheduler
// goroutine; while Building, its input belongs to exactly one worker.
type TileUnit struct {
	X, Y   int32
	Bounds common.Box

	state    TileState
	dirty    DirtyState // reported since the last prepare
	inFlight DirtyState // captured by prepare, owned by the running build

	// Cached static voxel data, one entry per layer ordered by layer index.
	layers []recast.CompressedLayer
	// Set when the tile lies outside every inclusion volume. Cleared on a
	// grid resize (a fresh TileUnit) or an inclusion change.
	neverBuild bool

	input *buildInput
}

func newTileUnit(x, y int32, bounds common.Box) *TileUnit {
	return &TileUnit{X: x, Y: y, Bounds: bounds}
}

func (t *TileUnit) State() TileState { return t.state }

// Dirty returns a copy of the pending dirty state.
func (t *TileUnit) Dirty() DirtyState { return t.dirty.Clone() }

// CompressedLayers returns the cached layers.
func (t *TileUnit) CompressedLayers() []recast.CompressedLayer { return t.layers }

// LayerBounds returns the bounds of every cached layer.
func (t *TileUnit) LayerBounds() []common.Box {
	out := make([]common.Box, len(t.layers))
	for i, l := range t.layers {
		out[i] = l.Bounds
	}
	return out
}

func (t *TileUnit) busy() bool {
	return t.state == TileBuilding || t.state == TileCommitting
}

func (t *TileUnit) geometryInFlight() bool {
	return (t.state == TileQueued || t.busy()) && t.inFlight.RebuildGeometry
}

func (t *TileUnit) markDirty(fn func(d *DirtyState)) {
	fn(&t.dirty)
	if t.state == TileClean {
		t.state = TilePendingDirty
	}
}

// buildInput is everything a build job reads. Workers only ever see a
// buildInput, never the TileUnit.
type buildInput struct {
	id      int
	version uint64
	cfg     recast.RcConfig
	dirty   DirtyState

	triangles   []geom.Triangle
	spans       []geom.VoxelSpan
	staticMods  []geom.AreaModifier
	dynamicMods []geom.AreaModifier
	links       []geom.OffMeshLink
	layers      []recast.CompressedLayer
}

// buildOutput is a successful build job.
type buildOutput struct {
	geometry bool
	layers   []recast.CompressedLayer // new cache, set when geometry
	finished []recast.FinishedTileLayer
}

// Prepare moves the pending dirty state into the in-flight snapshot and
// gathers the build input from src. It runs on the goroutine owning src. It
// returns false when there is nothing to build: the tile is outside every
// inclusion volume or has no geometry at all, or a layer rebuild was asked
// for a tile without cached layers.
func (t *TileUnit) Prepare(src geom.GeometrySource, cfg recast.RcConfig, id int, version uint64, included bool) bool {
	t.inFlight.Append(t.dirty)
	t.dirty.Clear()
	snapshot := t.inFlight

	if snapshot.RebuildGeometry {
		t.layers = nil
	}
	if !included {
		t.neverBuild = true
	}
	if t.neverBuild {
		t.input = nil
		return false
	}

	q := src.Query(cfg.QueryBounds())
	in := &buildInput{
		id:      id,
		version: version,
		cfg:     cfg,
		dirty:   snapshot.Clone(),
		links:   q.OffMeshLinks,
	}
	for _, m := range q.Modifiers {
		if m.Dynamic {
			in.dynamicMods = append(in.dynamicMods, m)
		} else {
			in.staticMods = append(in.staticMods, m)
		}
	}
	if snapshot.RebuildGeometry {
		if !q.HasGeometry() {
			t.input = nil
			return false
		}
		in.triangles = q.Triangles
		in.spans = q.Spans
	} else {
		if len(t.layers) == 0 {
			t.input = nil
			return false
		}
		in.layers = append([]recast.CompressedLayer(nil), t.layers...)
	}
	t.input = in
	return true
}

// takeInput hands the prepared input to a worker.
func (t *TileUnit) takeInput() *buildInput {
	in := t.input
	t.input = nil
	t.state = TileBuilding
	return in
}

// FinishRebuild installs a committed build. Only the dirt captured by
// prepare is cleared; anything reported during the build stays pending.
func (t *TileUnit) FinishRebuild(out *buildOutput) {
	if out != nil && out.geometry {
		t.layers = out.layers
	}
	t.inFlight.Clear()
	t.settle()
}

// AbortRebuild merges the in-flight snapshot back into the pending state
// and returns the tile to PendingDirty. Cached layers are left as they are.
func (t *TileUnit) AbortRebuild() {
	t.dirty.Append(t.inFlight)
	t.inFlight.Clear()
	t.input = nil
	t.state = TilePendingDirty
}

// AbandonGeneration drops a prepared tile that has nothing to build.
func (t *TileUnit) AbandonGeneration() {
	t.inFlight.Clear()
	t.input = nil
	t.settle()
}

func (t *TileUnit) settle() {
	if t.dirty.IsDirty() {
		t.state = TilePendingDirty
	} else {
		t.state = TileClean
	}
}

func buildErr(stage string, in *buildInput, layer int32, err error) error {
	return &BuildError{Stage: stage, X: in.cfg.TileX, Y: in.cfg.TileY, Layer: layer, Err: err}
}

// runBuild is the asynchronous half of a tile build. It only reads in and
// calls the builder, so it may run on any goroutine.
func runBuild(b recast.MeshBuilder, in *buildInput) (*buildOutput, error) {
	cfg := in.cfg
	dirty := in.dirty.Clone()
	out := &buildOutput{geometry: dirty.RebuildGeometry}
	layers := in.layers

	if dirty.RebuildGeometry {
		hf, err := b.Voxelize(in.triangles, in.spans, &cfg)
		if err != nil {
			return nil, buildErr("voxelize", in, -1, err)
		}
		hf = b.Filter(hf, &cfg)
		chf, err := b.Compact(hf, in.staticMods, &cfg)
		if err != nil {
			return nil, buildErr("compact", in, -1, err)
		}
		raws, err := b.PartitionLayers(chf, &cfg)
		if err != nil {
			return nil, buildErr("partition", in, -1, err)
		}
		layers = make([]recast.CompressedLayer, 0, len(raws))
		for _, raw := range raws {
			cl, err := b.Compress(raw)
			if err != nil {
				return nil, buildErr("compress", in, raw.Header.TLayer, err)
			}
			layers = append(layers, cl)
		}
		out.layers = layers
		dirty.MarkAllLayers()
	}

	for _, cl := range layers {
		if !dirty.IsLayerDirty(uint(cl.Layer)) {
			continue
		}
		raw, err := b.Decompress(cl)
		if err != nil {
			return nil, buildErr("decompress", in, cl.Layer, err)
		}
		b.MarkModifiers(raw, in.dynamicMods, &cfg)
		mesh, err := b.BuildPolyMesh(raw, &cfg)
		if err != nil {
			return nil, buildErr("polymesh", in, cl.Layer, err)
		}
		fin, err := b.SerializeTile(mesh, in.links, raw.Header)
		if err != nil {
			return nil, buildErr("serialize", in, cl.Layer, err)
		}
		out.finished = append(out.finished, fin)
	}
	return out, nil
}
