package detour_tile_cache

import "github.com/bits-and-blooms/bitset"

// DirtyState records what part of a tile must be rebuilt. Merging two states
// is a plain OR of every field, so merges commute and never lose a report.
type DirtyState struct {
	RebuildGeometry  bool
	RebuildLayers    bool
	RebuildAllLayers bool
	Layers           *bitset.BitSet
}

func (s *DirtyState) layers() *bitset.BitSet {
	if s.Layers == nil {
		s.Layers = bitset.New(8)
	}
	return s.Layers
}

func (s *DirtyState) IsDirty() bool {
	return s.RebuildGeometry || s.RebuildLayers || s.RebuildAllLayers
}

// MarkGeometry requests a whole-tile rebuild. Layer bits are dropped since
// every layer is rebuilt anyway.
func (s *DirtyState) MarkGeometry() {
	s.RebuildGeometry = true
	s.RebuildLayers = false
	s.RebuildAllLayers = false
	if s.Layers != nil {
		s.Layers.ClearAll()
	}
}

func (s *DirtyState) MarkLayer(layer uint) {
	s.RebuildLayers = true
	s.layers().Set(layer)
}

func (s *DirtyState) MarkAllLayers() {
	s.RebuildLayers = true
	s.RebuildAllLayers = true
}

// IsLayerDirty reports whether the layer must be meshed again.
func (s *DirtyState) IsLayerDirty(layer uint) bool {
	if s.RebuildGeometry || s.RebuildAllLayers {
		return true
	}
	return s.RebuildLayers && s.Layers != nil && s.Layers.Test(layer)
}

// Append ORs o into s.
func (s *DirtyState) Append(o DirtyState) {
	s.RebuildGeometry = s.RebuildGeometry || o.RebuildGeometry
	s.RebuildLayers = s.RebuildLayers || o.RebuildLayers
	s.RebuildAllLayers = s.RebuildAllLayers || o.RebuildAllLayers
	if o.Layers != nil && o.Layers.Any() {
		s.layers().InPlaceUnion(o.Layers)
	}
}

func (s *DirtyState) Clear() {
	s.RebuildGeometry = false
	s.RebuildLayers = false
	s.RebuildAllLayers = false
	if s.Layers != nil {
		s.Layers.ClearAll()
	}
}

func (s DirtyState) Clone() DirtyState {
	c := s
	if s.Layers != nil {
		c.Layers = s.Layers.Clone()
	}
	return c
}

// Covers reports whether every rebuild requested by o is also requested by s.
func (s DirtyState) Covers(o DirtyState) bool {
	if s.RebuildGeometry {
		return true
	}
	if o.RebuildGeometry || o.RebuildAllLayers && !s.RebuildAllLayers || o.RebuildLayers && !s.RebuildLayers {
		return false
	}
	if s.RebuildAllLayers || o.Layers == nil || !o.Layers.Any() {
		return true
	}
	return s.Layers != nil && s.Layers.IsSuperSet(o.Layers)
}
