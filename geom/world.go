package geom

import (
	"math"
	"slices"

	"github.com/gorustyt/navbake/common"
)

type (
	MeshID     uint32
	ModifierID uint32
	LinkID     uint32
)

type worldMesh struct {
	tris   []Triangle
	bounds common.Box
	cells  []cellKey
}

type cellKey struct{ x, z int32 }

// World is an in-memory GeometrySource. Meshes are indexed on a uniform xz
// grid so queries only visit nearby geometry. World is not safe for
// concurrent use; it belongs to the goroutine that drives the scheduler.
type World struct {
	cellSize  float32
	nextID    uint32
	meshes    map[MeshID]*worldMesh
	grid      map[cellKey][]MeshID
	modifiers map[ModifierID]AreaModifier
	links     map[LinkID]OffMeshLink
}

// NewWorld creates an empty world whose index uses cells of cellSize.
func NewWorld(cellSize float32) *World {
	if cellSize <= 0 {
		cellSize = 16
	}
	return &World{
		cellSize:  cellSize,
		meshes:    make(map[MeshID]*worldMesh),
		grid:      make(map[cellKey][]MeshID),
		modifiers: make(map[ModifierID]AreaModifier),
		links:     make(map[LinkID]OffMeshLink),
	}
}

func (w *World) id() uint32 {
	w.nextID++
	return w.nextID
}

func (w *World) cellRange(b common.Box) (x0, z0, x1, z1 int32) {
	inv := 1 / w.cellSize
	x0 = int32(math.Floor(float64(b.Min[0] * inv)))
	z0 = int32(math.Floor(float64(b.Min[2] * inv)))
	x1 = int32(math.Floor(float64(b.Max[0] * inv)))
	z1 = int32(math.Floor(float64(b.Max[2] * inv)))
	return
}

// AddMesh inserts static collision and returns the area to report as dirty.
func (w *World) AddMesh(tris []Triangle) (MeshID, DirtyArea) {
	id := MeshID(w.id())
	m := &worldMesh{tris: slices.Clone(tris), bounds: common.EmptyBox()}
	for _, t := range tris {
		m.bounds = m.bounds.Union(t.Bounds())
	}
	if len(tris) > 0 {
		x0, z0, x1, z1 := w.cellRange(m.bounds)
		for z := z0; z <= z1; z++ {
			for x := x0; x <= x1; x++ {
				k := cellKey{x, z}
				w.grid[k] = append(w.grid[k], id)
				m.cells = append(m.cells, k)
			}
		}
	}
	w.meshes[id] = m
	return id, DirtyArea{Box: m.bounds, Kind: DirtyGeometry}
}

func (w *World) RemoveMesh(id MeshID) (DirtyArea, bool) {
	m, ok := w.meshes[id]
	if !ok {
		return DirtyArea{}, false
	}
	for _, k := range m.cells {
		ids := w.grid[k]
		if i := slices.Index(ids, id); i >= 0 {
			ids = slices.Delete(ids, i, i+1)
		}
		if len(ids) == 0 {
			delete(w.grid, k)
		} else {
			w.grid[k] = ids
		}
	}
	delete(w.meshes, id)
	return DirtyArea{Box: m.bounds, Kind: DirtyGeometry}, true
}

func modifierKind(m AreaModifier) DirtyKind {
	if m.Dynamic {
		return DirtyModifier
	}
	return DirtyGeometry
}

// AddModifier registers an area modifier. Static modifiers dirty geometry,
// dynamic ones only the layers they overlap.
func (w *World) AddModifier(m AreaModifier) (ModifierID, DirtyArea) {
	id := ModifierID(w.id())
	w.modifiers[id] = m
	return id, DirtyArea{Box: m.Bounds(), Kind: modifierKind(m)}
}

// MoveModifier replaces a modifier; the dirty area covers both placements.
func (w *World) MoveModifier(id ModifierID, m AreaModifier) (DirtyArea, bool) {
	old, ok := w.modifiers[id]
	if !ok {
		return DirtyArea{}, false
	}
	w.modifiers[id] = m
	kind := modifierKind(m)
	if !old.Dynamic {
		kind = DirtyGeometry
	}
	return DirtyArea{Box: old.Bounds().Union(m.Bounds()), Kind: kind}, true
}

func (w *World) RemoveModifier(id ModifierID) (DirtyArea, bool) {
	m, ok := w.modifiers[id]
	if !ok {
		return DirtyArea{}, false
	}
	delete(w.modifiers, id)
	return DirtyArea{Box: m.Bounds(), Kind: modifierKind(m)}, true
}

func linkBounds(l OffMeshLink) common.Box {
	return common.Box{Min: l.Start, Max: l.Start}.AddPoint(l.End).Expand(l.Radius)
}

// AddOffMeshLink registers a link. Links are attached per layer, so they
// only dirty layers.
func (w *World) AddOffMeshLink(l OffMeshLink) (LinkID, DirtyArea) {
	id := LinkID(w.id())
	w.links[id] = l
	return id, DirtyArea{Box: linkBounds(l), Kind: DirtyModifier}
}

func (w *World) RemoveOffMeshLink(id LinkID) (DirtyArea, bool) {
	l, ok := w.links[id]
	if !ok {
		return DirtyArea{}, false
	}
	delete(w.links, id)
	return DirtyArea{Box: linkBounds(l), Kind: DirtyModifier}, true
}

// Bounds is the union of all mesh bounds; invalid when the world is empty.
func (w *World) Bounds() common.Box {
	b := common.EmptyBox()
	for _, m := range w.meshes {
		if len(m.tris) > 0 {
			b = b.Union(m.bounds)
		}
	}
	return b
}

// Query implements GeometrySource. Results are in id order.
func (w *World) Query(box common.Box) QueryResult {
	var res QueryResult

	seen := make(map[MeshID]struct{})
	var ids []MeshID
	x0, z0, x1, z1 := w.cellRange(box)
	for z := z0; z <= z1; z++ {
		for x := x0; x <= x1; x++ {
			for _, id := range w.grid[cellKey{x, z}] {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	slices.Sort(ids)
	for _, id := range ids {
		m := w.meshes[id]
		if !m.bounds.Intersects(box) {
			continue
		}
		for _, t := range m.tris {
			if t.Bounds().Intersects(box) {
				res.Triangles = append(res.Triangles, t)
			}
		}
	}

	for _, id := range sortedKeys(w.modifiers) {
		if m := w.modifiers[id]; m.Bounds().Intersects(box) {
			res.Modifiers = append(res.Modifiers, m)
		}
	}
	for _, id := range sortedKeys(w.links) {
		if l := w.links[id]; box.Contains(l.Start) || box.Contains(l.End) {
			res.OffMeshLinks = append(res.OffMeshLinks, l)
		}
	}
	return res
}

func sortedKeys[K ~uint32, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
