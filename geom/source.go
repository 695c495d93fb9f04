package geom

import "github.com/gorustyt/navbake/common"

// Triangle is one collidable triangle in world space.
type Triangle [3]common.Vec3

func (t Triangle) Bounds() common.Box {
	return common.Box{Min: t[0], Max: t[0]}.AddPoint(t[1]).AddPoint(t[2])
}

// VoxelSpan is a pre-voxelized solid column segment. X and Z are world
// coordinates inside the cell; MinY/MaxY bound the solid part.
type VoxelSpan struct {
	X, Z       float32
	MinY, MaxY float32
	Area       uint8
}

// OffMeshLink connects two points that are not joined by walkable surface.
type OffMeshLink struct {
	Start         common.Vec3
	End           common.Vec3
	Radius        float32
	Bidirectional bool
	Area          uint8
}

// QueryResult is everything overlapping a query box.
type QueryResult struct {
	Triangles    []Triangle
	Spans        []VoxelSpan
	Modifiers    []AreaModifier
	OffMeshLinks []OffMeshLink
}

// HasGeometry reports whether there is anything to rasterize.
func (q QueryResult) HasGeometry() bool {
	return len(q.Triangles) > 0 || len(q.Spans) > 0
}

// GeometrySource answers "what overlaps this box". Implementations are only
// required to be safe on the goroutine that owns the world.
type GeometrySource interface {
	Query(box common.Box) QueryResult
}

// DirtyKind tells how much of a tile a change invalidates.
type DirtyKind uint8

const (
	// DirtyGeometry invalidates the whole tile.
	DirtyGeometry DirtyKind = iota + 1
	// DirtyModifier invalidates only the layers a dynamic modifier touches.
	DirtyModifier
)

func (k DirtyKind) String() string {
	switch k {
	case DirtyGeometry:
		return "geometry"
	case DirtyModifier:
		return "modifier"
	default:
		return "unknown"
	}
}

// DirtyArea is a world-space region reported as changed.
type DirtyArea struct {
	Box  common.Box
	Kind DirtyKind
}
