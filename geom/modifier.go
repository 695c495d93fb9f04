package geom

import (
	"fmt"

	"github.com/gorustyt/navbake/common"
)

const (
	AreaNull     uint8 = 0
	AreaWalkable uint8 = 63
)

type ModifierShape uint8

const (
	ShapeCylinder ModifierShape = iota + 1
	ShapeBox
	ShapeConvex
)

func (s ModifierShape) String() string {
	switch s {
	case ShapeCylinder:
		return "cylinder"
	case ShapeBox:
		return "box"
	case ShapeConvex:
		return "convex"
	default:
		return fmt.Sprintf("shape(%d)", uint8(s))
	}
}

// Cylinder stands on Base and extends Height upwards.
type Cylinder struct {
	Base   common.Vec3
	Radius float32
	Height float32
}

// Convex is a convex xz polygon extruded between MinY and MaxY.
type Convex struct {
	Points []common.Vec3
	MinY   float32
	MaxY   float32
}

// AreaModifier re-labels the walkable area inside a volume. Exactly one of
// Cylinder, Box or Convex is meaningful, selected by Shape.
type AreaModifier struct {
	Shape ModifierShape
	Area  uint8
	// Dynamic modifiers are applied on every layer build instead of being
	// baked into the cached compressed layers.
	Dynamic bool

	Cylinder Cylinder
	Box      common.Box
	Convex   Convex
}

func CylinderModifier(base common.Vec3, radius, height float32, area uint8, dynamic bool) AreaModifier {
	return AreaModifier{Shape: ShapeCylinder, Area: area, Dynamic: dynamic,
		Cylinder: Cylinder{Base: base, Radius: radius, Height: height}}
}

func BoxModifier(box common.Box, area uint8, dynamic bool) AreaModifier {
	return AreaModifier{Shape: ShapeBox, Area: area, Dynamic: dynamic, Box: box}
}

func ConvexModifier(points []common.Vec3, minY, maxY float32, area uint8, dynamic bool) AreaModifier {
	return AreaModifier{Shape: ShapeConvex, Area: area, Dynamic: dynamic,
		Convex: Convex{Points: points, MinY: minY, MaxY: maxY}}
}

func (m AreaModifier) Bounds() common.Box {
	switch m.Shape {
	case ShapeCylinder:
		c := m.Cylinder
		return common.Box{
			Min: common.Vec3{c.Base[0] - c.Radius, c.Base[1], c.Base[2] - c.Radius},
			Max: common.Vec3{c.Base[0] + c.Radius, c.Base[1] + c.Height, c.Base[2] + c.Radius},
		}
	case ShapeBox:
		return m.Box
	case ShapeConvex:
		b := common.EmptyBox()
		for _, p := range m.Convex.Points {
			b = b.AddPoint(p)
		}
		b.Min[1], b.Max[1] = m.Convex.MinY, m.Convex.MaxY
		return b
	default:
		panic(fmt.Sprintf("geom: unknown modifier %s", m.Shape))
	}
}

// Expand grows the modifier by the agent radius horizontally and one cell
// height vertically, so the marked area keeps the agent clear of it.
func (m AreaModifier) Expand(radius, cellHeight float32) AreaModifier {
	switch m.Shape {
	case ShapeCylinder:
		m.Cylinder.Radius += radius
		m.Cylinder.Height += cellHeight
	case ShapeBox:
		m.Box = m.Box.ExpandXYZ(radius, cellHeight, radius)
	case ShapeConvex:
		m.Convex = Convex{
			Points: growConvexHull(m.Convex.Points, radius),
			MinY:   m.Convex.MinY - cellHeight,
			MaxY:   m.Convex.MaxY + cellHeight,
		}
	default:
		panic(fmt.Sprintf("geom: unknown modifier %s", m.Shape))
	}
	return m
}

// growConvexHull pushes every vertex out along the bisector of its two edges.
func growConvexHull(points []common.Vec3, by float32) []common.Vec3 {
	n := len(points)
	if n < 3 {
		return points
	}
	out := make([]common.Vec3, n)
	for i, p := range points {
		next := points[(i+1)%n]
		prev := points[(i-1+n)%n]
		a := flat(p.Sub(next))
		b := flat(p.Sub(prev))
		dir := flat(a.Add(b).Mul(0.5))
		out[i] = p.Add(dir.Mul(by))
	}
	return out
}

func flat(v common.Vec3) common.Vec3 {
	v[1] = 0
	if l := v.Len(); l > 0 {
		return v.Mul(1 / l)
	}
	return v
}
