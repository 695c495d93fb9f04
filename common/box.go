package common

import "math"

// Box is a world-space axis aligned bounding box.
type Box struct {
	Min Vec3
	Max Vec3
}

func NewBox(min, max Vec3) Box {
	return Box{Min: min, Max: max}
}

// EmptyBox returns an inverted box that any Union will overwrite.
func EmptyBox() Box {
	inf := float32(math.MaxFloat32)
	return Box{Min: Vec3{inf, inf, inf}, Max: Vec3{-inf, -inf, -inf}}
}

func (b Box) IsValid() bool {
	return b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1] && b.Min[2] <= b.Max[2]
}

func (b Box) Expand(d float32) Box {
	return b.ExpandXYZ(d, d, d)
}

func (b Box) ExpandXYZ(dx, dy, dz float32) Box {
	return Box{
		Min: Vec3{b.Min[0] - dx, b.Min[1] - dy, b.Min[2] - dz},
		Max: Vec3{b.Max[0] + dx, b.Max[1] + dy, b.Max[2] + dz},
	}
}

// Intersects treats both boxes as closed.
func (b Box) Intersects(o Box) bool {
	return b.Min[0] <= o.Max[0] && b.Max[0] >= o.Min[0] &&
		b.Min[1] <= o.Max[1] && b.Max[1] >= o.Min[1] &&
		b.Min[2] <= o.Max[2] && b.Max[2] >= o.Min[2]
}

// Intersects2D ignores the y axis.
func (b Box) Intersects2D(o Box) bool {
	return b.Min[0] <= o.Max[0] && b.Max[0] >= o.Min[0] &&
		b.Min[2] <= o.Max[2] && b.Max[2] >= o.Min[2]
}

func (b Box) Contains(p Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

func (b Box) Contains2D(p Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

func (b Box) Union(o Box) Box {
	return Box{
		Min: Vec3{min(b.Min[0], o.Min[0]), min(b.Min[1], o.Min[1]), min(b.Min[2], o.Min[2])},
		Max: Vec3{max(b.Max[0], o.Max[0]), max(b.Max[1], o.Max[1]), max(b.Max[2], o.Max[2])},
	}
}

func (b Box) AddPoint(p Vec3) Box {
	return Box{
		Min: Vec3{min(b.Min[0], p[0]), min(b.Min[1], p[1]), min(b.Min[2], p[2])},
		Max: Vec3{max(b.Max[0], p[0]), max(b.Max[1], p[1]), max(b.Max[2], p[2])},
	}
}

func (b Box) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b Box) Size() Vec3 {
	return b.Max.Sub(b.Min)
}
