package common

import (
	"cmp"
	"math"
)

// / Returns the square of the value.
func Sqr[T IT](a T) T {
	return a * a
}

// / Returns the absolute value.
func Abs[T IT](a T) T {
	if a < 0 {
		return -a
	}
	return a
}

// / Clamps the value to the specified range.
// / @param[in]		value			The value to clamp.
// / @param[in]		minInclusive	The minimum permitted return value.
// / @param[in]		maxInclusive	The maximum permitted return value.
func Clamp[T cmp.Ordered](value, minInclusive, maxInclusive T) T {
	if value < minInclusive {
		return minInclusive
	}
	if value > maxInclusive {
		return maxInclusive
	}
	return value
}

// / Gets the standard width (x-axis) offset for the specified direction.
// / @param[in]		direction		The direction. [Limits: 0 <= value < 4]
func GetDirOffsetX(direction int) int {
	offset := [4]int{-1, 0, 1, 0}
	return offset[direction&0x03]
}

// / Gets the standard height (z-axis) offset for the specified direction.
// / @param[in]		direction		The direction. [Limits: 0 <= value < 4]
func GetDirOffsetZ(direction int) int {
	offset := [4]int{0, 1, 0, -1}
	return offset[direction&0x03]
}

func NextPow2(v uint32) uint32 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}

func Ilog2(v uint32) uint32 {
	var r, shift uint32
	b := func(ok bool) uint32 {
		if ok {
			return 1
		}
		return 0
	}
	r = b(v > 0xffff) << 4
	v >>= r
	shift = b(v > 0xff) << 3
	v >>= shift
	r |= shift
	shift = b(v > 0xf) << 2
	v >>= shift
	r |= shift
	shift = b(v > 0x3) << 1
	v >>= shift
	r |= shift
	r |= v >> 1
	return r
}

// / Derives the distance between the specified points on the xz-plane.
func Vdist2D(a, b Vec3) float32 {
	dx := b[0] - a[0]
	dz := b[2] - a[2]
	return float32(math.Sqrt(float64(dx*dx + dz*dz)))
}

// / Checks if a point is contained within a polygon, projected on the xz-plane.
// / @param[in]	verts		The polygon vertices
// / @param[in]	point		The point to check
func PointInPoly2D(verts []Vec3, point Vec3) bool {
	inPoly := false
	for i, j := 0, len(verts)-1; i < len(verts); j, i = i, i+1 {
		vi, vj := verts[i], verts[j]
		if (vi[2] > point[2]) == (vj[2] > point[2]) {
			continue
		}
		if point[0] >= (vj[0]-vi[0])*(point[2]-vi[2])/(vj[2]-vi[2])+vi[0] {
			continue
		}
		inPoly = !inPoly
	}
	return inPoly
}

// / Triangle slope test used to classify walkable surfaces.
// / @return The y component of the normalized triangle normal.
func TriNormalY(v0, v1, v2 Vec3) float32 {
	n := v1.Sub(v0).Cross(v2.Sub(v0))
	l := n.Len()
	if l == 0 {
		return 0
	}
	return n[1] / l
}

// ComputeTileHash maps a tile coordinate to a bucket of the position lookup.
func ComputeTileHash(x, y, mask int32) int32 {
	h1 := uint32(0x8da6b343) // Large multiplicative constants;
	h2 := uint32(0xd8163841) // here arbitrarily chosen primes
	n := h1*uint32(x) + h2*uint32(y)
	return int32(n & uint32(mask))
}
