package recast

import (
	"math"

	"github.com/gorustyt/navbake/common"
	"github.com/gorustyt/navbake/geom"
)

type rcAxis int

const (
	RC_AXIS_X rcAxis = 0
	RC_AXIS_Y rcAxis = 1
	RC_AXIS_Z rcAxis = 2
)

// / Divides a convex polygon of max 12 vertices into two convex polygons
// / across a separating axis.
// /
// / @param[in]	inVerts			The input polygon vertices
// / @param[out]	outVerts1		Resulting polygon 1's vertices (the side below axisOffset)
// / @param[out]	outVerts2		Resulting polygon 2's vertices
// / @param[in]	axisOffset		THe offset along the specified axis
// / @param[in]	axis			The separating axis
func dividePoly(inVerts []float32, inVertsCount int,
	outVerts1 []float32, outVerts2 []float32,
	axisOffset float32, axis rcAxis) (poly1Vert, poly2Vert int) {
	common.AssertTrue(inVertsCount <= 12)

	// How far positive or negative away from the separating axis is each vertex.
	var inVertAxisDelta [12]float32
	for inVert := 0; inVert < inVertsCount; inVert++ {
		inVertAxisDelta[inVert] = axisOffset - inVerts[inVert*3+int(axis)]
	}

	for inVertA, inVertB := 0, inVertsCount-1; inVertA < inVertsCount; inVertB, inVertA = inVertA, inVertA+1 {
		// If the two vertices are on the same side of the separating axis
		sameSide := (inVertAxisDelta[inVertA] >= 0) == (inVertAxisDelta[inVertB] >= 0)

		if !sameSide {
			s := inVertAxisDelta[inVertB] / (inVertAxisDelta[inVertB] - inVertAxisDelta[inVertA])
			for k := 0; k < 3; k++ {
				outVerts1[poly1Vert*3+k] = inVerts[inVertB*3+k] + (inVerts[inVertA*3+k]-inVerts[inVertB*3+k])*s
			}
			copy(common.GetVert3(outVerts2, poly2Vert), common.GetVert3(outVerts1, poly1Vert))
			poly1Vert++
			poly2Vert++

			// add the inVertA point to the right polygon. Do NOT add points that are on the dividing line
			// since these were already added above
			if inVertAxisDelta[inVertA] > 0 {
				copy(common.GetVert3(outVerts1, poly1Vert), common.GetVert3(inVerts, inVertA))
				poly1Vert++
			} else if inVertAxisDelta[inVertA] < 0 {
				copy(common.GetVert3(outVerts2, poly2Vert), common.GetVert3(inVerts, inVertA))
				poly2Vert++
			}
			continue
		}

		// add the inVertA point to the right polygon. Addition is done even for points on the dividing line
		if inVertAxisDelta[inVertA] >= 0 {
			copy(common.GetVert3(outVerts1, poly1Vert), common.GetVert3(inVerts, inVertA))
			poly1Vert++
			if inVertAxisDelta[inVertA] != 0 {
				continue
			}
		}
		copy(common.GetVert3(outVerts2, poly2Vert), common.GetVert3(inVerts, inVertA))
		poly2Vert++
	}
	return poly1Vert, poly2Vert
}

// /	Rasterize a single triangle to the heightfield.
// /
// /	This code is extremely hot, so much care should be given to maintaining maximum perf here.
func rasterizeTri(v0, v1, v2 common.Vec3, areaID uint8, hf *RcHeightfield,
	inverseCellSize, inverseCellHeight float32, flagMergeThreshold int) {
	tri := common.Box{Min: v0, Max: v0}.AddPoint(v1).AddPoint(v2)
	bounds := common.Box{Min: hf.Bmin, Max: hf.Bmax}

	// If the triangle does not touch the bounding box of the heightfield, skip the triangle.
	if !tri.Intersects(bounds) {
		return
	}

	w := hf.Width
	h := hf.Height
	by := hf.Bmax[1] - hf.Bmin[1]

	// Calculate the footprint of the triangle on the grid's z-axis
	z0 := int((tri.Min[2] - hf.Bmin[2]) * inverseCellSize)
	z1 := int((tri.Max[2] - hf.Bmin[2]) * inverseCellSize)

	// use -1 rather than 0 to cut the polygon properly at the start of the tile
	z0 = common.Clamp(z0, -1, h-1)
	z1 = common.Clamp(z1, 0, h-1)

	// Clip the triangle into all grid cells it touches.
	var buf [7 * 3 * 4]float32
	in := buf[0 : 7*3]
	inRow := buf[7*3 : 14*3]
	p1 := buf[14*3 : 21*3]
	p2 := buf[21*3 : 28*3]

	copy(in[0:], v0[:])
	copy(in[3:], v1[:])
	copy(in[6:], v2[:])
	nvIn := 3
	var nvRow int

	for z := z0; z <= z1; z++ {
		// Clip polygon to row. Store the remaining polygon as well
		cellZ := hf.Bmin[2] + float32(z)*hf.Cs
		nvRow, nvIn = dividePoly(in, nvIn, inRow, p1, cellZ+hf.Cs, RC_AXIS_Z)
		in, p1 = p1, in

		if nvRow < 3 || z < 0 {
			continue
		}

		// find X-axis bounds of the row
		minX, maxX := inRow[0], inRow[0]
		for vert := 1; vert < nvRow; vert++ {
			minX = min(minX, inRow[vert*3])
			maxX = max(maxX, inRow[vert*3])
		}
		x0 := int((minX - hf.Bmin[0]) * inverseCellSize)
		x1 := int((maxX - hf.Bmin[0]) * inverseCellSize)
		if x1 < 0 || x0 >= w {
			continue
		}
		x0 = common.Clamp(x0, -1, w-1)
		x1 = common.Clamp(x1, 0, w-1)

		var nv int
		nv2 := nvRow
		for x := x0; x <= x1; x++ {
			// Clip polygon to column. store the remaining polygon as well
			cx := hf.Bmin[0] + float32(x)*hf.Cs
			nv, nv2 = dividePoly(inRow, nv2, p1, p2, cx+hf.Cs, RC_AXIS_X)
			inRow, p2 = p2, inRow

			if nv < 3 || x < 0 {
				continue
			}

			// Calculate min and max of the span.
			spanMin, spanMax := p1[1], p1[1]
			for vert := 1; vert < nv; vert++ {
				spanMin = min(spanMin, p1[vert*3+1])
				spanMax = max(spanMax, p1[vert*3+1])
			}
			spanMin -= hf.Bmin[1]
			spanMax -= hf.Bmin[1]

			// Skip the span if it's completely outside the heightfield bounding box
			if spanMax < 0 || spanMin > by {
				continue
			}

			// Clamp the span to the heightfield bounding box.
			spanMin = max(spanMin, 0)
			spanMax = min(spanMax, by)

			// Snap the span to the heightfield height grid.
			smin := common.Clamp(int(math.Floor(float64(spanMin*inverseCellHeight))), 0, RC_SPAN_MAX_HEIGHT)
			smax := common.Clamp(int(math.Ceil(float64(spanMax*inverseCellHeight))), smin+1, RC_SPAN_MAX_HEIGHT)

			hf.addSpan(x, z, uint16(smin), uint16(smax), areaID, flagMergeThreshold)
		}
	}
}

// RcMarkWalkableTriangle returns the area id for a triangle given the
// maximum walkable slope in degrees.
func RcMarkWalkableTriangle(walkableSlopeAngle float32, tri geom.Triangle) uint8 {
	walkableThr := float32(math.Cos(float64(walkableSlopeAngle) / 180.0 * math.Pi))
	if common.TriNormalY(tri[0], tri[1], tri[2]) > walkableThr {
		return RC_WALKABLE_AREA
	}
	return RC_NULL_AREA
}

// RcRasterizeTriangles rasterizes the triangles into the heightfield,
// classifying each by slope.
func RcRasterizeTriangles(tris []geom.Triangle, walkableSlopeAngle float32, hf *RcHeightfield, flagMergeThreshold int) {
	inverseCellSize := 1.0 / hf.Cs
	inverseCellHeight := 1.0 / hf.Ch
	for _, tri := range tris {
		area := RcMarkWalkableTriangle(walkableSlopeAngle, tri)
		rasterizeTri(tri[0], tri[1], tri[2], area, hf, inverseCellSize, inverseCellHeight, flagMergeThreshold)
	}
}

// RcRasterizeSpans adds pre-voxelized spans. Spans outside the heightfield
// are ignored.
func RcRasterizeSpans(spans []geom.VoxelSpan, hf *RcHeightfield, flagMergeThreshold int) {
	for _, s := range spans {
		x := int(math.Floor(float64((s.X - hf.Bmin[0]) / hf.Cs)))
		z := int(math.Floor(float64((s.Z - hf.Bmin[2]) / hf.Cs)))
		if x < 0 || z < 0 || x >= hf.Width || z >= hf.Height {
			continue
		}
		lo := s.MinY - hf.Bmin[1]
		hi := s.MaxY - hf.Bmin[1]
		if hi < 0 || lo > hf.Bmax[1]-hf.Bmin[1] {
			continue
		}
		smin := common.Clamp(int(math.Floor(float64(max(lo, 0)/hf.Ch))), 0, RC_SPAN_MAX_HEIGHT)
		smax := common.Clamp(int(math.Ceil(float64(hi/hf.Ch))), smin+1, RC_SPAN_MAX_HEIGHT)
		hf.addSpan(x, z, uint16(smin), uint16(smax), s.Area, flagMergeThreshold)
	}
}
