package recast

import (
	"github.com/gorustyt/navbake/common"
)

const (
	RC_NOT_CONNECTED = 0x3f
	rcMaxCompactSpanH = 0xff
)

type RcCompactCell struct {
	Index int32 ///< Index to the first span in the column.
	Count int32 ///< Number of spans in the column.
}

// / Represents a span of unobstructed space within a compact heightfield.
type RcCompactSpan struct {
	Y   uint16 ///< The lower extent of the span. (Measured from the heightfield's base.)
	H   uint8  ///< The height of the span.  (Measured from #y.)
	Con uint32 ///< Packed neighbor connection data.
}

func rcGetCon(span *RcCompactSpan, direction int) int {
	shift := uint(direction * 6)
	return int((span.Con >> shift) & 0x3f)
}

func rcSetCon(span *RcCompactSpan, direction int, i int) {
	shift := uint(direction * 6)
	span.Con = (span.Con &^ (0x3f << shift)) | (uint32(i&0x3f) << shift)
}

// RcCompactHeightfield is a compact, static heightfield representing
// unobstructed space.
type RcCompactHeightfield struct {
	Width          int
	Height         int
	WalkableHeight int
	WalkableClimb  int
	BorderSize     int
	Bmin           common.Vec3
	Bmax           common.Vec3
	Cs             float32
	Ch             float32
	Cells          []RcCompactCell
	Spans          []RcCompactSpan
	Areas          []uint8
}

func (chf *RcCompactHeightfield) SpanCount() int { return len(chf.Spans) }

// neighbour returns the span index connected in direction, or -1.
func (chf *RcCompactHeightfield) neighbour(x, z int, span *RcCompactSpan, direction int) int {
	con := rcGetCon(span, direction)
	if con == RC_NOT_CONNECTED {
		return -1
	}
	nx := x + common.GetDirOffsetX(direction)
	nz := z + common.GetDirOffsetZ(direction)
	return int(chf.Cells[nx+nz*chf.Width].Index) + con
}

// RcBuildCompactHeightfield converts the walkable spans of hf into open
// spans and links every pair of neighbours an agent can step between.
func RcBuildCompactHeightfield(walkableHeight, walkableClimb int, hf *RcHeightfield) *RcCompactHeightfield {
	xSize, zSize := hf.Width, hf.Height
	spanCount := hf.WalkableSpanCount()
	chf := &RcCompactHeightfield{
		Width:          xSize,
		Height:         zSize,
		WalkableHeight: walkableHeight,
		WalkableClimb:  walkableClimb,
		Bmin:           hf.Bmin,
		Bmax:           hf.Bmax,
		Cs:             hf.Cs,
		Ch:             hf.Ch,
		Cells:          make([]RcCompactCell, xSize*zSize),
		Spans:          make([]RcCompactSpan, 0, spanCount),
		Areas:          make([]uint8, 0, spanCount),
	}
	chf.Bmax[1] += float32(walkableHeight) * hf.Ch

	// Fill in cells and spans.
	for z := 0; z < zSize; z++ {
		for x := 0; x < xSize; x++ {
			cell := &chf.Cells[x+z*xSize]
			cell.Index = int32(len(chf.Spans))
			for s := hf.Spans[x+z*xSize]; s != nil; s = s.Next {
				if s.Area == RC_NULL_AREA {
					continue
				}
				bot := int(s.Smax)
				top := rcFilterMaxHeight
				if s.Next != nil {
					top = int(s.Next.Smin)
				}
				chf.Spans = append(chf.Spans, RcCompactSpan{
					Y:   uint16(common.Clamp(bot, 0, 0xffff)),
					H:   uint8(common.Clamp(top-bot, 0, rcMaxCompactSpanH)),
					Con: 0xffffff,
				})
				chf.Areas = append(chf.Areas, s.Area)
				cell.Count++
			}
		}
	}

	// Find neighbour connections.
	for z := 0; z < zSize; z++ {
		for x := 0; x < xSize; x++ {
			cell := chf.Cells[x+z*xSize]
			for i := cell.Index; i < cell.Index+cell.Count; i++ {
				s := &chf.Spans[i]
				for dir := 0; dir < 4; dir++ {
					rcSetCon(s, dir, RC_NOT_CONNECTED)
					nx := x + common.GetDirOffsetX(dir)
					nz := z + common.GetDirOffsetZ(dir)
					// First check that the neighbour cell is in bounds.
					if nx < 0 || nz < 0 || nx >= xSize || nz >= zSize {
						continue
					}
					nc := chf.Cells[nx+nz*xSize]
					for k := nc.Index; k < nc.Index+nc.Count; k++ {
						ns := &chf.Spans[k]
						bot := max(int(s.Y), int(ns.Y))
						top := min(int(s.Y)+int(s.H), int(ns.Y)+int(ns.H))

						// Check that the gap between the spans is walkable,
						// and that the climb height between the gaps is not too high.
						if top-bot >= walkableHeight && common.Abs(int(ns.Y)-int(s.Y)) <= walkableClimb {
							lidx := int(k - nc.Index)
							if lidx < 0 || lidx >= RC_NOT_CONNECTED {
								// too many layers in one column to encode
								continue
							}
							rcSetCon(s, dir, lidx)
							break
						}
					}
				}
			}
		}
	}
	return chf
}

// RcErodeWalkableArea nulls every span closer than radius cells to a
// boundary. Distances use 2 per straight step, so the threshold is radius*2.
func RcErodeWalkableArea(radius int, chf *RcCompactHeightfield) {
	if radius <= 0 {
		return
	}
	n := len(chf.Spans)
	const unvisited = 0xffff
	dist := make([]int, n)
	xs := make([]int, n)
	zs := make([]int, n)
	queue := make([]int, 0, n)

	// Mark boundary spans.
	for z := 0; z < chf.Height; z++ {
		for x := 0; x < chf.Width; x++ {
			cell := chf.Cells[x+z*chf.Width]
			for i := int(cell.Index); i < int(cell.Index+cell.Count); i++ {
				xs[i], zs[i] = x, z
				dist[i] = unvisited
				if chf.Areas[i] == RC_NULL_AREA {
					dist[i] = 0
					queue = append(queue, i)
					continue
				}
				s := &chf.Spans[i]
				neighbours := 0
				for dir := 0; dir < 4; dir++ {
					ni := chf.neighbour(x, z, s, dir)
					if ni >= 0 && chf.Areas[ni] != RC_NULL_AREA {
						neighbours++
					}
				}
				if neighbours != 4 {
					dist[i] = 0
					queue = append(queue, i)
				}
			}
		}
	}

	// Breadth first spread of the boundary distance.
	for head := 0; head < len(queue); head++ {
		i := queue[head]
		s := &chf.Spans[i]
		for dir := 0; dir < 4; dir++ {
			ni := chf.neighbour(xs[i], zs[i], s, dir)
			if ni < 0 || dist[ni] != unvisited {
				continue
			}
			dist[ni] = dist[i] + 2
			queue = append(queue, ni)
		}
	}

	thr := radius * 2
	for i := range chf.Areas {
		if dist[i] < thr {
			chf.Areas[i] = RC_NULL_AREA
		}
	}
}
