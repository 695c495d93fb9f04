package recast

import (
	"github.com/gorustyt/navbake/common"
)

const (
	/// The number of spans allocated per span spool.
	RC_SPANS_PER_POOL = 2048
	/// Defines the number of bits allocated to RcSpan::smin and RcSpan::smax.
	RC_SPAN_HEIGHT_BITS = 13
	/// Defines the maximum value for RcSpan::smin and RcSpan::smax.
	RC_SPAN_MAX_HEIGHT = (1 << RC_SPAN_HEIGHT_BITS) - 1
	/// Represents the null area.
	RC_NULL_AREA = 0
	/// The default area id used to indicate a walkable polygon.
	RC_WALKABLE_AREA = 63
)

// RcSpan is a solid run of voxels in one column.
type RcSpan struct {
	Smin uint16  ///< The lower limit of the span. [Limit: < #smax]
	Smax uint16  ///< The upper limit of the span. [Limit: <= #RC_SPAN_MAX_HEIGHT]
	Area uint8   ///< The area id assigned to the span.
	Next *RcSpan ///< The next span higher up in column.
}

// RcHeightfield is a dynamic heightfield representing obstructed space.
type RcHeightfield struct {
	Width  int         ///< The width of the heightfield. (Along the x-axis in cell units.)
	Height int         ///< The height of the heightfield. (Along the z-axis in cell units.)
	Bmin   common.Vec3 ///< The minimum bounds in world space.
	Bmax   common.Vec3 ///< The maximum bounds in world space.
	Cs     float32     ///< The size of each cell. (On the xz-plane.)
	Ch     float32     ///< The height of each cell. (The minimum increment along the y-axis.)
	Spans  []*RcSpan   ///< Heightfield of spans (width*height).

	pools    [][]RcSpan
	freelist *RcSpan
}

func NewRcHeightfield(width, height int, bounds common.Box, cs, ch float32) *RcHeightfield {
	return &RcHeightfield{
		Width:  width,
		Height: height,
		Bmin:   bounds.Min,
		Bmax:   bounds.Max,
		Cs:     cs,
		Ch:     ch,
		Spans:  make([]*RcSpan, width*height),
	}
}

// SpanCount counts every span in the heightfield.
func (hf *RcHeightfield) SpanCount() (n int) {
	for _, s := range hf.Spans {
		for ; s != nil; s = s.Next {
			n++
		}
	}
	return n
}

// WalkableSpanCount counts spans with a non-null area.
func (hf *RcHeightfield) WalkableSpanCount() (n int) {
	for _, s := range hf.Spans {
		for ; s != nil; s = s.Next {
			if s.Area != RC_NULL_AREA {
				n++
			}
		}
	}
	return n
}

// / Allocates a new span in the heightfield.
// / Use a memory pool and free list to minimize actual allocations.
func (hf *RcHeightfield) allocSpan() *RcSpan {
	if hf.freelist == nil {
		pool := make([]RcSpan, RC_SPANS_PER_POOL)
		hf.pools = append(hf.pools, pool)
		for i := range pool {
			pool[i].Next = hf.freelist
			hf.freelist = &pool[i]
		}
	}
	s := hf.freelist
	hf.freelist = s.Next
	return s
}

// / Releases the memory used by the span back to the heightfield, so it can be re-used for new spans.
func (hf *RcHeightfield) freeSpan(span *RcSpan) {
	if span == nil {
		return
	}
	span.Next = hf.freelist
	hf.freelist = span
}

// / Adds a span to the heightfield.  If the new span overlaps existing spans,
// / it will merge the new span with the existing ones.
// /
// / @param[in]	x					The new span's column cell x index
// / @param[in]	z					The new span's column cell z index
// / @param[in]	flagMergeThreshold	How close two spans maximum extents need to be to merge area type IDs
func (hf *RcHeightfield) addSpan(x, z int, minValue, maxValue uint16, areaID uint8, flagMergeThreshold int) {
	newSpan := hf.allocSpan()
	newSpan.Smin = minValue
	newSpan.Smax = maxValue
	newSpan.Area = areaID
	newSpan.Next = nil

	columnIndex := x + z*hf.Width
	var previousSpan *RcSpan
	currentSpan := hf.Spans[columnIndex]

	// Insert the new span, possibly merging it with existing spans.
	for currentSpan != nil {
		if currentSpan.Smin > newSpan.Smax {
			// Current span is completely after the new span, break.
			break
		}

		if currentSpan.Smax < newSpan.Smin {
			// Current span is completely before the new span.  Keep going.
			previousSpan = currentSpan
			currentSpan = currentSpan.Next
			continue
		}

		// The new span overlaps with an existing span.  Merge them.
		if currentSpan.Smin < newSpan.Smin {
			newSpan.Smin = currentSpan.Smin
		}
		if currentSpan.Smax > newSpan.Smax {
			newSpan.Smax = currentSpan.Smax
		}

		// Merge flags.
		if common.Abs(int(newSpan.Smax)-int(currentSpan.Smax)) <= flagMergeThreshold {
			// Higher area ID numbers indicate higher resolution priority.
			newSpan.Area = max(newSpan.Area, currentSpan.Area)
		}

		// Remove the current span since it's now merged with newSpan.
		next := currentSpan.Next
		hf.freeSpan(currentSpan)
		if previousSpan != nil {
			previousSpan.Next = next
		} else {
			hf.Spans[columnIndex] = next
		}
		currentSpan = next
	}

	if previousSpan != nil {
		newSpan.Next = previousSpan.Next
		previousSpan.Next = newSpan
	} else {
		newSpan.Next = hf.Spans[columnIndex]
		hf.Spans[columnIndex] = newSpan
	}
}
