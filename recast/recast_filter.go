package recast

import "github.com/gorustyt/navbake/common"

const rcFilterMaxHeight = 0xffff

// RcFilterLowHangingWalkableObstacles marks non-walkable spans as walkable
// if their maximum is within walkableClimb of a walkable neighbour below.
func RcFilterLowHangingWalkableObstacles(walkableClimb int, heightfield *RcHeightfield) {
	xSize := heightfield.Width
	zSize := heightfield.Height

	for z := 0; z < zSize; z++ {
		for x := 0; x < xSize; x++ {
			var previousSpan *RcSpan
			previousWasWalkable := false
			previousArea := uint8(RC_NULL_AREA)

			for span := heightfield.Spans[x+z*xSize]; span != nil; span = span.Next {
				walkable := span.Area != RC_NULL_AREA
				// If current span is not walkable, but there is walkable
				// span just below it, mark the span above it walkable too.
				if !walkable && previousWasWalkable {
					if common.Abs(int(span.Smax)-int(previousSpan.Smax)) <= walkableClimb {
						span.Area = previousArea
					}
				}
				// Copy walkable flag so that it cannot propagate
				// past multiple non-walkable objects.
				previousWasWalkable = walkable
				previousArea = span.Area
				previousSpan = span
			}
		}
	}
}

// RcFilterLedgeSpans removes walkable spans next to a drop deeper than
// walkableClimb, and spans on slopes too steep between neighbours.
func RcFilterLedgeSpans(walkableHeight int, walkableClimb int, heightfield *RcHeightfield) {
	xSize := heightfield.Width
	zSize := heightfield.Height

	for z := 0; z < zSize; z++ {
		for x := 0; x < xSize; x++ {
			for span := heightfield.Spans[x+z*xSize]; span != nil; span = span.Next {
				// Skip non walkable spans.
				if span.Area == RC_NULL_AREA {
					continue
				}

				bot := int(span.Smax)
				top := rcFilterMaxHeight
				if span.Next != nil {
					top = int(span.Next.Smin)
				}
				// Find neighbours minimum height.
				minNeighborHeight := rcFilterMaxHeight

				// Min and max height of accessible neighbours.
				accessibleNeighborMinHeight := bot
				accessibleNeighborMaxHeight := bot

				for direction := 0; direction < 4; direction++ {
					dx := x + common.GetDirOffsetX(direction)
					dz := z + common.GetDirOffsetZ(direction)
					// Skip neighbours which are out of bounds.
					if dx < 0 || dz < 0 || dx >= xSize || dz >= zSize {
						minNeighborHeight = min(minNeighborHeight, -walkableClimb-bot)
						continue
					}

					// From minus infinity to the first span.
					neighborSpan := heightfield.Spans[dx+dz*xSize]
					neighborBot := -walkableClimb
					neighborTop := rcFilterMaxHeight
					if neighborSpan != nil {
						neighborTop = int(neighborSpan.Smin)
					}
					// Skip neighbour if the gap between the spans is too small.
					if min(top, neighborTop)-max(bot, neighborBot) > walkableHeight {
						minNeighborHeight = min(minNeighborHeight, neighborBot-bot)
					}

					// Rest of the spans.
					for ; neighborSpan != nil; neighborSpan = neighborSpan.Next {
						neighborBot = int(neighborSpan.Smax)
						neighborTop = rcFilterMaxHeight
						if neighborSpan.Next != nil {
							neighborTop = int(neighborSpan.Next.Smin)
						}

						// Skip neighbour if the gap between the spans is too small.
						if min(top, neighborTop)-max(bot, neighborBot) > walkableHeight {
							minNeighborHeight = min(minNeighborHeight, neighborBot-bot)

							// Find min/max accessible neighbour height.
							if common.Abs(neighborBot-bot) <= walkableClimb {
								accessibleNeighborMinHeight = min(accessibleNeighborMinHeight, neighborBot)
								accessibleNeighborMaxHeight = max(accessibleNeighborMaxHeight, neighborBot)
							}
						}
					}
				}

				// The current span is close to a ledge if the drop to any
				// neighbour span is less than the walkableClimb.
				if minNeighborHeight < -walkableClimb {
					span.Area = RC_NULL_AREA
				} else if accessibleNeighborMaxHeight-accessibleNeighborMinHeight > walkableClimb {
					// If the difference between all neighbours is too large,
					// we are at steep slope, mark the span as ledge.
					span.Area = RC_NULL_AREA
				}
			}
		}
	}
}

// RcFilterWalkableLowHeightSpans removes the walkable flag from spans which
// do not have enough space above them for the agent to stand there.
func RcFilterWalkableLowHeightSpans(walkableHeight int, heightfield *RcHeightfield) {
	xSize := heightfield.Width
	zSize := heightfield.Height
	for z := 0; z < zSize; z++ {
		for x := 0; x < xSize; x++ {
			for span := heightfield.Spans[x+z*xSize]; span != nil; span = span.Next {
				bot := int(span.Smax)
				top := rcFilterMaxHeight
				if span.Next != nil {
					top = int(span.Next.Smin)
				}
				if top-bot < walkableHeight {
					span.Area = RC_NULL_AREA
				}
			}
		}
	}
}

// RcFilterInclusionBounds nulls every span whose column center lies outside
// all of the given xz boxes, each grown by expand world units.
func RcFilterInclusionBounds(bounds []common.Box, expand float32, heightfield *RcHeightfield) {
	if len(bounds) == 0 {
		return
	}
	grown := make([]common.Box, len(bounds))
	for i, b := range bounds {
		grown[i] = b.ExpandXYZ(expand, 0, expand)
	}
	for z := 0; z < heightfield.Height; z++ {
		for x := 0; x < heightfield.Width; x++ {
			center := common.Vec3{
				heightfield.Bmin[0] + (float32(x)+0.5)*heightfield.Cs,
				0,
				heightfield.Bmin[2] + (float32(z)+0.5)*heightfield.Cs,
			}
			inside := false
			for _, b := range grown {
				if b.Contains2D(center) {
					inside = true
					break
				}
			}
			if inside {
				continue
			}
			for span := heightfield.Spans[x+z*heightfield.Width]; span != nil; span = span.Next {
				span.Area = RC_NULL_AREA
			}
		}
	}
}
