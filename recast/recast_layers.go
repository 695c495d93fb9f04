package recast

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gorustyt/navbake/common"
)

const (
	DT_TILECACHE_MAGIC       = 'D'<<24 | 'T'<<16 | 'L'<<8 | 'R' ///< 'DTLR';
	DT_TILECACHE_VERSION     = 1
	DT_TILECACHE_NULL_HEIGHT = 0xffff
	rcMaxLayerHeightRange    = 0xff
)

var ErrTooManyLayers = errors.New("recast: too many layers")

// DtTileCacheLayerHeader describes one walkable slab of a tile.
type DtTileCacheLayerHeader struct {
	TX, TY, TLayer int32
	Bounds         common.Box // xz of the tile, y of the walkable range
	Ybase          float32    // world y of height 0
	Cs, Ch         float32
	Width, Height  int32
	HMin, HMax     uint16
}

// DtTileCacheLayer is a 2D grid with at most one walkable cell per column.
type DtTileCacheLayer struct {
	Header  DtTileCacheLayerHeader
	Heights []uint16 // DT_TILECACHE_NULL_HEIGHT where empty
	Areas   []uint8
	Cons    []uint8 // bit d set when the neighbour in direction d is in this layer
}

// WalkableCells counts cells with a non-null area.
func (l *DtTileCacheLayer) WalkableCells() (n int) {
	for i, h := range l.Heights {
		if h != DT_TILECACHE_NULL_HEIGHT && l.Areas[i] != RC_NULL_AREA {
			n++
		}
	}
	return n
}

type layerRegion struct {
	ymin, ymax int
	spans      []int
}

type layerAcc struct {
	ymin, ymax int
	cols       []bool
	regions    []int
}

func overlapRange(amin, amax, bmin, bmax int) bool {
	return amin <= bmax && amax >= bmin
}

// RcBuildHeightfieldLayers splits the compact heightfield into layers. Spans
// are flood filled into regions that never hold two spans of one column;
// regions that share no column and sit at similar heights are merged. The
// border is cut away so each layer covers exactly the tile.
func RcBuildHeightfieldLayers(chf *RcCompactHeightfield, cfg RcConfig) ([]*DtTileCacheLayer, error) {
	w, h := chf.Width, chf.Height
	n := len(chf.Spans)
	spanX := make([]int, n)
	spanZ := make([]int, n)
	srcReg := make([]int, n)
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			c := chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index+c.Count); i++ {
				spanX[i], spanZ[i], srcReg[i] = x, z, -1
			}
		}
	}

	colStamp := make([]int, w*h)
	for i := range colStamp {
		colStamp[i] = -1
	}
	var regions []layerRegion
	var stack []int
	for i := 0; i < n; i++ {
		if chf.Areas[i] == RC_NULL_AREA || srcReg[i] >= 0 {
			continue
		}
		r := len(regions)
		reg := layerRegion{ymin: int(chf.Spans[i].Y), ymax: int(chf.Spans[i].Y)}
		srcReg[i] = r
		colStamp[spanX[i]+spanZ[i]*w] = r
		stack = append(stack[:0], i)
		for len(stack) > 0 {
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			reg.spans = append(reg.spans, j)
			y := int(chf.Spans[j].Y)
			reg.ymin, reg.ymax = min(reg.ymin, y), max(reg.ymax, y)
			for dir := 0; dir < 4; dir++ {
				nj := chf.neighbour(spanX[j], spanZ[j], &chf.Spans[j], dir)
				if nj < 0 || chf.Areas[nj] == RC_NULL_AREA || srcReg[nj] >= 0 {
					continue
				}
				col := spanX[nj] + spanZ[nj]*w
				if colStamp[col] == r {
					continue
				}
				srcReg[nj] = r
				colStamp[col] = r
				stack = append(stack, nj)
			}
		}
		regions = append(regions, reg)
	}

	// Merge regions bottom up.
	order := make([]int, len(regions))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return regions[order[a]].ymin < regions[order[b]].ymin })

	var accs []*layerAcc
	for _, ri := range order {
		reg := &regions[ri]
		var target *layerAcc
		for _, acc := range accs {
			if !overlapRange(acc.ymin, acc.ymax+chf.WalkableHeight, reg.ymin, reg.ymax+chf.WalkableHeight) {
				continue
			}
			if max(acc.ymax, reg.ymax)-min(acc.ymin, reg.ymin) >= rcMaxLayerHeightRange {
				continue
			}
			shared := false
			for _, s := range reg.spans {
				if acc.cols[spanX[s]+spanZ[s]*w] {
					shared = true
					break
				}
			}
			if !shared {
				target = acc
				break
			}
		}
		if target == nil {
			target = &layerAcc{ymin: reg.ymin, ymax: reg.ymax, cols: make([]bool, w*h)}
			accs = append(accs, target)
		}
		target.ymin, target.ymax = min(target.ymin, reg.ymin), max(target.ymax, reg.ymax)
		target.regions = append(target.regions, ri)
		for _, s := range reg.spans {
			target.cols[spanX[s]+spanZ[s]*w] = true
		}
	}

	// Cut the border and rasterize each layer into its own grid.
	border := cfg.BorderSize
	tw, th := w-2*border, h-2*border
	if tw <= 0 || th <= 0 {
		return nil, nil
	}
	spanLayer := make([]int, n)
	for i := range spanLayer {
		spanLayer[i] = -1
	}
	var layers []*DtTileCacheLayer
	for _, acc := range accs {
		layer := &DtTileCacheLayer{
			Heights: make([]uint16, tw*th),
			Areas:   make([]uint8, tw*th),
			Cons:    make([]uint8, tw*th),
		}
		for i := range layer.Heights {
			layer.Heights[i] = DT_TILECACHE_NULL_HEIGHT
		}
		li := len(layers)
		hmin, hmax, cells := 0xffff, 0, 0
		for _, ri := range acc.regions {
			for _, s := range regions[ri].spans {
				lx, lz := spanX[s]-border, spanZ[s]-border
				if lx < 0 || lz < 0 || lx >= tw || lz >= th {
					continue
				}
				y := int(chf.Spans[s].Y)
				layer.Heights[lx+lz*tw] = uint16(y)
				layer.Areas[lx+lz*tw] = chf.Areas[s]
				spanLayer[s] = li
				hmin, hmax = min(hmin, y), max(hmax, y)
				cells++
			}
		}
		if cells == 0 {
			continue
		}
		layer.Header = DtTileCacheLayerHeader{
			TX:     cfg.TileX,
			TY:     cfg.TileY,
			Ybase:  chf.Bmin[1],
			Cs:     chf.Cs,
			Ch:     chf.Ch,
			Width:  int32(tw),
			Height: int32(th),
			HMin:   uint16(hmin),
			HMax:   uint16(hmax),
		}
		layer.Header.Bounds = common.Box{
			Min: common.Vec3{cfg.TileBounds.Min[0], chf.Bmin[1] + float32(hmin)*chf.Ch, cfg.TileBounds.Min[2]},
			Max: common.Vec3{cfg.TileBounds.Max[0], chf.Bmin[1] + float32(hmax)*chf.Ch, cfg.TileBounds.Max[2]},
		}
		layers = append(layers, layer)
	}

	// Connections inside each layer.
	for s := 0; s < n; s++ {
		li := spanLayer[s]
		if li < 0 {
			continue
		}
		lx, lz := spanX[s]-border, spanZ[s]-border
		var con uint8
		for dir := 0; dir < 4; dir++ {
			ns := chf.neighbour(spanX[s], spanZ[s], &chf.Spans[s], dir)
			if ns >= 0 && spanLayer[ns] == li {
				con |= 1 << dir
			}
		}
		layers[li].Cons[lx+lz*tw] = con
	}

	if len(layers) > cfg.MaxLayers {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyLayers, len(layers), cfg.MaxLayers)
	}
	sort.SliceStable(layers, func(a, b int) bool { return layers[a].Header.HMin < layers[b].Header.HMin })
	for i, l := range layers {
		l.Header.TLayer = int32(i)
	}
	return layers, nil
}
