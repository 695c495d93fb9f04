package detour_tile_cache

import (
	"math"
	"sort"

	"github.com/gorustyt/navbake/common"
)

// sortByPriority orders tile ids closest-first to the nearest seed, or in
// grid order when there are no seeds. Ties keep grid order.
func sortByPriority(ids []int, tiles []*TileUnit, seeds []common.Vec3) {
	if len(seeds) == 0 {
		sort.Ints(ids)
		return
	}
	keys := make(map[int]float32, len(ids))
	for _, id := range ids {
		keys[id] = seedDistance(tiles[id].Bounds.Center(), seeds)
	}
	sort.SliceStable(ids, func(i, j int) bool {
		ki, kj := keys[ids[i]], keys[ids[j]]
		if ki != kj {
			return ki < kj
		}
		return ids[i] < ids[j]
	})
}

func seedDistance(center common.Vec3, seeds []common.Vec3) float32 {
	best := float32(math.MaxFloat32)
	for _, s := range seeds {
		best = min(best, common.Vdist2D(center, s))
	}
	return best
}
