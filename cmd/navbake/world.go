package main

import (
	"math"
	"math/rand"
	"sync"

	"github.com/gorustyt/navbake/common"
	"github.com/gorustyt/navbake/geom"
)

const crowdArea = 5

// syncWorld guards a geom.World so the scheduler can query it from the Run
// goroutine while movers edit it.
type syncWorld struct {
	mu sync.RWMutex
	w  *geom.World
}

func (s *syncWorld) Query(box common.Box) geom.QueryResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.w.Query(box)
}

func (s *syncWorld) edit(fn func(w *geom.World) geom.DirtyArea) geom.DirtyArea {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.w)
}

type demoWorld struct {
	*syncWorld
	bounds  common.Box
	rng     *rand.Rand
	movers  []geom.ModifierID
	placing []common.Vec3
}

// newDemoWorld builds rolling terrain over bounds, a bridge across its
// middle, and a few dynamic crowd cylinders standing on the terrain.
func newDemoWorld(bounds common.Box, seed int64, crowds int) *demoWorld {
	w := geom.NewWorld(16)
	size := bounds.Size()
	terrain := func(x, z float32) float32 {
		return 1.5*float32(math.Sin(float64(x)*0.05)) + float32(math.Cos(float64(z)*0.07))
	}
	step := float32(2)
	cells := int(max(size[0], size[2]) / step)
	w.AddMesh(geom.Heightmap(common.Vec3{bounds.Min[0], 0, bounds.Min[2]}, cells, step, terrain))

	midZ := bounds.Min[2] + size[2]/2
	deck := common.NewBox(
		common.Vec3{bounds.Min[0] + size[0]*0.25, 6, midZ - 3},
		common.Vec3{bounds.Min[0] + size[0]*0.75, 6.5, midZ + 3},
	)
	w.AddMesh(geom.BoxMesh(deck))
	w.AddOffMeshLink(geom.OffMeshLink{
		Start:         common.Vec3{deck.Min[0] - 2, terrain(deck.Min[0]-2, midZ), midZ},
		End:           common.Vec3{deck.Min[0] + 1, deck.Max[1], midZ},
		Radius:        0.6,
		Bidirectional: true,
		Area:          crowdArea,
	})

	d := &demoWorld{
		syncWorld: &syncWorld{w: w},
		bounds:    bounds,
		rng:       rand.New(rand.NewSource(seed)),
	}
	for i := 0; i < crowds; i++ {
		p := d.randomPoint(terrain)
		id, _ := w.AddModifier(geom.CylinderModifier(p, 2, 2, crowdArea, true))
		d.movers = append(d.movers, id)
		d.placing = append(d.placing, p)
	}
	return d
}

func (d *demoWorld) randomPoint(terrain func(x, z float32) float32) common.Vec3 {
	size := d.bounds.Size()
	x := d.bounds.Min[0] + d.rng.Float32()*size[0]
	z := d.bounds.Min[2] + d.rng.Float32()*size[2]
	return common.Vec3{x, terrain(x, z) - 1, z}
}

// step nudges every crowd cylinder and returns the areas to report.
func (d *demoWorld) step() []geom.DirtyArea {
	areas := make([]geom.DirtyArea, 0, len(d.movers))
	for i, id := range d.movers {
		p := d.placing[i]
		p[0] = common.Clamp(p[0]+d.rng.Float32()*6-3, d.bounds.Min[0], d.bounds.Max[0])
		p[2] = common.Clamp(p[2]+d.rng.Float32()*6-3, d.bounds.Min[2], d.bounds.Max[2])
		d.placing[i] = p
		areas = append(areas, d.edit(func(w *geom.World) geom.DirtyArea {
			area, _ := w.MoveModifier(id, geom.CylinderModifier(p, 2, 2, crowdArea, true))
			return area
		}))
	}
	return areas
}
