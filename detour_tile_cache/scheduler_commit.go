package detour_tile_cache

import (
	"errors"

	"github.com/gorustyt/navbake/detour"
	"go.uber.org/zap"
)

// onBuildComplete frees the worker slot of r and commits or aborts its
// tile. Results of an older version, or arriving after Shutdown, are
// dropped.
func (s *Scheduler) onBuildComplete(r buildResult) {
	s.active--
	if s.aborted.IsSet() {
		return
	}
	defer s.dispatch()
	if r.version != s.version || s.tiles[r.id].state != TileBuilding {
		s.stats.Stale++
		s.log.Debug("discarding stale build", zap.Uint64("build_version", r.version), zap.Uint64("version", s.version))
		return
	}
	t := s.tiles[r.id]

	if r.err != nil {
		// Retried by the next tick. Capacity failures below wait for a new
		// report instead, since the navmesh has to change first.
		t.AbortRebuild()
		s.passPending = true
		s.stats.Failed++
		s.log.Warn("tile build failed",
			zap.Int32("x", t.X), zap.Int32("y", t.Y), zap.Error(r.err))
		return
	}

	t.state = TileCommitting
	if err := s.commit(t, r.out); err != nil {
		t.AbortRebuild()
		if errors.Is(err, detour.ErrCapacity) {
			s.stats.CapacityFailures++
		} else {
			s.stats.Failed++
		}
		s.log.Warn("tile commit failed",
			zap.Int32("x", t.X), zap.Int32("y", t.Y), zap.Error(err))
		return
	}
	t.FinishRebuild(r.out)
	if t.dirty.IsDirty() {
		// Reported and flushed while the build ran; nothing else will
		// request the pass.
		s.passPending = true
	}
	s.stats.Committed++
	s.notify(Commit{X: t.X, Y: t.Y, Version: s.version, Geometry: r.out.geometry, Layers: r.out.finished})
}

// commit writes the finished layers of t in one exclusive section. Readers
// see either every layer of the old build or every layer of the new one.
// When the navmesh cannot hold the result nothing is changed.
func (s *Scheduler) commit(t *TileUnit, out *buildOutput) error {
	return s.store.Write(func(mesh *detour.DtNavMesh) error {
		needed, freed := 0, 0
		if out.geometry {
			freed = mesh.LayerCount(t.X, t.Y)
		}
		for _, fin := range out.finished {
			if !fin.Empty() {
				needed++
			}
			if !out.geometry && mesh.GetTileAt(t.X, t.Y, fin.Layer) != nil {
				freed++
			}
		}
		if free := mesh.FreeTileCount() + freed; needed > free {
			return &detour.CapacityError{MaxTiles: int32(mesh.MaxTiles()), Needed: needed, Free: free}
		}

		if out.geometry {
			mesh.RemoveLayers(t.X, t.Y)
		}
		for _, fin := range out.finished {
			if fin.Empty() {
				if old := mesh.GetTileAt(t.X, t.Y, fin.Layer); old != nil {
					mesh.RemoveTile(mesh.GetTileRef(old))
				}
				continue
			}
			if _, err := mesh.InsertLayer(t.X, t.Y, fin.Layer, fin.Data); err != nil {
				s.log.Warn("skipping tile layer",
					zap.Int32("x", t.X), zap.Int32("y", t.Y), zap.Int32("layer", fin.Layer), zap.Error(err))
			}
		}
		return nil
	})
}

func (s *Scheduler) notify(c Commit) {
	for _, fn := range s.listeners {
		fn(c)
	}
}
