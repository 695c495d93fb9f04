package detour_tile_cache

import (
	"context"
	"errors"
	"time"

	"github.com/gorustyt/navbake/common"
	"github.com/gorustyt/navbake/common/logger"
	"github.com/gorustyt/navbake/config"
	"github.com/gorustyt/navbake/detour"
	"github.com/gorustyt/navbake/geom"
	"github.com/gorustyt/navbake/recast"
	"github.com/tevino/abool"
	"go.uber.org/zap"
	"gopkg.in/eapache/queue.v1"
)

var (
	ErrNotInitialized = errors.New("scheduler: not initialized")
	ErrShutdown       = errors.New("scheduler: shut down")
	ErrBuildingLocked = errors.New("scheduler: building is locked")
)

type queuedTile struct {
	id      int
	version uint64
}

// Stats are running counters of the current scheduler.
type Stats struct {
	Version          uint64
	Passes           int
	Scheduled        int
	Committed        int
	Failed           int
	CapacityFailures int
	Stale            int
	Abandoned        int
	Building         int
	Queued           int
}

// Commit describes one tile change written to the navmesh.
type Commit struct {
	X, Y    int32
	Version uint64
	// Geometry is set when every stored layer of the tile was removed
	// before Layers were applied.
	Geometry bool
	// Reset is sent alone when a resize cleared the whole navmesh. X, Y and
	// Layers are unset.
	Reset bool
	Layers   []recast.FinishedTileLayer
}

type CommitListener func(c Commit)

// Scheduler owns the tile grid and decides which tiles are built, when, and
// on how many workers. Apart from ReportDirty, every method must be called
// from the goroutine that owns the geometry source.
type Scheduler struct {
	log     *zap.Logger
	cfg     config.Config
	source  geom.GeometrySource
	builder recast.MeshBuilder
	store   *detour.Shared
	tracker *DirtyTracker

	initialized bool
	version     uint64
	grid        TileGrid
	tiles       []*TileUnit

	queue     *queue.Queue
	active    int
	workers   int
	maxQueued int
	pool      *workerPool
	aborted   *abool.AtomicBool

	seeds          []common.Vec3
	inclusion      []common.Box
	buildingLocked bool
	passPending    bool

	listeners []CommitListener
	stats     Stats
}

// New starts the worker pool. store may be nil, in which case an empty
// navmesh is created; it is (re)initialized by Init and Resize.
func New(cfg config.Config, source geom.GeometrySource, builder recast.MeshBuilder, store *detour.Shared, l *zap.Logger) *Scheduler {
	if store == nil {
		store = detour.NewShared(&detour.DtNavMesh{})
	}
	s := &Scheduler{
		log:     logger.OrNop(l).Named("scheduler"),
		cfg:     cfg,
		source:  source,
		builder: builder,
		store:   store,
		tracker: NewDirtyTracker(
			cfg.Scheduler.DirtyMargin(cfg.Build.CellSize),
			cfg.Build.AgentRadius,
			cfg.Build.AgentMaxClimb,
		),
		queue:     queue.New(),
		workers:   cfg.Scheduler.WorkerPool(),
		maxQueued: cfg.Scheduler.MaxQueuedTiles,
		aborted:   abool.New(),
	}
	if s.maxQueued <= 0 {
		s.maxQueued = 64
	}
	for _, b := range cfg.Build.InclusionBounds {
		s.inclusion = append(s.inclusion, b.Box())
	}
	s.pool = startWorkerPool(context.Background(), s.workers, builder)
	return s
}

func (s *Scheduler) Store() *detour.Shared   { return s.store }
func (s *Scheduler) Tracker() *DirtyTracker  { return s.tracker }
func (s *Scheduler) Grid() TileGrid          { return s.grid }
func (s *Scheduler) Version() uint64         { return s.version }
func (s *Scheduler) NumWorkers() int         { return s.workers }
func (s *Scheduler) IsBuildInProgress() bool { return s.active > 0 }
func (s *Scheduler) AddCommitListener(fn CommitListener) {
	s.listeners = append(s.listeners, fn)
}

// Init creates the tile grid covering bounds. Calling it again is a resize.
func (s *Scheduler) Init(bounds common.Box) error {
	return s.Resize(bounds)
}

// Resize replaces the tile grid and the navmesh contents and starts a new
// version. Builds of older versions still running are discarded when they
// complete.
func (s *Scheduler) Resize(bounds common.Box) error {
	if s.aborted.IsSet() {
		return ErrShutdown
	}
	grid := NewTileGrid(bounds, recast.TileWorldSize(s.cfg.Build))
	maxTiles := int(s.cfg.Scheduler.MaxActiveTiles)
	if maxTiles == 0 {
		maxTiles = grid.NumTiles() * max(s.cfg.Build.MaxLayers, 1)
	}
	params := detour.DtNavMeshParams{
		Orig:       bounds.Min,
		TileWidth:  grid.TileSize,
		TileHeight: grid.TileSize,
		MaxTiles:   int32(maxTiles),
	}
	if err := s.store.Write(func(mesh *detour.DtNavMesh) error { return mesh.Init(params) }); err != nil {
		return err
	}

	resized := s.initialized
	s.version++
	s.grid = grid
	s.tiles = make([]*TileUnit, grid.NumTiles())
	for id := range s.tiles {
		x, y := grid.TileCoord(id)
		s.tiles[id] = newTileUnit(x, y, grid.TileBounds(x, y))
	}
	s.queue = queue.New()
	s.initialized = true
	s.stats.Version = s.version
	s.log.Info("tile grid initialized",
		zap.Uint64("version", s.version),
		zap.Int32("width", grid.Width),
		zap.Int32("height", grid.Height),
		zap.Float32("tile_size", grid.TileSize),
		zap.Int("max_tiles", maxTiles),
		zap.Int("workers", s.workers),
	)
	if resized {
		s.notify(Commit{Version: s.version, Reset: true})
	}
	return nil
}

func (s *Scheduler) tile(x, y int32) *TileUnit {
	if !s.initialized || !s.grid.Contains(x, y) {
		return nil
	}
	return s.tiles[s.grid.TileID(x, y)]
}

// TileState returns the state of tile (x, y), Clean for unknown tiles.
func (s *Scheduler) TileState(x, y int32) TileState {
	if t := s.tile(x, y); t != nil {
		return t.State()
	}
	return TileClean
}

// TileDirty returns a copy of the pending dirty state of tile (x, y).
func (s *Scheduler) TileDirty(x, y int32) DirtyState {
	if t := s.tile(x, y); t != nil {
		return t.Dirty()
	}
	return DirtyState{}
}

// Tile exposes tile (x, y) for inspection, nil outside the grid.
func (s *Scheduler) Tile(x, y int32) *TileUnit { return s.tile(x, y) }

// IsTileFresh reports whether tile (x, y) is built and nothing pending
// touches it.
func (s *Scheduler) IsTileFresh(x, y int32) bool {
	t := s.tile(x, y)
	if t == nil {
		return false
	}
	return t.state == TileClean && !t.dirty.IsDirty() && !s.tracker.Touches(s.grid, x, y)
}

// NumRemainingTasks counts queued and running builds of this version.
func (s *Scheduler) NumRemainingTasks() int {
	n := 0
	for _, t := range s.tiles {
		if t.state == TileQueued || t.busy() {
			n++
		}
	}
	return n
}

func (s *Scheduler) Stats() Stats {
	st := s.stats
	st.Building, st.Queued = 0, 0
	for _, t := range s.tiles {
		switch t.state {
		case TileBuilding:
			st.Building++
		case TileQueued:
			st.Queued++
		}
	}
	return st
}

// ReportDirty records a changed area. It is safe from any goroutine; the
// area is applied by the next pass.
func (s *Scheduler) ReportDirty(area geom.DirtyArea) {
	s.tracker.Report(area)
}

// NotifyDirty records a changed area and runs a pass right away when no
// build is in flight.
func (s *Scheduler) NotifyDirty(area geom.DirtyArea) {
	s.tracker.Report(area)
	s.requestPass()
}

// RebuildAll marks every tile for a geometry rebuild.
func (s *Scheduler) RebuildAll() {
	if !s.initialized {
		return
	}
	s.NotifyDirty(geom.DirtyArea{Box: s.grid.Bounds, Kind: geom.DirtyGeometry})
}

// SetSeedLocations makes tiles closest to any seed build first.
func (s *Scheduler) SetSeedLocations(seeds []common.Vec3) {
	s.seeds = append([]common.Vec3(nil), seeds...)
}

// SetBuildingLocked defers passes while locked. Builds already running
// still complete and commit.
func (s *Scheduler) SetBuildingLocked(locked bool) {
	s.buildingLocked = locked
	if !locked {
		s.passPending = true
	}
}

func (s *Scheduler) included(tile common.Box, boxes []common.Box) bool {
	if len(boxes) == 0 {
		return true
	}
	for _, b := range boxes {
		if b.Intersects2D(tile) {
			return true
		}
	}
	return false
}

// SetInclusionBounds replaces the inclusion volumes. Tiles whose inclusion
// changes, or that overlap an old or new volume, are rebuilt; the memo of
// tiles known to be outside every volume is dropped.
func (s *Scheduler) SetInclusionBounds(boxes []common.Box) {
	old := s.inclusion
	s.inclusion = append([]common.Box(nil), boxes...)
	if !s.initialized {
		return
	}
	touches := func(tile common.Box, list []common.Box) bool {
		for _, b := range list {
			if b.Intersects2D(tile) {
				return true
			}
		}
		return false
	}
	for _, t := range s.tiles {
		t.neverBuild = false
		q := s.tileConfig(t).QueryBounds()
		changed := s.included(q, old) != s.included(q, s.inclusion)
		if changed || touches(q, old) || touches(q, s.inclusion) {
			t.markDirty(func(d *DirtyState) { d.MarkGeometry() })
		}
	}
	s.requestPass()
}

func (s *Scheduler) tileConfig(t *TileUnit) recast.RcConfig {
	cfg := recast.NewRcConfig(s.cfg.Build, t.X, t.Y, t.Bounds, nil)
	for _, b := range s.inclusion {
		if b.Intersects2D(cfg.QueryBounds()) {
			cfg.InclusionBounds = append(cfg.InclusionBounds, b)
		}
	}
	return cfg
}

func (s *Scheduler) idle() bool {
	return s.active == 0 && s.queue.Length() == 0
}

func (s *Scheduler) requestPass() {
	if s.initialized && !s.aborted.IsSet() && !s.buildingLocked && s.idle() {
		s.SchedulePass()
		return
	}
	s.passPending = true
}

func (s *Scheduler) prepare(id int, t *TileUnit) bool {
	cfg := s.tileConfig(t)
	return t.Prepare(s.source, cfg, id, s.version, s.included(cfg.QueryBounds(), s.inclusion))
}

// SchedulePass applies pending dirty areas, prepares dirty tiles and queues
// them by priority. It returns the number of tiles newly queued.
func (s *Scheduler) SchedulePass() int {
	if !s.initialized || s.aborted.IsSet() {
		return 0
	}
	if s.buildingLocked {
		s.passPending = true
		return 0
	}
	s.passPending = false
	s.stats.Passes++
	s.tracker.Flush(s.grid, s.tiles)

	queued := 0
	var candidates []int
	for id, t := range s.tiles {
		switch {
		case t.state == TileQueued:
			queued++
			if t.dirty.IsDirty() && !s.prepare(id, t) {
				s.abandon(t)
				queued--
			}
		case t.busy() || !t.dirty.IsDirty():
		default:
			candidates = append(candidates, id)
		}
	}

	sortByPriority(candidates, s.tiles, s.seeds)
	scheduled := 0
	for _, id := range candidates {
		if queued >= s.maxQueued {
			s.passPending = true
			break
		}
		t := s.tiles[id]
		if !s.prepare(id, t) {
			s.abandon(t)
			continue
		}
		t.state = TileQueued
		s.queue.Add(queuedTile{id: id, version: s.version})
		queued++
		scheduled++
	}
	s.stats.Scheduled += scheduled
	s.dispatch()
	if scheduled > 0 {
		s.log.Debug("scheduling pass",
			zap.Uint64("version", s.version),
			zap.Int("scheduled", scheduled),
			zap.Int("queued", s.queue.Length()),
			zap.Int("active", s.active),
		)
	}
	return scheduled
}

// abandon drops a tile with nothing to build. A tile asked for a geometry
// rebuild is cleared from the navmesh right away.
func (s *Scheduler) abandon(t *TileUnit) {
	wasGeometry := t.inFlight.RebuildGeometry
	t.AbandonGeneration()
	s.stats.Abandoned++
	if !wasGeometry {
		return
	}
	var removed int
	_ = s.store.Write(func(mesh *detour.DtNavMesh) error {
		removed = len(mesh.RemoveLayers(t.X, t.Y))
		return nil
	})
	if removed > 0 {
		s.log.Debug("cleared tile without geometry",
			zap.Int32("x", t.X), zap.Int32("y", t.Y), zap.Int("layers", removed))
	}
	s.notify(Commit{X: t.X, Y: t.Y, Version: s.version, Geometry: true})
}

// dispatch hands queued tiles to free workers. Entries of older versions,
// or whose tile left the Queued state, are skipped.
func (s *Scheduler) dispatch() {
	for s.active < s.workers && s.queue.Length() > 0 && !s.aborted.IsSet() {
		e := s.queue.Remove().(queuedTile)
		if e.version != s.version {
			continue
		}
		t := s.tiles[e.id]
		if t.state != TileQueued || t.input == nil {
			continue
		}
		s.active++
		s.pool.jobs <- t.takeInput()
	}
}

// Tick processes finished builds, fills free workers and, when idle, runs
// a pass for pending dirty areas. It returns the number of results handled.
func (s *Scheduler) Tick() int {
	n := 0
	for {
		select {
		case r := <-s.pool.results:
			s.onBuildComplete(r)
			n++
			continue
		default:
		}
		break
	}
	if !s.initialized || s.aborted.IsSet() {
		return n
	}
	s.dispatch()
	if !s.buildingLocked && s.idle() && (s.passPending || s.tracker.HasPending()) {
		s.SchedulePass()
	}
	return n
}

// WaitForCompletion blocks until every queued and running build has been
// handled.
func (s *Scheduler) WaitForCompletion(ctx context.Context) error {
	for {
		if s.aborted.IsSet() {
			return ErrShutdown
		}
		s.dispatch()
		if s.idle() {
			return nil
		}
		select {
		case r := <-s.pool.results:
			s.onBuildComplete(r)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Scheduler) anyDirty() bool {
	for _, t := range s.tiles {
		if t.dirty.IsDirty() {
			return true
		}
	}
	return false
}

// Converge runs passes until no tile is dirty. A tile that keeps failing
// keeps it from returning until ctx is done.
func (s *Scheduler) Converge(ctx context.Context) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.buildingLocked {
			return ErrBuildingLocked
		}
		s.SchedulePass()
		if err := s.WaitForCompletion(ctx); err != nil {
			return err
		}
		if !s.tracker.HasPending() && !s.anyDirty() {
			return nil
		}
	}
}

// Run ticks until ctx is done. Use it when the geometry source guards
// itself, since passes then run on Run's goroutine.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.cfg.Scheduler.TickInterval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-s.pool.results:
			s.onBuildComplete(r)
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Shutdown discards every pending and future result and stops the workers
// once their current build returns.
func (s *Scheduler) Shutdown() error {
	if !s.aborted.SetToIf(false, true) {
		return nil
	}
	err := s.pool.stop()
	for {
		select {
		case <-s.pool.results:
			continue
		default:
		}
		break
	}
	s.active = 0
	s.queue = queue.New()
	s.log.Info("scheduler shut down", zap.Uint64("version", s.version), zap.Any("stats", s.stats))
	return err
}
