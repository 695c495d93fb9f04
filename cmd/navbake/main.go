// Command navbake bakes a tiled navmesh for a procedural world, keeps it up
// to date while crowd modifiers move around, and persists the result.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorustyt/navbake/common/logger"
	"github.com/gorustyt/navbake/config"
	"github.com/gorustyt/navbake/detour"
	"github.com/gorustyt/navbake/detour_tile_cache"
	"github.com/gorustyt/navbake/recast"
	"github.com/gorustyt/navbake/tilestore"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type options struct {
	configPath string
	workers    int
	timeout    time.Duration
	steps      int
	crowds     int
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "navbake.yaml", "path to the YAML config")
	flag.IntVar(&opts.workers, "workers", 0, "build workers (overrides scheduler.worker_pool_size)")
	flag.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "give up after this long")
	flag.IntVar(&opts.steps, "steps", 20, "crowd movement steps after the initial bake")
	flag.IntVar(&opts.crowds, "crowds", 4, "dynamic crowd modifiers")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintln(os.Stderr, "navbake:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) (err error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.workers > 0 {
		cfg.Scheduler.WorkerPoolSize = opts.workers
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	builder, err := recast.NewBuilder()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, builder.Close()) }()

	bounds := cfg.World.Bounds.Box()
	world := newDemoWorld(bounds, cfg.World.Seed, opts.crowds)
	sched := detour_tile_cache.New(cfg, world, builder, nil, log)
	defer func() { err = multierr.Append(err, sched.Shutdown()) }()
	if err := sched.Init(bounds); err != nil {
		return err
	}

	if cfg.Store.Path != "" {
		store, openErr := tilestore.Open(cfg.Store.Path, log)
		if openErr != nil {
			return openErr
		}
		defer func() { err = multierr.Append(err, store.Close()) }()
		if _, restoreErr := store.Restore(ctx, sched.Store()); restoreErr != nil {
			log.Warn("warm start incomplete", zap.Error(restoreErr))
		}
		sched.AddCommitListener(store.Listener(ctx))
	}

	start := time.Now()
	sched.SetSeedLocations(world.placing)
	sched.RebuildAll()
	if err := sched.Converge(ctx); err != nil {
		return fmt.Errorf("initial bake: %w", err)
	}
	log.Info("initial bake done", zap.Duration("took", time.Since(start)), zap.Any("stats", sched.Stats()))

	if err := simulate(ctx, sched, world, opts.steps, cfg.Scheduler.TickInterval); err != nil {
		return err
	}
	if err := sched.Converge(ctx); err != nil {
		return fmt.Errorf("final bake: %w", err)
	}

	var tiles, polys int
	sched.Store().Read(func(mesh *detour.DtNavMesh) {
		tiles = mesh.TileCount()
		mesh.ForEachTile(func(_ detour.DtTileRef, tile *detour.DtMeshTile) {
			polys += tile.Data.PolyCount()
		})
	})
	log.Info("navmesh ready",
		zap.Uint64("version", sched.Version()),
		zap.Int("tile_layers", tiles),
		zap.Int("polys", polys),
		zap.Any("stats", sched.Stats()),
	)
	return nil
}

// simulate moves the crowd while the scheduler runs on its own goroutine.
func simulate(ctx context.Context, sched *detour_tile_cache.Scheduler, world *demoWorld, steps int, every time.Duration) error {
	if every <= 0 {
		every = 10 * time.Millisecond
	}
	runCtx, stopRun := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		if err := sched.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer stopRun()
		ticker := time.NewTicker(every * 5)
		defer ticker.Stop()
		for i := 0; i < steps; i++ {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
			}
			for _, area := range world.step() {
				sched.ReportDirty(area)
			}
		}
		return nil
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return nil
	}
	return err
}
