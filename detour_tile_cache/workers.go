package detour_tile_cache

import (
	"context"

	"github.com/gorustyt/navbake/recast"
	"golang.org/x/sync/errgroup"
)

type buildResult struct {
	id      int
	version uint64
	out     *buildOutput
	err     error
}

// workerPool runs build jobs on a fixed number of goroutines. Results are
// delivered on a channel that the owner drains in Tick, so workers never
// touch scheduler state.
type workerPool struct {
	jobs    chan *buildInput
	results chan buildResult
	group   *errgroup.Group
	cancel  context.CancelFunc
}

func startWorkerPool(ctx context.Context, size int, builder recast.MeshBuilder) *workerPool {
	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	p := &workerPool{
		jobs:    make(chan *buildInput, size),
		results: make(chan buildResult, size),
		group:   group,
		cancel:  cancel,
	}
	for i := 0; i < size; i++ {
		group.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case in := <-p.jobs:
					out, err := runBuild(builder, in)
					select {
					case p.results <- buildResult{id: in.id, version: in.version, out: out, err: err}:
					case <-ctx.Done():
						return nil
					}
				}
			}
		})
	}
	return p
}

// stop cancels idle workers and waits for running jobs to return.
func (p *workerPool) stop() error {
	p.cancel()
	return p.group.Wait()
}
