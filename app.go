package bytewax

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vishalsingh17/bytewax/internal/execution"
	"github.com/vishalsingh17/bytewax/recovery"
	"golang.org/x/sync/errgroup"
)

type App struct {
	numWorkers int
	flow       *Dataflow

	store    recovery.Store
	epochCfg EpochConfig

	workers []*execution.Worker

	log *slog.Logger

	eg *errgroup.Group

	epochLength time.Duration
	plan        *execution.Plan
}

// New creates a new application around flow.
// Returns an error if the dataflow or the configuration is invalid.
func New(flow *Dataflow, opts ...Option) (*App, error) {
	s := &App{
		numWorkers: 1,
		flow:       flow,
		log:        NullLogger(),
		epochCfg:   PeriodicEpoch(DefaultEpochLength),
	}

	for _, opt := range opts {
		opt(s)
	}

	if flow == nil {
		return nil, errors.New("bytewax: dataflow required")
	}
	if s.numWorkers < 1 {
		return nil, fmt.Errorf("bytewax: worker count must be at least 1, got %d", s.numWorkers)
	}
	length, err := s.epochCfg.epochLength()
	if err != nil {
		return nil, err
	}
	s.epochLength = length

	plan, err := flow.plan()
	if err != nil {
		return nil, err
	}
	s.plan = plan

	return s, nil
}

// MustNew creates a new application, panicking on configuration errors.
// Prefer New() for production code to handle errors gracefully.
func MustNew(flow *Dataflow, opts ...Option) *App {
	app, err := New(flow, opts...)
	if err != nil {
		panic(err)
	}
	return app
}

// Run blocks until it's exited, either by an error, by the dataflow
// completing on every worker, or by a graceful shutdown triggered by a
// call to Close.
func (c *App) Run(ctx context.Context) error {
	grp := errgroup.Group{}
	c.eg = &grp
	for i := 0; i < c.numWorkers; i++ {
		worker := execution.NewWorker(
			c.log.WithGroup("worker"),
			fmt.Sprintf("worker-%d", i),
			execution.WorkerConfig{
				Plan:        c.plan,
				Store:       c.store,
				EpochLength: c.epochLength,
				WorkerIndex: i,
				WorkerCount: c.numWorkers,
			})
		c.workers = append(c.workers, worker)
		grp.Go(func() error { return worker.Run(ctx) })
	}
	return grp.Wait()
}

// Close gracefully shuts down the application
func (c *App) Close() error {
	// Signal all workers to close in parallel
	var wg sync.WaitGroup
	for _, worker := range c.workers {
		wg.Add(1)
		go func(worker *execution.Worker) {
			defer wg.Done()
			_ = worker.Close()
		}(worker)
	}
	wg.Wait()

	// Wait for errgroup if Run() was called
	if c.eg != nil {
		return c.eg.Wait()
	}
	return nil
}
