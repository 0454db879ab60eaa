package execution

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vishalsingh17/bytewax/recovery"
	"github.com/vishalsingh17/bytewax/stream"
)

type RoutineState string

const (
	StateCreated        = "CREATED"
	StateRunning        = "RUNNING"
	StateCloseRequested = "CLOSE_REQUESTED"
	StateClosed         = "CLOSED"
)

// Worker pumps one dataflow scope. It builds the plan's operators, steps
// the scope until every input has hit EOF and drained, persists frontier
// advances along the way, and tears the readers down at the end.
type Worker struct {
	log  *slog.Logger
	name string

	plan  *Plan
	store recovery.Store

	epochLength time.Duration
	index       int
	count       int

	scope *stream.Scope
	probe *stream.Probe
	env   *BuildEnv

	state RoutineState

	closeRequested chan struct{}
	closed         sync.WaitGroup
	closeOnce      sync.Once

	lastFrontier  stream.Epoch
	wroteFrontier bool

	err error
}

// WorkerConfig holds configuration for a Worker.
type WorkerConfig struct {
	Plan        *Plan
	Store       recovery.Store // nil disables recovery
	EpochLength time.Duration
	WorkerIndex int
	WorkerCount int
}

func NewWorker(log *slog.Logger, name string, cfg WorkerConfig) *Worker {
	w := &Worker{
		log:            log.With("worker", name),
		name:           name,
		plan:           cfg.Plan,
		store:          cfg.Store,
		epochLength:    cfg.EpochLength,
		index:          cfg.WorkerIndex,
		count:          cfg.WorkerCount,
		state:          StateCreated,
		closeRequested: make(chan struct{}, 1),
	}
	w.closed.Add(1)
	return w
}

func (r *Worker) changeState(newState RoutineState) {
	r.log.Info("Change state", "from", r.state, "to", newState)
	r.state = newState
}

// Run blocks until the dataflow completes, fails, or Close is called.
func (r *Worker) Run(ctx context.Context) error {
	return r.Loop(ctx)
}

// State transitions may only be done from within the loop
func (r *Worker) Loop(ctx context.Context) error {
	for {
		switch r.state {
		case StateCreated:
			r.handleCreated(ctx)
		case StateRunning:
			r.handleRunning(ctx)
		case StateCloseRequested:
			r.handleCloseRequested()
		case StateClosed:
			r.handleClosed()
			return r.err
		}
	}
}

// Close requests a graceful stop and waits for the loop to finish. Safe
// to call multiple times and from multiple goroutines.
func (r *Worker) Close() error {
	r.closeOnce.Do(func() {
		r.closeRequested <- struct{}{}
	})
	r.closed.Wait()
	return nil
}
