package execution

import (
	"context"
	"errors"
	"fmt"

	"github.com/vishalsingh17/bytewax/stream"
	"go.uber.org/multierr"
)

func (r *Worker) handleCreated(ctx context.Context) {
	scope := stream.NewScope(r.name, r.log)
	r.scope = scope
	r.probe = scope.Probe()

	startAt := stream.Epoch(0)
	if r.store != nil {
		frontier, ok, err := r.store.ReadFrontier(ctx)
		if err != nil {
			r.log.Error("failed to read resume frontier", "error", err)
			r.err = fmt.Errorf("read resume frontier: %w", err)
			r.changeState(StateCloseRequested)
			return
		}
		if ok {
			startAt = frontier
			r.log.Info("Resuming", "epoch", frontier)
		}
	}

	r.env = &BuildEnv{
		Scope:       scope,
		Probe:       r.probe,
		Store:       r.store,
		StartAt:     startAt,
		EpochLength: r.epochLength,
		WorkerIndex: r.index,
		WorkerCount: r.count,
		Log:         r.log,
	}

	built := make(map[string]any)
	for _, step := range r.plan.Steps {
		if err := step.Build(ctx, r.env, built); err != nil {
			r.log.Error("failed to build step", "error", err, "step", step.ID)
			r.err = fmt.Errorf("build step %s: %w", step.ID, err)
			r.changeState(StateCloseRequested)
			return
		}
	}

	r.log.Debug("Dataflow built", "steps", len(r.plan.Steps))
	r.changeState(StateRunning)
}

func (r *Worker) handleRunning(ctx context.Context) {
	select {
	case <-ctx.Done():
		r.err = ctx.Err()
		r.changeState(StateCloseRequested)
		return
	case <-r.closeRequested:
		r.changeState(StateCloseRequested)
		return
	default:
	}

	ran, err := r.scope.Step()
	if err != nil {
		r.log.Error("dataflow failed", "error", err)
		r.err = err
		r.changeState(StateCloseRequested)
		return
	}

	if err := r.maybeWriteFrontier(ctx); err != nil {
		r.log.Error("failed to persist frontier", "error", err)
		r.err = err
		r.changeState(StateCloseRequested)
		return
	}

	if r.scope.Done() {
		r.log.Info("Dataflow complete")
		r.changeState(StateCloseRequested)
		return
	}

	if !ran {
		// Nothing is runnable yet epochs are still in flight; no event
		// can ever wake the scheduler again.
		r.err = errors.New("dataflow stalled with epochs in flight")
		r.changeState(StateCloseRequested)
	}
}

// maybeWriteFrontier persists the probe frontier whenever it advances.
// By the time the frontier reaches an epoch, every state update below it
// has already drained into the store, so a resume from this value never
// misses a snapshot.
func (r *Worker) maybeWriteFrontier(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	frontier, ok := r.probe.Frontier()
	if !ok {
		return nil
	}
	if r.wroteFrontier && frontier <= r.lastFrontier {
		return nil
	}
	if err := r.store.WriteFrontier(ctx, r.index, frontier); err != nil {
		return fmt.Errorf("write frontier %d: %w", frontier, err)
	}
	r.lastFrontier = frontier
	r.wroteFrontier = true
	r.log.Debug("Frontier advanced", "epoch", frontier)
	return nil
}

func (r *Worker) handleCloseRequested() {
	if r.env != nil {
		var errs error
		for _, c := range r.env.closers {
			errs = multierr.Append(errs, c.Close())
		}
		if errs != nil {
			r.log.Error("failed to close readers", "error", errs)
			if r.err == nil {
				r.err = errs
			}
		}
	}
	r.changeState(StateClosed)
}

func (r *Worker) handleClosed() {
	r.closed.Done()
}
