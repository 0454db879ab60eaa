package bytewax

import (
	"context"
	"fmt"

	"github.com/vishalsingh17/bytewax/inputs"
	"github.com/vishalsingh17/bytewax/internal/execution"
	"github.com/vishalsingh17/bytewax/recovery"
	"github.com/vishalsingh17/bytewax/stream"
)

// Stream is a typed handle to one step's output. It is only valid within
// the dataflow that produced it.
type Stream[D any] struct {
	flow *Dataflow
	id   string
}

// Input adds a partitioned input step. Each worker builds readers for
// the parts it owns and pumps them all on the shared epoch schedule.
// With a recovery store configured, every part resumes from its newest
// snapshot below the resume epoch, and new snapshots are persisted as
// epochs close.
func Input[D any](d *Dataflow, id string, source inputs.PartitionedSource[D]) *Stream[D] {
	d.addStep(id, true, func(ctx context.Context, env *execution.BuildEnv, built map[string]any) error {
		parts, err := source.ListParts(ctx)
		if err != nil {
			return fmt.Errorf("list parts: %w", err)
		}

		mine := execution.AssignParts(parts, env.WorkerIndex, env.WorkerCount)
		streams := make([]*stream.Stream[D], 0, len(mine))
		for _, part := range mine {
			var resume []byte
			if env.Store != nil {
				state, ok, err := env.Store.ReadState(ctx, recovery.StepID(id), recovery.StateKey(part), env.StartAt)
				if err != nil {
					return fmt.Errorf("read resume state for part %q: %w", part, err)
				}
				if ok {
					resume = state.Snapshot
				}
			}

			reader, err := source.BuildPart(ctx, part, resume)
			if err != nil {
				return fmt.Errorf("build part %q: %w", part, err)
			}
			env.RegisterCloser(reader)

			name := id + "." + part
			framer := recovery.NewFramer(recovery.StepID(id), recovery.StateKey(part))
			data, updates := execution.PeriodicEpochSource(env.Scope, name, reader, framer, env.StartAt, env.Probe, env.EpochLength)
			persistFrames(ctx, env, name, updates)
			streams = append(streams, data)
		}

		built[id] = stream.Merge(env.Scope, id+".merge", streams...)
		return nil
	})
	return &Stream[D]{flow: d, id: id}
}

// DynamicInput adds an input step whose source builds one reader per
// worker instead of per part. Dynamic readers receive no resume state;
// their snapshots are still framed and persisted under a per-worker key.
func DynamicInput[D any](d *Dataflow, id string, source inputs.DynamicSource[D]) *Stream[D] {
	d.addStep(id, true, func(ctx context.Context, env *execution.BuildEnv, built map[string]any) error {
		reader, err := source.Build(ctx, env.WorkerIndex, env.WorkerCount)
		if err != nil {
			return fmt.Errorf("build reader: %w", err)
		}
		env.RegisterCloser(reader)

		key := fmt.Sprintf("worker-%d", env.WorkerIndex)
		framer := recovery.NewFramer(recovery.StepID(id), recovery.StateKey(key))
		data, updates := execution.PeriodicEpochSource(env.Scope, id, reader, framer, env.StartAt, env.Probe, env.EpochLength)
		persistFrames(ctx, env, id, updates)
		built[id] = data
		return nil
	})
	return &Stream[D]{flow: d, id: id}
}

// persistFrames drains an input's state updates into the recovery store.
// Buffered updates hold their epoch open, so the probe frontier cannot
// pass an epoch whose frame has not been written yet.
func persistFrames(ctx context.Context, env *execution.BuildEnv, name string, updates *stream.Stream[recovery.StateUpdate]) {
	if env.Store == nil {
		return
	}
	store := env.Store
	stream.Sink(env.Scope, name+".frames", updates, func(_ stream.Epoch, update recovery.StateUpdate) error {
		return store.WriteState(ctx, update)
	})
}

// Map adds a 1:1 transformation step.
func Map[I, O any](d *Dataflow, id string, up *Stream[I], f func(I) O) *Stream[O] {
	return stage(d, id, up, func(_ stream.Epoch, item I, emit func(O)) error {
		emit(f(item))
		return nil
	})
}

// FlatMap adds a 1:N transformation step.
func FlatMap[I, O any](d *Dataflow, id string, up *Stream[I], f func(I) []O) *Stream[O] {
	return stage(d, id, up, func(_ stream.Epoch, item I, emit func(O)) error {
		for _, out := range f(item) {
			emit(out)
		}
		return nil
	})
}

// Filter adds a step that keeps only items matching keep.
func Filter[D any](d *Dataflow, id string, up *Stream[D], keep func(D) bool) *Stream[D] {
	return stage(d, id, up, func(_ stream.Epoch, item D, emit func(D)) error {
		if keep(item) {
			emit(item)
		}
		return nil
	})
}

// Inspect adds a pass-through step that observes items and their epochs.
func Inspect[D any](d *Dataflow, id string, up *Stream[D], f func(epoch stream.Epoch, item D)) *Stream[D] {
	return stage(d, id, up, func(e stream.Epoch, item D, emit func(D)) error {
		f(e, item)
		emit(item)
		return nil
	})
}

// Output adds a terminal step calling sink for every item. The sink runs
// once per item per worker; a sink error fails the dataflow.
func Output[D any](d *Dataflow, id string, up *Stream[D], sink func(epoch stream.Epoch, item D) error) {
	if !checkHandle(d, id, up) {
		return
	}
	upID := up.id
	d.addStep(id, false, func(ctx context.Context, env *execution.BuildEnv, built map[string]any) error {
		in, err := upstream[D](built, id, upID)
		if err != nil {
			return err
		}
		stream.Sink(env.Scope, id, in, sink)
		return nil
	})
}

func stage[I, O any](d *Dataflow, id string, up *Stream[I], f func(e stream.Epoch, item I, emit func(O)) error) *Stream[O] {
	handle := &Stream[O]{flow: d, id: id}
	if !checkHandle(d, id, up) {
		return handle
	}
	upID := up.id
	d.addStep(id, false, func(ctx context.Context, env *execution.BuildEnv, built map[string]any) error {
		in, err := upstream[I](built, id, upID)
		if err != nil {
			return err
		}
		built[id] = stream.Unary(env.Scope, id, in, f)
		return nil
	})
	return handle
}

func checkHandle[D any](d *Dataflow, id string, up *Stream[D]) bool {
	if up == nil {
		d.addErr(fmt.Errorf("dataflow %q: step %q has no upstream", d.name, id))
		return false
	}
	if up.flow != d {
		d.addErr(fmt.Errorf("dataflow %q: step %q uses a stream from another dataflow", d.name, id))
		return false
	}
	return true
}

// upstream fetches a prior step's output with the expected item type.
func upstream[D any](built map[string]any, id, upID string) (*stream.Stream[D], error) {
	v, ok := built[upID]
	if !ok {
		return nil, fmt.Errorf("step %q: upstream %q not built", id, upID)
	}
	in, ok := v.(*stream.Stream[D])
	if !ok {
		return nil, fmt.Errorf("step %q: upstream %q is %T, not the expected stream type", id, upID, v)
	}
	return in, nil
}
