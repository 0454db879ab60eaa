package execution

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/vishalsingh17/bytewax/recovery"
	"github.com/vishalsingh17/bytewax/stream"
)

// Plan is the type-erased execution form of a dataflow: an ordered list
// of step builders run once per worker. Typed wiring happens inside the
// build closures, which hand operator streams to each other through the
// built map keyed by step ID.
type Plan struct {
	Steps []PlanStep
}

type PlanStep struct {
	ID    string
	Build func(ctx context.Context, env *BuildEnv, built map[string]any) error
}

// BuildEnv is what a worker offers its step builders.
type BuildEnv struct {
	Scope       *stream.Scope
	Probe       *stream.Probe
	Store       recovery.Store // nil when recovery is off
	StartAt     stream.Epoch
	EpochLength time.Duration
	WorkerIndex int
	WorkerCount int
	Log         *slog.Logger

	closers []io.Closer
}

// RegisterCloser schedules c to be closed when the worker shuts down.
// Builders register every reader they open so teardown reaches them even
// when the dataflow dies mid-build.
func (e *BuildEnv) RegisterCloser(c io.Closer) {
	e.closers = append(e.closers, c)
}

// AssignParts deals input partitions out to one worker: parts are sorted
// so every worker sees the same order, then taken round robin by worker
// index. Every part is owned by exactly one worker as long as all
// workers agree on the part list.
func AssignParts(parts []string, workerIndex, workerCount int) []string {
	sorted := slices.Clone(parts)
	slices.Sort(sorted)
	var mine []string
	for i, p := range sorted {
		if i%workerCount == workerIndex {
			mine = append(mine, p)
		}
	}
	return mine
}
