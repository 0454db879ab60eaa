package inputs

import "context"

// Poll is the outcome of one non-blocking read attempt.
type Poll int

const (
	// Pending means nothing was available; poll again later.
	Pending Poll = iota
	// Ready means one item was produced.
	Ready
	// EOF means the reader is exhausted and will never produce again.
	EOF
)

func (p Poll) String() string {
	switch p {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case EOF:
		return "eof"
	default:
		return "unknown"
	}
}

// Reader feeds one shard of an input step.
//
// Readers never block: Next returns immediately, with Pending when no
// item is available yet. Snapshot returns the position to resume from
// and is called at every epoch boundary, so it must be cheap; stateless
// readers return nil. Close runs once when the execution finishes
// cleanly. Any error from Next or Snapshot is fatal to the dataflow.
//
// A source backed by a blocking client must pump it from a goroutine
// into a buffer and serve Next from that buffer.
type Reader[D any] interface {
	Next() (D, Poll, error)
	Snapshot() ([]byte, error)
	Close() error
}

// PartitionedSource is an input with a fixed set of named partitions,
// such as a topic's partitions or a list of files. Partitions are
// distributed over the workers; each is built exactly once per
// execution, receiving the snapshot it wrote last or nil on a first run.
type PartitionedSource[D any] interface {
	ListParts(ctx context.Context) ([]string, error)
	BuildPart(ctx context.Context, forPart string, resumeState []byte) (Reader[D], error)
}

// DynamicSource is an input without natural partitions. Every worker
// builds one reader for its share of the input; the readers are
// stateless and resume from wherever the backing system left off.
type DynamicSource[D any] interface {
	Build(ctx context.Context, workerIndex, workerCount int) (Reader[D], error)
}
