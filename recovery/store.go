package recovery

import (
	"context"
	"sort"
	"sync"

	"github.com/vishalsingh17/bytewax/stream"
)

// Store persists state updates and worker frontiers across executions.
//
// ReadState returns the newest state written strictly before the given
// epoch, which is exactly what a resume at that epoch must rebuild from.
// Frontiers are tracked per worker; ReadFrontier reports the minimum, so
// a resumed execution never skips an epoch a slow worker still owed.
// Resume assumes a stable worker count between executions.
//
// Implementations must be safe for concurrent use by multiple workers.
type Store interface {
	WriteState(ctx context.Context, update StateUpdate) error
	ReadState(ctx context.Context, step StepID, key StateKey, before stream.Epoch) (State, bool, error)
	WriteFrontier(ctx context.Context, worker int, epoch stream.Epoch) error
	ReadFrontier(ctx context.Context) (stream.Epoch, bool, error)
	Close() error
}

type shard struct {
	step StepID
	key  StateKey
}

type stampedOp struct {
	epoch stream.Epoch
	op    StateOp
}

// MemoryStore keeps recovery data in process memory. It makes dataflows
// resumable within a process lifetime and is the store of choice in
// tests.
type MemoryStore struct {
	mu        sync.Mutex
	states    map[shard][]stampedOp
	frontiers map[int]stream.Epoch
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:    make(map[shard][]stampedOp),
		frontiers: make(map[int]stream.Epoch),
	}
}

func (m *MemoryStore) WriteState(ctx context.Context, update StateUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sh := shard{step: update.Key.StepID, key: update.Key.StateKey}
	ops := m.states[sh]
	i := sort.Search(len(ops), func(i int) bool { return ops[i].epoch >= update.Key.Epoch })
	if i < len(ops) && ops[i].epoch == update.Key.Epoch {
		// Re-framing an epoch after resume replaces the previous write.
		ops[i].op = update.Op
		return nil
	}
	ops = append(ops, stampedOp{})
	copy(ops[i+1:], ops[i:])
	ops[i] = stampedOp{epoch: update.Key.Epoch, op: update.Op}
	m.states[sh] = ops
	return nil
}

func (m *MemoryStore) ReadState(ctx context.Context, step StepID, key StateKey, before stream.Epoch) (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ops := m.states[shard{step: step, key: key}]
	for i := len(ops) - 1; i >= 0; i-- {
		if ops[i].epoch >= before {
			continue
		}
		switch op := ops[i].op.(type) {
		case Upsert:
			return op.State, true, nil
		case Discard:
			return State{}, false, nil
		}
	}
	return State{}, false, nil
}

func (m *MemoryStore) WriteFrontier(ctx context.Context, worker int, epoch stream.Epoch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frontiers[worker] = epoch
	return nil
}

func (m *MemoryStore) ReadFrontier(ctx context.Context) (stream.Epoch, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var min stream.Epoch
	found := false
	for _, e := range m.frontiers {
		if !found || e < min {
			min = e
			found = true
		}
	}
	return min, found, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
