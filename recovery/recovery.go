package recovery

import (
	"time"

	"github.com/vishalsingh17/bytewax/stream"
)

// StepID names a dataflow step. It must be stable across executions for
// state to be found again on resume.
type StepID string

// StateKey addresses one shard of a step's state, e.g. an input partition
// name.
type StateKey string

// RecoveryKey locates one snapshot: which step, which shard, and the
// epoch whose end the snapshot describes.
type RecoveryKey struct {
	StepID   StepID
	StateKey StateKey
	Epoch    stream.Epoch
}

// State is one recoverable snapshot of operator state. NextAwake is an
// optional hint for when the shard wants to be polled again; sources that
// poll eagerly leave it nil.
type State struct {
	Snapshot  []byte
	NextAwake *time.Time
}

// StateOp says what happens to a shard's state at an epoch.
type StateOp interface {
	isStateOp()
}

// Upsert replaces the shard's state.
type Upsert struct {
	State State
}

// Discard retires the shard's state, e.g. when a partition finished for
// good.
type Discard struct{}

func (Upsert) isStateOp()  {}
func (Discard) isStateOp() {}

// StateUpdate is the unit written to a recovery store.
type StateUpdate struct {
	Key RecoveryKey
	Op  StateOp
}
