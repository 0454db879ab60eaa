package recovery

import "github.com/vishalsingh17/bytewax/stream"

// Framer stamps raw reader snapshots into StateUpdates for one state
// shard. It is pure: no I/O, no retained state, and framing the same
// epoch twice yields identical updates.
type Framer struct {
	step StepID
	key  StateKey
}

func NewFramer(step StepID, key StateKey) *Framer {
	return &Framer{step: step, key: key}
}

// Frame wraps a snapshot taken at the end of epoch into an upsert for
// this shard. The snapshot bytes are not copied.
func (f *Framer) Frame(epoch stream.Epoch, snapshot []byte) StateUpdate {
	return StateUpdate{
		Key: RecoveryKey{StepID: f.step, StateKey: f.key, Epoch: epoch},
		Op:  Upsert{State: State{Snapshot: snapshot}},
	}
}
