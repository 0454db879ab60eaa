package recovery

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vishalsingh17/bytewax/stream"
)

const (
	opUpsert  = "upsert"
	opDiscard = "discard"
)

type updateEnvelope struct {
	Step      string     `json:"step"`
	Key       string     `json:"key"`
	Epoch     uint64     `json:"epoch"`
	Op        string     `json:"op"`
	Snapshot  []byte     `json:"snapshot,omitempty"`
	NextAwake *time.Time `json:"next_awake,omitempty"`
}

// EncodeUpdate serializes a state update for byte-oriented store
// backends. The encoding is self-contained: DecodeUpdate restores the
// full update including its key.
func EncodeUpdate(u StateUpdate) ([]byte, error) {
	env := updateEnvelope{
		Step:  string(u.Key.StepID),
		Key:   string(u.Key.StateKey),
		Epoch: uint64(u.Key.Epoch),
	}
	switch op := u.Op.(type) {
	case Upsert:
		env.Op = opUpsert
		env.Snapshot = op.State.Snapshot
		env.NextAwake = op.State.NextAwake
	case Discard:
		env.Op = opDiscard
	default:
		return nil, fmt.Errorf("encode state update: unknown op %T", u.Op)
	}
	return json.Marshal(env)
}

func DecodeUpdate(b []byte) (StateUpdate, error) {
	var env updateEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return StateUpdate{}, fmt.Errorf("decode state update: %w", err)
	}
	u := StateUpdate{
		Key: RecoveryKey{
			StepID:   StepID(env.Step),
			StateKey: StateKey(env.Key),
			Epoch:    stream.Epoch(env.Epoch),
		},
	}
	switch env.Op {
	case opUpsert:
		u.Op = Upsert{State: State{Snapshot: env.Snapshot, NextAwake: env.NextAwake}}
	case opDiscard:
		u.Op = Discard{}
	default:
		return StateUpdate{}, fmt.Errorf("decode state update: unknown op %q", env.Op)
	}
	return u, nil
}

// EncodeEpoch renders an epoch as 8 big-endian bytes, so byte-ordered
// store keys sort by epoch.
func EncodeEpoch(e stream.Epoch) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(e))
	return b[:]
}

func DecodeEpoch(b []byte) (stream.Epoch, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("decode epoch: want 8 bytes, got %d", len(b))
	}
	return stream.Epoch(binary.BigEndian.Uint64(b)), nil
}
