package recovery

import (
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/vishalsingh17/bytewax/stream"
)

func TestUpdateCodec(t *testing.T) {
	t.Run("upsert survives the round trip", func(t *testing.T) {
		awake := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
		in := StateUpdate{
			Key: RecoveryKey{StepID: "in", StateKey: "part-2", Epoch: 11},
			Op:  Upsert{State: State{Snapshot: []byte{0, 1, 2}, NextAwake: &awake}},
		}

		b, err := EncodeUpdate(in)
		assert.NoError(t, err)
		out, err := DecodeUpdate(b)
		assert.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("discard survives the round trip", func(t *testing.T) {
		in := StateUpdate{
			Key: RecoveryKey{StepID: "in", StateKey: "0", Epoch: 0},
			Op:  Discard{},
		}

		b, err := EncodeUpdate(in)
		assert.NoError(t, err)
		out, err := DecodeUpdate(b)
		assert.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := DecodeUpdate([]byte("not json"))
		assert.Error(t, err)

		_, err = DecodeUpdate([]byte(`{"op":"explode"}`))
		assert.Error(t, err)
	})
}

func TestEpochCodec(t *testing.T) {
	t.Run("sorts by epoch", func(t *testing.T) {
		a := EncodeEpoch(1)
		b := EncodeEpoch(256)
		c := EncodeEpoch(1 << 40)
		assert.True(t, string(a) < string(b))
		assert.True(t, string(b) < string(c))
	})

	t.Run("round trips", func(t *testing.T) {
		e, err := DecodeEpoch(EncodeEpoch(stream.Epoch(987654321)))
		assert.NoError(t, err)
		assert.Equal(t, stream.Epoch(987654321), e)
	})

	t.Run("rejects wrong width", func(t *testing.T) {
		_, err := DecodeEpoch([]byte{1, 2, 3})
		assert.Error(t, err)
	})
}
