package recovery

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/vishalsingh17/bytewax/stream"
)

func TestFramer(t *testing.T) {
	t.Run("frames an upsert for its shard", func(t *testing.T) {
		f := NewFramer("numbers", "part-0")
		u := f.Frame(4, []byte("offset=17"))

		assert.Equal(t, RecoveryKey{StepID: "numbers", StateKey: "part-0", Epoch: 4}, u.Key)
		up, ok := u.Op.(Upsert)
		assert.True(t, ok)
		assert.Equal(t, []byte("offset=17"), up.State.Snapshot)
		assert.Zero(t, up.State.NextAwake)
	})

	t.Run("framing is repeatable", func(t *testing.T) {
		f := NewFramer("numbers", "part-0")
		a := f.Frame(9, []byte{1, 2, 3})
		b := f.Frame(9, []byte{1, 2, 3})
		assert.Equal(t, a, b)
	})

	t.Run("nil snapshots stay nil", func(t *testing.T) {
		f := NewFramer("stateless", "0")
		u := f.Frame(0, nil)
		up, ok := u.Op.(Upsert)
		assert.True(t, ok)
		assert.Zero(t, up.State.Snapshot)
	})

	t.Run("distinct epochs produce distinct keys", func(t *testing.T) {
		f := NewFramer("numbers", "part-1")
		assert.Equal(t, stream.Epoch(2), f.Frame(2, nil).Key.Epoch)
		assert.Equal(t, stream.Epoch(3), f.Frame(3, nil).Key.Epoch)
	})
}
