package execution

import (
	"fmt"
	"time"

	"github.com/vishalsingh17/bytewax/inputs"
	"github.com/vishalsingh17/bytewax/recovery"
	"github.com/vishalsingh17/bytewax/stream"
)

// capPair is the pair of capabilities a source holds for its item and
// state update outputs. The two must advance in lock step; divergence is
// a bug in the operator, never an input condition, so it panics.
type capPair struct {
	data *stream.Capability
	snap *stream.Capability
}

func (p *capPair) time() stream.Epoch {
	dt := p.data.Time()
	st := p.snap.Time()
	if dt != st {
		panic(fmt.Sprintf("execution: source capabilities diverged: data at %d, state at %d", dt, st))
	}
	return dt
}

func (p *capPair) downgrade(t stream.Epoch) {
	p.data.Downgrade(t)
	p.snap.Downgrade(t)
}

func (p *capPair) drop() {
	p.data.Drop()
	p.snap.Drop()
}

// PeriodicEpochSource pumps reader into the scope, stamping every item
// with the current epoch and rolling the epoch over on a wall-clock
// period. At each rollover it snapshots the reader and emits the frame
// on the state stream at the closing epoch, so the snapshot describes
// everything that epoch contained. Rollovers and polls are both held
// back while probe still reports epochs in flight before the current
// one; an overrun epoch rolls over as soon as the downstream catches up.
//
// The reader must not block in Next. It is polled once per activation
// and the source re-arms itself, so a Pending reader is retried
// immediately rather than parked. On EOF both capabilities are dropped
// and the source goes quiet. Reader errors are fatal to the dataflow.
//
// startAt is the epoch items are first emitted under. Resuming a
// dataflow passes the persisted frontier here so the replayed input
// lands in fresh epochs.
func PeriodicEpochSource[D any](
	sc *stream.Scope,
	name string,
	reader inputs.Reader[D],
	framer *recovery.Framer,
	startAt stream.Epoch,
	probe stream.Frontier,
	epochLength time.Duration,
) (*stream.Stream[D], *stream.Stream[recovery.StateUpdate]) {
	return periodicEpochSource(sc, name, reader, framer, startAt, probe, newEpochTicker(epochLength, nil))
}

func periodicEpochSource[D any](
	sc *stream.Scope,
	name string,
	reader inputs.Reader[D],
	framer *recovery.Framer,
	startAt stream.Epoch,
	probe stream.Frontier,
	clock *epochTicker,
) (*stream.Stream[D], *stream.Stream[recovery.StateUpdate]) {
	b := stream.NewOperatorBuilder(name, sc)
	dataOut, dataStream := stream.NewOutput[D](b)
	stateOut, stateStream := stream.NewOutput[recovery.StateUpdate](b)
	activator := sc.ActivatorFor(b.Address())

	b.Build(func(caps []*stream.Capability) stream.Activation {
		pair := &capPair{data: caps[0], snap: caps[1]}
		pair.downgrade(startAt)
		clock.reset()
		live := true

		return func() error {
			if !live {
				return nil
			}
			epoch := pair.time()

			eof := false
			// Everything waits, rollovers included, until all epochs
			// before the current one have fully flushed downstream.
			if !probe.LessThan(epoch) {
				if clock.elapsed() {
					snapshot, err := reader.Snapshot()
					if err != nil {
						return fmt.Errorf("snapshot reader: %w", err)
					}
					stateOut.Session(pair.snap).Give(framer.Frame(epoch, snapshot))
					pair.downgrade(epoch + 1)
					clock.reset()
				}

				item, poll, err := reader.Next()
				if err != nil {
					return fmt.Errorf("poll reader: %w", err)
				}
				switch poll {
				case inputs.Ready:
					dataOut.Session(pair.data).Give(item)
				case inputs.EOF:
					eof = true
				}
			}

			if eof {
				pair.drop()
				live = false
				return nil
			}
			activator.Activate()
			return nil
		}
	})

	return dataStream, stateStream
}
