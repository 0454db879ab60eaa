package inputs

import "context"

// ChannelSource adapts a receive channel into a dynamic input. All
// workers poll the same channel, so items land on whichever worker gets
// there first. Closing the channel ends the input. The readers are
// stateless: a resumed execution simply continues with whatever the
// channel still delivers.
type ChannelSource[D any] struct {
	ch <-chan D
}

func NewChannelSource[D any](ch <-chan D) *ChannelSource[D] {
	return &ChannelSource[D]{ch: ch}
}

func (s *ChannelSource[D]) Build(ctx context.Context, workerIndex, workerCount int) (Reader[D], error) {
	return &channelReader[D]{ch: s.ch}, nil
}

type channelReader[D any] struct {
	ch <-chan D
}

func (r *channelReader[D]) Next() (D, Poll, error) {
	select {
	case item, ok := <-r.ch:
		if !ok {
			var zero D
			return zero, EOF, nil
		}
		return item, Ready, nil
	default:
		var zero D
		return zero, Pending, nil
	}
}

func (r *channelReader[D]) Snapshot() ([]byte, error) {
	return nil, nil
}

func (r *channelReader[D]) Close() error {
	return nil
}

var _ DynamicSource[int] = (*ChannelSource[int])(nil)
