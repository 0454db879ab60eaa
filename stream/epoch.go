package stream

// Epoch is the logical timestamp items and snapshots are stamped with.
// Epochs are totally ordered and only ever advance.
type Epoch uint64

// Timestamped is an item tagged with the epoch it was emitted at.
type Timestamped[T any] struct {
	Epoch Epoch
	Item  T
}
