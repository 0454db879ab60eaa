package pebble

import (
	"context"
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/cockroachdb/pebble"
	"github.com/vishalsingh17/bytewax/recovery"
	"github.com/vishalsingh17/bytewax/stream"
)

// Store persists recovery state in a local pebble database. State rows
// live under `s`, one per (step, key, epoch), so every epoch's frame is
// kept and resume can pick the newest row below any epoch. Frontier rows
// live under `f`, one per worker.
type Store struct {
	db *pebble.DB
}

func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble database %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

var (
	statePrefix    = []byte("s\x00")
	frontierPrefix = []byte("f\x00")
)

// stateShardPrefix is the common prefix of every row of one (step, key)
// shard. Step and key are NUL-separated; the fixed-width epoch suffix
// keeps rows of a shard in epoch order.
func stateShardPrefix(step recovery.StepID, key recovery.StateKey) []byte {
	buf := make([]byte, 0, len(statePrefix)+len(step)+len(key)+2)
	buf = append(buf, statePrefix...)
	buf = append(buf, step...)
	buf = append(buf, 0)
	buf = append(buf, key...)
	buf = append(buf, 0)
	return buf
}

func stateKey(k recovery.RecoveryKey) []byte {
	return append(stateShardPrefix(k.StepID, k.StateKey), recovery.EncodeEpoch(k.Epoch)...)
}

func frontierKey(worker int) []byte {
	buf := make([]byte, len(frontierPrefix)+8)
	copy(buf, frontierPrefix)
	binary.BigEndian.PutUint64(buf[len(frontierPrefix):], uint64(worker))
	return buf
}

// prefixEnd returns the smallest key greater than every key with prefix p.
func prefixEnd(p []byte) []byte {
	end := slices.Clone(p)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func (s *Store) WriteState(ctx context.Context, update recovery.StateUpdate) error {
	value, err := recovery.EncodeUpdate(update)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}
	if err := s.db.Set(stateKey(update.Key), value, &pebble.WriteOptions{Sync: false}); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}

// ReadState returns the newest state written for (step, key) strictly
// before epoch. A discard row masks everything older.
func (s *Store) ReadState(ctx context.Context, step recovery.StepID, key recovery.StateKey, before stream.Epoch) (recovery.State, bool, error) {
	prefix := stateShardPrefix(step, key)
	upper := make([]byte, 0, len(prefix)+8)
	upper = append(upper, prefix...)
	upper = append(upper, recovery.EncodeEpoch(before)...)

	it := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upper,
	})
	defer it.Close()

	if !it.Last() {
		return recovery.State{}, false, nil
	}

	value, err := it.ValueAndErr()
	if err != nil {
		return recovery.State{}, false, fmt.Errorf("pebble read: %w", err)
	}
	update, err := recovery.DecodeUpdate(value)
	if err != nil {
		return recovery.State{}, false, fmt.Errorf("decode update: %w", err)
	}

	switch op := update.Op.(type) {
	case recovery.Upsert:
		return op.State, true, nil
	case recovery.Discard:
		return recovery.State{}, false, nil
	default:
		return recovery.State{}, false, fmt.Errorf("unknown state op %T", update.Op)
	}
}

// WriteFrontier records worker's resume epoch. The write is synced, and
// WAL order makes it persist every state write that preceded it.
func (s *Store) WriteFrontier(ctx context.Context, worker int, epoch stream.Epoch) error {
	if err := s.db.Set(frontierKey(worker), recovery.EncodeEpoch(epoch), pebble.Sync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}

// ReadFrontier returns the oldest frontier any worker reached, the only
// epoch known to be fully framed across all of them.
func (s *Store) ReadFrontier(ctx context.Context) (stream.Epoch, bool, error) {
	it := s.db.NewIter(&pebble.IterOptions{
		LowerBound: frontierPrefix,
		UpperBound: prefixEnd(frontierPrefix),
	})
	defer it.Close()

	var min stream.Epoch
	found := false
	for it.First(); it.Valid(); it.Next() {
		value, err := it.ValueAndErr()
		if err != nil {
			return 0, false, fmt.Errorf("pebble read: %w", err)
		}
		epoch, err := recovery.DecodeEpoch(value)
		if err != nil {
			return 0, false, fmt.Errorf("decode frontier: %w", err)
		}
		if !found || epoch < min {
			min = epoch
			found = true
		}
	}
	return min, found, nil
}

func (s *Store) Close() error {
	if err := s.db.Flush(); err != nil {
		return err
	}
	return s.db.Close()
}

var _ recovery.Store = (*Store)(nil)
