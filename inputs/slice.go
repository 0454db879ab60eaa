package inputs

import (
	"context"
	"encoding/binary"
	"fmt"
	"slices"
)

// SliceSource feeds fixed in-memory items, one partition per named
// slice. Snapshots record the next index, so a resumed execution picks
// up exactly where the last snapshot was taken. It is the source to
// reach for in tests.
type SliceSource[D any] struct {
	parts map[string][]D
}

// NewSliceSource wraps items as a single-partition source named "items".
func NewSliceSource[D any](items []D) *SliceSource[D] {
	return &SliceSource[D]{parts: map[string][]D{"items": items}}
}

// NewSliceParts wraps several named slices, one partition each.
func NewSliceParts[D any](parts map[string][]D) *SliceSource[D] {
	return &SliceSource[D]{parts: parts}
}

func (s *SliceSource[D]) ListParts(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(s.parts))
	for name := range s.parts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (s *SliceSource[D]) BuildPart(ctx context.Context, forPart string, resumeState []byte) (Reader[D], error) {
	items, ok := s.parts[forPart]
	if !ok {
		return nil, fmt.Errorf("slice source has no partition %q", forPart)
	}
	next := uint64(0)
	if resumeState != nil {
		idx, err := decodeIndex(resumeState)
		if err != nil {
			return nil, fmt.Errorf("partition %q: %w", forPart, err)
		}
		if idx > uint64(len(items)) {
			return nil, fmt.Errorf("partition %q: resume index %d beyond %d items", forPart, idx, len(items))
		}
		next = idx
	}
	return &sliceReader[D]{items: items, next: next}, nil
}

type sliceReader[D any] struct {
	items []D
	next  uint64
}

func (r *sliceReader[D]) Next() (D, Poll, error) {
	if r.next >= uint64(len(r.items)) {
		var zero D
		return zero, EOF, nil
	}
	item := r.items[r.next]
	r.next++
	return item, Ready, nil
}

func (r *sliceReader[D]) Snapshot() ([]byte, error) {
	return encodeIndex(r.next), nil
}

func (r *sliceReader[D]) Close() error {
	return nil
}

func encodeIndex(i uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], i)
	return b[:]
}

func decodeIndex(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("decode resume index: want 8 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

var _ PartitionedSource[int] = (*SliceSource[int])(nil)
