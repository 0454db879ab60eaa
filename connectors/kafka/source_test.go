package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/vishalsingh17/bytewax/inputs"
)

func bufferedReader(records ...*kgo.Record) *partReader {
	r := &partReader{
		stop:    func() {},
		records: make(chan *kgo.Record, recordBuffer),
		errs:    make(chan error, 1),
		next:    -1,
	}
	for _, rec := range records {
		r.records <- rec
	}
	return r
}

func TestPartReader_Next(t *testing.T) {
	t.Run("drains buffered records then pends", func(t *testing.T) {
		ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		r := bufferedReader(
			&kgo.Record{Key: []byte("k0"), Value: []byte("v0"), Partition: 2, Offset: 5, Timestamp: ts},
			&kgo.Record{Key: []byte("k1"), Value: []byte("v1"), Partition: 2, Offset: 6, Timestamp: ts},
		)

		m, poll, err := r.Next()
		assert.NoError(t, err)
		assert.Equal(t, inputs.Ready, poll)
		assert.Equal(t, Message{Key: []byte("k0"), Value: []byte("v0"), Partition: 2, Offset: 5, Timestamp: ts}, m)

		_, poll, err = r.Next()
		assert.NoError(t, err)
		assert.Equal(t, inputs.Ready, poll)

		_, poll, err = r.Next()
		assert.NoError(t, err)
		assert.Equal(t, inputs.Pending, poll)
	})

	t.Run("pump errors surface as fatal", func(t *testing.T) {
		r := bufferedReader()
		r.errs <- errors.New("fetch partition 2: broker gone")

		_, _, err := r.Next()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "broker gone")
	})
}

func TestPartReader_Snapshot(t *testing.T) {
	t.Run("nothing consumed means no position", func(t *testing.T) {
		r := bufferedReader(&kgo.Record{Offset: 5})

		snap, err := r.Snapshot()
		assert.NoError(t, err)
		assert.Zero(t, snap)
	})

	t.Run("tracks the offset after the delivered record", func(t *testing.T) {
		r := bufferedReader(&kgo.Record{Offset: 5}, &kgo.Record{Offset: 6})

		_, _, err := r.Next()
		assert.NoError(t, err)

		snap, err := r.Snapshot()
		assert.NoError(t, err)

		next, resumed, err := resumeOffset(snap)
		assert.NoError(t, err)
		assert.True(t, resumed)
		assert.Equal(t, int64(6), next)

		// The record still in the buffer was never handed out, so the
		// position must not cover it.
		_, _, err = r.Next()
		assert.NoError(t, err)
		snap, _ = r.Snapshot()
		next, _, _ = resumeOffset(snap)
		assert.Equal(t, int64(7), next)
	})

	t.Run("a resumed position survives until the first record", func(t *testing.T) {
		r := bufferedReader()
		r.next = 42

		snap, err := r.Snapshot()
		assert.NoError(t, err)

		next, resumed, err := resumeOffset(snap)
		assert.NoError(t, err)
		assert.True(t, resumed)
		assert.Equal(t, int64(42), next)
	})
}

func TestResumeOffset(t *testing.T) {
	t.Run("round trips", func(t *testing.T) {
		next, resumed, err := resumeOffset(encodeOffset(123456))
		assert.NoError(t, err)
		assert.True(t, resumed)
		assert.Equal(t, int64(123456), next)
	})

	t.Run("nil means fresh start", func(t *testing.T) {
		_, resumed, err := resumeOffset(nil)
		assert.NoError(t, err)
		assert.False(t, resumed)
	})

	t.Run("junk is rejected", func(t *testing.T) {
		_, _, err := resumeOffset([]byte("bad"))
		assert.Error(t, err)
	})
}

func TestBuildPart_RejectsBadPartition(t *testing.T) {
	s := NewSource([]string{"localhost:9092"}, "events")

	_, err := s.BuildPart(context.Background(), "not-a-number", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-number")
}

func TestBuildPart_RejectsBadResumeState(t *testing.T) {
	s := NewSource([]string{"localhost:9092"}, "events")

	_, err := s.BuildPart(context.Background(), "0", []byte("junk"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "resume state")
}
