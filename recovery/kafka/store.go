package kafka

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/vishalsingh17/bytewax/recovery"
	"github.com/vishalsingh17/bytewax/stream"
)

// Store keeps recovery data in a single-partition compacted Kafka topic.
// Every state frame and worker frontier is one record; Open replays the
// topic into memory and reads are served from that view, so only writes
// touch the broker while a dataflow runs.
type Store struct {
	client *kgo.Client
	topic  string
	mem    *recovery.MemoryStore
}

// Open connects to the brokers, makes sure the recovery topic exists and
// replays it. The topic is compacted; epochs are part of the record key,
// so compaction only collapses rewrites of the same frame, never whole
// shards.
func Open(ctx context.Context, brokers []string, topic string) (*Store, error) {
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	s := &Store{client: client, topic: topic, mem: recovery.NewMemoryStore()}

	if err := ensureTopic(ctx, kadm.NewClient(client), topic); err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure recovery topic %s: %w", topic, err)
	}
	if err := s.replay(ctx, brokers); err != nil {
		client.Close()
		return nil, fmt.Errorf("replay recovery topic %s: %w", topic, err)
	}
	return s, nil
}

func ensureTopic(ctx context.Context, admin *kadm.Client, topic string) error {
	compact := "compact"
	configs := map[string]*string{"cleanup.policy": &compact}

	resps, err := admin.CreateTopics(ctx, 1, -1, configs, topic)
	if err != nil {
		return err
	}
	for _, resp := range resps {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return resp.Err
		}
	}
	return nil
}

func (s *Store) replay(ctx context.Context, brokers []string) error {
	end, err := s.endOffset(ctx)
	if err != nil {
		return err
	}
	if end == 0 {
		return nil
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{
			s.topic: {0: kgo.NewOffset().AtStart()},
		}),
	)
	if err != nil {
		return fmt.Errorf("create replay client: %w", err)
	}
	defer consumer.Close()

	for last := int64(-1); last < end-1; {
		fetches := consumer.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return errors.New("replay client closed")
		}
		if err := fetches.Err(); err != nil {
			return fmt.Errorf("fetch: %w", err)
		}

		var applyErr error
		fetches.EachRecord(func(rec *kgo.Record) {
			if applyErr != nil {
				return
			}
			applyErr = s.apply(ctx, rec)
			last = rec.Offset
		})
		if applyErr != nil {
			return applyErr
		}
	}
	return nil
}

func (s *Store) endOffset(ctx context.Context) (int64, error) {
	offsets, err := kadm.NewClient(s.client).ListEndOffsets(ctx, s.topic)
	if err != nil {
		return 0, fmt.Errorf("list end offsets: %w", err)
	}
	listed, ok := offsets.Lookup(s.topic, 0)
	if !ok {
		return 0, fmt.Errorf("recovery topic %s has no partition 0", s.topic)
	}
	if listed.Err != nil {
		return 0, fmt.Errorf("list end offsets: %w", listed.Err)
	}
	return listed.Offset, nil
}

// apply folds one replayed record into the in-memory view. The record
// key's first byte says what kind of row it is.
func (s *Store) apply(ctx context.Context, rec *kgo.Record) error {
	if len(rec.Value) == 0 {
		// Compaction tombstone.
		return nil
	}
	switch {
	case bytes.HasPrefix(rec.Key, statePrefix):
		update, err := recovery.DecodeUpdate(rec.Value)
		if err != nil {
			return fmt.Errorf("replay offset %d: %w", rec.Offset, err)
		}
		return s.mem.WriteState(ctx, update)
	case bytes.HasPrefix(rec.Key, frontierPrefix):
		worker, err := workerFromKey(rec.Key)
		if err != nil {
			return fmt.Errorf("replay offset %d: %w", rec.Offset, err)
		}
		epoch, err := recovery.DecodeEpoch(rec.Value)
		if err != nil {
			return fmt.Errorf("replay offset %d: %w", rec.Offset, err)
		}
		return s.mem.WriteFrontier(ctx, worker, epoch)
	}
	return fmt.Errorf("replay offset %d: unknown record key %q", rec.Offset, rec.Key)
}

var (
	statePrefix    = []byte("s\x00")
	frontierPrefix = []byte("f\x00")
)

// stateRecordKey puts step, key and epoch into the record key, so log
// compaction keeps the newest write per frame instead of per shard.
func stateRecordKey(k recovery.RecoveryKey) []byte {
	buf := make([]byte, 0, len(statePrefix)+len(k.StepID)+len(k.StateKey)+10)
	buf = append(buf, statePrefix...)
	buf = append(buf, k.StepID...)
	buf = append(buf, 0)
	buf = append(buf, k.StateKey...)
	buf = append(buf, 0)
	return append(buf, recovery.EncodeEpoch(k.Epoch)...)
}

func frontierRecordKey(worker int) []byte {
	buf := make([]byte, len(frontierPrefix)+8)
	copy(buf, frontierPrefix)
	binary.BigEndian.PutUint64(buf[len(frontierPrefix):], uint64(worker))
	return buf
}

func workerFromKey(key []byte) (int, error) {
	raw := key[len(frontierPrefix):]
	if len(raw) != 8 {
		return 0, fmt.Errorf("frontier key: want 8 byte worker, got %d", len(raw))
	}
	return int(binary.BigEndian.Uint64(raw)), nil
}

func (s *Store) WriteState(ctx context.Context, update recovery.StateUpdate) error {
	value, err := recovery.EncodeUpdate(update)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}
	rec := &kgo.Record{Topic: s.topic, Key: stateRecordKey(update.Key), Value: value}
	if err := s.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce state update: %w", err)
	}
	return s.mem.WriteState(ctx, update)
}

func (s *Store) ReadState(ctx context.Context, step recovery.StepID, key recovery.StateKey, before stream.Epoch) (recovery.State, bool, error) {
	return s.mem.ReadState(ctx, step, key, before)
}

func (s *Store) WriteFrontier(ctx context.Context, worker int, epoch stream.Epoch) error {
	rec := &kgo.Record{Topic: s.topic, Key: frontierRecordKey(worker), Value: recovery.EncodeEpoch(epoch)}
	if err := s.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce frontier: %w", err)
	}
	return s.mem.WriteFrontier(ctx, worker, epoch)
}

func (s *Store) ReadFrontier(ctx context.Context) (stream.Epoch, bool, error) {
	return s.mem.ReadFrontier(ctx)
}

func (s *Store) Close() error {
	s.client.Close()
	return nil
}

var _ recovery.Store = (*Store)(nil)
