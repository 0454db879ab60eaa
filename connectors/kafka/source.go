package kafka

import (
	"context"
	"encoding/binary"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/vishalsingh17/bytewax/inputs"
)

// Message is one record read from a topic.
type Message struct {
	Key       []byte
	Value     []byte
	Partition int32
	Offset    int64
	Timestamp time.Time
}

// Source reads a Kafka topic, one dataflow input part per partition.
// Resume snapshots carry the next offset to fetch, so a resumed
// execution picks up where the last epoch it framed left off.
type Source struct {
	brokers []string
	topic   string
}

func NewSource(brokers []string, topic string) *Source {
	return &Source{brokers: brokers, topic: topic}
}

func (s *Source) ListParts(ctx context.Context) ([]string, error) {
	client, err := kgo.NewClient(kgo.SeedBrokers(s.brokers...))
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	defer client.Close()

	topics, err := kadm.NewClient(client).ListTopics(ctx, s.topic)
	if err != nil {
		return nil, fmt.Errorf("list topic %s: %w", s.topic, err)
	}
	detail, ok := topics[s.topic]
	if !ok {
		return nil, fmt.Errorf("topic %s not found", s.topic)
	}
	if detail.Err != nil {
		return nil, fmt.Errorf("list topic %s: %w", s.topic, detail.Err)
	}

	parts := make([]string, 0, len(detail.Partitions))
	for partition := range detail.Partitions {
		parts = append(parts, strconv.Itoa(int(partition)))
	}
	slices.Sort(parts)
	return parts, nil
}

func (s *Source) BuildPart(ctx context.Context, forPart string, resumeState []byte) (inputs.Reader[Message], error) {
	partition, err := strconv.ParseInt(forPart, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("partition %q: %w", forPart, err)
	}

	at := kgo.NewOffset().AtStart()
	next, resumed, err := resumeOffset(resumeState)
	if err != nil {
		return nil, fmt.Errorf("partition %q: %w", forPart, err)
	}
	if resumed {
		at = kgo.NewOffset().At(next)
	} else {
		next = -1
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(s.brokers...),
		kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{
			s.topic: {int32(partition): at},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	pumpCtx, stop := context.WithCancel(context.Background())
	r := &partReader{
		client:    client,
		stop:      stop,
		partition: int32(partition),
		records:   make(chan *kgo.Record, recordBuffer),
		errs:      make(chan error, 1),
		next:      next,
	}
	go r.pump(pumpCtx)
	return r, nil
}

const recordBuffer = 256

// partReader serves one partition. A pump goroutine moves records from
// the blocking consumer into a buffer; Next drains the buffer without
// ever blocking the scheduler.
type partReader struct {
	client    *kgo.Client
	stop      context.CancelFunc
	partition int32
	records   chan *kgo.Record
	errs      chan error

	// next is the offset after the last record handed out by Next, -1
	// until a record was delivered or a resume position is known.
	// Records still sitting in the buffer are not part of it, so they
	// replay after a resume.
	next int64
}

func (r *partReader) pump(ctx context.Context) {
	for {
		fetches := r.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		if err := fetches.Err(); err != nil {
			select {
			case r.errs <- fmt.Errorf("fetch partition %d: %w", r.partition, err):
			default:
			}
			return
		}
		fetches.EachRecord(func(rec *kgo.Record) {
			select {
			case r.records <- rec:
			case <-ctx.Done():
			}
		})
	}
}

func (r *partReader) Next() (Message, inputs.Poll, error) {
	select {
	case err := <-r.errs:
		return Message{}, inputs.Pending, err
	case rec := <-r.records:
		r.next = rec.Offset + 1
		m := Message{
			Key:       rec.Key,
			Value:     rec.Value,
			Partition: rec.Partition,
			Offset:    rec.Offset,
			Timestamp: rec.Timestamp,
		}
		return m, inputs.Ready, nil
	default:
		return Message{}, inputs.Pending, nil
	}
}

func (r *partReader) Snapshot() ([]byte, error) {
	if r.next < 0 {
		return nil, nil
	}
	return encodeOffset(r.next), nil
}

func (r *partReader) Close() error {
	r.stop()
	r.client.Close()
	return nil
}

func encodeOffset(offset int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(offset))
	return b[:]
}

// resumeOffset decodes a snapshot. Nil means a fresh start.
func resumeOffset(state []byte) (int64, bool, error) {
	if len(state) == 0 {
		return 0, false, nil
	}
	if len(state) != 8 {
		return 0, false, fmt.Errorf("resume state: want 8 bytes, got %d", len(state))
	}
	return int64(binary.BigEndian.Uint64(state)), true, nil
}

var _ inputs.PartitionedSource[Message] = (*Source)(nil)
var _ inputs.Reader[Message] = (*partReader)(nil)
