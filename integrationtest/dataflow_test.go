package integrationtest

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/vishalsingh17/bytewax"
	kafkasource "github.com/vishalsingh17/bytewax/connectors/kafka"
	"github.com/vishalsingh17/bytewax/recovery"
	kafkastore "github.com/vishalsingh17/bytewax/recovery/kafka"
	"github.com/vishalsingh17/bytewax/stream"
)

func recoveryUpdate(step recovery.StepID, key recovery.StateKey, epoch stream.Epoch, snapshot string) recovery.StateUpdate {
	return recovery.StateUpdate{
		Key: recovery.RecoveryKey{StepID: step, StateKey: key, Epoch: epoch},
		Op:  recovery.Upsert{State: recovery.State{Snapshot: []byte(snapshot)}},
	}
}

type collector struct {
	mu      sync.Mutex
	offsets []int64
	values  []string
}

func (c *collector) sink(epoch stream.Epoch, m kafkasource.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offsets = append(c.offsets, m.Offset)
	c.values = append(c.values, string(m.Value))
	return nil
}

func (c *collector) snapshot() ([]int64, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.offsets...), append([]string(nil), c.values...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func tailFlow(brokers []string, topic string, c *collector) *bytewax.Dataflow {
	flow := bytewax.NewDataflow("tail")
	records := bytewax.Input(flow, "events", kafkasource.NewSource(brokers, topic))
	bytewax.Output(flow, "collect", records, c.sink)
	return flow
}

func produce(t *testing.T, client *kgo.Client, topic string, values ...string) {
	t.Helper()
	ctx := context.Background()
	for _, v := range values {
		result := client.ProduceSync(ctx, &kgo.Record{Topic: topic, Value: []byte(v)})
		assert.NoError(t, result.FirstErr())
	}
}

func TestKafkaDataflow_ResumesFromRecoveryTopic(t *testing.T) {
	brokers := startRedpanda(t)

	ctx := context.Background()
	topic := fmt.Sprintf("events-%d", time.Now().UnixNano())
	recoveryTopic := topic + "-recovery"

	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	assert.NoError(t, err)
	defer client.Close()

	_, err = kadm.NewClient(client).CreateTopics(ctx, 1, 1, nil, topic)
	assert.NoError(t, err)

	produce(t, client, topic, "a", "b", "c")

	store, err := kafkastore.Open(ctx, brokers, recoveryTopic)
	assert.NoError(t, err)
	defer store.Close()

	c := &collector{}
	app := bytewax.MustNew(tailFlow(brokers, topic, c),
		bytewax.WithEpochConfig(bytewax.PeriodicEpoch(200*time.Millisecond)),
		bytewax.WithRecoveryStore(store),
	)

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	waitFor(t, "first run to see all records", func() bool {
		offsets, _ := c.snapshot()
		return len(offsets) == 3
	})

	// The next execution starts clean only once a frame covering all
	// three records is persisted; the frontier trails delivery by up to
	// one epoch.
	waitFor(t, "a frame covering offset 2", func() bool {
		frontier, ok, err := store.ReadFrontier(ctx)
		if err != nil || !ok {
			return false
		}
		state, ok, err := store.ReadState(ctx, "events", "0", frontier)
		if err != nil || !ok || len(state.Snapshot) != 8 {
			return false
		}
		return int64(binary.BigEndian.Uint64(state.Snapshot)) == 3
	})

	assert.NoError(t, app.Close())
	assert.NoError(t, <-done)

	_, values := c.snapshot()
	assert.Equal(t, []string{"a", "b", "c"}, values)

	produce(t, client, topic, "d", "e")

	resumedStore, err := kafkastore.Open(ctx, brokers, recoveryTopic)
	assert.NoError(t, err)
	defer resumedStore.Close()

	c2 := &collector{}
	app2 := bytewax.MustNew(tailFlow(brokers, topic, c2),
		bytewax.WithEpochConfig(bytewax.PeriodicEpoch(200*time.Millisecond)),
		bytewax.WithRecoveryStore(resumedStore),
	)

	done2 := make(chan error, 1)
	go func() { done2 <- app2.Run(ctx) }()

	waitFor(t, "resumed run to see the new records", func() bool {
		offsets, _ := c2.snapshot()
		return len(offsets) == 2
	})

	assert.NoError(t, app2.Close())
	assert.NoError(t, <-done2)

	offsets, values := c2.snapshot()
	assert.Equal(t, []int64{3, 4}, offsets)
	assert.Equal(t, []string{"d", "e"}, values)
}

func TestKafkaRecoveryStore_SurvivesReopen(t *testing.T) {
	brokers := startRedpanda(t)

	ctx := context.Background()
	recoveryTopic := fmt.Sprintf("recovery-%d", time.Now().UnixNano())

	store, err := kafkastore.Open(ctx, brokers, recoveryTopic)
	assert.NoError(t, err)

	update := recoveryUpdate("in", "0", 2, "snap")
	assert.NoError(t, store.WriteState(ctx, update))
	assert.NoError(t, store.WriteFrontier(ctx, 0, 3))
	assert.NoError(t, store.Close())

	reopened, err := kafkastore.Open(ctx, brokers, recoveryTopic)
	assert.NoError(t, err)
	defer reopened.Close()

	state, ok, err := reopened.ReadState(ctx, "in", "0", 3)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("snap"), state.Snapshot)

	frontier, ok, err := reopened.ReadFrontier(ctx)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, stream.Epoch(3), frontier)
}
