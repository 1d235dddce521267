package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/guild-leveling/internal/domain/shared"
)

// fakeBroker fans published messages out to every subscriber.
type fakeBroker struct {
	mu        sync.Mutex
	subs      []chan RedisMessage
	published []string
}

type fakeRedis struct {
	broker   *fakeBroker
	failures int32
}

func (c *fakeRedis) Publish(_ context.Context, channel string, message interface{}) error {
	if atomic.AddInt32(&c.failures, -1) >= 0 {
		return errors.New("connection refused")
	}

	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()

	payload := message.(string)
	c.broker.published = append(c.broker.published, payload)
	for _, ch := range c.broker.subs {
		ch <- RedisMessage{Channel: channel, Payload: payload}
	}
	return nil
}

func (c *fakeRedis) Subscribe(context.Context, ...string) (<-chan RedisMessage, error) {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()

	ch := make(chan RedisMessage, 16)
	c.broker.subs = append(c.broker.subs, ch)
	return ch, nil
}

func (c *fakeRedis) Close() error { return nil }

func (b *fakeBroker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func startRelay(t *testing.T, broker *fakeBroker, instance string) (*Bus, *fakeRedis) {
	t.Helper()

	bus := NewBus()
	client := &fakeRedis{broker: broker}
	relay, err := NewRedisRelay(bus, RedisRelayConfig{Client: client, InstanceID: instance})
	require.NoError(t, err)
	require.NoError(t, relay.Start(context.Background()))
	t.Cleanup(func() { _ = relay.Stop() })

	return bus, client
}

func TestRedisRelay_MirrorsEventsAcrossInstances(t *testing.T) {
	broker := &fakeBroker{}
	busA, _ := startRelay(t, broker, "a")
	busB, _ := startRelay(t, broker, "b")

	var localA, remoteB atomic.Int32
	var received atomic.Value
	_, _ = busA.Subscribe(shared.EventNewLevel, func(shared.Event) error {
		localA.Add(1)
		return nil
	})
	_, _ = busB.Subscribe(shared.EventNewLevel, func(e shared.Event) error {
		remoteB.Add(1)
		received.Store(e)
		return nil
	})

	require.NoError(t, busA.Publish(shared.NewNewLevelEvent("g1", "m1", 2)))

	assert.Eventually(t, func() bool { return remoteB.Load() == 1 }, time.Second, 5*time.Millisecond)

	ev, ok := received.Load().(*RemoteEvent)
	require.True(t, ok)
	assert.Equal(t, "a", ev.Origin)
	assert.Equal(t, "g1", ev.Payload()["guild_id"])
	assert.EqualValues(t, 2, ev.Payload()["level"])
	assert.NotEmpty(t, ev.ID)

	// Neither side re-sends the remote copy, and A ignores its own echo.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, broker.count())
	assert.EqualValues(t, 1, localA.Load())
}

func TestRedisRelay_RetriesPublish(t *testing.T) {
	broker := &fakeBroker{}
	bus, client := startRelay(t, broker, "a")
	client.failures = 2

	require.NoError(t, bus.Publish(shared.NewNewLevelEvent("g1", "m1", 2)))
	assert.Equal(t, 1, broker.count())
}

func TestRedisRelay_StopDetachesFromBus(t *testing.T) {
	broker := &fakeBroker{}
	bus := NewBus()
	relay, err := NewRedisRelay(bus, RedisRelayConfig{Client: &fakeRedis{broker: broker}})
	require.NoError(t, err)

	require.NoError(t, relay.Start(context.Background()))
	assert.Error(t, relay.Start(context.Background()))
	assert.Equal(t, 1, bus.Len())

	require.NoError(t, relay.Stop())
	assert.Zero(t, bus.Len())
	assert.NotEmpty(t, relay.InstanceID())
}

func TestNewRedisRelay_RequiresClient(t *testing.T) {
	_, err := NewRedisRelay(NewBus(), RedisRelayConfig{})
	assert.Error(t, err)
}
