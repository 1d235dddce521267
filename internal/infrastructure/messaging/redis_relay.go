package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/guild-leveling/internal/domain/shared"
	"github.com/alem-hub/guild-leveling/pkg/logger"
	"github.com/alem-hub/guild-leveling/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// REDIS CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// RedisClient defines the Pub/Sub operations the relay needs.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error)
	Close() error
}

// RedisMessage represents a message received from Redis Pub/Sub.
type RedisMessage struct {
	Channel string
	Payload string
	Err     error
}

// goRedisClient adapts *redis.Client to RedisClient.
type goRedisClient struct {
	client *redis.Client
}

// NewGoRedisClient wraps a go-redis client.
func NewGoRedisClient(client *redis.Client) RedisClient {
	return &goRedisClient{client: client}
}

func (c *goRedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	return c.client.Publish(ctx, channel, message).Err()
}

func (c *goRedisClient) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	ps := c.client.Subscribe(ctx, channels...)
	// Wait for the subscription confirmation so messages are not missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan RedisMessage, 64)
	go func() {
		defer close(out)
		defer ps.Close()

		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (c *goRedisClient) Close() error {
	return c.client.Close()
}

// ══════════════════════════════════════════════════════════════════════════════
// RELAY
// ══════════════════════════════════════════════════════════════════════════════

// DefaultRelayChannel is the Pub/Sub channel used when none is configured.
const DefaultRelayChannel = "leveling:events"

// RedisRelayConfig contains configuration for RedisRelay.
type RedisRelayConfig struct {
	// Client is the Redis client to use
	Client RedisClient

	// Channel is the Pub/Sub channel (default: "leveling:events")
	Channel string

	// InstanceID identifies this process so it can drop its own echoes
	InstanceID string

	// PublishTimeout bounds one publish round trip (default: 2s)
	PublishTimeout time.Duration

	// Logger for structured logging
	Logger *logger.Logger
}

// RedisRelay mirrors a local Bus onto a Redis channel.
//
// Outbound: every event published on the local bus is sent to the channel.
// Inbound: events from other instances are republished on the local bus as
// *RemoteEvent values, which are never sent out again.
type RedisRelay struct {
	bus        *Bus
	client     RedisClient
	channel    string
	instanceID string
	timeout    time.Duration
	retrier    *retry.Retrier
	logger     *logger.Logger

	mu     sync.Mutex
	subID  string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedisRelay creates a relay for bus. Call Start to begin relaying.
func NewRedisRelay(bus *Bus, cfg RedisRelayConfig) (*RedisRelay, error) {
	if bus == nil {
		return nil, errors.New("bus is required")
	}
	if cfg.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultRelayChannel
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	return &RedisRelay{
		bus:        bus,
		client:     cfg.Client,
		channel:    cfg.Channel,
		instanceID: cfg.InstanceID,
		timeout:    cfg.PublishTimeout,
		retrier:    retry.RelayRetrier(),
		logger:     cfg.Logger.With(logger.Component("redis-relay"), logger.String("channel", cfg.Channel)),
	}, nil
}

// InstanceID returns the identifier stamped on outgoing envelopes.
func (r *RedisRelay) InstanceID() string {
	return r.instanceID
}

// Start subscribes to the channel and to the local bus.
func (r *RedisRelay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return errors.New("relay already started")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	messages, err := r.client.Subscribe(r.ctx, r.channel)
	if err != nil {
		r.cancel()
		r.cancel = nil
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	subID, err := r.bus.SubscribeAll(r.forward)
	if err != nil {
		r.cancel()
		r.cancel = nil
		return fmt.Errorf("subscribe local bus: %w", err)
	}
	r.subID = subID

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.listen(messages)
	}()

	r.logger.Info("event relay started", logger.String("instance_id", r.instanceID))
	return nil
}

// Stop detaches from the local bus and waits for the listener to exit.
func (r *RedisRelay) Stop() error {
	r.mu.Lock()
	if r.cancel == nil {
		r.mu.Unlock()
		return nil
	}
	r.bus.Unsubscribe(r.subID)
	r.cancel()
	r.cancel = nil
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("event relay stopped")
	return nil
}

// forward publishes a local event to Redis.
func (r *RedisRelay) forward(event shared.Event) error {
	if _, remote := event.(*RemoteEvent); remote {
		return nil
	}

	data, err := json.Marshal(newEnvelope(r.instanceID, event))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return r.retrier.Do(r.ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		if err := r.client.Publish(ctx, r.channel, string(data)); err != nil {
			return retry.Retryable(err)
		}
		return nil
	})
}

// listen processes messages from Redis until the channel closes or Stop.
func (r *RedisRelay) listen(messages <-chan RedisMessage) {
	for {
		select {
		case <-r.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if msg.Err != nil {
				r.logger.Error("redis subscription error", logger.Err(msg.Err))
				continue
			}
			r.handle(msg)
		}
	}
}

func (r *RedisRelay) handle(msg RedisMessage) {
	var env eventEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		r.logger.Warn("dropping malformed event", logger.Err(err))
		return
	}

	if env.InstanceID == r.instanceID {
		return
	}

	if err := r.bus.Publish(env.toRemote()); err != nil {
		r.logger.Error("failed to publish remote event", logger.Err(err))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

type eventEnvelope struct {
	InstanceID  string                 `json:"instance_id"`
	EventID     string                 `json:"event_id,omitempty"`
	EventType   shared.EventType       `json:"event_type"`
	AggregateID string                 `json:"aggregate_id"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Payload     map[string]interface{} `json:"payload"`
}

func newEnvelope(instanceID string, event shared.Event) eventEnvelope {
	env := eventEnvelope{
		InstanceID:  instanceID,
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     event.Payload(),
	}
	if ided, ok := event.(interface{ EventID() string }); ok {
		env.EventID = ided.EventID()
	}
	return env
}

func (e eventEnvelope) toRemote() *RemoteEvent {
	return &RemoteEvent{
		ID:          e.EventID,
		Origin:      e.InstanceID,
		Type:        e.EventType,
		Aggregate:   e.AggregateID,
		Timestamp:   e.OccurredAt,
		PayloadData: e.Payload,
	}
}

// RemoteEvent is an event received from another instance. Numeric payload
// values arrive as float64.
type RemoteEvent struct {
	ID          string
	Origin      string
	Type        shared.EventType
	Aggregate   string
	Timestamp   time.Time
	PayloadData map[string]interface{}
}

func (e *RemoteEvent) EventType() shared.EventType      { return e.Type }
func (e *RemoteEvent) AggregateID() string              { return e.Aggregate }
func (e *RemoteEvent) OccurredAt() time.Time            { return e.Timestamp }
func (e *RemoteEvent) Payload() map[string]interface{} { return e.PayloadData }
