package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
	dErrors "github.com/ak652231/TraceQ-sub001/pkg/domain-errors"
	"github.com/ak652231/TraceQ-sub001/pkg/platform/circuit"
	"github.com/ak652231/TraceQ-sub001/pkg/requestcontext"
)

// DefaultChannel is the Redis pub/sub channel shared by every instance.
const DefaultChannel = "traceq:live"

// bridgeMessage is what travels over Redis: the recipient plus the already
// encoded envelope. A nil UserID is a broadcast.
type bridgeMessage struct {
	UserID    id.UserID       `json:"user_id"`
	Frame     json.RawMessage `json:"frame"`
	RequestID string          `json:"request_id,omitempty"`
}

// Bridge publishes live events through Redis so a user connected to any
// instance receives them. While Redis fails the circuit opens and events are
// delivered to local connections only; each publish then pings Redis to probe
// for recovery.
type Bridge struct {
	client  *redis.Client
	hub     *Hub
	channel string
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *Metrics
}

type BridgeOption func(*Bridge)

func WithChannel(channel string) BridgeOption {
	return func(b *Bridge) {
		if channel != "" {
			b.channel = channel
		}
	}
}

func WithBreaker(breaker *circuit.Breaker) BridgeOption {
	return func(b *Bridge) {
		b.breaker = breaker
	}
}

func WithBridgeLogger(logger *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		b.logger = logger
	}
}

func WithBridgeMetrics(m *Metrics) BridgeOption {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// NewBridge wires hub to Redis. Call Run to start receiving.
func NewBridge(client *redis.Client, hub *Hub, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		client:  client,
		hub:     hub,
		channel: DefaultChannel,
		breaker: circuit.New("live-bridge"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish sends event to userID on every instance, or to every connection on
// every instance when userID is nil.
func (b *Bridge) Publish(ctx context.Context, userID id.UserID, event string, payload any) error {
	if b.breaker.IsOpen() {
		b.probe(ctx)
		return b.publishLocal(ctx, userID, event, payload)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeDispatchUnavailable, "dispatch deadline exceeded")
	}

	frame, err := Encode(event, payload, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	msg, err := json.Marshal(bridgeMessage{UserID: userID, Frame: frame, RequestID: requestcontext.RequestID(ctx)})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode bridge message")
	}
	if err := b.client.Publish(ctx, b.channel, msg).Err(); err != nil {
		b.recordFailure(ctx, err)
		return b.publishLocal(ctx, userID, event, payload)
	}
	b.breaker.RecordSuccess()
	b.metrics.IncrementBridge("redis")
	return nil
}

func (b *Bridge) publishLocal(ctx context.Context, userID id.UserID, event string, payload any) error {
	b.metrics.IncrementBridge("local_fallback")
	return b.hub.Publish(ctx, userID, event, payload)
}

func (b *Bridge) probe(ctx context.Context) {
	if err := b.client.Ping(ctx).Err(); err != nil {
		b.recordFailure(ctx, err)
		return
	}
	if _, change := b.breaker.RecordSuccess(); change.Closed {
		b.metrics.SetBridgeOpen(false)
		b.logger.InfoContext(ctx, "live bridge circuit closed", "breaker", b.breaker.Name())
	}
}

func (b *Bridge) recordFailure(ctx context.Context, err error) {
	_, change := b.breaker.RecordFailure()
	if change.Opened {
		b.metrics.SetBridgeOpen(true)
		b.logger.WarnContext(ctx, "live bridge circuit opened",
			"breaker", b.breaker.Name(),
			"error", err,
		)
		return
	}
	b.logger.WarnContext(ctx, "live bridge publish failed", "error", err)
}

// Run subscribes to the shared channel and hands every received frame to the
// local hub until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription confirmation so publishes issued after Run
	// starts are not missed.
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg bridgeMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				b.logger.WarnContext(ctx, "invalid bridge message", "error", err)
				continue
			}
			b.hub.Deliver(requestcontext.WithRequestID(ctx, msg.RequestID), msg.UserID, msg.Frame)
		}
	}
}
