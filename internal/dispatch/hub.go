// Package dispatch fans committed notifications out to the live connections of
// their recipients. Delivery is best effort and at most once per connection:
// the persisted notification remains the source of truth.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
	dErrors "github.com/ak652231/TraceQ-sub001/pkg/domain-errors"
	"github.com/ak652231/TraceQ-sub001/pkg/requestcontext"
)

// DefaultSendBuffer is the per-connection queue length.
const DefaultSendBuffer = 32

// Envelope is the wire frame every live event travels in.
type Envelope struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Conn is one registered live connection. Frames are read from Send by the
// transport that owns the connection; Send is closed on unregister.
type Conn struct {
	ID     id.ConnectionID
	UserID id.UserID
	Send   chan []byte
}

// Hub is a concurrent userID -> connections multimap.
type Hub struct {
	mu    sync.RWMutex
	conns map[id.UserID]map[id.ConnectionID]*Conn

	// everRegistered distinguishes "nobody is listening" from "no transport was
	// ever attached to this process".
	everRegistered atomic.Bool
	sendBuffer     int

	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Hub)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		conns:      make(map[id.UserID]map[id.ConnectionID]*Conn),
		sendBuffer: DefaultSendBuffer,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register attaches a new connection for userID.
func (h *Hub) Register(userID id.UserID) *Conn {
	c := &Conn{
		ID:     id.NewConnectionID(),
		UserID: userID,
		Send:   make(chan []byte, h.sendBuffer),
	}
	h.mu.Lock()
	set, ok := h.conns[userID]
	if !ok {
		set = make(map[id.ConnectionID]*Conn)
		h.conns[userID] = set
	}
	set[c.ID] = c
	h.mu.Unlock()

	h.everRegistered.Store(true)
	h.metrics.ConnectionOpened()
	return c
}

// Unregister detaches c and closes its Send channel. Calling it twice is a no-op.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[c.UserID]
	if !ok {
		return
	}
	if _, ok := set[c.ID]; !ok {
		return
	}
	delete(set, c.ID)
	if len(set) == 0 {
		delete(h.conns, c.UserID)
	}
	close(c.Send)
	h.metrics.ConnectionClosed()
}

// Connections returns how many live connections userID has.
func (h *Hub) Connections(userID id.UserID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Publish delivers event to every connection userID has on this instance. A
// nil userID broadcasts to every connection. A user with no connections is not
// an error.
//
// Errors: CodeDispatchUnavailable when no connection was ever registered or ctx
// is already done, CodeInternal when payload cannot be encoded.
func (h *Hub) Publish(ctx context.Context, userID id.UserID, event string, payload any) error {
	if !h.everRegistered.Load() {
		return dErrors.New(dErrors.CodeDispatchUnavailable, "no live transport attached")
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeDispatchUnavailable, "dispatch deadline exceeded")
	}
	frame, err := Encode(event, payload, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	h.Deliver(ctx, userID, frame)
	return nil
}

// Deliver queues an encoded frame on every local connection of userID, or on
// every local connection when userID is nil, and returns how many accepted it.
// A full queue drops the frame for that connection only.
func (h *Hub) Deliver(ctx context.Context, userID id.UserID, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !userID.IsNil() {
		return h.deliverTo(ctx, h.conns[userID], frame)
	}
	delivered := 0
	for _, set := range h.conns {
		delivered += h.deliverTo(ctx, set, frame)
	}
	return delivered
}

// deliverTo must be called with h.mu held.
func (h *Hub) deliverTo(ctx context.Context, set map[id.ConnectionID]*Conn, frame []byte) int {
	delivered := 0
	for _, c := range set {
		select {
		case c.Send <- frame:
			delivered++
			h.metrics.IncrementFrame("delivered")
		default:
			h.metrics.IncrementFrame("dropped")
			h.logger.WarnContext(ctx, "live frame dropped",
				"request_id", requestcontext.RequestID(ctx),
				"user_id", c.UserID,
				"connection_id", c.ID,
			)
		}
	}
	return delivered
}

// Encode builds the envelope frame for event.
func Encode(event string, payload any, at time.Time) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode live event")
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data, Timestamp: at.UTC()})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode live event")
	}
	return frame, nil
}
