// Package audit carries the durable event trail from the transactional outbox
// to the event stream.
package audit

import (
	"context"
	"time"
)

// Message is one outbox entry ready to leave the process. Key selects the
// stream partition, so every message about one aggregate keeps its order.
type Message struct {
	// ID is unique per message and lets consumers drop redeliveries.
	ID         string
	Key        string
	Type       string
	Payload    []byte
	OccurredAt time.Time
}

// Source is a transactional outbox.
type Source interface {
	// FetchPending returns up to limit undelivered messages, oldest first.
	FetchPending(ctx context.Context, limit int) ([]Message, error)
	// MarkDelivered stamps messages so they are not fetched again.
	MarkDelivered(ctx context.Context, msgs []Message, at time.Time) error
}

// Sink writes a batch to the event stream. It returns only after every
// message is acknowledged.
type Sink interface {
	Produce(ctx context.Context, msgs []Message) error
}
