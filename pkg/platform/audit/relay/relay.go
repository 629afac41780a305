// Package relay moves outbox messages to the event stream.
//
// Delivery is at least once: a crash between Produce and MarkDelivered
// re-sends the batch, and consumers drop duplicates by Message.ID.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "github.com/ak652231/TraceQ-sub001/pkg/platform/audit"
)

const (
	DefaultInterval  = time.Second
	DefaultBatchSize = 100
)

// Metrics tracks relay throughput and failures.
type Metrics struct {
	RelayedTotal prometheus.Counter
	FailedTotal  *prometheus.CounterVec
	Pending      prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RelayedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "traceq_outbox_relayed_total",
			Help: "Outbox messages produced to the event stream",
		}),
		FailedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "traceq_outbox_relay_failures_total",
			Help: "Relay failures by stage (fetch, produce, mark)",
		}, []string{"stage"}),
		Pending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "traceq_outbox_last_batch_size",
			Help: "Messages fetched by the last relay poll",
		}),
	}
}

func (m *Metrics) relayed(n int) {
	if m == nil {
		return
	}
	m.RelayedTotal.Add(float64(n))
}

func (m *Metrics) failed(stage string) {
	if m == nil {
		return
	}
	m.FailedTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) batch(n int) {
	if m == nil {
		return
	}
	m.Pending.Set(float64(n))
}

// Relay polls a Source and forwards each batch to a Sink.
type Relay struct {
	source    audit.Source
	sink      audit.Sink
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *Metrics
}

type Option func(*Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func New(source audit.Source, sink audit.Sink, opts ...Option) *Relay {
	r := &Relay{
		source:    source,
		sink:      sink,
		interval:  DefaultInterval,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is done. Failed batches are retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		for {
			n, err := r.Flush(ctx)
			if err != nil || n < r.batchSize {
				break
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Flush relays one batch and returns how many messages it delivered.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	msgs, err := r.source.FetchPending(ctx, r.batchSize)
	if err != nil {
		r.metrics.failed("fetch")
		r.logger.ErrorContext(ctx, "outbox fetch failed", "error", err)
		return 0, err
	}
	r.metrics.batch(len(msgs))
	if len(msgs) == 0 {
		return 0, nil
	}
	if err := r.sink.Produce(ctx, msgs); err != nil {
		r.metrics.failed("produce")
		r.logger.ErrorContext(ctx, "outbox produce failed",
			"batch_size", len(msgs),
			"error", err,
		)
		return 0, err
	}
	if err := r.source.MarkDelivered(ctx, msgs, time.Now()); err != nil {
		// The batch is redelivered on the next poll.
		r.metrics.failed("mark")
		r.logger.ErrorContext(ctx, "outbox mark delivered failed",
			"batch_size", len(msgs),
			"error", err,
		)
		return 0, err
	}
	r.metrics.relayed(len(msgs))
	r.logger.DebugContext(ctx, "outbox batch relayed", "batch_size", len(msgs))
	return len(msgs), nil
}
