package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks live connections, frame outcomes and the Redis bridge.
type Metrics struct {
	ConnectionsActive prometheus.Gauge
	FramesTotal       *prometheus.CounterVec
	BridgeTotal       *prometheus.CounterVec
	BridgeOpen        prometheus.Gauge
}

// NewMetrics registers the dispatch metrics on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewMetricsWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "traceq_live_connections",
			Help: "Live connections registered on this instance",
		}),
		FramesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "traceq_live_frames_total",
			Help: "Frames queued to live connections by outcome (delivered, dropped)",
		}, []string{"outcome"}),
		BridgeTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "traceq_live_bridge_publishes_total",
			Help: "Bridge publishes by path (redis, local_fallback)",
		}, []string{"path"}),
		BridgeOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "traceq_live_bridge_circuit_open",
			Help: "1 while the Redis bridge circuit is open",
		}),
	}
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
}

func (m *Metrics) IncrementFrame(outcome string) {
	if m == nil {
		return
	}
	m.FramesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementBridge(path string) {
	if m == nil {
		return
	}
	m.BridgeTotal.WithLabelValues(path).Inc()
}

func (m *Metrics) SetBridgeOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BridgeOpen.Set(1)
		return
	}
	m.BridgeOpen.Set(0)
}
