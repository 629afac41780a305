package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the sighting workflow.
// Tracks submissions, applied and rejected transitions, family responses and
// notification fan-out outcomes.
type Metrics struct {
	SubmissionsTotal     prometheus.Counter
	TransitionsTotal     *prometheus.CounterVec
	RejectedTotal        *prometheus.CounterVec
	FamilyResponsesTotal *prometheus.CounterVec
	DispatchTotal        *prometheus.CounterVec
	OperationDuration    *prometheus.HistogramVec
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the workflow metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SubmissionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "traceq_sightings_submitted_total",
			Help: "Total number of sighting reports submitted",
		}),
		TransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "traceq_sighting_transitions_total",
			Help: "Applied sighting status transitions by source and target status",
		}, []string{"from", "to"}),
		RejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "traceq_sighting_operations_rejected_total",
			Help: "Workflow operations rejected, by operation and error code",
		}, []string{"operation", "code"}),
		FamilyResponsesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "traceq_family_responses_total",
			Help: "Family verification responses recorded",
		}, []string{"response"}),
		DispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "traceq_notification_dispatch_total",
			Help: "Live notification publishes by outcome (delivered, unavailable, failed)",
		}, []string{"outcome"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "traceq_sighting_operation_duration_seconds",
			Help:    "Duration of workflow operations including the store round trip",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementSubmitted() {
	if m == nil {
		return
	}
	m.SubmissionsTotal.Inc()
}

func (m *Metrics) IncrementTransition(from, to string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncrementRejected(operation, code string) {
	if m == nil {
		return
	}
	m.RejectedTotal.WithLabelValues(operation, code).Inc()
}

func (m *Metrics) IncrementFamilyResponse(response string) {
	if m == nil {
		return
	}
	m.FamilyResponsesTotal.WithLabelValues(response).Inc()
}

func (m *Metrics) IncrementDispatch(outcome string) {
	if m == nil {
		return
	}
	m.DispatchTotal.WithLabelValues(outcome).Inc()
}

// ObserveOperation records the duration of a workflow operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
