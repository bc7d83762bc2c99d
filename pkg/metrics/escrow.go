package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Escrow operations and outcomes used as label values.
const (
	EscrowOpHold    = "hold"
	EscrowOpRelease = "release"
	EscrowOpRefund  = "refund"

	OutcomeSuccess      = "success"
	OutcomeFailure      = "failure"
	OutcomeTimeout      = "timeout"
	OutcomeNoop         = "noop"
	OutcomeManualReview = "manual_review"
)

// EscrowMetrics counts gateway interactions performed by the escrow coordinator.
type EscrowMetrics struct {
	operations *prometheus.CounterVec
}

// NewEscrowMetrics registers the escrow counters on the provided registerer.
func NewEscrowMetrics(reg prometheus.Registerer) *EscrowMetrics {
	if reg == nil {
		return &EscrowMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "escrow_operations_total",
		Help:      "Escrow hold, release and refund attempts by outcome.",
	}, []string{"operation", "outcome"})
	reg.MustRegister(operations)
	return &EscrowMetrics{operations: operations}
}

// Observe increments the counter for operation/outcome.
func (m *EscrowMetrics) Observe(operation, outcome string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

// ResolutionMetrics counts batch resolutions and settlement results.
type ResolutionMetrics struct {
	resolved *prometheus.CounterVec
	settled  *prometheus.CounterVec
	errors   prometheus.Counter
}

// NewResolutionMetrics registers the resolution counters on the provided registerer.
func NewResolutionMetrics(reg prometheus.Registerer) *ResolutionMetrics {
	if reg == nil {
		return &ResolutionMetrics{}
	}
	resolved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batches_resolved_total",
		Help:      "Regional batches moved out of active, by resulting status.",
	}, []string{"status"})
	settled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "escrow_settled_total",
		Help:      "Escrow records settled by the resolution sweep, by operation.",
	}, []string{"operation"})
	errs := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resolution_errors_total",
		Help:      "Per-batch errors raised during resolution sweeps.",
	})
	reg.MustRegister(resolved, settled, errs)
	return &ResolutionMetrics{resolved: resolved, settled: settled, errors: errs}
}

// IncResolved records a batch resolved into status.
func (m *ResolutionMetrics) IncResolved(status string) {
	if m == nil || m.resolved == nil {
		return
	}
	m.resolved.WithLabelValues(normalizeLabel(status)).Inc()
}

// AddSettled records n escrow records settled through operation.
func (m *ResolutionMetrics) AddSettled(operation string, n int) {
	if m == nil || m.settled == nil || n <= 0 {
		return
	}
	m.settled.WithLabelValues(normalizeLabel(operation)).Add(float64(n))
}

// IncError records a per-batch sweep error.
func (m *ResolutionMetrics) IncError() {
	if m == nil || m.errors == nil {
		return
	}
	m.errors.Inc()
}
