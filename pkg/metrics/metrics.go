package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/adfharrison1/go-securedocs/pkg/handler"
)

// Outcome label values besides the handler.Status names.
const OutcomeError = "error"

// Metrics holds the Prometheus collectors for collection operations
type Metrics struct {
	Operations         *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	ValidationFailures *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "securedocs_operations_total",
			Help: "Collection operations by outcome",
		}, []string{"collection", "operation", "outcome"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "securedocs_operation_duration_seconds",
			Help:    "Latency of collection operations including encryption and storage",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"collection", "operation"}),
		ValidationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "securedocs_validation_failures_total",
			Help: "Writes rejected by schema validation",
		}, []string{"collection"}),
	}
}

// Decorator returns a handler.Decorator that records every execution.
func (m *Metrics) Decorator() handler.Decorator {
	return func(collection string, kind handler.Kind, op handler.Operation) handler.Operation {
		return m.Instrument(collection, kind, op)
	}
}

// Instrument wraps op so that each call is counted and timed.
func (m *Metrics) Instrument(collection string, kind handler.Kind, op handler.Operation) handler.Operation {
	return &instrumented{
		next:       op,
		collection: collection,
		operation:  kind.String(),
		metrics:    m,
	}
}

type instrumented struct {
	next       handler.Operation
	collection string
	operation  string
	metrics    *Metrics
}

func (i *instrumented) Execute(ctx context.Context, req handler.Request) (handler.Result, error) {
	start := time.Now()
	res, err := i.next.Execute(ctx, req)
	i.metrics.OperationDuration.WithLabelValues(i.collection, i.operation).Observe(time.Since(start).Seconds())

	outcome := res.Status.String()
	if err != nil {
		outcome = OutcomeError
	}
	i.metrics.Operations.WithLabelValues(i.collection, i.operation, outcome).Inc()
	if err == nil && res.Status == handler.StatusInvalid {
		i.metrics.ValidationFailures.WithLabelValues(i.collection).Inc()
	}
	return res, err
}
