package ldapkit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "ldapkit"

var (
	operationLatency = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: metricsNamespace,
			Subsystem: "handler",
			Name:      "operation_latency_seconds",
			Help:      "Latency of directory operations, including retries.",
		},
		[]string{"operation"},
	)

	operationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "handler",
			Name:      "operation_errors_total",
			Help:      "Directory operation failures by failure kind.",
		},
		[]string{"operation", "kind"},
	)
)

// MustRegisterMetrics registers the package's collectors with reg. Metrics
// are observed whether or not they are registered, so applications that do
// not care about them pay nothing beyond the observation itself.
func MustRegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(operationLatency, operationErrors)
}

func observeOperation(operation string, start time.Time, err error) {
	operationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		operationErrors.WithLabelValues(operation, string(KindOf(err))).Inc()
	}
}
