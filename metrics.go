package hyperopt

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/thalesfsp/hyperopt/internal/metrics"
)

// RegisterMetrics registers the runner's Prometheus collectors with r.
// Until it is called, runners record nothing.
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() http.Handler { return metrics.Handler() }
