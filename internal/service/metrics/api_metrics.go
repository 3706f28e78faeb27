package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "luther",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of prediction API endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "luther",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by API endpoint and code",
		},
		[]string{"endpoint", "code"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors)
	})
}

// Observe records the latency of one endpoint call and, when code is non-empty, an error.
func Observe(endpoint string, start time.Time, code string) {
	APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if code != "" {
		APIErrors.WithLabelValues(endpoint, code).Inc()
	}
}
