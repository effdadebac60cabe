package apiclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "zhancare"
	metricsSubsystem = "api"
)

// Refresh outcomes recorded in RefreshTotal.
const (
	refreshSuccess = "success"
	refreshFailure = "failure"
	refreshReused  = "reused" // another call had already refreshed the token
)

// Metrics holds the client's Prometheus collectors
type Metrics struct {
	Requests      *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	RefreshTotal  *prometheus.CounterVec
	ForcedLogouts prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg keeps
// them unregistered, which is what tests and library users without Prometheus want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "requests_total",
			Help:      "HTTP attempts made by the API client, by method and status code",
		}, []string{"method", "code"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP attempts made by the API client",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method"}),
		RefreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "refresh_total",
			Help:      "Access token refresh attempts by result",
		}, []string{"result"}),
		ForcedLogouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "forced_logouts_total",
			Help:      "Sessions torn down because the token could not be refreshed",
		}),
	}
}
