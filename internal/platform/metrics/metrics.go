package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the authorization core.
// All methods are nil-safe so components can run without metrics in tests.
type Metrics struct {
	// Validation outcomes by result kind
	ValidationOutcome *prometheus.CounterVec

	// Tokens issued by token type and flow ("build" or "refresh")
	TokensIssued *prometheus.CounterVec

	// JWS signing latency by algorithm
	SigningLatency *prometheus.HistogramVec

	// Store operation latency by store and operation
	StoreLatency *prometheus.HistogramVec
}

// New registers all collectors on reg. Pass prometheus.DefaultRegisterer in
// the binary and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ValidationOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authserver_validation_outcomes_total",
			Help: "Authorization request validation outcomes by result kind",
		}, []string{"kind"}),

		TokensIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authserver_tokens_issued_total",
			Help: "Tokens issued by type and flow",
		}, []string{"type", "flow"}),

		SigningLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authserver_jwt_sign_duration_seconds",
			Help:    "Duration of JWS signing by algorithm",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"alg"}),

		StoreLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authserver_store_duration_seconds",
			Help:    "Duration of store operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"store", "op"}),
	}
}

// IncrementValidationOutcome records one validator result.
func (m *Metrics) IncrementValidationOutcome(kind string) {
	if m != nil {
		m.ValidationOutcome.WithLabelValues(kind).Inc()
	}
}

// IncrementTokensIssued records one issued token.
func (m *Metrics) IncrementTokensIssued(tokenType, flow string) {
	if m != nil {
		m.TokensIssued.WithLabelValues(tokenType, flow).Inc()
	}
}

// ObserveSigningLatency records how long a signature took.
func (m *Metrics) ObserveSigningLatency(alg string, d time.Duration) {
	if m != nil {
		m.SigningLatency.WithLabelValues(alg).Observe(d.Seconds())
	}
}

// ObserveStoreLatency records the duration of a store call.
func (m *Metrics) ObserveStoreLatency(store, op string, d time.Duration) {
	if m != nil {
		m.StoreLatency.WithLabelValues(store, op).Observe(d.Seconds())
	}
}
