package metrics

import "github.com/prometheus/client_golang/prometheus"

// Answer pipeline Prometheus metrics.
var (
	AskTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studybuddy",
			Name:      "ask_total",
			Help:      "Total number of ask requests by outcome",
		},
		[]string{"category", "outcome"}, // "answered" / "quota_exceeded" / "invalid_input" / "provider_error"
	)

	AskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "studybuddy",
			Name:      "ask_duration_seconds",
			Help:      "End-to-end ask duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"category"},
	)

	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studybuddy",
			Name:      "provider_requests_total",
			Help:      "Total number of generative provider attempts",
		},
		[]string{"model", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "studybuddy",
			Name:      "provider_request_duration_seconds",
			Help:      "Provider attempt duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"model"},
	)

	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studybuddy",
			Name:      "provider_tokens_total",
			Help:      "Total tokens reported by the provider",
		},
		[]string{"model", "type"}, // "prompt" / "completion"
	)

	ProviderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studybuddy",
			Name:      "provider_errors_total",
			Help:      "Total provider failures by kind",
		},
		[]string{"model", "kind"},
	)

	ProviderRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studybuddy",
			Name:      "provider_retries_total",
			Help:      "Total number of retried provider attempts",
		},
	)

	QuotaReservationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studybuddy",
			Name:      "quota_reservations_total",
			Help:      "Quota reservation transitions",
		},
		[]string{"category", "action"}, // "reserved" / "denied" / "committed" / "rolled_back"
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "studybuddy",
			Name:      "active_sessions",
			Help:      "Number of sessions with a live tracker",
		},
	)
)

var answerMetricsRegistered bool

// RegisterAnswerMetrics registers answer pipeline metrics. Must be called once from main.
func RegisterAnswerMetrics() {
	if answerMetricsRegistered {
		return
	}
	prometheus.MustRegister(AskTotal)
	prometheus.MustRegister(AskDuration)
	prometheus.MustRegister(ProviderRequestsTotal)
	prometheus.MustRegister(ProviderRequestDuration)
	prometheus.MustRegister(ProviderTokensTotal)
	prometheus.MustRegister(ProviderErrorsTotal)
	prometheus.MustRegister(ProviderRetriesTotal)
	prometheus.MustRegister(QuotaReservationsTotal)
	prometheus.MustRegister(ActiveSessions)
	answerMetricsRegistered = true
}
