// Package metrics exposes Prometheus collectors for the approval pipeline.
//
// All recording methods are safe on a nil *Metrics so components can run
// without a registry in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "approval"

type Metrics struct {
	reg prometheus.Gatherer

	submissionsCreated prometheus.Counter
	submissionItems    prometheus.Histogram
	intakeMessages     *prometheus.CounterVec
	actions            *prometheus.CounterVec
	publishFailures    *prometheus.CounterVec
	publishDuration    *prometheus.HistogramVec
	outcomeFailures    *prometheus.CounterVec
}

// New registers every collector on reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		submissionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_created_total",
			Help:      "Number of submissions persisted and sent for moderation",
		}),
		submissionItems: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_items",
			Help:      "Number of media items per flushed submission",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		}),
		intakeMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intake_messages_total",
			Help:      "Inbound main-chat messages by handling result",
		}, []string{"result"}),
		actions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderation_actions_total",
			Help:      "Moderator actions by command and acknowledgement",
		}, []string{"command", "ack"}),
		publishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Failed publish calls by operation",
		}, []string{"op"}),
		publishDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Latency of outbound publish calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		outcomeFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcome_delivery_failures_total",
			Help:      "Outcome records that could not be delivered, by sink",
		}, []string{"sink"}),
	}
}

// RegisterBufferedGroups exposes a gauge reading fn on each scrape.
func RegisterBufferedGroups(reg *prometheus.Registry, fn func() int) {
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "buffered_groups",
		Help:      "Album groups waiting for their quiet period",
	}, func() float64 { return float64(fn()) })
}

func (m *Metrics) SubmissionCreated(items int) {
	if m == nil {
		return
	}
	m.submissionsCreated.Inc()
	m.submissionItems.Observe(float64(items))
}

func (m *Metrics) Intake(result string) {
	if m == nil {
		return
	}
	m.intakeMessages.WithLabelValues(result).Inc()
}

func (m *Metrics) Action(command, ack string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(command, ack).Inc()
}

func (m *Metrics) PublishFailure(op string) {
	if m == nil {
		return
	}
	m.publishFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) PublishLatency(op string, seconds float64) {
	if m == nil {
		return
	}
	m.publishDuration.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) OutcomeFailure(sink string) {
	if m == nil {
		return
	}
	m.outcomeFailures.WithLabelValues(sink).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
