package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "trivia"

// Metrics implements game.Recorder with Prometheus collectors.
type Metrics struct {
	rounds           prometheus.Counter
	roundDuration    prometheus.Histogram
	roundAnswers     prometheus.Histogram
	answers          *prometheus.CounterVec
	sessions         *prometheus.GaugeVec
	validationErrors *prometheus.CounterVec
	resets           prometheus.Counter
}

// New registers the gameplay collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		rounds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Rounds scored since start.",
		}),
		roundDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_duration_seconds",
			Help:      "Time from announcement to scoring.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 20, 30, 60},
		}),
		roundAnswers: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_answers",
			Help:      "Answers recorded per scored round.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
		answers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Submitted answers by outcome.",
		}, []string{"outcome"}),
		sessions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Joined connections by role.",
		}, []string{"role"}),
		validationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Inbound messages rejected by validation.",
		}, []string{"reason"}),
		resets: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_total",
			Help:      "Full game resets after the last client left.",
		}),
	}
}

func (m *Metrics) RoundCompleted(duration time.Duration, answers int) {
	m.rounds.Inc()
	m.roundDuration.Observe(duration.Seconds())
	m.roundAnswers.Observe(float64(answers))
}

func (m *Metrics) AnswerRecorded(outcome string) {
	m.answers.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SessionOpened(role string) {
	m.sessions.WithLabelValues(role).Inc()
}

func (m *Metrics) SessionClosed(role string) {
	m.sessions.WithLabelValues(role).Dec()
}

func (m *Metrics) ValidationFailed(reason string) {
	m.validationErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) GameReset() {
	m.resets.Inc()
}
