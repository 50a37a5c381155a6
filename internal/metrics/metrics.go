package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gokatarajesh/quiz-duel/internal/grading"
	"github.com/gokatarajesh/quiz-duel/internal/question"
)

const namespace = "quizduel"

// Metrics holds the service collectors. It implements match.Observer and
// grading.Observer.
type Metrics struct {
	queueSize         prometheus.Gauge
	queueWait         prometheus.Gauge
	liveMatches       prometheus.Gauge
	matchesStarted    prometheus.Counter
	matchesFinished   *prometheus.CounterVec
	roundsResolved    *prometheus.CounterVec
	submissions       *prometheus.CounterVec
	gradesSynthesized *prometheus.CounterVec
	gradesDiscarded   prometheus.Counter
	gradingSeconds    *prometheus.HistogramVec
	persistFailures   prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_size",
			Help:      "Players waiting in the matchmaking queue.",
		}),
		queueWait: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_oldest_wait_seconds",
			Help:      "How long the player at the head of the queue has waited.",
		}),
		liveMatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_matches",
			Help:      "Matches currently in progress.",
		}),
		matchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_started_total",
			Help:      "Matches created from paired players.",
		}),
		matchesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_finished_total",
			Help:      "Matches that reached a terminal state, by status.",
		}, []string{"status"}),
		roundsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_resolved_total",
			Help:      "Rounds resolved, by question kind.",
		}, []string{"kind"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Accepted submissions, by sanitizer verdict.",
		}, []string{"verdict"}),
		gradesSynthesized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grades_synthesized_total",
			Help:      "Grades synthesized instead of scored, by reason.",
		}, []string{"reason"}),
		gradesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grades_discarded_total",
			Help:      "Essay grades that arrived after their round resolved.",
		}),
		gradingSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grading_seconds",
			Help:      "Time spent grading one answer, by question kind.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 4, 8, 16},
		}, []string{"kind"}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Completed matches a persistence hook failed to record.",
		}),
	}

	reg.MustRegister(
		m.queueSize,
		m.queueWait,
		m.liveMatches,
		m.matchesStarted,
		m.matchesFinished,
		m.roundsResolved,
		m.submissions,
		m.gradesSynthesized,
		m.gradesDiscarded,
		m.gradingSeconds,
		m.persistFailures,
	)
	return m
}

func (m *Metrics) QueueSize(n int) { m.queueSize.Set(float64(n)) }
func (m *Metrics) QueueWait(d time.Duration) { m.queueWait.Set(d.Seconds()) }
func (m *Metrics) LiveMatches(n int) { m.liveMatches.Set(float64(n)) }
func (m *Metrics) MatchStarted() { m.matchesStarted.Inc() }
func (m *Metrics) MatchFinished(status string) { m.matchesFinished.WithLabelValues(status).Inc() }
func (m *Metrics) GradeDiscarded() { m.gradesDiscarded.Inc() }
func (m *Metrics) PersistFailed() { m.persistFailures.Inc() }

func (m *Metrics) RoundResolved(kind question.Kind) {
	m.roundsResolved.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) SubmissionReceived(flagged bool) {
	verdict := "clean"
	if flagged {
		verdict = "flagged"
	}
	m.submissions.WithLabelValues(verdict).Inc()
}

// TrackConnections exports count as the live websocket connection gauge.
func (m *Metrics) TrackConnections(reg prometheus.Registerer, count func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_connections",
		Help:      "Registered websocket connections.",
	}, func() float64 { return float64(count()) }))
}

// ObserveGrade records grading latency and any synthesized fallback.
func (m *Metrics) ObserveGrade(kind question.Kind, g grading.Grade, elapsed time.Duration) {
	m.gradingSeconds.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
	if g.Synthesized {
		m.gradesSynthesized.WithLabelValues(g.SynthReason).Inc()
	}
}
