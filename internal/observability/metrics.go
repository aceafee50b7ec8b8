package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/turnsync/internal/protocol"
	"github.com/danmuck/turnsync/internal/protocol/session"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turnsync",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"peer", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "turnsync",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"peer", "method", "path", "status"},
	)
	sessionRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turnsync",
			Subsystem: "session",
			Name:      "records_total",
			Help:      "Records handled by a session engine, by tag.",
		},
		[]string{"role", "tag"},
	)
	sessionTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turnsync",
			Subsystem: "session",
			Name:      "turns_completed_total",
			Help:      "Turn barriers completed.",
		},
		[]string{"role"},
	)
	sessionParticles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turnsync",
			Subsystem: "session",
			Name:      "turn_particles_total",
			Help:      "Particles counted at completed turn barriers.",
		},
		[]string{"role"},
	)
	sessionUnrecognized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turnsync",
			Subsystem: "session",
			Name:      "unrecognized_total",
			Help:      "Lines dropped because their tag or payload was not understood.",
		},
		[]string{"role"},
	)
	sessionTurn = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "turnsync",
			Subsystem: "session",
			Name:      "current_turn",
			Help:      "Most recent turn number seen by the engine.",
		},
		[]string{"role"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			sessionRecords, sessionTurns, sessionParticles, sessionUnrecognized, sessionTurn,
		)
	})
}

func RecordHTTPRequest(peer, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(peer, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(peer, method, path, statusLabel).Observe(duration.Seconds())
}

// SessionMetrics feeds engine notifications into the prometheus collectors.
type SessionMetrics struct{}

var _ session.Observer = SessionMetrics{}

func NewSessionMetrics() SessionMetrics {
	RegisterMetrics()
	return SessionMetrics{}
}

func (SessionMetrics) TurnStarted(role session.Role, turn, _ int) {
	sessionTurn.WithLabelValues(string(role)).Set(float64(turn))
}

func (SessionMetrics) RecordHandled(role session.Role, tag protocol.Tag) {
	sessionRecords.WithLabelValues(string(role), tag.String()).Inc()
}

func (SessionMetrics) TurnCompleted(s session.TurnSummary) {
	role := string(s.Role)
	sessionTurns.WithLabelValues(role).Inc()
	sessionParticles.WithLabelValues(role).Add(float64(s.Particles))
	sessionTurn.WithLabelValues(role).Set(float64(s.Turn))
}

func (SessionMetrics) Unrecognized(role session.Role, _ string) {
	sessionUnrecognized.WithLabelValues(string(role)).Inc()
}

func (SessionMetrics) Finished(session.FinalSummary) {}
