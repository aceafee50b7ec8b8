package observability

import (
	"testing"
	"time"

	"github.com/danmuck/turnsync/internal/protocol"
	"github.com/danmuck/turnsync/internal/protocol/frame"
	"github.com/danmuck/turnsync/internal/protocol/session"
	"github.com/danmuck/turnsync/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("echo", "GET", "/health", 200, 12*time.Millisecond)
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("echo", "GET", "/health", "200")); got < 1 {
		t.Fatalf("expected request counter to move, got %v", got)
	}
}

func TestSessionMetricsCountsBarriers(t *testing.T) {
	testlog.Start(t)
	m := NewSessionMetrics()
	role := session.Role("metrics-test")

	before := testutil.ToFloat64(sessionRecords.WithLabelValues(string(role), "data"))
	m.TurnStarted(role, 4, 2)
	m.RecordHandled(role, protocol.TagData)
	m.RecordHandled(role, protocol.TagData)
	m.TurnCompleted(session.TurnSummary{Role: role, Turn: 4, Particles: 2})
	m.Unrecognized(role, "Z")

	if got := testutil.ToFloat64(sessionRecords.WithLabelValues(string(role), "data")) - before; got != 2 {
		t.Fatalf("expected 2 data records, got %v", got)
	}
	if got := testutil.ToFloat64(sessionTurns.WithLabelValues(string(role))); got != 1 {
		t.Fatalf("expected 1 completed turn, got %v", got)
	}
	if got := testutil.ToFloat64(sessionParticles.WithLabelValues(string(role))); got != 2 {
		t.Fatalf("expected 2 particles, got %v", got)
	}
	if got := testutil.ToFloat64(sessionTurn.WithLabelValues(string(role))); got != 4 {
		t.Fatalf("expected current turn 4, got %v", got)
	}
	if got := testutil.ToFloat64(sessionUnrecognized.WithLabelValues(string(role))); got != 1 {
		t.Fatalf("expected 1 unrecognized, got %v", got)
	}
}

func TestStatsTracksEchoProgress(t *testing.T) {
	testlog.Start(t)
	s := NewStats(session.RoleEcho)
	s.RecordHandled(session.RoleEcho, protocol.TagData)
	s.RecordHandled(session.RoleEcho, protocol.TagData)
	s.RecordHandled(session.RoleEcho, protocol.TagTurnEnd)

	snap := s.Snapshot()
	if snap.CurrentTurn != 1 || snap.TurnParticles != 2 {
		t.Fatalf("unexpected in-turn snapshot %+v", snap)
	}

	s.TurnCompleted(session.TurnSummary{Role: session.RoleEcho, Turn: 1, Particles: 2})
	s.Unrecognized(session.RoleEcho, "Q")
	snap = s.Snapshot()
	if snap.CurrentTurn != 2 || snap.TurnParticles != 0 || snap.CompletedTurns != 1 || snap.TotalParticles != 2 {
		t.Fatalf("unexpected post-barrier snapshot %+v", snap)
	}
	if snap.Unrecognized != 1 || snap.Finished {
		t.Fatalf("unexpected flags %+v", snap)
	}

	s.Finished(session.FinalSummary{Role: session.RoleEcho, Turns: 1, Particles: 2})
	if !s.Snapshot().Finished {
		t.Fatalf("expected finished snapshot")
	}
}

type fixedTraffic frame.Stats

func (f fixedTraffic) Stats() frame.Stats { return frame.Stats(f) }

func TestStatsCarriesChannelTraffic(t *testing.T) {
	testlog.Start(t)
	s := NewStats(session.RoleSender)
	if snap := s.Snapshot(); snap.RecordsIn != 0 || snap.BytesOut != 0 {
		t.Fatalf("detached stats must report zero traffic, got %+v", snap)
	}
	s.AttachTraffic(fixedTraffic{RecordsIn: 3, RecordsOut: 4, BytesIn: 30, BytesOut: 40})
	snap := s.Snapshot()
	if snap.RecordsIn != 3 || snap.RecordsOut != 4 || snap.BytesIn != 30 || snap.BytesOut != 40 {
		t.Fatalf("unexpected traffic %+v", snap)
	}
}
