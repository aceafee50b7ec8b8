package observability

import (
	"sync"
	"time"

	"github.com/danmuck/turnsync/internal/protocol"
	"github.com/danmuck/turnsync/internal/protocol/frame"
	"github.com/danmuck/turnsync/internal/protocol/session"
)

// StatsSnapshot is the JSON shape served on /stats.
type StatsSnapshot struct {
	Role           session.Role `json:"role"`
	CurrentTurn    int          `json:"current_turn"`
	TurnParticles  int          `json:"turn_particles"`
	CompletedTurns int          `json:"completed_turns"`
	TotalParticles int          `json:"total_particles"`
	Unrecognized   int          `json:"unrecognized"`
	Finished       bool         `json:"finished"`
	RecordsIn      uint64       `json:"records_in"`
	RecordsOut     uint64       `json:"records_out"`
	BytesIn        uint64       `json:"bytes_in"`
	BytesOut       uint64       `json:"bytes_out"`
	StartedAt      time.Time    `json:"started_at"`
	UpdatedAt      time.Time    `json:"updated_at,omitempty"`
}

// Stats keeps a point-in-time view of one engine. Engines write from their
// own goroutine while HTTP handlers read.
type Stats struct {
	mu      sync.RWMutex
	snap    StatsSnapshot
	now     func() time.Time
	traffic TrafficSource
}

// TrafficSource reports channel counters; *frame.Channel implements it.
type TrafficSource interface {
	Stats() frame.Stats
}

var _ session.Observer = (*Stats)(nil)

func NewStats(role session.Role) *Stats {
	s := &Stats{now: time.Now}
	s.snap = StatsSnapshot{Role: role, CurrentTurn: 1, StartedAt: s.now()}
	return s
}

// AttachTraffic makes later snapshots carry the counters of src.
func (s *Stats) AttachTraffic(src TrafficSource) {
	s.mu.Lock()
	s.traffic = src
	s.mu.Unlock()
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	snap, src := s.snap, s.traffic
	s.mu.RUnlock()
	if src != nil {
		t := src.Stats()
		snap.RecordsIn, snap.RecordsOut = t.RecordsIn, t.RecordsOut
		snap.BytesIn, snap.BytesOut = t.BytesIn, t.BytesOut
	}
	return snap
}

func (s *Stats) TurnStarted(_ session.Role, turn, _ int) {
	s.update(func(snap *StatsSnapshot) {
		snap.CurrentTurn = turn
		snap.TurnParticles = 0
	})
}

func (s *Stats) RecordHandled(_ session.Role, tag protocol.Tag) {
	if tag != protocol.TagData {
		return
	}
	s.update(func(snap *StatsSnapshot) {
		snap.TurnParticles++
	})
}

func (s *Stats) TurnCompleted(sum session.TurnSummary) {
	s.update(func(snap *StatsSnapshot) {
		snap.CompletedTurns++
		snap.TotalParticles += sum.Particles
		snap.CurrentTurn = sum.Turn + 1
		snap.TurnParticles = 0
	})
}

func (s *Stats) Unrecognized(session.Role, string) {
	s.update(func(snap *StatsSnapshot) {
		snap.Unrecognized++
	})
}

func (s *Stats) Finished(sum session.FinalSummary) {
	s.update(func(snap *StatsSnapshot) {
		snap.Finished = true
		snap.CompletedTurns = sum.Turns
		snap.TotalParticles = sum.Particles
	})
}

func (s *Stats) update(fn func(*StatsSnapshot)) {
	s.mu.Lock()
	fn(&s.snap)
	s.snap.UpdatedAt = s.now()
	s.mu.Unlock()
}
