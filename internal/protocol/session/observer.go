package session

import (
	"github.com/danmuck/turnsync/internal/protocol"
	"github.com/rs/zerolog"
)

type Role string

const (
	RoleSender Role = "sender"
	RoleEcho   Role = "echo"
)

// TurnSummary describes one completed turn barrier.
type TurnSummary struct {
	Role      Role
	Turn      int
	Particles int
}

// FinalSummary is emitted once when a session ends with Stop.
type FinalSummary struct {
	Role      Role
	Turns     int
	Particles int
}

// Observer receives progress notifications. It has no protocol effect and
// is called from the engine goroutine.
type Observer interface {
	TurnStarted(role Role, turn, expected int)
	RecordHandled(role Role, tag protocol.Tag)
	TurnCompleted(s TurnSummary)
	Unrecognized(role Role, line string)
	Finished(s FinalSummary)
}

type NopObserver struct{}

func (NopObserver) TurnStarted(Role, int, int) {}
func (NopObserver) RecordHandled(Role, protocol.Tag) {}
func (NopObserver) TurnCompleted(TurnSummary) {}
func (NopObserver) Unrecognized(Role, string) {}
func (NopObserver) Finished(FinalSummary) {}

// Observers fans every notification out in order.
type Observers []Observer

func (o Observers) TurnStarted(role Role, turn, expected int) {
	for _, obs := range o {
		obs.TurnStarted(role, turn, expected)
	}
}

func (o Observers) RecordHandled(role Role, tag protocol.Tag) {
	for _, obs := range o {
		obs.RecordHandled(role, tag)
	}
}

func (o Observers) TurnCompleted(s TurnSummary) {
	for _, obs := range o {
		obs.TurnCompleted(s)
	}
}

func (o Observers) Unrecognized(role Role, line string) {
	for _, obs := range o {
		obs.Unrecognized(role, line)
	}
}

func (o Observers) Finished(s FinalSummary) {
	for _, obs := range o {
		obs.Finished(s)
	}
}

// LogObserver prints the human readable progress lines.
type LogObserver struct {
	Log zerolog.Logger
}

func (l LogObserver) TurnStarted(role Role, turn, expected int) {
	l.Log.Info().Str("role", string(role)).Int("turn", turn).Int("expected", expected).
		Msgf("== Turn %d == sending %d particles", turn, expected)
}

func (l LogObserver) RecordHandled(role Role, tag protocol.Tag) {
	l.Log.Trace().Str("role", string(role)).Stringer("tag", tag).Msg("record")
}

func (l LogObserver) TurnCompleted(s TurnSummary) {
	l.Log.Info().Str("role", string(s.Role)).Int("turn", s.Turn).Int("particles", s.Particles).
		Msgf("Stats: turn %d, particles %d", s.Turn, s.Particles)
}

func (l LogObserver) Unrecognized(role Role, line string) {
	l.Log.Warn().Str("role", string(role)).Str("line", line).Msg("unrecognized line format")
}

func (l LogObserver) Finished(s FinalSummary) {
	l.Log.Info().Str("role", string(s.Role)).Int("turns", s.Turns).Int("particles", s.Particles).
		Msgf("Stats: completed turns %d, total particles %d", s.Turns, s.Particles)
}
