package session

import "fmt"

// State is the position of an engine in its turn state machine.
// The zero value is reserved for "not a state".
type State int

const (
	NoState State = iota

	StateIdle
	StateSendingTurn
	StateAwaitingTurnBarrier
	StateFinishing
	StateAwaitingFinalAck
	StateDone

	StateRelaying
	StateClosed

	StateFailed
)

func (s State) String() string {
	switch s {
	case NoState:
		return "none"
	case StateIdle:
		return "idle"
	case StateSendingTurn:
		return "sending_turn"
	case StateAwaitingTurnBarrier:
		return "awaiting_turn_barrier"
	case StateFinishing:
		return "finishing"
	case StateAwaitingFinalAck:
		return "awaiting_final_ack"
	case StateDone:
		return "done"
	case StateRelaying:
		return "relaying"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) Is(state State) bool {
	return s == state
}

// TurnState is the per-turn bookkeeping of the sender.
type TurnState struct {
	Turn     int
	Received int
	Expected int
}

func (t *TurnState) reset(turn, expected int) {
	*t = TurnState{Turn: turn, Expected: expected}
}
