package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/danmuck/turnsync/internal/protocol"
	"github.com/danmuck/turnsync/internal/protocol/frame"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Echo runs the server side: Relaying -> Closed.
type Echo struct {
	cfg  EchoConfig
	conn Conn
	obs  Observer
	log  zerolog.Logger
	wait *waiter

	state State
	// turn is the next turn number for peers that send a bare "T".
	turn      int
	turnCount int
	total     int
	completed int
}

func NewEcho(conn Conn, cfg EchoConfig) *Echo {
	cfg = cfg.WithDefaults()
	return &Echo{
		cfg:   cfg,
		conn:  conn,
		obs:   NopObserver{},
		log:   log.Logger.With().Str("component", "session.echo").Logger(),
		wait:  newWaiter(cfg.Wait),
		state: StateIdle,
		turn:  1,
	}
}

func (e *Echo) SetObserver(obs Observer) {
	if obs == nil {
		obs = NopObserver{}
	}
	e.obs = obs
}

func (e *Echo) SetLogger(l zerolog.Logger) {
	e.log = l
}

func (e *Echo) State() State {
	return e.state
}

// Totals returns the completed turn count and the number of relayed particles.
func (e *Echo) Totals() (turns, particles int) {
	return e.completed, e.total
}

// Run relays records until Stop arrives or the peer goes away. A peer close
// is an orderly end and returns nil.
func (e *Echo) Run(ctx context.Context) (err error) {
	if e.conn == nil {
		return ErrNilConn
	}
	if !e.state.Is(StateIdle) {
		return ErrAlreadyStarted
	}
	stop := watchContext(ctx, e.conn)
	defer stop()
	defer func() {
		if err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			e.log.Error().Err(err).Int("turn", e.turn).Msg("echo failed")
			e.state = StateFailed
		}
	}()

	e.state = StateRelaying
	for {
		line, err := e.wait.next(ctx, e.conn)
		if err != nil {
			if errors.Is(err, frame.ErrPeerClosed) {
				e.log.Warn().Int("turn", e.turn).Int("particles", e.turnCount).Msg("connection closed by client")
				e.state = StateClosed
				return nil
			}
			return err
		}
		done, err := e.handle(ctx, line)
		if err != nil {
			return err
		}
		if done {
			e.state = StateClosed
			return nil
		}
	}
}

func (e *Echo) handle(ctx context.Context, line string) (bool, error) {
	tag := protocol.Classify(line)
	switch tag {
	case protocol.TagData:
		if e.cfg.Delay > 0 {
			if err := sleepContext(ctx, e.cfg.Delay); err != nil {
				return false, err
			}
		}
		if err := e.conn.Send(line); err != nil {
			return false, err
		}
		e.turnCount++
		e.total++
		e.obs.RecordHandled(RoleEcho, tag)
		return false, nil

	case protocol.TagTurnEnd:
		rec, err := protocol.Parse(line)
		if err != nil {
			e.unrecognized(line, err)
			return false, nil
		}
		reply := protocol.BareTurnEndRecord()
		turn := e.turn
		if rec.Numbered {
			reply = protocol.TurnEndRecord(rec.Turn)
			turn = rec.Turn
		}
		if _, err := sendRecord(e.conn, reply); err != nil {
			return false, err
		}
		e.obs.RecordHandled(RoleEcho, tag)
		e.obs.TurnCompleted(TurnSummary{Role: RoleEcho, Turn: turn, Particles: e.turnCount})
		e.turnCount = 0
		e.completed++
		e.turn = turn + 1
		return false, nil

	case protocol.TagStop:
		if _, err := sendRecord(e.conn, protocol.StopRecord()); err != nil {
			return false, err
		}
		e.obs.RecordHandled(RoleEcho, tag)
		e.obs.Finished(FinalSummary{Role: RoleEcho, Turns: e.completed, Particles: e.total})
		return true, nil

	default:
		e.unrecognized(line, fmt.Errorf("%w: %q", protocol.ErrUnknownTag, firstByte(line)))
		return false, nil
	}
}

func (e *Echo) unrecognized(line string, err error) {
	e.log.Warn().Err(err).Str("line", line).Msg("unrecognized line format")
	e.obs.Unrecognized(RoleEcho, line)
}

func firstByte(line string) string {
	if line == "" {
		return ""
	}
	return line[:1]
}
