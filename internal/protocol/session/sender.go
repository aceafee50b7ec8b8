package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/turnsync/internal/protocol"
	"github.com/danmuck/turnsync/internal/protocol/frame"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Generator supplies the Data payload for particle id of turn.
type Generator interface {
	Particle(turn, id int) protocol.Particle
}

// Sender runs the client side of the turn barrier:
// Idle -> SendingTurn -> AwaitingTurnBarrier -> ... -> Finishing ->
// AwaitingFinalAck -> Done.
type Sender struct {
	cfg  SenderConfig
	conn Conn
	gen  Generator
	obs  Observer
	log  zerolog.Logger
	wait *waiter

	state State
	turn  TurnState
	total int

	dumpIn  io.Writer
	dumpOut io.Writer
}

func NewSender(conn Conn, gen Generator, cfg SenderConfig) *Sender {
	cfg = cfg.WithDefaults()
	return &Sender{
		cfg:   cfg,
		conn:  conn,
		gen:   gen,
		obs:   NopObserver{},
		log:   log.Logger.With().Str("component", "session.sender").Logger(),
		wait:  newWaiter(cfg.Wait),
		state: StateIdle,
	}
}

func (s *Sender) SetObserver(obs Observer) {
	if obs == nil {
		obs = NopObserver{}
	}
	s.obs = obs
}

func (s *Sender) SetLogger(l zerolog.Logger) {
	s.log = l
}

// SetDump copies every inbound and outbound record line to the writers.
// Either may be nil.
func (s *Sender) SetDump(in, out io.Writer) {
	s.dumpIn = in
	s.dumpOut = out
}

func (s *Sender) State() State {
	return s.state
}

// Turn returns the bookkeeping of the current (or last) turn.
func (s *Sender) Turn() TurnState {
	return s.turn
}

// Run drives every configured turn and the final Stop handshake.
func (s *Sender) Run(ctx context.Context) (err error) {
	if s.conn == nil {
		return ErrNilConn
	}
	if s.gen == nil {
		return ErrNilGenerator
	}
	if !s.state.Is(StateIdle) {
		return ErrAlreadyStarted
	}
	stop := watchContext(ctx, s.conn)
	defer stop()
	defer func() {
		if err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			s.log.Error().Err(err).Stringer("state", s.state).Int("turn", s.turn.Turn).Msg("sender failed")
			s.state = StateFailed
		}
	}()

	for t := 1; t <= s.cfg.Turns; t++ {
		if err := s.sendTurn(ctx, t); err != nil {
			return err
		}
		if err := s.awaitBarrier(ctx); err != nil {
			return err
		}
	}

	s.state = StateFinishing
	if err := s.send(protocol.StopRecord()); err != nil {
		return err
	}
	s.state = StateAwaitingFinalAck
	if err := s.awaitStop(ctx); err != nil {
		return err
	}
	s.state = StateDone
	s.obs.Finished(FinalSummary{Role: RoleSender, Turns: s.cfg.Turns, Particles: s.total})
	return nil
}

func (s *Sender) sendTurn(ctx context.Context, turn int) error {
	s.state = StateSendingTurn
	s.turn.reset(turn, s.cfg.PerTurn)
	s.obs.TurnStarted(RoleSender, turn, s.cfg.PerTurn)
	if s.cfg.TurnDelay > 0 {
		if err := sleepContext(ctx, s.cfg.TurnDelay); err != nil {
			return err
		}
	}
	for id := 1; id <= s.cfg.PerTurn; id++ {
		if err := s.send(protocol.DataRecord(s.gen.Particle(turn, id))); err != nil {
			return err
		}
		if s.cfg.Drain {
			if err := s.drain(); err != nil {
				return err
			}
		}
	}
	if err := s.send(protocol.TurnEndRecord(turn)); err != nil {
		return err
	}
	s.state = StateAwaitingTurnBarrier
	return nil
}

// drain consumes echoes that already arrived without waiting for more.
func (s *Sender) drain() error {
	for {
		line, err := s.conn.TryReceive()
		if frame.IsTransient(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := s.inbound(line); err != nil {
			return err
		}
	}
}

func (s *Sender) awaitBarrier(ctx context.Context) error {
	for {
		line, err := s.wait.next(ctx, s.conn)
		if err != nil {
			return err
		}
		done, err := s.inbound(line)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// inbound classifies one echoed record; it reports true once the barrier of
// the current turn is reached.
func (s *Sender) inbound(line string) (bool, error) {
	s.dump(s.dumpIn, line)
	tag := protocol.Classify(line)
	switch tag {
	case protocol.TagData:
		s.turn.Received++
		s.total++
		s.obs.RecordHandled(RoleSender, tag)
		return false, nil
	case protocol.TagTurnEnd:
		if !s.state.Is(StateAwaitingTurnBarrier) {
			return false, fmt.Errorf("%w: turn end in state %s", ErrUnexpectedRecord, s.state)
		}
		rec, err := protocol.Parse(line)
		if err != nil {
			return false, err
		}
		if rec.Numbered && rec.Turn != s.turn.Turn {
			return false, fmt.Errorf("%w: turn end for turn %d while awaiting %d", ErrUnexpectedRecord, rec.Turn, s.turn.Turn)
		}
		s.obs.RecordHandled(RoleSender, tag)
		if s.turn.Received != s.turn.Expected {
			return false, fmt.Errorf("%w: turn %d received=%d expected=%d",
				ErrCountMismatch, s.turn.Turn, s.turn.Received, s.turn.Expected)
		}
		s.obs.TurnCompleted(TurnSummary{Role: RoleSender, Turn: s.turn.Turn, Particles: s.turn.Received})
		return true, nil
	case protocol.TagStop:
		return false, fmt.Errorf("%w: stop in state %s", ErrUnexpectedRecord, s.state)
	default:
		s.log.Warn().Str("line", line).Int("turn", s.turn.Turn).Msg("dropping unrecognized record")
		s.obs.Unrecognized(RoleSender, line)
		return false, nil
	}
}

func (s *Sender) awaitStop(ctx context.Context) error {
	for {
		line, err := s.wait.next(ctx, s.conn)
		if err != nil {
			if errors.Is(err, frame.ErrPeerClosed) {
				s.log.Error().Msg("connection closed by server before stop")
			}
			return err
		}
		s.dump(s.dumpIn, line)
		switch tag := protocol.Classify(line); tag {
		case protocol.TagStop:
			s.obs.RecordHandled(RoleSender, tag)
			return nil
		default:
			s.log.Debug().Str("line", line).Msg("ignoring record while awaiting stop")
		}
	}
}

func (s *Sender) send(rec protocol.Record) error {
	line, err := sendRecord(s.conn, rec)
	if err != nil {
		return err
	}
	s.dump(s.dumpOut, line)
	return nil
}

func (s *Sender) dump(w io.Writer, line string) {
	if w == nil {
		return
	}
	if _, err := io.WriteString(w, line+"\n"); err != nil {
		s.log.Warn().Err(err).Msg("record dump failed")
	}
}
