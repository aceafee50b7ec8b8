package session

import (
	"context"
	"math/rand"
	"time"

	"github.com/danmuck/turnsync/internal/protocol"
	"github.com/danmuck/turnsync/internal/protocol/frame"
)

// Conn is the framed channel surface the engines need. *frame.Channel
// implements it.
type Conn interface {
	Send(text string) error
	// Receive returns one record, waiting as the channel's mode allows.
	Receive() (string, error)
	// TryReceive returns one record only if it can do so without waiting;
	// otherwise it reports frame.ErrWouldBlock.
	TryReceive() (string, error)
}

// interrupter is implemented by channels whose in-flight read can be aborted.
type interrupter interface {
	Interrupt()
}

// watchContext aborts conn's reads once ctx is done.
func watchContext(ctx context.Context, conn Conn) (stop func() bool) {
	in, ok := conn.(interrupter)
	if !ok {
		return func() bool { return false }
	}
	return context.AfterFunc(ctx, in.Interrupt)
}

// waiter turns would-block results into backoff sleeps.
type waiter struct {
	cfg BackoffConfig
	rng *rand.Rand
}

func newWaiter(cfg BackoffConfig) *waiter {
	return &waiter{cfg: cfg, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// next blocks until conn yields a record or a non-transient error.
func (w *waiter) next(ctx context.Context, conn Conn) (string, error) {
	attempt := 0
	for {
		line, err := conn.Receive()
		if err == nil {
			return line, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !frame.IsTransient(err) {
			return "", err
		}
		attempt++
		if err := sleepContext(ctx, NextBackoffDelay(w.cfg, attempt, w.rng)); err != nil {
			return "", err
		}
	}
}

func sendRecord(conn Conn, rec protocol.Record) (string, error) {
	line, err := protocol.Format(rec)
	if err != nil {
		return "", err
	}
	return line, conn.Send(line)
}
