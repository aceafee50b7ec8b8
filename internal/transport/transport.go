// Package transport establishes the one-client byte stream a session runs
// over: a pair of named pipes or a TCP connection.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Endpoint is one established duplex stream. Reads and writes may use
// different descriptors (pipe mode) or the same one (tcp mode).
type Endpoint struct {
	kind Kind
	desc string

	r  io.Reader
	w  io.Writer
	rd readDeadliner
	wd writeDeadliner

	closers []io.Closer
	unlink  []string
	log     zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Listen announces the server side and waits for exactly one client.
func Listen(ctx context.Context, cfg Config) (*Endpoint, error) {
	l, err := Announce(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ep, err := l.Accept(ctx)
	if err != nil {
		if cerr := l.Close(); cerr != nil {
			err = multierror.Append(err, cerr)
		}
		return nil, err
	}
	return ep, nil
}

// Dial connects the client side to a server created by Listen.
func Dial(ctx context.Context, cfg Config) (*Endpoint, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := connectContext(ctx, cfg)
	defer cancel()
	l := logger(cfg, "client")
	switch cfg.Kind {
	case KindPipe:
		return dialPipe(ctx, cfg, l)
	default:
		return dialTCP(ctx, cfg, l)
	}
}

func (e *Endpoint) Kind() Kind {
	return e.kind
}

func (e *Endpoint) String() string {
	return e.desc
}

func (e *Endpoint) Read(p []byte) (int, error) {
	return e.r.Read(p)
}

func (e *Endpoint) Write(p []byte) (int, error) {
	return e.w.Write(p)
}

func (e *Endpoint) SetReadDeadline(t time.Time) error {
	return e.rd.SetReadDeadline(t)
}

func (e *Endpoint) SetWriteDeadline(t time.Time) error {
	return e.wd.SetWriteDeadline(t)
}

// SyscallConn exposes the read descriptor so a reader can poll it without
// parking.
func (e *Endpoint) SyscallConn() (syscall.RawConn, error) {
	sc, ok := e.r.(syscall.Conn)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no raw read descriptor", ErrUnsupported, e.kind)
	}
	return sc.SyscallConn()
}

// Close releases every descriptor and removes pipes this side created.
// Only the first call does work; later calls return the same result.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		var errs *multierror.Error
		for _, c := range e.closers {
			if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, os.ErrClosed) {
				errs = multierror.Append(errs, err)
			}
		}
		for _, path := range e.unlink {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = multierror.Append(errs, err)
			}
		}
		e.closeErr = errs.ErrorOrNil()
		if e.closeErr != nil {
			e.log.Warn().Err(e.closeErr).Msg("endpoint teardown incomplete")
			return
		}
		e.log.Debug().Msg("endpoint closed")
	})
	return e.closeErr
}

func newConnEndpoint(kind Kind, conn net.Conn, l zerolog.Logger, extra ...io.Closer) *Endpoint {
	return &Endpoint{
		kind:    kind,
		desc:    fmt.Sprintf("%s %s->%s", kind, conn.LocalAddr(), conn.RemoteAddr()),
		r:       conn,
		w:       conn,
		rd:      conn,
		wd:      conn,
		closers: append([]io.Closer{conn}, extra...),
		log:     l,
	}
}

func logger(cfg Config, side string) zerolog.Logger {
	return log.Logger.With().Str("component", "transport").Str("kind", string(cfg.Kind)).Str("side", side).Logger()
}

func connectContext(ctx context.Context, cfg Config) (context.Context, context.CancelFunc) {
	if cfg.ConnectTimeout > 0 {
		return context.WithTimeout(ctx, cfg.ConnectTimeout)
	}
	return context.WithCancel(ctx)
}

// retryConnect calls fn until it succeeds, fails with a non-retryable
// error, or ctx ends.
func retryConnect(ctx context.Context, interval time.Duration, fn func() error, retryable func(error) bool) error {
	for {
		err := fn()
		if err == nil || !retryable(err) {
			return err
		}
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w: %w", ErrNoPeer, err)
		case <-t.C:
		}
	}
}
