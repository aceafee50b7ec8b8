package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
)

func (l *Listener) announceTCP(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.cfg.Address)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", l.cfg.Address, err)
	}
	l.ln = ln
	return nil
}

func (l *Listener) acceptTCP(ctx context.Context) (*Endpoint, error) {
	conn, err := acceptOne(ctx, l.ln, l.cfg.RetryInterval, l.log)
	if err != nil {
		return nil, err
	}
	// one client per session; the listener goes away with the endpoint
	return newConnEndpoint(KindTCP, conn, l.log, l.ln), nil
}

func acceptOne(ctx context.Context, ln net.Listener, interval time.Duration, l zerolog.Logger) (net.Conn, error) {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	for {
		conn, err := ln.Accept()
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoPeer, ctx.Err())
		}
		if !isTransientAccept(err) {
			return nil, fmt.Errorf("transport: accept: %w", err)
		}
		l.Warn().Err(err).Msg("accept failed, retrying")
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("%w: %w", ErrNoPeer, ctx.Err())
		case <-t.C:
		}
	}
}

func dialTCP(ctx context.Context, cfg Config, l zerolog.Logger) (*Endpoint, error) {
	var d net.Dialer
	var conn net.Conn
	err := retryConnect(ctx, cfg.RetryInterval, func() error {
		c, err := d.DialContext(ctx, "tcp", cfg.Address)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, isRefused)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", cfg.Address, err)
	}
	l.Info().Str("remote", conn.RemoteAddr().String()).Msg("connected")
	return newConnEndpoint(KindTCP, conn, l), nil
}

func isTransientAccept(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return isTransientAcceptErrno(err)
}
