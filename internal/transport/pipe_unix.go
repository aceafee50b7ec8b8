//go:build unix

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

func (l *Listener) announcePipe() error {
	paths := []string{l.cfg.ServerPipe, l.cfg.ClientPipe}
	for i, path := range paths {
		if err := makeFifo(path); err != nil {
			removeAll(paths[:i])
			return err
		}
	}
	l.paths = paths
	return nil
}

// acceptPipe opens the fifos in the same order as the client: server pipe
// for reading first, then the client pipe for writing.
func (l *Listener) acceptPipe(ctx context.Context) (*Endpoint, error) {
	in, err := openFifo(ctx, l.cfg.ServerPipe, os.O_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", l.cfg.ServerPipe, err)
	}
	out, err := openFifo(ctx, l.cfg.ClientPipe, os.O_WRONLY)
	if err != nil {
		_ = in.Close()
		return nil, fmt.Errorf("transport: open %s: %w", l.cfg.ClientPipe, err)
	}
	return pipeEndpoint(in, out, l.paths, l.log), nil
}

// dialPipe waits for the server's fifos to appear, then opens the server
// pipe for writing and the client pipe for reading.
func dialPipe(ctx context.Context, cfg Config, l zerolog.Logger) (*Endpoint, error) {
	var out *os.File
	err := retryConnect(ctx, cfg.RetryInterval, func() error {
		f, err := openFifo(ctx, cfg.ServerPipe, os.O_WRONLY)
		if err != nil {
			return err
		}
		out = f
		return nil
	}, missingFifo)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", cfg.ServerPipe, err)
	}
	in, err := openFifo(ctx, cfg.ClientPipe, os.O_RDONLY)
	if err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("transport: open %s: %w", cfg.ClientPipe, err)
	}
	ep := pipeEndpoint(in, out, nil, l)
	l.Info().Str("endpoint", ep.String()).Msg("connected")
	return ep, nil
}

func pipeEndpoint(in, out *os.File, unlink []string, l zerolog.Logger) *Endpoint {
	return &Endpoint{
		kind:    KindPipe,
		desc:    fmt.Sprintf("pipe %s<-%s", out.Name(), in.Name()),
		r:       in,
		w:       out,
		rd:      in,
		wd:      out,
		closers: []io.Closer{out, in},
		unlink:  unlink,
		log:     l,
	}
}

// makeFifo replaces a stale fifo at path. Any other existing file is an error.
func makeFifo(path string) error {
	if fi, err := os.Lstat(path); err == nil {
		if fi.Mode()&fs.ModeNamedPipe == 0 {
			return fmt.Errorf("%w: %s exists and is not a fifo", ErrInvalidConfig, path)
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("transport: remove stale %s: %w", path, err)
		}
	}
	if err := unix.Mkfifo(path, 0o600); err != nil {
		return fmt.Errorf("transport: mkfifo %s: %w", path, err)
	}
	return nil
}

// openFifo opens one end of a fifo, which blocks until the other end is
// opened too. When ctx ends first, the pending open is released by briefly
// opening the opposite end.
func openFifo(ctx context.Context, path string, flag int) (*os.File, error) {
	type result struct {
		f   *os.File
		err error
	}
	done := make(chan result, 1)
	go func() {
		f, err := os.OpenFile(path, flag, 0)
		done <- result{f: f, err: err}
	}()
	select {
	case r := <-done:
		return r.f, r.err
	case <-ctx.Done():
	}

	opposite := os.O_WRONLY
	if flag&os.O_WRONLY != 0 {
		opposite = os.O_RDONLY
	}
	peer, err := os.OpenFile(path, opposite|unix.O_NONBLOCK, 0)
	if err != nil {
		go func() {
			if r := <-done; r.f != nil {
				_ = r.f.Close()
			}
		}()
		return nil, ctx.Err()
	}
	r := <-done
	_ = peer.Close()
	if r.f != nil {
		_ = r.f.Close()
	}
	return nil, ctx.Err()
}

func missingFifo(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func removeAll(paths []string) {
	for _, path := range paths {
		_ = os.Remove(path)
	}
}
