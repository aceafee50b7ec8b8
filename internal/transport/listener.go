package transport

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// Listener is an announced server side that has no client yet. The fifos
// or the bound socket exist from Announce on, so a client may connect
// before Accept is called.
type Listener struct {
	cfg Config
	log zerolog.Logger

	ln    net.Listener
	paths []string

	mu       sync.Mutex
	accepted bool
	closed   bool
}

func Announce(ctx context.Context, cfg Config) (*Listener, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Listener{cfg: cfg, log: logger(cfg, "server")}
	var err error
	switch cfg.Kind {
	case KindPipe:
		err = l.announcePipe()
	default:
		err = l.announceTCP(ctx)
	}
	if err != nil {
		return nil, err
	}
	l.log.Info().Str("addr", l.Addr()).Msg("waiting for client")
	return l, nil
}

// Addr is the bound TCP address, or the pipe pair as "server,client".
func (l *Listener) Addr() string {
	if l.ln != nil {
		return l.ln.Addr().String()
	}
	return strings.Join(l.paths, ",")
}

// Accept waits for the one client. On success the endpoint owns every
// resource of the listener.
func (l *Listener) Accept(ctx context.Context) (*Endpoint, error) {
	l.mu.Lock()
	if l.accepted || l.closed {
		l.mu.Unlock()
		return nil, ErrListenerDone
	}
	l.mu.Unlock()

	ctx, cancel := connectContext(ctx, l.cfg)
	defer cancel()
	var (
		ep  *Endpoint
		err error
	)
	switch l.cfg.Kind {
	case KindPipe:
		ep, err = l.acceptPipe(ctx)
	default:
		ep, err = l.acceptTCP(ctx)
	}
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.accepted = true
	l.mu.Unlock()
	l.log.Info().Str("endpoint", ep.String()).Msg("client connected")
	return ep, nil
}

// Close releases an unaccepted listener. After a successful Accept it is a
// no-op; the endpoint cleans up instead.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.accepted || l.closed {
		return nil
	}
	l.closed = true
	var errs *multierror.Error
	if l.ln != nil {
		if err := l.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = multierror.Append(errs, err)
		}
	}
	for _, path := range l.paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
