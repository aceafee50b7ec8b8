package peer

import (
	"context"

	"github.com/danmuck/turnsync/internal/logging"
	"github.com/danmuck/turnsync/internal/observability"
	"github.com/danmuck/turnsync/internal/protocol/frame"
	"github.com/danmuck/turnsync/internal/protocol/session"
	"github.com/danmuck/turnsync/internal/transport"
	"github.com/rs/zerolog"
)

// EchoService announces the transport, serves one client and relays its
// session until Stop or disconnect.
type EchoService struct {
	cfg   EchoServiceConfig
	stats *observability.Stats
	log   zerolog.Logger
}

func NewEchoService(cfg EchoServiceConfig) *EchoService {
	cfg.Transport = cfg.Transport.WithDefaults()
	cfg.Frame = cfg.Frame.WithDefaults()
	cfg.Session = cfg.Session.WithDefaults()
	return &EchoService{
		cfg:   cfg,
		stats: observability.NewStats(session.RoleEcho),
		log:   logging.Component("echo"),
	}
}

func (s *EchoService) Stats() *observability.Stats {
	return s.stats
}

func (s *EchoService) Run(ctx context.Context) error {
	ln, err := transport.Announce(ctx, s.cfg.Transport)
	if err != nil {
		return err
	}
	defer func() {
		if err := ln.Close(); err != nil {
			s.log.Warn().Err(err).Msg("listener cleanup failed")
		}
	}()
	return runWithAdmin(ctx, s.cfg.AdminEnabled, s.cfg.Admin, s.stats, func(ctx context.Context) error {
		return s.serve(ctx, ln)
	})
}

func (s *EchoService) serve(ctx context.Context, ln *transport.Listener) error {
	ep, err := ln.Accept(ctx)
	if err != nil {
		return err
	}
	ch := frame.NewChannelWithConfig(ep, s.cfg.Frame)
	s.stats.AttachTraffic(ch)
	echo := session.NewEcho(ch, s.cfg.Session)
	echo.SetLogger(s.log)
	echo.SetObserver(session.Observers{
		session.LogObserver{Log: s.log},
		observability.NewSessionMetrics(),
		s.stats,
	})
	s.log.Info().
		Str("endpoint", ep.String()).
		Stringer("mode", ch.Config().Mode).
		Dur("watchdog", ch.Config().Watchdog).
		Msg("relaying")
	err = echo.Run(ctx)
	return closeChannel(ch, err, s.log)
}
