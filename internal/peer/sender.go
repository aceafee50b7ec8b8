package peer

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danmuck/turnsync/internal/logging"
	"github.com/danmuck/turnsync/internal/observability"
	"github.com/danmuck/turnsync/internal/particle"
	"github.com/danmuck/turnsync/internal/protocol/frame"
	"github.com/danmuck/turnsync/internal/protocol/session"
	"github.com/danmuck/turnsync/internal/transport"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

const (
	DumpInFile  = "client_in.log"
	DumpOutFile = "client_out.log"
)

// SenderService connects to an echo server and drives every turn.
type SenderService struct {
	cfg   SenderServiceConfig
	stats *observability.Stats
	log   zerolog.Logger
}

func NewSenderService(cfg SenderServiceConfig) *SenderService {
	cfg.Transport = cfg.Transport.WithDefaults()
	cfg.Frame = cfg.Frame.WithDefaults()
	cfg.Session = cfg.Session.WithDefaults()
	return &SenderService{
		cfg:   cfg,
		stats: observability.NewStats(session.RoleSender),
		log:   logging.Component("sender"),
	}
}

func (s *SenderService) Stats() *observability.Stats {
	return s.stats
}

func (s *SenderService) Run(ctx context.Context) error {
	return runWithAdmin(ctx, s.cfg.AdminEnabled, s.cfg.Admin, s.stats, s.run)
}

func (s *SenderService) run(ctx context.Context) (err error) {
	dump, err := openDump(s.cfg.DumpDir)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dump.Close(); cerr != nil {
			err = multierror.Append(err, cerr).ErrorOrNil()
		}
	}()

	ep, err := transport.Dial(ctx, s.cfg.Transport)
	if err != nil {
		return err
	}
	ch := frame.NewChannelWithConfig(ep, s.cfg.Frame)
	s.stats.AttachTraffic(ch)
	sender := session.NewSender(ch, particle.NewGenerator(s.cfg.Seed), s.cfg.Session)
	sender.SetLogger(s.log)
	sender.SetObserver(session.Observers{
		session.LogObserver{Log: s.log},
		observability.NewSessionMetrics(),
		s.stats,
	})
	if dump != nil {
		sender.SetDump(dump.in, dump.out)
	}
	s.log.Info().
		Str("endpoint", ep.String()).
		Stringer("mode", ch.Config().Mode).
		Dur("watchdog", ch.Config().Watchdog).
		Int("turns", s.cfg.Session.Turns).
		Int("particles_per_turn", s.cfg.Session.PerTurn).
		Msg("starting session")
	err = sender.Run(ctx)
	return closeChannel(ch, err, s.log)
}

// recordDump buffers the per-direction record logs.
type recordDump struct {
	inFile, outFile *os.File
	in, out         *bufio.Writer
}

func openDump(dir string) (*recordDump, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("peer: dump dir: %w", err)
	}
	inFile, err := os.Create(filepath.Join(dir, DumpInFile))
	if err != nil {
		return nil, fmt.Errorf("peer: dump: %w", err)
	}
	outFile, err := os.Create(filepath.Join(dir, DumpOutFile))
	if err != nil {
		_ = inFile.Close()
		return nil, fmt.Errorf("peer: dump: %w", err)
	}
	return &recordDump{
		inFile:  inFile,
		outFile: outFile,
		in:      bufio.NewWriter(inFile),
		out:     bufio.NewWriter(outFile),
	}, nil
}

func (d *recordDump) Close() error {
	if d == nil {
		return nil
	}
	var errs *multierror.Error
	for _, step := range []func() error{d.in.Flush, d.out.Flush, d.inFile.Close, d.outFile.Close} {
		if err := step(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
