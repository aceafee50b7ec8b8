// Package peer assembles transport, framing, session engine, observers and
// the optional admin server into the two runnable processes.
package peer

import (
	"context"

	"github.com/danmuck/turnsync/internal/observability"
	"github.com/danmuck/turnsync/internal/protocol/frame"
	"github.com/danmuck/turnsync/internal/server"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// runWithAdmin runs fn and, when enabled, the admin server beside it. The
// admin server stops once fn returns.
func runWithAdmin(ctx context.Context, enabled bool, cfg server.Config, stats *observability.Stats, fn func(context.Context) error) error {
	if !enabled {
		return fn(ctx)
	}
	g, gctx := errgroup.WithContext(ctx)
	adminCtx, stopAdmin := context.WithCancel(gctx)
	admin := server.NewAdmin(cfg, stats)
	g.Go(func() error {
		return admin.Serve(adminCtx)
	})
	g.Go(func() error {
		defer stopAdmin()
		return fn(gctx)
	})
	return g.Wait()
}

// closeChannel folds the channel's close result into the session result.
func closeChannel(ch *frame.Channel, runErr error, l zerolog.Logger) error {
	if err := ch.Close(); err != nil {
		l.Warn().Err(err).Msg("channel close failed")
		return multierror.Append(runErr, err)
	}
	return runErr
}
