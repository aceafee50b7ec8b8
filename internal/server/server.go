// Package server is the echo side's admin HTTP surface.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/turnsync/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

type Config struct {
	ListenAddr  string
	CORSOrigins []string
	// Peer labels logs and request metrics.
	Peer            string
	ShutdownTimeout time.Duration
	// Token, when set, is required as a bearer token on /stats and /metrics.
	Token string
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:      "127.0.0.1:7355",
		CORSOrigins:     []string{"http://localhost:3000"},
		Peer:            "echo",
		ShutdownTimeout: 2 * time.Second,
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = def.ListenAddr
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = def.CORSOrigins
	}
	if strings.TrimSpace(c.Peer) == "" {
		c.Peer = def.Peer
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	return c
}

// StatsSource supplies the /stats payload.
type StatsSource interface {
	Snapshot() observability.StatsSnapshot
}

type Admin struct {
	cfg      Config
	router   *gin.Engine
	stats    StatsSource
	appeared time.Time
	log      zerolog.Logger
}

func NewAdmin(cfg Config, stats StatsSource) *Admin {
	cfg = cfg.WithDefaults()
	observability.RegisterMetrics()
	l := log.Logger.With().Str("component", "admin").Str("peer", cfg.Peer).Logger()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(l))
	r.Use(observability.RequestMetricsMiddleware(cfg.Peer))
	r.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	// The admin surface is reached directly; forwarded headers are ignored.
	if err := r.SetTrustedProxies(nil); err != nil {
		l.Warn().Err(err).Msg("trusted proxy setup failed")
	}

	a := &Admin{
		cfg:      cfg,
		router:   r,
		stats:    stats,
		appeared: time.Now(),
		log:      l,
	}
	a.registerRoutes()
	return a
}

func (a *Admin) Handler() http.Handler {
	return a.router
}

// Serve listens on the configured address until ctx ends.
func (a *Admin) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", a.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx ends, then shuts down gracefully.
func (a *Admin) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.log.Info().Str("addr", ln.Addr().String()).Msg("admin listening")

	stopped := make(chan error, 1)
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(shutdownCtx)
	})
	defer stop()

	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-stopped
}
