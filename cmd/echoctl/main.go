package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/turnsync/internal/config"
	"github.com/danmuck/turnsync/internal/logging"
	"github.com/danmuck/turnsync/internal/peer"
)

func main() {
	path := flag.String("config", "", "path to an echoctl TOML config (defaults when empty)")
	flag.Parse()
	logging.ConfigureRuntime()

	cfg := peer.DefaultEchoServiceConfig()
	if *path != "" {
		loaded, err := config.LoadEcho(*path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "echoctl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := peer.NewEchoService(cfg).Run(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "echoctl: %v\n", err)
		os.Exit(1)
	}
}
