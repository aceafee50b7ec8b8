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
	path := flag.String("config", "", "path to a turnctl TOML config (defaults when empty)")
	flag.Parse()
	logging.ConfigureRuntime()

	cfg := peer.DefaultSenderServiceConfig()
	if *path != "" {
		loaded, err := config.LoadSender(*path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "turnctl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := peer.NewSenderService(cfg).Run(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "turnctl: %v\n", err)
		os.Exit(1)
	}
}
