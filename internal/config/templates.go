package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/turnsync/internal/peer"
	"github.com/danmuck/turnsync/internal/protocol/frame"
	"github.com/danmuck/turnsync/internal/server"
	"github.com/danmuck/turnsync/internal/transport"
	"github.com/pelletier/go-toml/v2"
)

const (
	KindEcho   = "echo"
	KindSender = "sender"
)

// Template renders the built-in defaults of kind as a TOML file.
func Template(kind string) (string, error) {
	var doc any
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindEcho:
		doc = EchoFileFrom(peer.DefaultEchoServiceConfig())
	case KindSender, "turn":
		doc = SenderFileFrom(peer.DefaultSenderServiceConfig())
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
	data, err := toml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("render %s template: %w", kind, err)
	}
	return string(data), nil
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

func EchoFileFrom(cfg peer.EchoServiceConfig) EchoFile {
	return EchoFile{
		Common:    commonFrom(cfg.Transport, cfg.Frame, cfg.AdminEnabled, cfg.Admin),
		EchoDelay: cfg.Session.Delay.String(),
	}
}

func SenderFileFrom(cfg peer.SenderServiceConfig) SenderFile {
	return SenderFile{
		Common:           commonFrom(cfg.Transport, cfg.Frame, cfg.AdminEnabled, cfg.Admin),
		Turns:            cfg.Session.Turns,
		ParticlesPerTurn: cfg.Session.PerTurn,
		TurnDelay:        cfg.Session.TurnDelay.String(),
		Drain:            cfg.Session.Drain,
		Seed:             cfg.Seed,
		DumpDir:          cfg.DumpDir,
	}
}

func commonFrom(tc transport.Config, fc frame.Config, adminEnabled bool, admin server.Config) Common {
	c := Common{
		Transport:        string(tc.Kind),
		Address:          tc.Address,
		ServerPipe:       tc.ServerPipe,
		ClientPipe:       tc.ClientPipe,
		ConnectTimeout:   tc.ConnectTimeout.String(),
		ReadMode:         fc.Mode.String(),
		Watchdog:         watchdogString(fc.Watchdog),
		PollInterval:     fc.PollInterval.String(),
		MaxRecordLen:     fc.MaxRecordLen,
		AdminCORSOrigins: admin.CORSOrigins,
		AdminToken:       admin.Token,
	}
	if adminEnabled {
		c.AdminListenAddr = admin.ListenAddr
	}
	return c
}

// watchdogString renders a disabled watchdog as the "0s" the loader accepts.
func watchdogString(d time.Duration) string {
	if d < 0 {
		return time.Duration(0).String()
	}
	return d.String()
}
