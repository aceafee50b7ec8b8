package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/turnsync/internal/peer"
	"github.com/danmuck/turnsync/internal/protocol/frame"
	"github.com/danmuck/turnsync/internal/server"
	"github.com/danmuck/turnsync/internal/transport"
)

// Common holds the keys both processes understand.
type Common struct {
	Transport        string   `toml:"transport"`
	Address          string   `toml:"address"`
	ServerPipe       string   `toml:"server_pipe"`
	ClientPipe       string   `toml:"client_pipe"`
	ConnectTimeout   string   `toml:"connect_timeout" comment:"0s waits for the peer until interrupted"`
	ReadMode         string   `toml:"read_mode" comment:"blocking | nonblocking"`
	Watchdog         string   `toml:"watchdog" comment:"per-read deadline in blocking mode; 0s disables it"`
	PollInterval     string   `toml:"poll_interval"`
	MaxRecordLen     int      `toml:"max_record_len"`
	AdminListenAddr  string   `toml:"admin_listen_addr"`
	AdminCORSOrigins []string `toml:"admin_cors_origins"`
	AdminToken       string   `toml:"admin_token"`
}

type EchoFile struct {
	Common
	EchoDelay string `toml:"echo_delay"`
}

type SenderFile struct {
	Common
	Turns            int    `toml:"turns"`
	ParticlesPerTurn int    `toml:"particles_per_turn"`
	TurnDelay        string `toml:"turn_delay"`
	Drain            bool   `toml:"drain"`
	Seed             int64  `toml:"seed"`
	DumpDir          string `toml:"dump_dir"`
}

// LoadEcho overlays the keys present in path on the echo defaults.
func LoadEcho(path string) (peer.EchoServiceConfig, error) {
	cfg := peer.DefaultEchoServiceConfig()
	var raw EchoFile
	meta, err := decode(path, &raw)
	if err != nil {
		return peer.EchoServiceConfig{}, err
	}
	c := common{meta: meta, raw: raw.Common}
	if err := c.apply(&cfg.Transport, &cfg.Frame); err != nil {
		return peer.EchoServiceConfig{}, err
	}
	c.applyAdmin(&cfg.AdminEnabled, &cfg.Admin)
	if meta.IsDefined("echo_delay") {
		if cfg.Session.Delay, err = parseDuration("echo_delay", raw.EchoDelay); err != nil {
			return peer.EchoServiceConfig{}, err
		}
	}
	return cfg, nil
}

// LoadSender overlays the keys present in path on the sender defaults.
func LoadSender(path string) (peer.SenderServiceConfig, error) {
	cfg := peer.DefaultSenderServiceConfig()
	var raw SenderFile
	meta, err := decode(path, &raw)
	if err != nil {
		return peer.SenderServiceConfig{}, err
	}
	c := common{meta: meta, raw: raw.Common}
	if err := c.apply(&cfg.Transport, &cfg.Frame); err != nil {
		return peer.SenderServiceConfig{}, err
	}
	c.applyAdmin(&cfg.AdminEnabled, &cfg.Admin)
	if meta.IsDefined("turns") {
		if raw.Turns < 0 {
			return peer.SenderServiceConfig{}, fmt.Errorf("turns must be >= 0, got %d", raw.Turns)
		}
		cfg.Session.Turns = raw.Turns
	}
	if meta.IsDefined("particles_per_turn") {
		if raw.ParticlesPerTurn < 0 {
			return peer.SenderServiceConfig{}, fmt.Errorf("particles_per_turn must be >= 0, got %d", raw.ParticlesPerTurn)
		}
		cfg.Session.PerTurn = raw.ParticlesPerTurn
	}
	if meta.IsDefined("turn_delay") {
		if cfg.Session.TurnDelay, err = parseDuration("turn_delay", raw.TurnDelay); err != nil {
			return peer.SenderServiceConfig{}, err
		}
	}
	if meta.IsDefined("drain") {
		cfg.Session.Drain = raw.Drain
	}
	if meta.IsDefined("seed") {
		cfg.Seed = raw.Seed
	}
	if meta.IsDefined("dump_dir") {
		cfg.DumpDir = strings.TrimSpace(raw.DumpDir)
	}
	return cfg, nil
}

func decode(path string, out any) (toml.MetaData, error) {
	meta, err := toml.DecodeFile(path, out)
	if err != nil {
		return toml.MetaData{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return toml.MetaData{}, fmt.Errorf("config parse failed (%s): unknown keys %s", path, strings.Join(keys, ", "))
	}
	return meta, nil
}

type common struct {
	meta toml.MetaData
	raw  Common
}

func (c common) apply(tc *transport.Config, fc *frame.Config) error {
	var err error
	if c.meta.IsDefined("transport") {
		if tc.Kind, err = transport.ParseKind(c.raw.Transport); err != nil {
			return err
		}
	}
	if c.meta.IsDefined("address") {
		tc.Address = strings.TrimSpace(c.raw.Address)
	}
	if c.meta.IsDefined("server_pipe") {
		tc.ServerPipe = strings.TrimSpace(c.raw.ServerPipe)
	}
	if c.meta.IsDefined("client_pipe") {
		tc.ClientPipe = strings.TrimSpace(c.raw.ClientPipe)
	}
	if c.meta.IsDefined("connect_timeout") {
		if tc.ConnectTimeout, err = parseDuration("connect_timeout", c.raw.ConnectTimeout); err != nil {
			return err
		}
	}
	if c.meta.IsDefined("read_mode") {
		if fc.Mode, err = frame.ParseMode(c.raw.ReadMode); err != nil {
			return err
		}
	}
	if c.meta.IsDefined("watchdog") {
		if fc.Watchdog, err = parseDuration("watchdog", c.raw.Watchdog); err != nil {
			return err
		}
		if fc.Watchdog == 0 {
			fc.Watchdog = -1
		}
	}
	if c.meta.IsDefined("poll_interval") {
		if fc.PollInterval, err = parseDuration("poll_interval", c.raw.PollInterval); err != nil {
			return err
		}
	}
	if c.meta.IsDefined("max_record_len") {
		if c.raw.MaxRecordLen < 2 {
			return fmt.Errorf("max_record_len must be >= 2, got %d", c.raw.MaxRecordLen)
		}
		fc.MaxRecordLen = c.raw.MaxRecordLen
	}
	return tc.WithDefaults().Validate()
}

func (c common) applyAdmin(enabled *bool, admin *server.Config) {
	if c.meta.IsDefined("admin_listen_addr") {
		addr := strings.TrimSpace(c.raw.AdminListenAddr)
		*enabled = addr != ""
		admin.ListenAddr = addr
	}
	if c.meta.IsDefined("admin_cors_origins") {
		admin.CORSOrigins = normalizeList(c.raw.AdminCORSOrigins)
	}
	if c.meta.IsDefined("admin_token") {
		admin.Token = strings.TrimSpace(c.raw.AdminToken)
	}
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
