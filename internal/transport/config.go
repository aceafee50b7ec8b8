package transport

import (
	"fmt"
	"strings"
	"time"
)

// Kind selects the byte stream underneath a session.
type Kind string

const (
	KindPipe Kind = "pipe"
	KindTCP  Kind = "tcp"
)

func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindPipe, "fifo":
		return KindPipe, nil
	case KindTCP, "socket":
		return KindTCP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
}

// Config names both ends of a pipe pair or the TCP address.
type Config struct {
	Kind Kind
	// ServerPipe carries client -> server records.
	ServerPipe string
	// ClientPipe carries server -> client records.
	ClientPipe string
	Address    string
	// ConnectTimeout bounds how long Dial and Listen wait for the other
	// side to show up. Zero waits until the context ends.
	ConnectTimeout time.Duration
	// RetryInterval is the pause between connect attempts.
	RetryInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Kind:           KindPipe,
		ServerPipe:     "server.pipe",
		ClientPipe:     "client.pipe",
		Address:        "localhost:1355",
		ConnectTimeout: 10 * time.Second,
		RetryInterval:  20 * time.Millisecond,
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(string(c.Kind)) == "" {
		c.Kind = def.Kind
	}
	if strings.TrimSpace(c.ServerPipe) == "" {
		c.ServerPipe = def.ServerPipe
	}
	if strings.TrimSpace(c.ClientPipe) == "" {
		c.ClientPipe = def.ClientPipe
	}
	if strings.TrimSpace(c.Address) == "" {
		c.Address = def.Address
	}
	if c.ConnectTimeout < 0 {
		c.ConnectTimeout = 0
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = def.RetryInterval
	}
	return c
}

func (c Config) Validate() error {
	switch c.Kind {
	case KindPipe:
		if c.ServerPipe == c.ClientPipe {
			return fmt.Errorf("%w: server and client pipe share path %q", ErrInvalidConfig, c.ServerPipe)
		}
	case KindTCP:
		if strings.TrimSpace(c.Address) == "" {
			return fmt.Errorf("%w: tcp address required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
	return nil
}
