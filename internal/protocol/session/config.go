package session

import "time"

// BackoffConfig defines how long an engine sleeps between would-block results.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// SenderConfig drives the client-side turn loop.
type SenderConfig struct {
	Turns   int
	PerTurn int
	// TurnDelay is slept before each turn's first Data record.
	TurnDelay time.Duration
	// Drain consumes already-arrived echoes between sends.
	Drain bool
	Wait  BackoffConfig
}

// EchoConfig drives the server-side relay loop.
type EchoConfig struct {
	// Delay is applied before relaying each Data record.
	Delay time.Duration
	Wait  BackoffConfig
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 50 * time.Microsecond,
		Multiplier:   2.0,
		MaxDelay:     10 * time.Millisecond,
		Jitter:       true,
	}
}

// DefaultSenderConfig mirrors the reference run: 500 turns of 2000 particles.
func DefaultSenderConfig() SenderConfig {
	return SenderConfig{
		Turns:   500,
		PerTurn: 2000,
		Drain:   true,
		Wait:    DefaultBackoffConfig(),
	}
}

func DefaultEchoConfig() EchoConfig {
	return EchoConfig{
		Delay: 300 * time.Microsecond,
		Wait:  DefaultBackoffConfig(),
	}
}

func (c BackoffConfig) WithDefaults() BackoffConfig {
	if c.InitialDelay <= 0 && c.MaxDelay <= 0 {
		return DefaultBackoffConfig()
	}
	return c
}

func (c SenderConfig) WithDefaults() SenderConfig {
	if c.Turns < 0 {
		c.Turns = 0
	}
	if c.PerTurn < 0 {
		c.PerTurn = 0
	}
	if c.TurnDelay < 0 {
		c.TurnDelay = 0
	}
	c.Wait = c.Wait.WithDefaults()
	return c
}

func (c EchoConfig) WithDefaults() EchoConfig {
	if c.Delay < 0 {
		c.Delay = 0
	}
	c.Wait = c.Wait.WithDefaults()
	return c
}
