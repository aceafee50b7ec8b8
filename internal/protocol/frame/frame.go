package frame

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// Terminator ends every record on the wire.
	Terminator byte = '\n'

	// DefaultMaxRecordLen bounds both buffers, terminator included.
	DefaultMaxRecordLen = 1024
)

// Mode selects how Receive waits for data.
type Mode int

const (
	// Blocking reads park until data arrives or the watchdog fires.
	Blocking Mode = iota
	// NonBlocking reads report ErrWouldBlock when no data is ready. Streams
	// without descriptor access wait up to PollInterval first.
	NonBlocking
)

func (m Mode) String() string {
	switch m {
	case Blocking:
		return "blocking"
	case NonBlocking:
		return "nonblocking"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts "blocking" and "nonblocking" (also "non-blocking").
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "blocking", "block":
		return Blocking, nil
	case "nonblocking", "non-blocking", "nonblock", "poll":
		return NonBlocking, nil
	default:
		return Blocking, fmt.Errorf("frame: unknown read mode %q", raw)
	}
}

// Config bounds one Channel.
type Config struct {
	MaxRecordLen int
	Mode         Mode
	// Watchdog is the per-call deadline of a blocking read. Zero means the
	// default; negative disables it.
	Watchdog time.Duration
	// PollInterval is how long a non-blocking read may wait for readiness
	// on streams that only offer read deadlines.
	PollInterval time.Duration
	// WriteTimeout bounds one Send. Zero disables it.
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxRecordLen: DefaultMaxRecordLen,
		Mode:         Blocking,
		Watchdog:     100 * time.Second,
		PollInterval: time.Millisecond,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.MaxRecordLen <= 1 {
		c.MaxRecordLen = d.MaxRecordLen
	}
	if c.Watchdog == 0 {
		c.Watchdog = d.Watchdog
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	return c
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Channel frames newline-terminated records over a duplex byte stream.
// One goroutine drives Send and Receive; only Interrupt and Close may be
// called from elsewhere.
type Channel struct {
	cfg Config
	rw  io.ReadWriter
	// readNow is a single read that never parks; nil when rw hides its descriptor.
	readNow   func([]byte) (int, error)
	deadlines bool

	in     []byte
	filled int
	scan   int
	// pending holds an error that arrived together with data.
	pending error

	out []byte

	interrupted atomic.Bool
	closed      atomic.Bool
	closeOnce   sync.Once
	closeErr    error

	recordsIn  atomic.Uint64
	recordsOut atomic.Uint64
	bytesIn    atomic.Uint64
	bytesOut   atomic.Uint64
}

// Stats counts traffic through one Channel. It is safe to read while the
// owning goroutine drives the channel.
type Stats struct {
	RecordsIn  uint64
	RecordsOut uint64
	BytesIn    uint64
	BytesOut   uint64
}

func NewChannel(rw io.ReadWriter) *Channel {
	return NewChannelWithConfig(rw, DefaultConfig())
}

func NewChannelWithConfig(rw io.ReadWriter, cfg Config) *Channel {
	cfg = cfg.WithDefaults()
	_, deadlines := rw.(readDeadliner)
	return &Channel{
		cfg:       cfg,
		rw:        rw,
		readNow:   rawReader(rw),
		deadlines: deadlines,
		in:        make([]byte, cfg.MaxRecordLen),
		out:       make([]byte, cfg.MaxRecordLen),
	}
}

func (c *Channel) Config() Config {
	return c.cfg
}

func (c *Channel) Stats() Stats {
	return Stats{
		RecordsIn:  c.recordsIn.Load(),
		RecordsOut: c.recordsOut.Load(),
		BytesIn:    c.bytesIn.Load(),
		BytesOut:   c.bytesOut.Load(),
	}
}

// Send writes text plus the terminator, retrying until every byte is out.
func (c *Channel) Send(text string) error {
	const op = "send"
	if c.closed.Load() {
		return newError(op, KindWriteError, ErrClosed)
	}
	if len(text) >= len(c.out) {
		return newError(op, KindRecordTooLong, fmt.Errorf("%d bytes, limit %d", len(text), len(c.out)-1))
	}
	if strings.IndexByte(text, Terminator) >= 0 {
		return newError(op, KindInvalidRecord, errors.New("embedded terminator"))
	}
	n := copy(c.out, text)
	c.out[n] = Terminator
	if err := c.writeFull(op, c.out[:n+1]); err != nil {
		return err
	}
	c.recordsOut.Add(1)
	return nil
}

// Sendf formats a record and sends it.
func (c *Channel) Sendf(format string, args ...any) error {
	return c.Send(fmt.Sprintf(format, args...))
}

func (c *Channel) writeFull(op string, p []byte) error {
	if wd, ok := c.rw.(writeDeadliner); ok && c.cfg.WriteTimeout > 0 {
		_ = wd.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	off := 0
	for off < len(p) {
		n, err := c.rw.Write(p[off:])
		if n > 0 {
			off += n
			c.bytesOut.Add(uint64(n))
		}
		if err != nil {
			if isRetryable(err) {
				continue
			}
			return newError(op, KindWriteError, err)
		}
		if n == 0 {
			return newError(op, KindWriteError, ErrNoProgress)
		}
	}
	return nil
}

// Receive returns the next complete record using the configured Mode.
func (c *Channel) Receive() (string, error) {
	return c.receive("receive", 0, c.cfg.Mode, false)
}

// ReceiveN is Receive with a caller bound on the record length. A longer
// record is consumed and reported as ErrRecordTooLong.
func (c *Channel) ReceiveN(maxLen int) (string, error) {
	return c.receive("receive", maxLen, c.cfg.Mode, false)
}

// TryReceive returns a record only if one is buffered or readable right
// now, whatever the configured Mode. Streams that offer neither descriptor
// access nor read deadlines are not read at all.
func (c *Channel) TryReceive() (string, error) {
	return c.receive("try_receive", 0, NonBlocking, true)
}

func (c *Channel) receive(op string, maxLen int, mode Mode, try bool) (string, error) {
	if c.closed.Load() {
		return "", newError(op, KindReadError, ErrClosed)
	}
	if maxLen <= 0 || maxLen >= len(c.in) {
		maxLen = len(c.in) - 1
	}
	for {
		if i := bytes.IndexByte(c.in[c.scan:c.filled], Terminator); i >= 0 {
			return c.extract(op, c.scan+i, maxLen)
		}
		c.scan = c.filled
		if c.filled == len(c.in) {
			return "", newError(op, KindRecordTooLong, fmt.Errorf("no terminator in %d buffered bytes", c.filled))
		}
		if err := c.fill(op, mode, try); err != nil {
			return "", err
		}
	}
}

// extract pops the record ending at end and shifts the remainder to the front.
func (c *Channel) extract(op string, end, maxLen int) (string, error) {
	text := string(c.in[:end])
	c.filled = copy(c.in, c.in[end+1:c.filled])
	c.scan = 0
	if len(text) > maxLen {
		return "", newError(op, KindRecordTooLong, fmt.Errorf("%d bytes, limit %d", len(text), maxLen))
	}
	c.recordsIn.Add(1)
	return text, nil
}

func (c *Channel) fill(op string, mode Mode, try bool) error {
	if c.pending != nil {
		err := c.pending
		c.pending = nil
		return c.classifyRead(op, err, mode)
	}
	var (
		n   int
		err error
	)
	switch {
	case (try || mode == NonBlocking) && c.readNow != nil:
		if err := c.armRead(op, Blocking, 0); err != nil {
			return err
		}
		n, err = c.readNow(c.in[c.filled:])
	case try && !c.deadlines:
		return newError(op, KindWouldBlock, nil)
	default:
		if err := c.armRead(op, mode, c.cfg.Watchdog); err != nil {
			return err
		}
		n, err = c.rw.Read(c.in[c.filled:])
	}
	if n > 0 {
		c.filled += n
		c.bytesIn.Add(uint64(n))
		c.pending = err
		return nil
	}
	if err == nil {
		return newError(op, KindWouldBlock, nil)
	}
	return c.classifyRead(op, err, mode)
}

// armRead sets the deadline of the next read. A non-positive watchdog
// clears it.
func (c *Channel) armRead(op string, mode Mode, watchdog time.Duration) error {
	rd, ok := c.rw.(readDeadliner)
	if !ok {
		return nil
	}
	var deadline time.Time
	switch {
	case mode == NonBlocking:
		deadline = time.Now().Add(c.cfg.PollInterval)
	case watchdog > 0:
		deadline = time.Now().Add(watchdog)
	}
	_ = rd.SetReadDeadline(deadline)
	if c.interrupted.Load() {
		return newError(op, KindReadError, ErrInterrupted)
	}
	return nil
}

func (c *Channel) classifyRead(op string, err error, mode Mode) error {
	switch {
	case errors.Is(err, io.EOF):
		return newError(op, KindPeerClosed, err)
	case isRetryable(err):
		return newError(op, KindWouldBlock, err)
	case errors.Is(err, os.ErrDeadlineExceeded):
		if c.interrupted.Load() {
			return newError(op, KindReadError, ErrInterrupted)
		}
		if mode == NonBlocking && c.deadlines {
			return newError(op, KindWouldBlock, err)
		}
		return newError(op, KindReadError, fmt.Errorf("watchdog expired after %v: %w", c.cfg.Watchdog, err))
	default:
		return newError(op, KindReadError, err)
	}
}

// Interrupt aborts an in-flight read; every later read fails with ErrInterrupted.
func (c *Channel) Interrupt() {
	c.interrupted.Store(true)
	if rd, ok := c.rw.(readDeadliner); ok {
		_ = rd.SetReadDeadline(time.Unix(1, 0))
	}
}

// Close releases the underlying stream once; later calls repeat the first result.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if cl, ok := c.rw.(io.Closer); ok {
			c.closeErr = cl.Close()
		}
	})
	return c.closeErr
}

