package frame

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"net"
	"os"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/danmuck/turnsync/internal/testutil/testlog"
	"golang.org/x/sys/unix"
)

type step struct {
	data string
	err  error
}

// scriptedReader replays fixed read results, then reports EOF.
type scriptedReader struct {
	steps []step
	reads int
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	r.reads++
	if len(r.steps) == 0 {
		return 0, io.EOF
	}
	s := r.steps[0]
	r.steps = r.steps[1:]
	n := copy(p, s.data)
	if n < len(s.data) {
		r.steps = append([]step{{data: s.data[n:], err: s.err}}, r.steps...)
		return n, nil
	}
	return n, s.err
}

// chunkReader hands out data in sizes picked by next.
type chunkReader struct {
	data []byte
	next func() int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.next()
	if n > len(p) {
		n = len(p)
	}
	if n > len(r.data) {
		n = len(r.data)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

type duplex struct {
	io.Reader
	io.Writer
}

type countingCloser struct {
	duplex
	closes int
}

func (c *countingCloser) Close() error {
	c.closes++
	return nil
}

// flakyWriter fails with the scripted errors first, then accepts at most limit bytes per call.
type flakyWriter struct {
	errs  []error
	limit int
	calls int
	buf   bytes.Buffer
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	w.calls++
	if len(w.errs) > 0 {
		err := w.errs[0]
		w.errs = w.errs[1:]
		return 0, err
	}
	if w.limit > 0 && len(p) > w.limit {
		p = p[:w.limit]
	}
	return w.buf.Write(p)
}

func receiveAll(t *testing.T, ch *Channel) []string {
	t.Helper()
	var got []string
	for {
		rec, err := ch.Receive()
		if errors.Is(err, ErrPeerClosed) {
			return got
		}
		if err != nil {
			t.Fatalf("receive after %d records: %v", len(got), err)
		}
		got = append(got, rec)
	}
}

func TestRoundTripIndependentOfChunking(t *testing.T) {
	testlog.Start(t)
	texts := []string{
		"D 1 1 5.488135e-01 7.151894e-01 6.027634e-01 5.448832e-01 4.236548e-01 1 1 6.458941e-01 4.375872e-01",
		"",
		"T 1",
		strings.Repeat("x", DefaultMaxRecordLen-1),
		"E",
	}
	var wire bytes.Buffer
	sender := NewChannel(duplex{Reader: strings.NewReader(""), Writer: &wire})
	for _, text := range texts {
		if err := sender.Send(text); err != nil {
			t.Fatalf("send %q: %v", text[:min(len(text), 8)], err)
		}
	}
	raw := wire.Bytes()

	rng := rand.New(rand.NewSource(42))
	readers := map[string]io.Reader{
		"one-shot": bytes.NewReader(raw),
		"one-byte": iotest.OneByteReader(bytes.NewReader(raw)),
		"random":   &chunkReader{data: append([]byte(nil), raw...), next: func() int { return 1 + rng.Intn(97) }},
		"data-eof": iotest.DataErrReader(bytes.NewReader(raw)),
	}
	for name, r := range readers {
		got := receiveAll(t, NewChannel(duplex{Reader: r, Writer: io.Discard}))
		if len(got) != len(texts) {
			t.Fatalf("%s: got %d records, want %d", name, len(got), len(texts))
		}
		for i := range texts {
			if got[i] != texts[i] {
				t.Fatalf("%s: record %d mismatch: got=%q want=%q", name, i, got[i], texts[i])
			}
		}
	}
}

func TestReceiveWaitsForTerminatorAcrossWouldBlock(t *testing.T) {
	testlog.Start(t)
	r := &scriptedReader{steps: []step{
		{data: "D 1 2", err: nil},
		{err: unix.EAGAIN},
		{data: " 3", err: nil},
		{err: unix.EINTR},
		{data: "\nT", err: nil},
	}}
	ch := NewChannel(duplex{Reader: r, Writer: io.Discard})

	for i := 0; i < 2; i++ {
		if _, err := ch.Receive(); !errors.Is(err, ErrWouldBlock) {
			t.Fatalf("attempt %d: expected ErrWouldBlock, got %v", i, err)
		}
	}
	rec, err := ch.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if rec != "D 1 2 3" {
		t.Fatalf("unexpected record %q", rec)
	}
	if ch.filled != 1 {
		t.Fatalf("expected the partial next record to stay buffered, got %d bytes", ch.filled)
	}
	if _, err := ch.Receive(); !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("expected ErrPeerClosed with a partial record pending, got %v", err)
	}
}

func TestScanOffsetSkipsBytesAlreadySearched(t *testing.T) {
	testlog.Start(t)
	r := &scriptedReader{steps: []step{
		{data: "D 1 2"},
		{err: unix.EAGAIN},
		{data: " 3 4"},
		{err: unix.EAGAIN},
		{data: " 5"},
		{err: unix.EAGAIN},
		{data: "\n"},
	}}
	ch := NewChannel(duplex{Reader: r, Writer: io.Discard})

	for i, want := range []int{5, 9, 11} {
		if _, err := ch.Receive(); !errors.Is(err, ErrWouldBlock) {
			t.Fatalf("round %d: expected ErrWouldBlock, got %v", i, err)
		}
		if ch.filled != want || ch.scan != ch.filled {
			t.Fatalf("round %d: scan=%d filled=%d, want both %d", i, ch.scan, ch.filled, want)
		}
	}
	rec, err := ch.Receive()
	if err != nil || rec != "D 1 2 3 4 5" {
		t.Fatalf("receive got=%q err=%v", rec, err)
	}
	if ch.scan != 0 || ch.filled != 0 {
		t.Fatalf("extraction must reset the scan offset, scan=%d filled=%d", ch.scan, ch.filled)
	}
}

func TestBackToBackRecordsAreSplit(t *testing.T) {
	testlog.Start(t)
	r := &scriptedReader{steps: []step{{data: "T 1\nE\n"}}}
	ch := NewChannel(duplex{Reader: r, Writer: io.Discard})

	first, err := ch.Receive()
	if err != nil || first != "T 1" {
		t.Fatalf("first record got=%q err=%v", first, err)
	}
	if ch.filled != 2 {
		t.Fatalf("expected 2 buffered bytes, got %d", ch.filled)
	}
	second, err := ch.Receive()
	if err != nil || second != "E" {
		t.Fatalf("second record got=%q err=%v", second, err)
	}
	if r.reads != 1 {
		t.Fatalf("second record must come from the buffer, reads=%d", r.reads)
	}
	if _, err := ch.Receive(); !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("expected ErrPeerClosed, got %v", err)
	}
	if got := ch.Stats().RecordsIn; got != 2 {
		t.Fatalf("unexpected records in=%d", got)
	}
}

func TestSendRecordTooLongKeepsBufferedState(t *testing.T) {
	testlog.Start(t)
	var wire bytes.Buffer
	ch := NewChannel(duplex{Reader: strings.NewReader("T 1\nT 2\n"), Writer: &wire})
	if rec, err := ch.Receive(); err != nil || rec != "T 1" {
		t.Fatalf("receive got=%q err=%v", rec, err)
	}
	before := ch.filled

	err := ch.Send(strings.Repeat("x", DefaultMaxRecordLen))
	if !errors.Is(err, ErrRecordTooLong) {
		t.Fatalf("expected ErrRecordTooLong, got %v", err)
	}
	if KindOf(err) != KindRecordTooLong {
		t.Fatalf("unexpected kind %s", KindOf(err))
	}
	if ch.filled != before {
		t.Fatalf("buffer changed: before=%d after=%d", before, ch.filled)
	}
	if wire.Len() != 0 {
		t.Fatalf("oversized record leaked %d bytes", wire.Len())
	}
	if rec, err := ch.Receive(); err != nil || rec != "T 2" {
		t.Fatalf("receive after failed send got=%q err=%v", rec, err)
	}
}

func TestSendAtCapacityBoundary(t *testing.T) {
	testlog.Start(t)
	var wire bytes.Buffer
	ch := NewChannel(duplex{Reader: strings.NewReader(""), Writer: &wire})
	if err := ch.Send(strings.Repeat("y", DefaultMaxRecordLen-1)); err != nil {
		t.Fatalf("send at limit: %v", err)
	}
	if wire.Len() != DefaultMaxRecordLen {
		t.Fatalf("unexpected wire length %d", wire.Len())
	}
}

func TestSendRejectsEmbeddedTerminator(t *testing.T) {
	testlog.Start(t)
	ch := NewChannel(duplex{Reader: strings.NewReader(""), Writer: io.Discard})
	if err := ch.Send("T 1\nE"); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestSendfFormatsRecord(t *testing.T) {
	testlog.Start(t)
	var wire bytes.Buffer
	ch := NewChannel(duplex{Reader: strings.NewReader(""), Writer: &wire})
	if err := ch.Sendf("T %d", 7); err != nil {
		t.Fatalf("sendf: %v", err)
	}
	if wire.String() != "T 7\n" {
		t.Fatalf("unexpected wire %q", wire.String())
	}
}

func TestReceiveFullBufferWithoutTerminator(t *testing.T) {
	testlog.Start(t)
	r := strings.NewReader(strings.Repeat("x", 64))
	ch := NewChannelWithConfig(duplex{Reader: r, Writer: io.Discard}, Config{MaxRecordLen: 16})
	_, err := ch.Receive()
	if !errors.Is(err, ErrRecordTooLong) {
		t.Fatalf("expected ErrRecordTooLong, got %v", err)
	}
	if r.Len() != 48 {
		t.Fatalf("channel over-read: %d bytes left, want 48", r.Len())
	}
}

func TestReceiveNConsumesOversizedRecord(t *testing.T) {
	testlog.Start(t)
	ch := NewChannel(duplex{Reader: strings.NewReader("abcdef\nok\n"), Writer: io.Discard})
	if _, err := ch.ReceiveN(3); !errors.Is(err, ErrRecordTooLong) {
		t.Fatalf("expected ErrRecordTooLong, got %v", err)
	}
	rec, err := ch.ReceiveN(3)
	if err != nil || rec != "ok" {
		t.Fatalf("receive after oversized record got=%q err=%v", rec, err)
	}
}

func TestSendRetriesTransientErrorsAndShortWrites(t *testing.T) {
	testlog.Start(t)
	w := &flakyWriter{errs: []error{unix.EAGAIN, unix.EINTR}, limit: 2}
	ch := NewChannel(duplex{Reader: strings.NewReader(""), Writer: w})
	if err := ch.Send("T 12"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if w.buf.String() != "T 12\n" {
		t.Fatalf("unexpected wire %q", w.buf.String())
	}
	if w.calls != 5 {
		t.Fatalf("unexpected write calls=%d", w.calls)
	}
	if ch.Stats().BytesOut != 5 {
		t.Fatalf("unexpected bytes out=%d", ch.Stats().BytesOut)
	}
}

func TestSendStopsOnFatalWriteError(t *testing.T) {
	testlog.Start(t)
	broken := errors.New("broken pipe")
	w := &flakyWriter{errs: []error{broken, broken}}
	ch := NewChannel(duplex{Reader: strings.NewReader(""), Writer: w})
	err := ch.Send("E")
	if !errors.Is(err, ErrWrite) || !errors.Is(err, broken) {
		t.Fatalf("expected ErrWrite wrapping cause, got %v", err)
	}
	if w.calls != 1 {
		t.Fatalf("fatal write must not be retried, calls=%d", w.calls)
	}
}

type stuckWriter struct{}

func (stuckWriter) Write([]byte) (int, error) { return 0, nil }

func TestSendZeroProgressIsWriteError(t *testing.T) {
	testlog.Start(t)
	ch := NewChannel(duplex{Reader: strings.NewReader(""), Writer: stuckWriter{}})
	if err := ch.Send("E"); !errors.Is(err, ErrNoProgress) {
		t.Fatalf("expected ErrNoProgress, got %v", err)
	}
}

func TestReceiveFatalReadError(t *testing.T) {
	testlog.Start(t)
	boom := errors.New("boom")
	ch := NewChannel(duplex{Reader: iotest.ErrReader(boom), Writer: io.Discard})
	_, err := ch.Receive()
	if !errors.Is(err, ErrRead) || !errors.Is(err, boom) {
		t.Fatalf("expected ErrRead wrapping boom, got %v", err)
	}
}

func TestErrorArrivingWithDataIsDeferred(t *testing.T) {
	testlog.Start(t)
	boom := errors.New("boom")
	r := &scriptedReader{steps: []step{{data: "T 3\n", err: boom}}}
	ch := NewChannel(duplex{Reader: r, Writer: io.Discard})
	if rec, err := ch.Receive(); err != nil || rec != "T 3" {
		t.Fatalf("receive got=%q err=%v", rec, err)
	}
	if _, err := ch.Receive(); !errors.Is(err, boom) {
		t.Fatalf("expected deferred boom, got %v", err)
	}
}

func TestCloseReleasesStreamOnce(t *testing.T) {
	testlog.Start(t)
	rw := &countingCloser{duplex: duplex{Reader: strings.NewReader(""), Writer: io.Discard}}
	ch := NewChannel(rw)
	if err := ch.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if rw.closes != 1 {
		t.Fatalf("expected exactly one close, got %d", rw.closes)
	}
	if err := ch.Send("E"); !errors.Is(err, ErrClosed) || !errors.Is(err, ErrWrite) {
		t.Fatalf("expected closed write error, got %v", err)
	}
	if _, err := ch.Receive(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected closed read error, got %v", err)
	}
}

func TestNonBlockingReceivePollsPipe(t *testing.T) {
	testlog.Start(t)
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	ch := NewChannelWithConfig(a, Config{Mode: NonBlocking, PollInterval: 2 * time.Millisecond})

	if _, err := ch.Receive(); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock on idle pipe, got %v", err)
	}

	go func() {
		_, _ = b.Write([]byte("T 4\n"))
	}()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := ch.Receive()
		if errors.Is(err, ErrWouldBlock) {
			continue
		}
		if err != nil || rec != "T 4" {
			t.Fatalf("receive got=%q err=%v", rec, err)
		}
		return
	}
	t.Fatalf("record never arrived")
}

func TestTryReceiveOnBlockingChannel(t *testing.T) {
	testlog.Start(t)
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	ch := NewChannel(a)
	if _, err := ch.TryReceive(); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock, got %v", err)
	}
}

func TestTryReceiveWithoutDeadlinesServesOnlyTheBuffer(t *testing.T) {
	testlog.Start(t)
	r := &scriptedReader{steps: []step{{data: "T 1\nT 2\n"}}}
	ch := NewChannel(duplex{Reader: r, Writer: io.Discard})

	if _, err := ch.TryReceive(); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock, got %v", err)
	}
	if r.reads != 0 {
		t.Fatalf("try receive read from a stream without deadlines, reads=%d", r.reads)
	}
	if rec, err := ch.Receive(); err != nil || rec != "T 1" {
		t.Fatalf("receive got=%q err=%v", rec, err)
	}
	if rec, err := ch.TryReceive(); err != nil || rec != "T 2" {
		t.Fatalf("buffered record got=%q err=%v", rec, err)
	}
	if r.reads != 1 {
		t.Fatalf("buffered record must not trigger a read, reads=%d", r.reads)
	}
}

func TestTryReceiveOnDeadlinelessPipeReturns(t *testing.T) {
	testlog.Start(t)
	pr, pw := io.Pipe()
	defer pw.Close()
	ch := NewChannel(duplex{Reader: pr, Writer: io.Discard})

	done := make(chan error, 1)
	go func() {
		_, err := ch.TryReceive()
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, ErrWouldBlock) {
			t.Fatalf("expected ErrWouldBlock, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("try receive parked on an idle pipe")
	}
}

func TestWatchdogSurfacesReadError(t *testing.T) {
	testlog.Start(t)
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	ch := NewChannelWithConfig(a, Config{Watchdog: 20 * time.Millisecond})
	_, err := ch.Receive()
	if !errors.Is(err, ErrRead) || !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("expected watchdog read error, got %v", err)
	}
}

func TestInterruptAbortsBlockedRead(t *testing.T) {
	testlog.Start(t)
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	ch := NewChannelWithConfig(a, Config{Watchdog: -1})
	time.AfterFunc(20*time.Millisecond, ch.Interrupt)
	_, err := ch.Receive()
	if !errors.Is(err, ErrInterrupted) || !errors.Is(err, ErrRead) {
		t.Fatalf("expected interrupted read error, got %v", err)
	}
	if _, err := ch.Receive(); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("later reads must stay interrupted, got %v", err)
	}
}

func TestKindClassification(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		err       error
		kind      Kind
		transient bool
	}{
		{newError("receive", KindWouldBlock, nil), KindWouldBlock, true},
		{newError("receive", KindPeerClosed, io.EOF), KindPeerClosed, false},
		{newError("receive", KindRecordTooLong, nil), KindRecordTooLong, false},
		{newError("send", KindWriteError, nil), KindWriteError, false},
		{errors.New("other"), KindNone, false},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.kind {
			t.Fatalf("%v: kind got=%s want=%s", tc.err, got, tc.kind)
		}
		if IsTransient(tc.err) != tc.transient {
			t.Fatalf("%v: transient mismatch", tc.err)
		}
	}
}

func TestParseMode(t *testing.T) {
	testlog.Start(t)
	if m, err := ParseMode("NonBlocking"); err != nil || m != NonBlocking {
		t.Fatalf("got=%s err=%v", m, err)
	}
	if m, err := ParseMode(""); err != nil || m != Blocking {
		t.Fatalf("got=%s err=%v", m, err)
	}
	if _, err := ParseMode("sometimes"); err == nil {
		t.Fatalf("expected error")
	}
}
