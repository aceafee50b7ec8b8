package frame

import (
	"errors"
	"fmt"
)

// Kind classifies every failure a Channel primitive can return.
type Kind int

const (
	KindNone Kind = iota
	KindWouldBlock
	KindPeerClosed
	KindRecordTooLong
	KindInvalidRecord
	KindReadError
	KindWriteError
)

var (
	ErrWouldBlock    = errors.New("frame: would block")
	ErrPeerClosed    = errors.New("frame: peer closed")
	ErrRecordTooLong = errors.New("frame: record too long")
	ErrInvalidRecord = errors.New("frame: invalid record")
	ErrRead          = errors.New("frame: channel read error")
	ErrWrite         = errors.New("frame: channel write error")

	ErrClosed      = errors.New("frame: channel closed")
	ErrInterrupted = errors.New("frame: read interrupted")
	ErrNoProgress  = errors.New("frame: write made no progress")
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindWouldBlock:
		return "would_block"
	case KindPeerClosed:
		return "peer_closed"
	case KindRecordTooLong:
		return "record_too_long"
	case KindInvalidRecord:
		return "invalid_record"
	case KindReadError:
		return "read_error"
	case KindWriteError:
		return "write_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindWouldBlock:
		return ErrWouldBlock
	case KindPeerClosed:
		return ErrPeerClosed
	case KindRecordTooLong:
		return ErrRecordTooLong
	case KindInvalidRecord:
		return ErrInvalidRecord
	case KindReadError:
		return ErrRead
	case KindWriteError:
		return ErrWrite
	default:
		return nil
	}
}

// Error is the tagged result of a failed channel operation.
// errors.Is matches it against the sentinel of its Kind and against Err.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("frame: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("frame: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf reports the Kind carried by err, or KindNone for foreign errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindNone
}

// IsTransient reports whether err only asks the caller to retry later.
func IsTransient(err error) bool {
	return KindOf(err) == KindWouldBlock
}

func newError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}
