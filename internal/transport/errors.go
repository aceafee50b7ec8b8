package transport

import "errors"

var (
	ErrUnknownKind   = errors.New("transport: unknown kind")
	ErrInvalidConfig = errors.New("transport: invalid config")
	ErrUnsupported   = errors.New("transport: unsupported on this platform")
	ErrNoPeer        = errors.New("transport: peer did not connect")
	ErrListenerDone  = errors.New("transport: listener already accepted or closed")
)
