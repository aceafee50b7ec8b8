package session

import "errors"

var (
	ErrCountMismatch    = errors.New("session: received count mismatch at turn barrier")
	ErrUnexpectedRecord = errors.New("session: unexpected record")
	ErrAlreadyStarted   = errors.New("session: engine already started")
	ErrNilConn          = errors.New("session: conn required")
	ErrNilGenerator     = errors.New("session: generator required")
)
