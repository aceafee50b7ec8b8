package protocol

import "errors"

var (
	ErrEmptyRecord     = errors.New("protocol: empty record")
	ErrUnknownTag      = errors.New("protocol: unknown record tag")
	ErrMalformedRecord = errors.New("protocol: malformed record")
	ErrFieldCount      = errors.New("protocol: wrong field count")
)
