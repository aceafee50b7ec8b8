//go:build !unix

package transport

import (
	"context"

	"github.com/rs/zerolog"
)

func (l *Listener) announcePipe() error {
	return ErrUnsupported
}

func (l *Listener) acceptPipe(context.Context) (*Endpoint, error) {
	return nil, ErrUnsupported
}

func dialPipe(context.Context, Config, zerolog.Logger) (*Endpoint, error) {
	return nil, ErrUnsupported
}
