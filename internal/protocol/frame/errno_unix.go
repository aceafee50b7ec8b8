//go:build unix

package frame

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isRetryable matches the errno values a non-blocking descriptor uses to say "not now".
func isRetryable(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR)
}
