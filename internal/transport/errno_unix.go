//go:build unix

package transport

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isTransientAcceptErrno(err error) bool {
	for _, errno := range []unix.Errno{unix.ECONNABORTED, unix.EINTR, unix.EMFILE, unix.ENFILE, unix.ENOBUFS, unix.ENOMEM} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

func isRefused(err error) bool {
	return errors.Is(err, unix.ECONNREFUSED)
}
