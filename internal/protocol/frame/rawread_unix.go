//go:build unix

package frame

import (
	"io"
	"syscall"

	"golang.org/x/sys/unix"
)

// rawReader returns a single read that never waits for readiness, or nil
// when rw does not expose its descriptor. The runtime keeps net and os
// descriptors in non-blocking mode, so one unix.Read returns at once.
func rawReader(rw io.ReadWriter) func([]byte) (int, error) {
	sc, ok := rw.(syscall.Conn)
	if !ok {
		return nil
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return nil
	}
	return func(p []byte) (int, error) {
		var (
			n    int
			rerr error
		)
		err := rc.Read(func(fd uintptr) bool {
			n, rerr = unix.Read(int(fd), p)
			return true
		})
		switch {
		case err != nil:
			return 0, err
		case rerr != nil:
			return 0, rerr
		case n == 0 && len(p) > 0:
			return 0, io.EOF
		}
		return n, nil
	}
}
