//go:build !unix

package frame

import "io"

func rawReader(io.ReadWriter) func([]byte) (int, error) {
	return nil
}
