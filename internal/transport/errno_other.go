//go:build !unix

package transport

func isTransientAcceptErrno(error) bool {
	return false
}

func isRefused(error) bool {
	return false
}
