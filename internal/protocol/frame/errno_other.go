//go:build !unix

package frame

func isRetryable(error) bool {
	return false
}
