package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// RetryableError marks an error a provider client already judged safe
// to retry, typically from a throttling or server-side HTTP status.
type RetryableError struct {
	Err    error
	Status int
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// MarkRetryable tags err as retryable. status carries the HTTP status
// that triggered the tag, or 0 for non-HTTP failures.
func MarkRetryable(err error, status int) *RetryableError {
	return &RetryableError{Err: err, Status: status}
}

// IsRetryable reports whether err carries a RetryableError, is a
// network timeout, or matches a known transient connection failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var re *RetryableError
	if errors.As(err, &re) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// HTTP clients flatten some transport failures into message text.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// RetryableStatus reports whether an HTTP status is worth retrying:
// throttling, timeouts, and server-side 5xx.
func RetryableStatus(status int) bool {
	switch status {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}
