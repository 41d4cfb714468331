package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider operations.
var (
	// ErrNetwork indicates a connectivity or timeout failure before any
	// HTTP status was received.
	ErrNetwork = errors.New("provider: network failure")

	// ErrEmptyResponse indicates a 2xx response that carried no usable
	// completion content.
	ErrEmptyResponse = errors.New("provider: empty completion")
)

// HTTPError is returned for non-2xx responses. It carries the raw response
// body for diagnostics; the body is never shown to end users.
type HTTPError struct {
	Provider string
	Status   int
	Body     []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.Status, truncate(e.Body, 256))
}

// IsHTTPStatus reports whether err is an HTTPError with the given status.
func IsHTTPStatus(err error, status int) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == status
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
