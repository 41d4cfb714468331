package openai

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/calmahq/calma/internal/provider"
)

// mapHTTPError maps an HTTP status code and response body to a typed
// provider error carrying the raw body. Returns nil for 2xx status codes.
func mapHTTPError(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	return &provider.HTTPError{
		Provider: "openai",
		Status:   statusCode,
		Body:     body,
	}
}

// mapConnectionError maps network-level errors to the provider network
// sentinel. Context errors pass through unchanged.
func mapConnectionError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", provider.ErrNetwork, err)
	}
	return fmt.Errorf("openai: %w", err)
}
