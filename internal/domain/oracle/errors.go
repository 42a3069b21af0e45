package oracle

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

var (
	ErrAuthRequired = errors.New("oracle credentials missing or rejected")
	ErrRateLimited  = errors.New("oracle rate limited")
	ErrTransient    = errors.New("oracle temporarily unavailable")
	ErrBadResponse  = errors.New("oracle returned an unusable response")
	ErrUnsupported  = errors.New("query not supported by oracle")
)

// Retryable reports whether another attempt may succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrRateLimited)
}

// StatusError classifies a failed HTTP response from a provider.
func StatusError(provider string, code int, status, msg string) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s: %s: %s", ErrAuthRequired, provider, status, msg)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s: %s: %s", ErrRateLimited, provider, status, msg)
	case code >= 500:
		return fmt.Errorf("%w: %s: %s: %s", ErrTransient, provider, status, msg)
	default:
		return fmt.Errorf("%s request failed: %s: %s", provider, status, msg)
	}
}

// TransportError wraps a failed round trip, marking network failures transient.
func TransportError(provider string, err error) error {
	var netErr net.Error
	if errors.Is(err, io.EOF) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %s: %v", ErrTransient, provider, err)
	}
	return fmt.Errorf("%s request failed: %w", provider, err)
}
