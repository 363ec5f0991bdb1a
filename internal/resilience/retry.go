package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryConfig describes a fixed-delay retry budget. Retries counts the extra
// attempts after the first one.
type RetryConfig struct {
	Retries int
	Delay   time.Duration
}

// HTTPError represents a non-2xx response from an upstream service.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Retry calls fn until it succeeds, returns a non-retryable error, or the
// budget is spent. It returns the last error from fn. Once ctx is done no
// further attempt is made, so a per-attempt client timeout is retried but the
// caller's own deadline is not.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.Retries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !IsRetryable(lastErr) || attempt == cfg.Retries {
			break
		}

		log.Warn().
			Err(lastErr).
			Int("attempt", attempt+1).
			Int("retries", cfg.Retries).
			Dur("delay", cfg.Delay).
			Msg("Upstream call failed, retrying")

		timer := time.NewTimer(cfg.Delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	return lastErr
}

// IsRetryable reports whether err is a transient failure: a transport timeout,
// a refused or reset connection, or an HTTP 408, 429 or 5xx response. A bare
// context error is not retryable; a timed out HTTP request is, even though it
// wraps context.DeadlineExceeded.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	if IsTransportTimeout(err) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if errors.Is(err, ErrCircuitOpen) {
		return false
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode >= 500 && httpErr.StatusCode < 600:
			return true
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return true
		case httpErr.StatusCode == http.StatusRequestTimeout:
			return true
		}
	}

	return false
}

// IsTransportTimeout reports whether err is a timeout raised by the HTTP
// client or the network stack, such as http.Client.Timeout expiring.
func IsTransportTimeout(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Timeout()
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Timeout()
	}
	return false
}
