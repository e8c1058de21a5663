package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy controls how often and how patiently a collaborator call is retried.
type Policy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// DefaultPolicy mirrors the rate-limit schedule the pipeline has always used:
// five attempts starting at ten seconds and doubling.
var DefaultPolicy = Policy{
	MaxAttempts:     5,
	InitialInterval: 10 * time.Second,
	MaxInterval:     2 * time.Minute,
	MaxElapsed:      10 * time.Minute,
}

// WithAttempts returns a copy of p with the attempt budget replaced when n > 0.
func (p Policy) WithAttempts(n int) Policy {
	if n > 0 {
		p.MaxAttempts = uint(n)
	}
	return p
}

// Do runs op until it succeeds, returns a non-transient error or the policy gives up.
// transient decides which errors are worth another attempt; nil means IsTransient.
func Do[T any](ctx context.Context, p Policy, logger *slog.Logger, transient func(error) bool, op func() (T, error)) (T, error) {
	if transient == nil {
		transient = IsTransient
	}
	if logger == nil {
		logger = slog.Default()
	}

	bo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		bo.MaxInterval = p.MaxInterval
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(bo),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Warn("transient failure, retrying",
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()))
		}),
	}
	if p.MaxAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(p.MaxAttempts))
	}
	if p.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(p.MaxElapsed))
	}

	return backoff.Retry(ctx, func() (T, error) {
		result, err := op()
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil || !transient(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}, opts...)
}

// StatusError reports a non-success HTTP response from a scraped endpoint.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// TransientStatus reports whether an HTTP status code is worth retrying.
func TransientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// StatusCoder is implemented by API errors that carry an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// IsTransient classifies network failures, retryable status codes and rate-limit
// messages as transient. Context cancellation never is.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return TransientStatus(statusErr.StatusCode)
	}
	var coder StatusCoder
	if errors.As(err, &coder) {
		return TransientStatus(coder.HTTPStatus())
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, token := range []string{"rate limit", "resource_exhausted", "too many requests", "connection reset", "unexpected eof"} {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}
