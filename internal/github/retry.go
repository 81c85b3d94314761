package github

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// MaxRetries is the largest retry count a RetryPolicy accepts.
const MaxRetries = 10

// MaxBackoff caps the wait between two attempts.
const MaxBackoff = 30 * time.Second

// RetryPolicy bounds every upstream call. Idempotent requests (GET, HEAD)
// are retried on transport errors and 502/503/504 responses with
// exponential backoff. Writes are sent exactly once. Timeout bounds a call
// end to end, retries included.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	Timeout    time.Duration
}

// DefaultRetryPolicy returns 2 retries, 250ms initial backoff and a 30s timeout.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		Backoff:    250 * time.Millisecond,
		Timeout:    30 * time.Second,
	}
}

// Delay returns the wait before retry number attempt+1: Backoff doubled per
// attempt, clamped to MaxBackoff.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.Backoff <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 32 || p.Backoff > MaxBackoff>>attempt {
		return MaxBackoff
	}
	return p.Backoff << attempt
}

func (p RetryPolicy) retries() int {
	switch {
	case p.MaxRetries < 0:
		return 0
	case p.MaxRetries > MaxRetries:
		return MaxRetries
	}
	return p.MaxRetries
}

// retryTransport applies RetryPolicy below the auth transport so each
// attempt carries the same Authorization header. Writes skip the retrying
// client entirely.
type retryTransport struct {
	base   http.RoundTripper
	policy RetryPolicy
	retry  *retryablehttp.RoundTripper
}

func newRetryTransport(base http.RoundTripper, policy RetryPolicy, logger zerolog.Logger) *retryTransport {
	if base == nil {
		base = http.DefaultTransport
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{
		Transport: base,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	rc.Logger = retryLogger{logger}
	rc.RetryMax = policy.retries()
	rc.RetryWaitMin = policy.Backoff
	rc.RetryWaitMax = MaxBackoff
	rc.CheckRetry = checkRetry
	rc.Backoff = func(_, _ time.Duration, attempt int, _ *http.Response) time.Duration {
		return policy.Delay(attempt)
	}
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			logger.Warn().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("attempt", attempt).
				Msg("retrying GitHub request")
		}
	}
	// Hand back the last response or error as is.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &retryTransport{
		base:   base,
		policy: policy,
		retry:  &retryablehttp.RoundTripper{Client: rc},
	}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !isIdempotent(req.Method) || t.policy.retries() == 0 {
		return t.base.RoundTrip(req)
	}
	return t.retry.RoundTrip(req)
}

func isIdempotent(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// checkRetry is a retryablehttp.CheckRetry. It never reports an error so
// the final response or transport error reaches the caller unchanged.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, nil
	}
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded), nil
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

// retryLogger adapts zerolog to retryablehttp.LeveledLogger.
type retryLogger struct {
	logger zerolog.Logger
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.logger.Error().Fields(kv).Msg(msg) }
func (l retryLogger) Info(msg string, kv ...interface{})  { l.logger.Info().Fields(kv).Msg(msg) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.logger.Debug().Fields(kv).Msg(msg) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.logger.Warn().Fields(kv).Msg(msg) }
