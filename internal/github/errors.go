package github

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	gogithub "github.com/google/go-github/v72/github"
)

// ErrTokenRequired is returned by write operations when no token is
// configured. No request is sent.
var ErrTokenRequired = errors.New("GitHub token required")

// ValidationError reports invalid input detected before any request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// APIError is a failed upstream call. Status is the upstream HTTP status, or
// zero when no response was received (DNS failure, reset, timeout).
type APIError struct {
	Op      string
	Owner   string
	Repo    string
	Number  int
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	target := e.Owner + "/" + e.Repo
	if e.Number > 0 {
		target = fmt.Sprintf("%s#%d", target, e.Number)
	}
	if e.Status == 0 {
		return fmt.Sprintf("failed to %s %s: %s", e.Op, target, e.Message)
	}
	return fmt.Sprintf("failed to %s %s: %s (status %d)", e.Op, target, e.Message, e.Status)
}

func (e *APIError) Unwrap() error { return e.Err }

// StatusCode returns the upstream status carried by err, or zero.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// newAPIError classifies an error returned by go-github.
func newAPIError(op, owner, repo string, number int, err error) *APIError {
	apiErr := &APIError{Op: op, Owner: owner, Repo: repo, Number: number, Err: err}

	var (
		errResp   *gogithub.ErrorResponse
		rateErr   *gogithub.RateLimitError
		abuseErr  *gogithub.AbuseRateLimitError
		acceptErr *gogithub.AcceptedError
	)
	switch {
	case errors.As(err, &rateErr):
		apiErr.Status = statusOf(rateErr.Response, http.StatusForbidden)
		apiErr.Message = "rate limit exceeded"
	case errors.As(err, &abuseErr):
		apiErr.Status = statusOf(abuseErr.Response, http.StatusForbidden)
		apiErr.Message = "secondary rate limit exceeded"
	case errors.As(err, &errResp):
		apiErr.Status = statusOf(errResp.Response, http.StatusBadGateway)
		apiErr.Message = errResp.Message
		if apiErr.Message == "" {
			apiErr.Message = strings.ToLower(http.StatusText(apiErr.Status))
		}
	case errors.As(err, &acceptErr):
		apiErr.Status = http.StatusAccepted
		apiErr.Message = "request accepted but not yet processed"
	default:
		apiErr.Message = err.Error()
	}

	return apiErr
}

func statusOf(resp *http.Response, fallback int) int {
	if resp == nil {
		return fallback
	}
	return resp.StatusCode
}
