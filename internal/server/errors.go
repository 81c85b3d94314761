package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/andywolf/reqsync/internal/github"
	"github.com/andywolf/reqsync/internal/requirement"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// badRequest marks a malformed request detected by the route layer.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

// classify maps err to a status code and envelope.
//
//   - malformed input and validation failures: 400
//   - writes without a token: 401
//   - upstream failures with a status: that status, otherwise 500
//   - export fetch and write failures: 500 with the failing step as kind
func classify(err error) (int, ErrorResponse) {
	var (
		badReq    *badRequest
		validErr  *github.ValidationError
		exportErr *requirement.ExportError
		apiErr    *github.APIError
	)

	switch {
	case errors.As(err, &badReq), errors.As(err, &validErr):
		return http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()}
	case errors.Is(err, github.ErrTokenRequired):
		return http.StatusUnauthorized, ErrorResponse{Error: "GitHub token required", Message: "configure GITHUB_TOKEN or send an Authorization header"}
	case errors.As(err, &exportErr):
		if exportErr.Kind == requirement.KindValidation {
			return http.StatusBadRequest, ErrorResponse{Error: "Missing required parameters", Message: err.Error(), Kind: string(exportErr.Kind)}
		}
		return http.StatusInternalServerError, ErrorResponse{Error: "Export failed", Message: err.Error(), Kind: string(exportErr.Kind)}
	case errors.As(err, &apiErr):
		if apiErr.Status >= http.StatusBadRequest && apiErr.Status <= 599 {
			return apiErr.Status, ErrorResponse{Error: fmt.Sprintf("GitHub API error: %d", apiErr.Status), Message: err.Error()}
		}
		return http.StatusInternalServerError, ErrorResponse{Error: "Internal server error", Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "Internal server error", Message: err.Error()}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)

	event := zerolog.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		event = zerolog.Ctx(r.Context()).Error()
	}
	event.Err(err).Int("status", status).Msg("request failed")

	writeJSON(w, status, body)
}

// handlerFunc is an HTTP handler that reports failures by returning them.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle converts a returned error into an error envelope.
func handle(fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			writeError(w, r, err)
		}
	})
}
