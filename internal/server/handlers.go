package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/andywolf/reqsync/internal/events"
	"github.com/andywolf/reqsync/internal/github"
	"github.com/andywolf/reqsync/internal/requirement"
)

const maxBodyBytes = 1 << 20

func (s *Server) banner(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, Banner)
}

func (s *Server) config(w http.ResponseWriter, r *http.Request) error {
	org, ok := events.Organization.Get(s.store)
	if !ok || org == "" {
		return errors.New("GitHub organization is not configured")
	}
	writeJSON(w, http.StatusOK, map[string]string{"organization": org})
	return nil
}

// adapterFor applies a token from the Authorization header, if any.
func (s *Server) adapterFor(r *http.Request) Adapter {
	return s.adapter.WithToken(requestToken(r))
}

// requestToken accepts "token X" and "Bearer X" Authorization values.
func requestToken(r *http.Request) string {
	scheme, value, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok {
		return ""
	}
	if strings.EqualFold(scheme, "token") || strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(value)
	}
	return ""
}

func pathRepo(r *http.Request) (owner, repo string) {
	vars := mux.Vars(r)
	return vars["owner"], vars["repo"]
}

func issueNumber(r *http.Request) (int, error) {
	raw := mux.Vars(r)["issueNumber"]
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, &github.ValidationError{Field: "issueNumber", Message: fmt.Sprintf("must be a positive integer, got %q", raw)}
	}
	return n, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &github.ValidationError{Field: name, Message: fmt.Sprintf("must be an integer, got %q", raw)}
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequestf("request body is required")
		}
		return badRequestf("invalid JSON body: %v", err)
	}
	return nil
}

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) error {
	owner, repo := pathRepo(r)

	page, err := queryInt(r, "page")
	if err != nil {
		return err
	}
	perPage, err := queryInt(r, "per_page")
	if err != nil {
		return err
	}

	issues, err := s.adapterFor(r).ListIssues(r.Context(), owner, repo, github.ListOptions{
		State:   r.URL.Query().Get("state"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		return err
	}

	zerolog.Ctx(r.Context()).Info().Str("owner", owner).Str("repo", repo).Int("count", len(issues)).Msg("fetched issues")
	writeJSON(w, http.StatusOK, issues)
	return nil
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request) error {
	number, err := issueNumber(r)
	if err != nil {
		return err
	}

	owner, repo := pathRepo(r)
	issue, err := s.adapterFor(r).GetIssue(r.Context(), owner, repo, number)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, issue)
	return nil
}

func (s *Server) previewIssue(w http.ResponseWriter, r *http.Request) error {
	number, err := issueNumber(r)
	if err != nil {
		return err
	}
	owner, repo := pathRepo(r)
	adapter := s.adapterFor(r)

	var (
		issue    github.Issue
		comments []github.Comment
	)
	if r.URL.Query().Get("includeComments") == "false" {
		issue, err = adapter.GetIssue(r.Context(), owner, repo, number)
	} else {
		issue, comments, err = adapter.GetIssueWithComments(r.Context(), owner, repo, number)
	}
	if err != nil {
		return err
	}

	markdown, err := requirement.FormatPreview(&issue, comments)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = io.WriteString(w, markdown)
	return nil
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) error {
	var req github.IssueRequest
	if err := decodeBody(w, r, &req); err != nil {
		return err
	}
	owner, repo := pathRepo(r)

	issue, err := s.adapterFor(r).CreateIssue(r.Context(), owner, repo, req)
	if err != nil {
		return err
	}

	zerolog.Ctx(r.Context()).Info().Str("owner", owner).Str("repo", repo).Int("issue_number", issue.Number).Msg("issue created")
	s.store.Trigger(events.ActionIssueCreated)
	writeJSON(w, http.StatusCreated, issue)
	return nil
}

func (s *Server) updateIssue(w http.ResponseWriter, r *http.Request) error {
	number, err := issueNumber(r)
	if err != nil {
		return err
	}
	var req github.IssueRequest
	if err := decodeBody(w, r, &req); err != nil {
		return err
	}
	owner, repo := pathRepo(r)

	issue, err := s.adapterFor(r).UpdateIssue(r.Context(), owner, repo, number, req)
	if err != nil {
		return err
	}

	zerolog.Ctx(r.Context()).Info().Str("owner", owner).Str("repo", repo).Int("issue_number", number).Msg("issue updated")
	s.store.Trigger(events.ActionIssueUpdated)
	writeJSON(w, http.StatusOK, issue)
	return nil
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) error {
	number, err := issueNumber(r)
	if err != nil {
		return err
	}

	owner, repo := pathRepo(r)
	comments, err := s.adapterFor(r).ListComments(r.Context(), owner, repo, number)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, comments)
	return nil
}

type commentRequest struct {
	Body string `json:"body"`
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) error {
	number, err := issueNumber(r)
	if err != nil {
		return err
	}
	var req commentRequest
	if err := decodeBody(w, r, &req); err != nil {
		return err
	}
	owner, repo := pathRepo(r)

	comment, err := s.adapterFor(r).CreateComment(r.Context(), owner, repo, number, req.Body)
	if err != nil {
		return err
	}

	zerolog.Ctx(r.Context()).Info().Str("owner", owner).Str("repo", repo).Int("issue_number", number).Msg("comment created")
	s.store.Trigger(events.ActionCommentCreated)
	writeJSON(w, http.StatusCreated, comment)
	return nil
}

func (s *Server) listState(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
	return nil
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) error {
	key := mux.Vars(r)["key"]
	entry, ok := s.store.Lookup(key)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Unknown key", Message: key})
		return nil
	}
	writeJSON(w, http.StatusOK, entry)
	return nil
}
