package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/andywolf/reqsync/internal/events"
	"github.com/andywolf/reqsync/internal/requirement"
)

// repoRef is either "name" or {"owner": "...", "name": "..."}.
type repoRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

func (r *repoRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.Name)
	}
	type plain repoRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("repo must be a string or an object with owner and name: %w", err)
	}
	*r = repoRef(p)
	return nil
}

// flexInt accepts 42 and "42".
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("issue number %q is not an integer", s)
		}
		*n = flexInt(v)
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("issue number must be an integer: %w", err)
	}
	*n = flexInt(v)
	return nil
}

type downloadRequest struct {
	Owner           string    `json:"owner"`
	Repo            repoRef   `json:"repo"`
	IssueNumber     flexInt   `json:"issueNumber"`
	IssueNumbers    []flexInt `json:"issueNumbers"`
	IncludeComments *bool     `json:"includeComments"`
	Destination     string    `json:"destination"`
	Token           string    `json:"token"`
}

// owner resolves the repository owner: the repo object, then the owner
// field, then the configured organization.
func (d downloadRequest) owner(s *Server) string {
	if d.Repo.Owner != "" {
		return d.Repo.Owner
	}
	if d.Owner != "" {
		return d.Owner
	}
	org, _ := events.Organization.Get(s.store)
	return org
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) error {
	var req downloadRequest
	if err := decodeBody(w, r, &req); err != nil {
		return err
	}

	token := req.Token
	if token == "" {
		token = requestToken(r)
	}
	exporter := s.exporter.WithFetcher(s.adapter.WithToken(token))
	owner := req.owner(s)

	var (
		result *requirement.ExportResult
		err    error
	)
	if len(req.IssueNumbers) > 0 {
		numbers := make([]int, len(req.IssueNumbers))
		for i, n := range req.IssueNumbers {
			numbers[i] = int(n)
		}
		result, err = exporter.ExportMany(r.Context(), requirement.BatchRequest{
			Owner:           owner,
			Repo:            req.Repo.Name,
			IssueNumbers:    numbers,
			IncludeComments: req.IncludeComments,
			Destination:     req.Destination,
		})
	} else {
		result, err = exporter.Export(r.Context(), requirement.ExportRequest{
			Owner:           owner,
			Repo:            req.Repo.Name,
			IssueNumber:     int(req.IssueNumber),
			IncludeComments: req.IncludeComments,
			Destination:     req.Destination,
		})
	}
	if result != nil && len(result.Records) > 0 {
		events.PublishExport(s.store, result.Records...)
	}
	if err != nil {
		return err
	}

	zerolog.Ctx(r.Context()).Info().
		Str("owner", owner).
		Str("repo", req.Repo.Name).
		Int("files", len(result.Files)).
		Str("path", result.Path).
		Msg("requirements downloaded")
	writeJSON(w, http.StatusOK, result)
	return nil
}
