// Package client is a Go client for the reqsync REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/andywolf/reqsync/internal/github"
	"github.com/andywolf/reqsync/internal/httproute"
	"github.com/andywolf/reqsync/internal/requirement"
	"github.com/andywolf/reqsync/internal/store"
	"github.com/andywolf/reqsync/internal/version"
)

// DefaultTimeout bounds each call when no HTTP client is supplied.
const DefaultTimeout = 60 * time.Second

// Error is a non-2xx response from the server. Code is the envelope's error
// field and Message its optional detail.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("reqsync server returned %d: %s", e.Status, e.Code)
	}
	return fmt.Sprintf("reqsync server returned %d: %s: %s", e.Status, e.Code, e.Message)
}

// Client calls a reqsync server.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	token      string
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken forwards token to the server, which uses it for GitHub calls
// instead of its configured credentials.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New creates a client for the server at baseURL, e.g. http://localhost:3006.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  "reqsync-client/" + version.Short(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.token != "" {
		hc := *c.httpClient
		hc.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token, TokenType: "token"}),
			Base:   c.httpClient.Transport,
		}
		c.httpClient = &hc
	}
	return c, nil
}

// Config returns the server's default organization.
func (c *Client) Config(ctx context.Context) (string, error) {
	var out struct {
		Organization string `json:"organization"`
	}
	if err := c.do(ctx, http.MethodGet, httproute.Config, nil, &out); err != nil {
		return "", err
	}
	return out.Organization, nil
}

// ListIssues lists issues of owner/repo.
func (c *Client) ListIssues(ctx context.Context, owner, repo string, opts github.ListOptions) ([]github.Issue, error) {
	q := url.Values{}
	if opts.State != "" {
		q.Set("state", opts.State)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(opts.PerPage))
	}
	path := httproute.IssuesPath(owner, repo)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var issues []github.Issue
	if err := c.do(ctx, http.MethodGet, path, nil, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// GetIssue fetches one issue.
func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (github.Issue, error) {
	var issue github.Issue
	err := c.do(ctx, http.MethodGet, httproute.IssuePath(owner, repo, number), nil, &issue)
	return issue, err
}

// CreateIssue opens an issue.
func (c *Client) CreateIssue(ctx context.Context, owner, repo string, req github.IssueRequest) (github.Issue, error) {
	var issue github.Issue
	err := c.do(ctx, http.MethodPost, httproute.IssuesPath(owner, repo), req, &issue)
	return issue, err
}

// UpdateIssue changes the fields set in req.
func (c *Client) UpdateIssue(ctx context.Context, owner, repo string, number int, req github.IssueRequest) (github.Issue, error) {
	var issue github.Issue
	err := c.do(ctx, http.MethodPatch, httproute.IssuePath(owner, repo, number), req, &issue)
	return issue, err
}

// ListComments returns every comment on an issue.
func (c *Client) ListComments(ctx context.Context, owner, repo string, number int) ([]github.Comment, error) {
	var comments []github.Comment
	if err := c.do(ctx, http.MethodGet, httproute.CommentsPath(owner, repo, number), nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// CreateComment adds a comment to an issue.
func (c *Client) CreateComment(ctx context.Context, owner, repo string, number int, body string) (github.Comment, error) {
	var comment github.Comment
	err := c.do(ctx, http.MethodPost, httproute.CommentsPath(owner, repo, number), map[string]string{"body": body}, &comment)
	return comment, err
}

// Preview renders an issue as a requirement document without writing it.
func (c *Client) Preview(ctx context.Context, owner, repo string, number int, includeComments bool) (string, error) {
	path := httproute.PreviewPath(owner, repo, number)
	if !includeComments {
		path += "?includeComments=false"
	}

	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read preview: %w", err)
	}
	return string(body), nil
}

// DownloadRequest asks the server to export issues to its filesystem.
// Owner defaults to the server's organization.
type DownloadRequest struct {
	Owner           string `json:"owner,omitempty"`
	Repo            string `json:"repo"`
	IssueNumber     int    `json:"issueNumber,omitempty"`
	IssueNumbers    []int  `json:"issueNumbers,omitempty"`
	IncludeComments *bool  `json:"includeComments,omitempty"`
	Destination     string `json:"destination,omitempty"`
	Token           string `json:"token,omitempty"`
}

// DownloadIssue exports req.IssueNumber.
func (c *Client) DownloadIssue(ctx context.Context, req DownloadRequest) (*requirement.ExportResult, error) {
	req.IssueNumbers = nil
	return c.download(ctx, httproute.DownloadIssue, req)
}

// DownloadIssues exports req.IssueNumbers in order, stopping at the first
// failure.
func (c *Client) DownloadIssues(ctx context.Context, req DownloadRequest) (*requirement.ExportResult, error) {
	req.IssueNumber = 0
	return c.download(ctx, httproute.DownloadIssues, req)
}

func (c *Client) download(ctx context.Context, path string, req DownloadRequest) (*requirement.ExportResult, error) {
	var result requirement.ExportResult
	if err := c.do(ctx, http.MethodPost, path, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// State returns every store entry.
func (c *Client) State(ctx context.Context) ([]store.Entry, error) {
	var entries []store.Entry
	if err := c.do(ctx, http.MethodGet, httproute.State, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// StateValue returns one store entry.
func (c *Client) StateValue(ctx context.Context, key string) (store.Entry, error) {
	var entry store.Entry
	err := c.do(ctx, http.MethodGet, httproute.StateKeyPath(key), nil, &entry)
	return entry, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.send(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// send performs the request and converts non-2xx responses to *Error. The
// caller closes the body of a successful response.
func (c *Client) send(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, decodeError(resp)
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != "" {
		apiErr.Code = envelope.Error
		apiErr.Message = envelope.Message
		return apiErr
	}

	apiErr.Code = http.StatusText(resp.StatusCode)
	apiErr.Message = strings.TrimSpace(string(raw))
	return apiErr
}

// StatusCode returns the server status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
