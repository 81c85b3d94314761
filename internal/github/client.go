// Package github is the GitHub Issues adapter for reqsync. It wraps
// go-github behind a small set of issue and comment operations, attaches
// authentication, applies one retry and timeout policy to every call, and
// classifies failures into typed errors.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gogithub "github.com/google/go-github/v72/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/andywolf/reqsync/internal/version"
)

// DefaultBaseURL is the public GitHub REST API.
const DefaultBaseURL = "https://api.github.com"

// Client performs issue and comment operations against one GitHub API.
type Client struct {
	gh      *gogithub.Client
	baseURL string
	apiURL  *url.URL

	tokens    oauth2.TokenSource
	transport http.RoundTripper
	policy    RetryPolicy
	logger    zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the API root, for GitHub Enterprise or tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTokenSource authenticates every request with tokens from ts.
// A nil source leaves the client unauthenticated.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithTransport sets the base transport under the retry and auth layers.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a Client.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: DefaultBaseURL,
		policy:  DefaultRetryPolicy(),
		logger:  zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL %q: %w", c.baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid GitHub API URL %q: must be absolute", c.baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	c.apiURL = u

	c.build()
	return c, nil
}

func (c *Client) build() {
	var rt http.RoundTripper = newRetryTransport(c.transport, c.policy, c.logger)
	if c.tokens != nil {
		rt = &oauth2.Transport{Source: c.tokens, Base: rt}
	}

	gh := gogithub.NewClient(&http.Client{Transport: rt})
	gh.BaseURL = c.apiURL
	gh.UserAgent = version.UserAgent()
	c.gh = gh
}

// WithToken returns a client that authenticates with token instead of the
// configured source. An empty token returns c unchanged.
func (c *Client) WithToken(token string) *Client {
	token = strings.TrimSpace(token)
	if token == "" {
		return c
	}
	clone := *c
	clone.tokens = StaticTokenSource(token)
	clone.build()
	return &clone
}

// HasToken reports whether requests are authenticated.
func (c *Client) HasToken() bool {
	return c.tokens != nil
}

// BaseURL returns the API root in use.
func (c *Client) BaseURL() string {
	return c.apiURL.String()
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.policy.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.policy.Timeout)
}

func validateTarget(owner, repo string, number int, needNumber bool) error {
	if strings.TrimSpace(owner) == "" {
		return &ValidationError{Field: "owner", Message: "is required"}
	}
	if strings.TrimSpace(repo) == "" {
		return &ValidationError{Field: "repo", Message: "is required"}
	}
	if needNumber && number <= 0 {
		return &ValidationError{Field: "issueNumber", Message: "must be a positive integer"}
	}
	return nil
}

// ListIssues lists one page of issues. Pull requests returned by the issues
// endpoint are included.
func (c *Client) ListIssues(ctx context.Context, owner, repo string, opts ListOptions) ([]Issue, error) {
	if err := validateTarget(owner, repo, 0, false); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	state := opts.State
	if state == "" {
		state = StateAll
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	ghIssues, _, err := c.gh.Issues.ListByRepo(ctx, owner, repo, &gogithub.IssueListByRepoOptions{
		State:       state,
		ListOptions: gogithub.ListOptions{Page: opts.Page, PerPage: opts.PerPage},
	})
	if err != nil {
		return nil, newAPIError("list issues", owner, repo, 0, err)
	}

	issues := make([]Issue, 0, len(ghIssues))
	for _, gi := range ghIssues {
		issues = append(issues, fromGitHubIssue(gi))
	}
	return issues, nil
}

// GetIssue fetches one issue.
func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (Issue, error) {
	if err := validateTarget(owner, repo, number, true); err != nil {
		return Issue{}, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	gi, _, err := c.gh.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return Issue{}, newAPIError("get issue", owner, repo, number, err)
	}
	return fromGitHubIssue(gi), nil
}

// CreateIssue opens a new issue. Labels default to none.
func (c *Client) CreateIssue(ctx context.Context, owner, repo string, req IssueRequest) (Issue, error) {
	if err := validateTarget(owner, repo, 0, false); err != nil {
		return Issue{}, err
	}
	if err := req.ValidateCreate(); err != nil {
		return Issue{}, err
	}
	if !c.HasToken() {
		return Issue{}, ErrTokenRequired
	}

	if req.Labels == nil {
		req.Labels = &[]string{}
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	gi, _, err := c.gh.Issues.Create(ctx, owner, repo, req.toGitHub())
	if err != nil {
		return Issue{}, newAPIError("create issue", owner, repo, 0, err)
	}
	return fromGitHubIssue(gi), nil
}

// UpdateIssue edits an issue. Only fields set in req are sent.
func (c *Client) UpdateIssue(ctx context.Context, owner, repo string, number int, req IssueRequest) (Issue, error) {
	if err := validateTarget(owner, repo, number, true); err != nil {
		return Issue{}, err
	}
	if err := req.Validate(); err != nil {
		return Issue{}, err
	}
	if !c.HasToken() {
		return Issue{}, ErrTokenRequired
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	gi, _, err := c.gh.Issues.Edit(ctx, owner, repo, number, req.toGitHub())
	if err != nil {
		return Issue{}, newAPIError("update issue", owner, repo, number, err)
	}
	return fromGitHubIssue(gi), nil
}

// ListComments fetches every comment on an issue, following pagination.
func (c *Client) ListComments(ctx context.Context, owner, repo string, number int) ([]Comment, error) {
	if err := validateTarget(owner, repo, number, true); err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	opt := &gogithub.IssueListCommentsOptions{
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}

	comments := make([]Comment, 0)
	for {
		page, resp, err := c.gh.Issues.ListComments(ctx, owner, repo, number, opt)
		if err != nil {
			return nil, newAPIError("list comments", owner, repo, number, err)
		}
		for _, gc := range page {
			comments = append(comments, fromGitHubComment(number, gc))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return comments, nil
}

// CreateComment adds a comment to an issue. An empty body is rejected
// before the token check.
func (c *Client) CreateComment(ctx context.Context, owner, repo string, number int, body string) (Comment, error) {
	if err := validateTarget(owner, repo, number, true); err != nil {
		return Comment{}, err
	}
	if strings.TrimSpace(body) == "" {
		return Comment{}, &ValidationError{Field: "body", Message: "comment body is required"}
	}
	if !c.HasToken() {
		return Comment{}, ErrTokenRequired
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	gc, _, err := c.gh.Issues.CreateComment(ctx, owner, repo, number, &gogithub.IssueComment{Body: gogithub.Ptr(body)})
	if err != nil {
		return Comment{}, newAPIError("create comment", owner, repo, number, err)
	}
	return fromGitHubComment(number, gc), nil
}

// GetIssueWithComments fetches an issue and its comments concurrently.
func (c *Client) GetIssueWithComments(ctx context.Context, owner, repo string, number int) (Issue, []Comment, error) {
	var (
		issue    Issue
		comments []Comment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		issue, err = c.GetIssue(gctx, owner, repo, number)
		return err
	})
	g.Go(func() error {
		var err error
		comments, err = c.ListComments(gctx, owner, repo, number)
		return err
	})

	if err := g.Wait(); err != nil {
		return Issue{}, nil, err
	}
	return issue, comments, nil
}
