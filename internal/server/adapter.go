package server

import (
	"context"

	"github.com/andywolf/reqsync/internal/github"
)

// Adapter is the GitHub surface the routes use.
type Adapter interface {
	ListIssues(ctx context.Context, owner, repo string, opts github.ListOptions) ([]github.Issue, error)
	GetIssue(ctx context.Context, owner, repo string, number int) (github.Issue, error)
	CreateIssue(ctx context.Context, owner, repo string, req github.IssueRequest) (github.Issue, error)
	UpdateIssue(ctx context.Context, owner, repo string, number int, req github.IssueRequest) (github.Issue, error)
	ListComments(ctx context.Context, owner, repo string, number int) ([]github.Comment, error)
	CreateComment(ctx context.Context, owner, repo string, number int, body string) (github.Comment, error)
	GetIssueWithComments(ctx context.Context, owner, repo string, number int) (github.Issue, []github.Comment, error)

	// WithToken returns an adapter authenticating with token. An empty
	// token returns the receiver.
	WithToken(token string) Adapter
}

// GitHubAdapter adapts a *github.Client to Adapter.
func GitHubAdapter(c *github.Client) Adapter {
	return clientAdapter{c}
}

type clientAdapter struct {
	*github.Client
}

func (a clientAdapter) WithToken(token string) Adapter {
	return clientAdapter{a.Client.WithToken(token)}
}
