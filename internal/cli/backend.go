package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/andywolf/reqsync/internal/client"
	"github.com/andywolf/reqsync/internal/config"
	"github.com/andywolf/reqsync/internal/github"
	"github.com/andywolf/reqsync/internal/logging"
	"github.com/andywolf/reqsync/internal/requirement"
)

// backend is what the issue and export commands need. It is served either
// by GitHub directly or by a running reqsync server.
type backend interface {
	ListIssues(ctx context.Context, owner, repo string, opts github.ListOptions) ([]github.Issue, error)
	Preview(ctx context.Context, owner, repo string, number int, includeComments bool) (string, error)
	CreateComment(ctx context.Context, owner, repo string, number int, body string) (github.Comment, error)
	Export(ctx context.Context, owner, repo string, numbers []int, includeComments *bool, dest string) (*requirement.ExportResult, error)
}

// localBackend talks to GitHub and writes exports below the configured
// base path.
type localBackend struct {
	gh       *github.Client
	exporter *requirement.Exporter
}

func (b *localBackend) ListIssues(ctx context.Context, owner, repo string, opts github.ListOptions) ([]github.Issue, error) {
	return b.gh.ListIssues(ctx, owner, repo, opts)
}

func (b *localBackend) Preview(ctx context.Context, owner, repo string, number int, includeComments bool) (string, error) {
	var (
		issue    github.Issue
		comments []github.Comment
		err      error
	)
	if includeComments {
		issue, comments, err = b.gh.GetIssueWithComments(ctx, owner, repo, number)
	} else {
		issue, err = b.gh.GetIssue(ctx, owner, repo, number)
	}
	if err != nil {
		return "", err
	}
	return requirement.FormatPreview(&issue, comments)
}

func (b *localBackend) CreateComment(ctx context.Context, owner, repo string, number int, body string) (github.Comment, error) {
	return b.gh.CreateComment(ctx, owner, repo, number, body)
}

func (b *localBackend) Export(ctx context.Context, owner, repo string, numbers []int, includeComments *bool, dest string) (*requirement.ExportResult, error) {
	if len(numbers) == 1 {
		return b.exporter.Export(ctx, requirement.ExportRequest{
			Owner:           owner,
			Repo:            repo,
			IssueNumber:     numbers[0],
			IncludeComments: includeComments,
			Destination:     dest,
		})
	}
	return b.exporter.ExportMany(ctx, requirement.BatchRequest{
		Owner:           owner,
		Repo:            repo,
		IssueNumbers:    numbers,
		IncludeComments: includeComments,
		Destination:     dest,
	})
}

// remoteBackend forwards to a reqsync server. Exports are written on the
// server's filesystem.
type remoteBackend struct {
	c *client.Client
}

func (b *remoteBackend) ListIssues(ctx context.Context, owner, repo string, opts github.ListOptions) ([]github.Issue, error) {
	return b.c.ListIssues(ctx, owner, repo, opts)
}

func (b *remoteBackend) Preview(ctx context.Context, owner, repo string, number int, includeComments bool) (string, error) {
	return b.c.Preview(ctx, owner, repo, number, includeComments)
}

func (b *remoteBackend) CreateComment(ctx context.Context, owner, repo string, number int, body string) (github.Comment, error) {
	return b.c.CreateComment(ctx, owner, repo, number, body)
}

func (b *remoteBackend) Export(ctx context.Context, owner, repo string, numbers []int, includeComments *bool, dest string) (*requirement.ExportResult, error) {
	req := client.DownloadRequest{
		Owner:           owner,
		Repo:            repo,
		IncludeComments: includeComments,
		Destination:     dest,
	}
	if len(numbers) == 1 {
		req.IssueNumber = numbers[0]
		return b.c.DownloadIssue(ctx, req)
	}
	req.IssueNumbers = numbers
	return b.c.DownloadIssues(ctx, req)
}

// openBackend returns the server backend when a server URL is configured,
// otherwise a direct GitHub backend. Diagnostics go to stderr.
func openBackend(ctx context.Context, cfg *config.Config) (backend, io.Closer, error) {
	if cfg.Client.Server != "" {
		c, err := client.New(cfg.Client.Server, client.WithToken(cfg.GitHub.Token))
		if err != nil {
			return nil, nil, err
		}
		return &remoteBackend{c: c}, closers(nil), nil
	}

	sanitizer := newSanitizer(cfg)
	logger, logCloser, err := newLogger(cfg, os.Stderr, sanitizer)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if !verbose() {
		logger = logger.Level(zerolog.WarnLevel)
	}

	gh, ghCloser, err := newGitHubClient(ctx, cfg, logger, sanitizer)
	if err != nil {
		_ = logCloser.Close()
		return nil, nil, err
	}
	exporter := requirement.NewExporter(gh,
		requirement.WithBasePath(cfg.Export.BasePath),
		requirement.WithDefaultDestination(cfg.Export.Destination),
		requirement.WithDefaultComments(cfg.Export.Comments()),
		requirement.WithExportLogger(logging.Component(logger, "export")),
	)
	return &localBackend{gh: gh, exporter: exporter}, closers{logCloser, ghCloser}, nil
}
