package requirement

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/andywolf/reqsync/internal/github"
	"github.com/andywolf/reqsync/internal/security"
)

// DefaultDestination is the export directory below <base>/<repo>.
const DefaultDestination = "docs/requirements"

// IssueFetcher is the subset of the GitHub adapter the exporter uses.
type IssueFetcher interface {
	GetIssue(ctx context.Context, owner, repo string, number int) (github.Issue, error)
	ListComments(ctx context.Context, owner, repo string, number int) ([]github.Comment, error)
}

// ErrorKind classifies export failures.
type ErrorKind string

// Export failure kinds
const (
	KindValidation    ErrorKind = "validation"
	KindIssueFetch    ErrorKind = "issue_fetch"
	KindCommentsFetch ErrorKind = "comments_fetch"
	KindWrite         ErrorKind = "write"
)

// ExportError reports which pipeline step failed.
type ExportError struct {
	Kind        ErrorKind
	IssueNumber int
	Err         error
}

func (e *ExportError) Error() string {
	switch e.Kind {
	case KindValidation:
		return fmt.Sprintf("invalid export request: %v", e.Err)
	case KindIssueFetch:
		return fmt.Sprintf("failed to fetch issue #%d: %v", e.IssueNumber, e.Err)
	case KindCommentsFetch:
		return fmt.Sprintf("failed to fetch comments for issue #%d: %v", e.IssueNumber, e.Err)
	default:
		return fmt.Sprintf("failed to write requirement #%d: %v", e.IssueNumber, e.Err)
	}
}

func (e *ExportError) Unwrap() error { return e.Err }

// ErrorKindOf returns the kind of an *ExportError in err's chain.
func ErrorKindOf(err error) (ErrorKind, bool) {
	var exportErr *ExportError
	if errors.As(err, &exportErr) {
		return exportErr.Kind, true
	}
	return "", false
}

// ExportRequest selects one issue to export. A nil IncludeComments and an
// empty Destination take the exporter's defaults.
type ExportRequest struct {
	Owner           string
	Repo            string
	IssueNumber     int
	IncludeComments *bool
	Destination     string
}

// BatchRequest selects several issues of one repository.
type BatchRequest struct {
	Owner           string
	Repo            string
	IssueNumbers    []int
	IncludeComments *bool
	Destination     string
}

// ExportedFile is one written requirement file.
type ExportedFile struct {
	IssueNumber int    `json:"issueNumber"`
	Filename    string `json:"filename"`
	Path        string `json:"path"`
}

// ExportResult describes a completed export. Path is the target directory.
type ExportResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Path    string         `json:"path"`
	Files   []ExportedFile `json:"files"`
	Records []ExportRecord `json:"-"`
}

// ExportRecord is the audit entry for one written file.
type ExportRecord struct {
	Owner        string    `json:"owner"`
	Repo         string    `json:"repo"`
	IssueNumber  int       `json:"issue_number"`
	Filename     string    `json:"filename"`
	Path         string    `json:"path"`
	CommentCount int       `json:"comment_count"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// Exporter runs the export pipeline: fetch issue, fetch comments, format,
// write. Re-exporting an issue overwrites the file at the same path.
// Concurrent exports of the same issue are not serialized.
type Exporter struct {
	fetcher     IssueFetcher
	basePath    string
	destination string
	comments    bool
	logger      zerolog.Logger
	nowFunc     func() time.Time
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithBasePath sets the filesystem root exports are written under.
func WithBasePath(path string) ExporterOption {
	return func(e *Exporter) {
		e.basePath = path
	}
}

// WithDefaultDestination sets the destination used when a request has none.
func WithDefaultDestination(dest string) ExporterOption {
	return func(e *Exporter) {
		e.destination = dest
	}
}

// WithDefaultComments sets whether comments are exported when a request
// does not say. The default is true.
func WithDefaultComments(include bool) ExporterOption {
	return func(e *Exporter) {
		e.comments = include
	}
}

// WithExportLogger sets the pipeline logger.
func WithExportLogger(l zerolog.Logger) ExporterOption {
	return func(e *Exporter) {
		e.logger = l
	}
}

// WithClock sets the time source for record timestamps.
func WithClock(fn func() time.Time) ExporterOption {
	return func(e *Exporter) {
		e.nowFunc = fn
	}
}

// NewExporter creates an Exporter reading issues through fetcher.
func NewExporter(fetcher IssueFetcher, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		fetcher:     fetcher,
		basePath:    ".",
		destination: DefaultDestination,
		comments:    true,
		logger:      zerolog.Nop(),
		nowFunc:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithFetcher returns a copy of e that reads through fetcher, used to
// apply a per-request token.
func (e *Exporter) WithFetcher(fetcher IssueFetcher) *Exporter {
	clone := *e
	clone.fetcher = fetcher
	return &clone
}

// BasePath returns the export root.
func (e *Exporter) BasePath() string {
	return e.basePath
}

// Export writes one issue to <base>/<repo>/<destination>/<number> <title>.md.
// A failure at any step aborts the pipeline; directories already created
// are left in place.
func (e *Exporter) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	dest, err := e.validate(req.Owner, req.Repo, req.Destination)
	if err != nil {
		return nil, &ExportError{Kind: KindValidation, IssueNumber: req.IssueNumber, Err: err}
	}
	if req.IssueNumber <= 0 {
		return nil, &ExportError{Kind: KindValidation, IssueNumber: req.IssueNumber, Err: fmt.Errorf("issue number must be a positive integer")}
	}

	dir := e.targetDir(req.Repo, dest)
	file, record, err := e.exportOne(ctx, req.Owner, req.Repo, req.IssueNumber, e.includeComments(req.IncludeComments), dir)
	if err != nil {
		return nil, err
	}

	return &ExportResult{
		Success: true,
		Message: fmt.Sprintf("Downloaded requirement #%d to %s", req.IssueNumber, file.Path),
		Path:    dir,
		Files:   []ExportedFile{file},
		Records: []ExportRecord{record},
	}, nil
}

// ExportMany exports issues in order and stops at the first failure. The
// returned result lists the files written before the failure.
func (e *Exporter) ExportMany(ctx context.Context, req BatchRequest) (*ExportResult, error) {
	dest, err := e.validate(req.Owner, req.Repo, req.Destination)
	if err != nil {
		return nil, &ExportError{Kind: KindValidation, Err: err}
	}
	if len(req.IssueNumbers) == 0 {
		return nil, &ExportError{Kind: KindValidation, Err: fmt.Errorf("at least one issue number is required")}
	}
	for _, n := range req.IssueNumbers {
		if n <= 0 {
			return nil, &ExportError{Kind: KindValidation, IssueNumber: n, Err: fmt.Errorf("issue number must be a positive integer")}
		}
	}

	dir := e.targetDir(req.Repo, dest)
	comments := e.includeComments(req.IncludeComments)
	result := &ExportResult{Path: dir, Files: []ExportedFile{}}

	for _, n := range req.IssueNumbers {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		file, record, err := e.exportOne(ctx, req.Owner, req.Repo, n, comments, dir)
		if err != nil {
			return result, err
		}
		result.Files = append(result.Files, file)
		result.Records = append(result.Records, record)
	}

	result.Success = true
	result.Message = fmt.Sprintf("Downloaded %d requirements to %s", len(result.Files), dir)
	return result, nil
}

func (e *Exporter) exportOne(ctx context.Context, owner, repo string, number int, withComments bool, dir string) (ExportedFile, ExportRecord, error) {
	log := e.logger.With().Str("owner", owner).Str("repo", repo).Int("issue_number", number).Logger()

	issue, err := e.fetcher.GetIssue(ctx, owner, repo, number)
	if err != nil {
		return ExportedFile{}, ExportRecord{}, &ExportError{Kind: KindIssueFetch, IssueNumber: number, Err: err}
	}
	log.Debug().Str("title", issue.Title).Msg("fetched issue for export")

	filename := Filename(number, issue.Title)

	var comments []github.Comment
	if withComments {
		comments, err = e.fetcher.ListComments(ctx, owner, repo, number)
		if err != nil {
			return ExportedFile{}, ExportRecord{}, &ExportError{Kind: KindCommentsFetch, IssueNumber: number, Err: err}
		}
		log.Debug().Int("count", len(comments)).Msg("fetched comments for export")
	}

	markdown, err := Format(&issue, comments)
	if err != nil {
		return ExportedFile{}, ExportRecord{}, &ExportError{Kind: KindWrite, IssueNumber: number, Err: err}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ExportedFile{}, ExportRecord{}, &ExportError{Kind: KindWrite, IssueNumber: number, Err: fmt.Errorf("failed to create directory: %w", err)}
	}

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		return ExportedFile{}, ExportRecord{}, &ExportError{Kind: KindWrite, IssueNumber: number, Err: fmt.Errorf("failed to write file: %w", err)}
	}

	log.Info().Str("filename", filename).Str("path", path).Msg("requirement file created")

	file := ExportedFile{IssueNumber: number, Filename: filename, Path: path}
	record := ExportRecord{
		Owner:        owner,
		Repo:         repo,
		IssueNumber:  number,
		Filename:     filename,
		Path:         path,
		CommentCount: len(comments),
		GeneratedAt:  e.nowFunc().UTC(),
	}
	return file, record, nil
}

func (e *Exporter) validate(owner, repo, dest string) (string, error) {
	if strings.TrimSpace(owner) == "" {
		return "", fmt.Errorf("owner is required")
	}
	if strings.TrimSpace(repo) == "" {
		return "", fmt.Errorf("repo is required")
	}
	if err := security.ValidateOwner(owner); err != nil {
		return "", err
	}
	if err := security.ValidateRepoName(repo); err != nil {
		return "", err
	}

	if dest == "" {
		dest = e.destination
	}
	if err := security.ValidateDestination(dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (e *Exporter) targetDir(repo, dest string) string {
	return filepath.Join(e.basePath, repo, filepath.FromSlash(dest))
}

func (e *Exporter) includeComments(v *bool) bool {
	if v == nil {
		return e.comments
	}
	return *v
}
