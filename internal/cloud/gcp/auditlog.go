package gcp

import (
	"context"
	"fmt"
	"strconv"

	"cloud.google.com/go/logging"
	"google.golang.org/api/option"

	"github.com/andywolf/reqsync/internal/requirement"
)

// entryLogger is the subset of *logging.Logger used by AuditSink.
type entryLogger interface {
	Log(e logging.Entry)
	Flush() error
}

// AuditSink writes export records to a Cloud Logging log. Entries are
// buffered by the client library; Close flushes them.
type AuditSink struct {
	client *logging.Client
	logger entryLogger
}

// NewAuditSink creates a sink writing to logName in projectID.
func NewAuditSink(ctx context.Context, projectID, logName string, opts ...option.ClientOption) (*AuditSink, error) {
	client, err := logging.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloud logging client: %w", err)
	}

	logger := client.Logger(logName, logging.CommonLabels(map[string]string{
		"service": "reqsync",
	}))

	return &AuditSink{client: client, logger: logger}, nil
}

// auditPayload is the jsonPayload of an export audit entry.
type auditPayload struct {
	Message      string `json:"message"`
	Owner        string `json:"owner"`
	Repo         string `json:"repo"`
	IssueNumber  int    `json:"issue_number"`
	Filename     string `json:"filename"`
	Path         string `json:"path"`
	CommentCount int    `json:"comment_count"`
}

// Write logs one export record.
func (s *AuditSink) Write(rec requirement.ExportRecord) error {
	s.logger.Log(logging.Entry{
		Timestamp: rec.GeneratedAt,
		Severity:  logging.Info,
		Labels: map[string]string{
			"owner":        rec.Owner,
			"repo":         rec.Repo,
			"issue_number": strconv.Itoa(rec.IssueNumber),
		},
		Payload: auditPayload{
			Message:      fmt.Sprintf("exported %s/%s#%d", rec.Owner, rec.Repo, rec.IssueNumber),
			Owner:        rec.Owner,
			Repo:         rec.Repo,
			IssueNumber:  rec.IssueNumber,
			Filename:     rec.Filename,
			Path:         rec.Path,
			CommentCount: rec.CommentCount,
		},
	})
	return nil
}

// Close flushes buffered entries and closes the client.
func (s *AuditSink) Close() error {
	if err := s.logger.Flush(); err != nil {
		return fmt.Errorf("failed to flush audit log: %w", err)
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
