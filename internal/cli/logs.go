package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/andywolf/reqsync/internal/events"
	"github.com/andywolf/reqsync/internal/requirement"
)

var logsCmd = &cobra.Command{
	Use:   "logs [owner/repo]",
	Short: "Show export history",
	Long: `Show the export history recorded in the audit file (export.audit_file).

Examples:
  reqsync logs
  reqsync logs acme/widgets --since 24h
  reqsync logs --follow`,
	Args: cobra.MaximumNArgs(1),
	RunE: showLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().BoolP("follow", "f", false, "Follow new exports")
	logsCmd.Flags().Int("tail", 100, "Number of records to show from the end (0 for all)")
	logsCmd.Flags().String("since", "", "Show exports since timestamp (e.g., 2024-01-01T00:00:00Z) or duration (e.g., 1h)")
}

// logFilter selects audit records for display.
type logFilter struct {
	owner string
	repo  string
	since time.Time
	tail  int
}

func (f logFilter) apply(records []requirement.ExportRecord) []requirement.ExportRecord {
	if f.repo != "" {
		records = events.FilterByRepo(records, f.owner, f.repo)
	}
	if !f.since.IsZero() {
		var kept []requirement.ExportRecord
		for _, rec := range records {
			if !rec.GeneratedAt.Before(f.since) {
				kept = append(kept, rec)
			}
		}
		records = kept
	}
	if f.tail > 0 && len(records) > f.tail {
		records = records[len(records)-f.tail:]
	}
	return records
}

// parseSince accepts a duration back from now or an RFC 3339 timestamp.
func parseSince(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if dur, err := time.ParseDuration(s); err == nil {
		return now.Add(-dur), nil
	}
	since, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since value: %s", s)
	}
	return since, nil
}

func formatRecord(w io.Writer, rec requirement.ExportRecord) {
	fmt.Fprintf(w, "[%s] %s/%s#%d → %s (%d comments)\n",
		rec.GeneratedAt.UTC().Format(time.RFC3339), rec.Owner, rec.Repo, rec.IssueNumber, rec.Path, rec.CommentCount)
}

func showLogs(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Export.AuditFile == "" {
		return fmt.Errorf("export.audit_file is not configured")
	}
	path := events.ResolvePath(cfg.Export.AuditFile)

	filter := logFilter{}
	if len(args) == 1 {
		filter.owner, filter.repo, err = parseRepoArg(args[0], cfg.GitHub.Organization)
		if err != nil {
			return err
		}
	}
	filter.tail, _ = cmd.Flags().GetInt("tail")
	sinceStr, _ := cmd.Flags().GetString("since")
	if filter.since, err = parseSince(sinceStr, time.Now()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	records, err := events.ReadRecords(path)
	if err != nil {
		return err
	}
	for _, rec := range filter.apply(records) {
		formatRecord(out, rec)
	}

	if follow, _ := cmd.Flags().GetBool("follow"); follow {
		filter.tail = 0
		return followLogs(ctx, out, path, filter, len(records))
	}
	return nil
}

// followLogs prints records appended to path after the first seen ones.
func followLogs(ctx context.Context, w io.Writer, path string, filter logFilter, seen int) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			records, err := events.ReadRecords(path)
			if err != nil {
				// A record may be mid-write; the next event re-reads it.
				continue
			}
			if len(records) < seen {
				seen = 0
			}
			for _, rec := range filter.apply(records[seen:]) {
				formatRecord(w, rec)
			}
			seen = len(records)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch error: %w", err)
		}
	}
}
