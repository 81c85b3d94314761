package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/andywolf/reqsync/internal/client"
	"github.com/andywolf/reqsync/internal/events"
	"github.com/andywolf/reqsync/internal/requirement"
	"github.com/andywolf/reqsync/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running server",
	Long: `Show the shared state of a running reqsync server: the configured
organization, the active log level, the last export and the latest actions.

Example:
  reqsync status --server http://localhost:3006`,
	Args: cobra.NoArgs,
	RunE: checkStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func checkStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Client.Server == "" {
		return fmt.Errorf("no server configured; pass --server or set client.server")
	}

	c, err := client.New(cfg.Client.Server)
	if err != nil {
		return err
	}
	entries, err := c.State(ctx)
	if err != nil {
		return fmt.Errorf("failed to read server state: %w", err)
	}

	printStatus(cmd.OutOrStdout(), cfg.Client.Server, entries)
	return nil
}

func printStatus(w io.Writer, server string, entries []store.Entry) {
	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	byKey := make(map[string]store.Entry, len(entries))
	for _, e := range entries {
		byKey[e.Key] = e
	}

	fmt.Fprintf(w, "%s %s\n", bold("Server:"), server)
	if e, ok := byKey[events.Organization.Name()]; ok {
		fmt.Fprintf(w, "%s %v\n", bold("Organization:"), e.Value)
	}
	if e, ok := byKey[events.LogLevel.Name()]; ok {
		fmt.Fprintf(w, "%s %v\n", bold("Log level:"), e.Value)
	}

	if e, ok := byKey[events.LastExport.Name()]; ok {
		if rec, err := decodeRecord(e.Value); err == nil {
			fmt.Fprintf(w, "%s %s/%s#%d → %s (%s)\n", bold("Last export:"),
				rec.Owner, rec.Repo, rec.IssueNumber, cyan(rec.Path), rec.GeneratedAt.UTC().Format(time.RFC3339))
		}
	} else {
		fmt.Fprintf(w, "%s none\n", bold("Last export:"))
	}

	var actions []store.Entry
	for _, e := range entries {
		if strings.HasPrefix(e.Key, store.ActionPrefix) {
			actions = append(actions, e)
		}
	}
	if len(actions) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-20s %s\n", "ACTION", "LAST")
	fmt.Fprintln(w, strings.Repeat("-", 42))
	for _, e := range actions {
		fmt.Fprintf(w, "%-20s %s\n", strings.TrimPrefix(e.Key, store.ActionPrefix), e.UpdatedAt.UTC().Format(time.RFC3339))
	}
}

// decodeRecord converts a JSON-decoded store value back to a record.
func decodeRecord(v any) (requirement.ExportRecord, error) {
	var rec requirement.ExportRecord
	raw, err := json.Marshal(v)
	if err != nil {
		return rec, err
	}
	err = json.Unmarshal(raw, &rec)
	return rec, err
}
