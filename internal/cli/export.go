package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/andywolf/reqsync/internal/requirement"
)

var exportCmd = &cobra.Command{
	Use:   "export <owner/repo>",
	Short: "Export issues as requirement files",
	Long: `Export GitHub issues as markdown requirement documents.

Files are written to <base_path>/<repo>/<destination>/<number> <title>.md.
Re-exporting an issue overwrites its file. With --server, the export runs on
the server and files are written to the server's filesystem.

Examples:
  reqsync export acme/widgets --issues 42
  reqsync export widgets --issues 1-5,9 --destination docs/specs
  reqsync export acme/widgets --issues 42 --no-comments --server http://localhost:3006`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringSlice("issues", nil, "Issue numbers or ranges to export (e.g. 12,17-24)")
	exportCmd.Flags().String("destination", "", "Directory below <base_path>/<repo> (default from config)")
	exportCmd.Flags().Bool("no-comments", false, "Do not include comments")
	_ = exportCmd.MarkFlagRequired("issues")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	owner, repo, err := parseRepoArg(args[0], cfg.GitHub.Organization)
	if err != nil {
		return err
	}

	selectors, _ := cmd.Flags().GetStringSlice("issues")
	numbers, err := ParseIssueNumbers(selectors)
	if err != nil {
		return fmt.Errorf("invalid --issues value: %w", err)
	}
	if len(numbers) == 0 {
		return fmt.Errorf("no issues selected")
	}

	includeComments := cfg.Export.Comments()
	if noComments, _ := cmd.Flags().GetBool("no-comments"); noComments {
		includeComments = false
	}
	dest, _ := cmd.Flags().GetString("destination")

	b, closer, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	result, err := b.Export(ctx, owner, repo, numbers, &includeComments, dest)
	printExportResult(cmd.OutOrStdout(), result)
	if err != nil {
		return err
	}
	return nil
}

func printExportResult(w io.Writer, result *requirement.ExportResult) {
	if result == nil {
		return
	}
	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	for _, f := range result.Files {
		fmt.Fprintf(w, "%s #%d → %s\n", green("✓"), f.IssueNumber, cyan(f.Path))
	}
	if result.Success {
		fmt.Fprintln(w, result.Message)
	}
}
