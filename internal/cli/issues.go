package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/andywolf/reqsync/internal/github"
)

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "Browse and comment on requirement issues",
}

var issuesListCmd = &cobra.Command{
	Use:   "list <owner/repo>",
	Short: "List issues",
	Long: `List issues of a repository.

Examples:
  reqsync issues list acme/widgets
  reqsync issues list widgets --state open --limit 50`,
	Args: cobra.ExactArgs(1),
	RunE: listIssues,
}

var issuesShowCmd = &cobra.Command{
	Use:   "show <owner/repo> <number>",
	Short: "Render an issue as a requirement document",
	Long: `Render an issue the way export writes it, without writing a file.

Example:
  reqsync issues show acme/widgets 42`,
	Args: cobra.ExactArgs(2),
	RunE: showIssue,
}

var issuesCommentCmd = &cobra.Command{
	Use:   "comment <owner/repo> <number>",
	Short: "Comment on an issue",
	Long: `Add a comment to an issue. Requires a GitHub token.

Example:
  reqsync issues comment acme/widgets 42 --body "Approved for phase 2"`,
	Args: cobra.ExactArgs(2),
	RunE: commentIssue,
}

func init() {
	rootCmd.AddCommand(issuesCmd)
	issuesCmd.AddCommand(issuesListCmd, issuesShowCmd, issuesCommentCmd)

	issuesListCmd.Flags().String("state", github.StateAll, "Issue state (open, closed, all)")
	issuesListCmd.Flags().Int("limit", 30, "Issues per page (max 100)")
	issuesListCmd.Flags().Int("page", 1, "Page number")

	issuesShowCmd.Flags().Bool("no-comments", false, "Do not include comments")

	issuesCommentCmd.Flags().String("body", "", "Comment text")
	_ = issuesCommentCmd.MarkFlagRequired("body")
}

// issueTarget resolves the repository argument and optional issue number.
func issueTarget(args []string, org string) (owner, repo string, number int, err error) {
	owner, repo, err = parseRepoArg(args[0], org)
	if err != nil {
		return "", "", 0, err
	}
	if len(args) > 1 {
		number, err = parseIssueNumber(args[1])
		if err != nil {
			return "", "", 0, err
		}
	}
	return owner, repo, number, nil
}

func listIssues(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	owner, repo, _, err := issueTarget(args, cfg.GitHub.Organization)
	if err != nil {
		return err
	}

	state, _ := cmd.Flags().GetString("state")
	limit, _ := cmd.Flags().GetInt("limit")
	page, _ := cmd.Flags().GetInt("page")

	b, closer, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	issues, err := b.ListIssues(ctx, owner, repo, github.ListOptions{State: state, Page: page, PerPage: limit})
	if err != nil {
		return err
	}

	printIssues(cmd.OutOrStdout(), issues)
	return nil
}

func printIssues(w io.Writer, issues []github.Issue) {
	if len(issues) == 0 {
		fmt.Fprintln(w, "No issues found.")
		return
	}

	green := color.New(color.FgGreen).SprintFunc()
	magenta := color.New(color.FgMagenta).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	for _, issue := range issues {
		state := green(fmt.Sprintf("%-6s", issue.State))
		if issue.State == github.StateClosed {
			state = magenta(fmt.Sprintf("%-6s", issue.State))
		}
		line := fmt.Sprintf("#%-5d %s %s", issue.Number, state, issue.Title)
		if len(issue.Labels) > 0 {
			names := make([]string, len(issue.Labels))
			for i, l := range issue.Labels {
				names[i] = l.Name
			}
			line += " " + faint("["+strings.Join(names, ", ")+"]")
		}
		fmt.Fprintln(w, line)
	}
}

func showIssue(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	owner, repo, number, err := issueTarget(args, cfg.GitHub.Organization)
	if err != nil {
		return err
	}
	noComments, _ := cmd.Flags().GetBool("no-comments")

	b, closer, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	markdown, err := b.Preview(ctx, owner, repo, number, !noComments)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), markdown)
	return nil
}

func commentIssue(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	owner, repo, number, err := issueTarget(args, cfg.GitHub.Organization)
	if err != nil {
		return err
	}
	body, _ := cmd.Flags().GetString("body")
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("comment body must not be empty")
	}

	b, closer, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	comment, err := b.CreateComment(ctx, owner, repo, number, body)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(cmd.OutOrStdout(), "%s Commented on %s/%s#%d", green("✓"), owner, repo, number)
	if comment.HTMLURL != "" {
		fmt.Fprintf(cmd.OutOrStdout(), " (%s)", comment.HTMLURL)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
