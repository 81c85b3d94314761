// Package requirement renders GitHub issues as requirement documents and
// exports them to markdown files on local disk.
package requirement

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/andywolf/reqsync/internal/github"
)

const (
	dateLayout     = "1/2/2006"
	dateTimeLayout = "1/2/2006, 3:04:05 PM"

	// NoDescription replaces an empty body in previews.
	NoDescription = "No description provided."

	unknownAuthor   = "unknown"
	anonymousAuthor = "Anonymous"
	unknownDate     = "unknown date"
)

// ErrNilIssue is returned when Format is called without an issue.
var ErrNilIssue = errors.New("issue is required")

var blankLines = regexp.MustCompile(`\n{3,}`)

// Format renders issue and its comments as a requirement document. The output
// depends only on its inputs; dates are rendered in UTC. Title and bodies are
// interpolated without escaping.
func Format(issue *github.Issue, comments []github.Comment) (string, error) {
	return render(issue, comments, "")
}

// FormatPreview is Format with NoDescription in place of an empty body.
func FormatPreview(issue *github.Issue, comments []github.Comment) (string, error) {
	return render(issue, comments, NoDescription)
}

func render(issue *github.Issue, comments []github.Comment, emptyBody string) (string, error) {
	if issue == nil {
		return "", ErrNilIssue
	}

	var b strings.Builder

	b.WriteString("# ")
	b.WriteString(issue.Title)
	b.WriteString("\n\n")

	b.WriteString("> **Issue #")
	b.WriteString(strconv.Itoa(issue.Number))
	b.WriteString("** | Created by ")
	b.WriteString(login(issue.User, unknownAuthor))
	b.WriteString(" on ")
	b.WriteString(formatTime(issue.CreatedAt, dateLayout))
	b.WriteString("\n\n")

	b.WriteString("**Status:** ")
	b.WriteString(issue.State)
	b.WriteString("\n")
	if len(issue.Labels) > 0 {
		names := make([]string, 0, len(issue.Labels))
		for _, l := range issue.Labels {
			names = append(names, l.Name)
		}
		b.WriteString("**Labels:** ")
		b.WriteString(strings.Join(names, ", "))
		b.WriteString("\n")
	}
	b.WriteString("\n---\n\n")

	body := Normalize(deref(issue.Body))
	if body == "" {
		body = emptyBody
	}
	b.WriteString(body)

	if len(comments) > 0 {
		b.WriteString("\n\n## Comments\n\n")
		for _, c := range comments {
			b.WriteString("### ")
			b.WriteString(login(c.User, anonymousAuthor))
			b.WriteString(" _(")
			b.WriteString(formatTime(c.CreatedAt, dateTimeLayout))
			b.WriteString(")_\n\n")
			b.WriteString(Normalize(deref(c.Body)))
			b.WriteString("\n\n---\n\n")
		}
	}

	return b.String(), nil
}

// Normalize converts CRLF line endings to LF and collapses runs of three or
// more newlines to exactly two.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return blankLines.ReplaceAllString(s, "\n\n")
}

func login(u *github.User, fallback string) string {
	if u == nil || u.Login == "" {
		return fallback
	}
	return u.Login
}

func formatTime(t time.Time, layout string) string {
	if t.IsZero() {
		return unknownDate
	}
	return t.UTC().Format(layout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
