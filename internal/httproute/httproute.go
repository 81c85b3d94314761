// Package httproute contains route paths for the server and client packages.
package httproute

import (
	"net/url"
	"strconv"
)

// Route templates, in gorilla/mux syntax.
const (
	Root           = "/"
	Config         = "/api/github/config"
	Issues         = "/api/github/issues/{owner}/{repo}"
	Issue          = "/api/github/issues/{owner}/{repo}/{issueNumber}"
	IssuePreview   = "/api/github/issues/{owner}/{repo}/{issueNumber}/preview"
	Comments       = "/api/github/issues/{owner}/{repo}/{issueNumber}/comments"
	DownloadIssue  = "/api/github/download-issue"
	DownloadIssues = "/api/github/download-issues"
	State          = "/api/state"
	StateKey       = "/api/state/{key}"
)

// IssuesPath returns the list and create path for owner/repo.
func IssuesPath(owner, repo string) string {
	return "/api/github/issues/" + url.PathEscape(owner) + "/" + url.PathEscape(repo)
}

// IssuePath returns the path of one issue.
func IssuePath(owner, repo string, number int) string {
	return IssuesPath(owner, repo) + "/" + strconv.Itoa(number)
}

// PreviewPath returns the markdown preview path of one issue.
func PreviewPath(owner, repo string, number int) string {
	return IssuePath(owner, repo, number) + "/preview"
}

// CommentsPath returns the comments path of one issue.
func CommentsPath(owner, repo string, number int) string {
	return IssuePath(owner, repo, number) + "/comments"
}

// StateKeyPath returns the path of one store entry.
func StateKeyPath(key string) string {
	return State + "/" + url.PathEscape(key)
}
