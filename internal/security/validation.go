package security

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// GitHub logins: alphanumeric or single hyphens, up to 39 characters
	ownerPattern = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9]|-[a-zA-Z0-9]){0,38}$`)
	// Repository names: alphanumeric, dot, dash and underscore, up to 100 characters
	repoPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,100}$`)
)

// ValidateOwner validates a GitHub user or organization login
func ValidateOwner(owner string) error {
	if !ownerPattern.MatchString(owner) {
		return fmt.Errorf("invalid owner: %q", owner)
	}
	return nil
}

// ValidateRepoName validates a repository name. Names that would resolve to
// a parent or current directory when used as a path segment are rejected.
func ValidateRepoName(repo string) error {
	if !repoPattern.MatchString(repo) || repo == "." || repo == ".." {
		return fmt.Errorf("invalid repository name: %q", repo)
	}
	return nil
}

// ValidateDestination validates a relative export directory. The path must
// stay inside the directory it is joined onto.
func ValidateDestination(dest string) error {
	if strings.TrimSpace(dest) == "" {
		return fmt.Errorf("destination is required")
	}
	if !filepath.IsLocal(filepath.FromSlash(dest)) {
		return fmt.Errorf("destination must be a relative path without traversal: %q", dest)
	}
	return nil
}
