// Package version provides build-time version information for reqsync.
package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags:
//
//	go build -ldflags="-X github.com/andywolf/reqsync/internal/version.Version=v1.0.0"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

func shortCommit() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}
	return Commit
}

// Info returns a single line such as
// "reqsync v1.2.3 (commit: abc1234, built: 2024-01-15T10:30:00Z, go: go1.24.2)".
func Info() string {
	return fmt.Sprintf("reqsync %s (commit: %s, built: %s, go: %s)",
		Version, shortCommit(), BuildDate, runtime.Version())
}

// Full returns multi-line version output for `reqsync version -v`.
func Full() string {
	return fmt.Sprintf(`reqsync %s
  Commit:     %s
  Built:      %s
  Go version: %s
  OS/Arch:    %s/%s`,
		Version, Commit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent with every upstream GitHub request.
func UserAgent() string {
	return fmt.Sprintf("reqsync/%s (+%s)", Version, shortCommit())
}
