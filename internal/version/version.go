// Package version holds build-time version information injected with
// -ldflags:
//
//	-X github.com/ferro-labs/review4d/internal/version.Version=v0.3.0
//	-X github.com/ferro-labs/review4d/internal/version.Commit=abc1234
//	-X github.com/ferro-labs/review4d/internal/version.Date=2026-02-25T00:00:00Z
package version

import (
	"fmt"
	"runtime"
)

// Set at link time. Local builds keep the dev values.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns e.g. "review4d v0.3.0 (commit abc1234, built 2026-02-25T12:00:00Z, go1.24.0)".
func String() string {
	return fmt.Sprintf("review4d %s (commit %s, built %s, %s)", Version, Commit, Date, runtime.Version())
}

// Short returns just the version tag, e.g. "v0.3.0" or "dev".
func Short() string {
	return Version
}
