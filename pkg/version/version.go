// Package version provides build and version information for Scout.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current version of Scout.
// Set via ldflags at build time, or defaults to dev:
// -X github.com/scoutindex/scout/pkg/version.Version=$(VERSION)
var Version = "dev"

// Build information set via ldflags at build time.
var (
	// Commit is the git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"

	// GoVersion is the Go version used to build the binary.
	GoVersion = runtime.Version()
)

// String returns a single-line version description.
func String() string {
	return fmt.Sprintf("scout %s (commit %s, built %s, %s)", Version, Commit, Date, GoVersion)
}
