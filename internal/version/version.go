// Package version contains build version information.
package version

import "fmt"

// Build metadata, set at build time via ldflags.
var (
	Version   = "0.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns a one-line description of the running build.
func Info() string {
	return fmt.Sprintf("statuslive %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
