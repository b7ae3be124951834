// Package version holds build metadata injected at link time via
// -ldflags "-X github.com/banshee-data/scale.report/internal/version.Version=...".
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String renders the build metadata in the form the CLIs print for
// -version and the API reports from its health endpoint.
func String() string {
	return fmt.Sprintf("scale.report %s (%s, built %s)", Version, GitSHA, BuildTime)
}
