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

// String returns a single-line description suitable for -version output and
// the /debug/version route.
func String() string {
	return fmt.Sprintf("hygrometer %s (%s, built %s)", Version, GitSHA, BuildTime)
}
