package version

import "testing"

func TestString(t *testing.T) {
	oldV, oldSHA, oldBuilt := Version, GitSHA, BuildTime
	defer func() { Version, GitSHA, BuildTime = oldV, oldSHA, oldBuilt }()

	Version, GitSHA, BuildTime = "1.2.3", "abc123", "2026-10-15T00:00:00Z"
	if got, want := String(), "hygrometer 1.2.3 (abc123, built 2026-10-15T00:00:00Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
