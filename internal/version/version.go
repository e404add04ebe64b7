package version

import (
	"fmt"
	"os/exec"
	"strings"
)

var (
	// Set at build time via ldflags
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// GetVersion returns the release version, falling back to git describe for
// development builds.
func GetVersion() string {
	if Version != "dev" {
		return Version
	}

	cmd := exec.Command("git", "describe", "--tags", "--always", "--dirty")
	output, err := cmd.Output()
	if err != nil {
		return "dev"
	}
	return strings.TrimSpace(string(output))
}

// GetFullVersion returns version with commit and build info.
func GetFullVersion() string {
	v := GetVersion()
	if Commit != "unknown" && Date != "unknown" {
		return fmt.Sprintf("%s (commit %s, built %s)", v, Commit, Date)
	}
	return v
}
