// Package version holds build information for rp.
package version

import "fmt"

// Set with -ldflags "-X repoparser/internal/version.Version=..." at release time.
var (
	Version   = "0.4.0"
	Commit    = ""
	BuildDate = ""
)

// Info returns the version, followed by the short commit when known.
func Info() string {
	if len(Commit) >= 7 {
		return fmt.Sprintf("%s+%s", Version, Commit[:7])
	}
	return Version
}

// Full returns the multi-line `rp --version` text.
func Full() string {
	commit, built := Commit, BuildDate
	if commit == "" {
		commit = "unknown"
	}
	if built == "" {
		built = "unknown"
	}
	return fmt.Sprintf("rp %s\ncommit: %s\nbuilt:  %s\n", Version, commit, built)
}
