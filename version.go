// Package whatssound provides version information for the WhatsSound backend.
//
// The server lives in cmd/whatssound; the reusable pieces are under pkg/:
// throttle (per-action request throttling), payments (tip and Golden Boost
// fees and initiation), and the config, auth, observability and server
// packages that put them on the network.
package whatssound

import (
	"fmt"
	"runtime"
)

// Version information, set with -ldflags at build time.
var (
	Version   = "0.1.0-dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Info contains version information
type Info struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersion returns version information
func GetVersion() Info {
	return Info{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a formatted version string
func (i Info) String() string {
	return fmt.Sprintf("WhatsSound %s (built %s, commit %s, %s %s)",
		i.Version, i.BuildDate, i.GitCommit, i.GoVersion, i.Platform)
}
