// version/version.go
package version

import (
	"runtime"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/dalemusser/contactrelay/pantry/version.Version=1.0.0 \
//	                   -X github.com/dalemusser/contactrelay/pantry/version.Commit=abc123 \
//	                   -X github.com/dalemusser/contactrelay/pantry/version.BuildTime=2026-01-15T10:30:00Z"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info contains version and build information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get returns the current version info.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// String returns "1.2.3 (abc123, built 2026-01-15T10:30:00Z)", or "dev".
func String() string {
	if Version == "dev" {
		return "dev"
	}
	return Version + " (" + Commit + ", built " + BuildTime + ")"
}
