// Package version carries the build metadata stamped via ldflags.
package version

// Set at build time with:
//
//	-ldflags "-X github.com/gazemetrics/aoirun/pkg/version.Version=v1.2.3 ..."
var (
	Version = "dev"
	Commit  = "<unknown>"
	Date    = "<unknown>"
)
