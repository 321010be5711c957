// Package buildinfo carries version identifiers stamped at link time:
//
//	go build -ldflags "\
//	  -X 'github.com/m3rciful/ytmp3bot/core/buildinfo.Version=v0.3.0' \
//	  -X 'github.com/m3rciful/ytmp3bot/core/buildinfo.Commit=4f9c21b' \
//	  -X 'github.com/m3rciful/ytmp3bot/core/buildinfo.Date=2026-08-01T10:00:00Z'"
//
// Unstamped binaries report the dev defaults.
package buildinfo

var (
	// Version is the release tag of the build.
	Version = "dev"
	// Commit is the VCS revision the binary was built from.
	Commit = "local"
	// Date is the build timestamp in RFC3339.
	Date = ""
)
