// Package version holds build metadata stamped at link time:
//
//	go build -ldflags "-X capstan/internal/version.Version=v0.4.0 \
//	  -X capstan/internal/version.Commit=4f2c91a \
//	  -X capstan/internal/version.Date=2026-08-25"
package version

import "strings"

var (
	// Version is the release tag, or "dev" for unstamped builds.
	Version = "dev"

	// Commit is the short git hash of the build.
	Commit = ""

	// Date is the build date.
	Date = ""
)

// String renders the full version line, omitting unstamped fields.
func String() string {
	parts := []string{Version}
	if Commit != "" {
		parts = append(parts, "commit "+Commit)
	}
	if Date != "" {
		parts = append(parts, "built "+Date)
	}
	return strings.Join(parts, ", ")
}
