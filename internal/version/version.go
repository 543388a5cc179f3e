// Package version holds build version information.
package version

// Version is the current mnemo version, overridden at build time via
// -ldflags "-X mnemo/internal/version.Version=...".
var Version = "0.3.0-dev"
