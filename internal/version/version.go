// Package version holds the build-time version string, set via
// -ldflags "-X .../internal/version.Version=..." in release builds.
package version

// Version is overwritten at build time; "dev" marks a local build.
var Version = "dev"
