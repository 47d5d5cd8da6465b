package main

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/d2verb/scenebridge/internal/ui"
)

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Fprintf(ui.Output, "scenebridge version %s (%s)\n", version, commit)
	return nil
}

// versionSkew returns a warning when the server runs a different release
// than this CLI, or "" when they match or either is not a release version.
func versionSkew(cliVersion, serverVersion string) string {
	cv, sv := ensureVPrefix(cliVersion), ensureVPrefix(serverVersion)
	if !semver.IsValid(cv) || !semver.IsValid(sv) {
		return ""
	}
	switch semver.Compare(cv, sv) {
	case -1:
		return fmt.Sprintf("Server is newer (%s) than this CLI (%s)", sv, cv)
	case 1:
		return fmt.Sprintf("Server is older (%s) than this CLI (%s); restart it with 'scenebridge stop && scenebridge serve'", sv, cv)
	default:
		return ""
	}
}

// ensureVPrefix ensures the version string has a 'v' prefix for semver.
func ensureVPrefix(v string) string {
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
