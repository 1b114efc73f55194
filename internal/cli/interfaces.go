package cli

import (
	"context"

	gh "github.com/clean-dependency-project/astudios/internal/github"
	"github.com/clean-dependency-project/astudios/internal/platform"
	"github.com/clean-dependency-project/astudios/internal/shell"
)

// ReleaseChecker abstracts the GitHub latest-release lookup for testing.
// Following Dave Cheney's principle: "Accept interfaces, return structs"
type ReleaseChecker interface {
	// LatestRelease returns the newest published astudios release.
	LatestRelease(ctx context.Context) (gh.Release, error)
}

// Deps replaces the process-level collaborators of the commands. Zero
// fields select the real implementation.
type Deps struct {
	// Runner executes hdiutil, ditto, codesign, aria2c and clamscan.
	Runner shell.CommandRunner

	// Platform overrides the detected host platform.
	Platform *platform.Platform

	// Releases answers check-update; nil builds a GitHub client from the
	// configuration and GITHUB_TOKEN.
	Releases ReleaseChecker
}
