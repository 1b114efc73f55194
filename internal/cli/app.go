// Package cli provides the astudios command-line interface: listing the
// Android Studio release feed, downloading and installing releases, and
// switching the active installation.
package cli

import (
	"time"

	"github.com/urfave/cli/v2"
)

// Version is the astudios release, compared against GitHub by check-update.
var Version = "0.1.0"

// NewApp creates and configures the main CLI application.
func NewApp() *cli.App {
	return New(Deps{})
}

// New creates the application with explicit collaborators.
func New(deps Deps) *cli.App {
	a := &actions{deps: deps}

	return &cli.App{
		Name:                 "astudios",
		Usage:                "Manage Android Studio versions side by side",
		Version:              Version,
		Compiled:             time.Now(),
		EnableBashCompletion: true,
		Authors: []*cli.Author{
			{
				Name: "Clean Dependency Project",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the configuration file (default ~/.astudios/config.yaml)",
				EnvVars: []string{"ASTUDIOS_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "log level for structured logs on stderr (debug, info, warn, error)",
				EnvVars: []string{"ASTUDIOS_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "json",
				Usage:   "log format (json, text)",
				EnvVars: []string{"ASTUDIOS_LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   outputText,
				Usage:   "output format (text, json)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List available Android Studio versions",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "release", Usage: "show only release versions"},
					&cli.BoolFlag{Name: "beta", Usage: "show only beta versions"},
					&cli.BoolFlag{Name: "canary", Usage: "show only canary versions"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "limit the number of results (newest first, before printing oldest first)"},
					&cli.StringFlag{Name: "constraint", Usage: "version constraint, e.g. \">= 2024.2, < 2025\""},
				},
				Action: a.list,
			},
			{
				Name:      "download",
				Usage:     "Download an Android Studio archive without installing it",
				ArgsUsage: "[VERSION]",
				Flags: append(selectionFlags(),
					&cli.StringFlag{Name: "directory", Aliases: []string{"d"}, Usage: "download directory (default paths.versions_dir)"},
					&cli.StringFlag{Name: "downloader", Usage: "force a downloader (http, aria2)"},
					&cli.StringFlag{Name: "platform", Aliases: []string{"p"}, Usage: "target platform, e.g. mac-aarch64, windows-x64, linux-x64 (default: current)"},
				),
				Action: a.download,
			},
			{
				Name:      "install",
				Usage:     "Install an Android Studio version",
				ArgsUsage: "[VERSION]",
				Flags: append(selectionFlags(),
					&cli.StringFlag{Name: "directory", Aliases: []string{"d"}, Usage: "installation directory (default paths.applications_dir)"},
					&cli.StringFlag{Name: "downloader", Usage: "force a downloader (http, aria2)"},
					&cli.BoolFlag{Name: "use", Usage: "make the new installation the active version"},
				),
				Action: a.install,
			},
			{
				Name:      "uninstall",
				Usage:     "Uninstall an Android Studio version",
				ArgsUsage: "VERSION",
				Action:    a.uninstall,
			},
			{
				Name:      "use",
				Usage:     "Switch the active Android Studio version",
				ArgsUsage: "VERSION",
				Action:    a.use,
			},
			{
				Name:   "installed",
				Usage:  "Show installed versions",
				Action: a.installed,
			},
			{
				Name:   "which",
				Usage:  "Show the active version",
				Action: a.which,
			},
			{
				Name:   "update",
				Usage:  "Refresh the cached release list",
				Action: a.update,
			},
			{
				Name:  "history",
				Usage: "Show recorded downloads and installations",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "include uninstalled versions"},
					&cli.Int64Flag{Name: "year", Usage: "only show downloads of one year line, e.g. 2024"},
				},
				Action: a.history,
			},
			{
				Name:  "export",
				Usage: "Export the release list with install status as HTML and JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "out",
						Usage:    "output directory",
						Required: true,
						EnvVars:  []string{"ASTUDIOS_EXPORT_DIR"},
					},
					&cli.BoolFlag{Name: "dry-run", Usage: "build the report without writing files"},
				},
				Action: a.export,
			},
			{
				Name:   "check-update",
				Usage:  "Check whether a newer astudios release is available",
				Action: a.checkUpdate,
			},
			{
				Name:  "config",
				Usage: "Manage the configuration file",
				Subcommands: []*cli.Command{
					{
						Name:  "init",
						Usage: "Write the default configuration file",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "force", Usage: "overwrite an existing file"},
						},
						Action: a.configInit,
					},
					{
						Name:   "show",
						Usage:  "Print the effective configuration",
						Action: a.configShow,
					},
				},
			},
		},
	}
}

// selectionFlags choose a release for download and install.
func selectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "latest", Usage: "select the latest release version"},
		&cli.BoolFlag{Name: "latest-prerelease", Usage: "select the latest beta or canary version"},
		&cli.BoolFlag{Name: "strict", Usage: "treat a third token of \"VERSION CHANNEL BUILD\" queries as a required build fragment"},
	}
}

// actions holds the command implementations.
type actions struct {
	deps Deps
}
