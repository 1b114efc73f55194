package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/clean-dependency-project/astudios/internal/config"
	gh "github.com/clean-dependency-project/astudios/internal/github"
	"github.com/clean-dependency-project/astudios/internal/report"
	"github.com/clean-dependency-project/astudios/internal/version"
)

// ErrConfigExists is returned by config init when the file is present and
// --force is not set.
var ErrConfigExists = errors.New("configuration file already exists (use --force to overwrite)")

// export implements the export command.
func (a *actions) export(c *cli.Context) error {
	e, err := newEnv(c, a.deps)
	if err != nil {
		return err
	}
	defer e.close()

	loader, err := e.loader()
	if err != nil {
		return err
	}

	generator := report.NewGenerator(loader, e.installs(), e.stdout)
	result, err := generator.Generate(c.Context, report.GenerateOptions{
		OutputDir: config.ExpandPath(c.String("out")),
		DryRun:    c.Bool("dry-run"),
	})
	if err != nil {
		e.stderr.Error("report generation failed", "error", err)
		return fmt.Errorf("report generation failed: %w", err)
	}

	if e.format == outputJSON {
		return printJSON(e.out, struct {
			Releases  int      `json:"releases"`
			Installed int      `json:"installed"`
			Written   []string `json:"written"`
			Unchanged []string `json:"unchanged"`
		}{result.Model.Total, result.Model.Installed, result.Written, result.Unchanged})
	}

	if c.Bool("dry-run") {
		fmt.Fprintf(e.out, "Dry run: %d releases, %d installed; nothing written\n", result.Model.Total, result.Model.Installed)
		return nil
	}
	for _, path := range result.Written {
		fmt.Fprintf(e.out, "wrote %s\n", path)
	}
	for _, path := range result.Unchanged {
		fmt.Fprintf(e.out, "unchanged %s\n", path)
	}
	return nil
}

// UpdateCheck is the JSON result of check-update.
type UpdateCheck struct {
	Current         string `json:"current"`
	Latest          string `json:"latest"`
	URL             string `json:"url"`
	UpdateAvailable bool   `json:"update_available"`
}

// checkUpdate implements the check-update command.
func (a *actions) checkUpdate(c *cli.Context) error {
	e, err := newEnv(c, a.deps)
	if err != nil {
		return err
	}
	defer e.close()

	checker := a.deps.Releases
	if checker == nil {
		// GITHUB_TOKEN is optional; it only raises the API rate limit.
		client, err := gh.NewClient(os.Getenv("GITHUB_TOKEN"), e.cfg.SelfUpdate.GitHubRepository,
			gh.WithBaseURL(e.cfg.SelfUpdate.APIURL))
		if err != nil {
			return fmt.Errorf("failed to create GitHub client: %w", err)
		}
		checker = client
	}

	latest, err := checker.LatestRelease(c.Context)
	if err != nil {
		e.stderr.Error("failed to look up latest release", "error", err)
		return err
	}

	newer, err := version.IsNewer(Version, latest.Tag)
	if err != nil {
		return err
	}
	e.stdout.Info("checked for updates", "current", Version, "latest", latest.Tag, "update_available", newer)

	if e.format == outputJSON {
		return printJSON(e.out, UpdateCheck{
			Current:         Version,
			Latest:          latest.Tag,
			URL:             latest.URL,
			UpdateAvailable: newer,
		})
	}

	if !newer {
		fmt.Fprintf(e.out, "astudios %s is up to date\n", Version)
		return nil
	}
	fmt.Fprintf(e.out, "A newer astudios is available: %s (current %s)\n", latest.Tag, Version)
	if latest.URL != "" {
		fmt.Fprintf(e.out, "  %s\n", latest.URL)
	}
	return nil
}

// configPath is the file named by --config, or the default location.
func configPath(c *cli.Context) string {
	if path := c.String("config"); path != "" {
		return config.ExpandPath(path)
	}
	return config.DefaultPath()
}

// configInit implements config init.
func (a *actions) configInit(c *cli.Context) error {
	path := configPath(c)
	if fileExists(path) && !c.Bool("force") {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Wrote default configuration to %s\n", path)
	return nil
}

// configShow implements config show.
func (a *actions) configShow(c *cli.Context) error {
	e, err := newEnv(c, a.deps)
	if err != nil {
		return err
	}
	defer e.close()

	if e.format == outputJSON {
		return printJSON(e.out, e.cfg)
	}
	data, err := yaml.Marshal(e.cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = e.out.Write(data)
	return err
}
