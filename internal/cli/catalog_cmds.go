package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/clean-dependency-project/astudios/internal/bundle"
	"github.com/clean-dependency-project/astudios/internal/catalog"
	"github.com/clean-dependency-project/astudios/internal/config"
	"github.com/clean-dependency-project/astudios/internal/installer"
	"github.com/clean-dependency-project/astudios/internal/installs"
	"github.com/clean-dependency-project/astudios/internal/platform"
	"github.com/clean-dependency-project/astudios/internal/version"
)

// ErrNoSelection is returned when download or install gets neither a query
// nor --latest / --latest-prerelease.
var ErrNoSelection = errors.New("please specify a version or use --latest or --latest-prerelease")

// ListEntry is one release in list output.
type ListEntry struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Build     string            `json:"build"`
	Channel   string            `json:"channel"`
	Date      string            `json:"date"`
	Downloads map[string]string `json:"downloads"` // OS -> size
	Installed bool              `json:"installed"`
	Active    bool              `json:"active"`
}

// visibleReleases drops releases hidden by the ignore file.
func visibleReleases(releases []catalog.Release, ic config.IgnoreConfig, osName string) []catalog.Release {
	if len(ic) == 0 {
		return releases
	}
	out := make([]catalog.Release, 0, len(releases))
	for _, r := range releases {
		if ic.IsIgnored(string(r.Channel), r.Version, r.Build, osName) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// localState returns the installations and the active one, treating an
// unreadable applications directory as empty.
func (e *env) localState() ([]bundle.Installation, *bundle.Installation) {
	im := e.installs()
	installed, err := im.List()
	if err != nil {
		e.stdout.Debug("no installations found", "error", err)
	}
	active, _ := im.Active()
	return installed, active
}

// list implements the list command.
func (a *actions) list(c *cli.Context) error {
	e, err := newEnv(c, a.deps)
	if err != nil {
		return err
	}
	defer e.close()

	var constraint *version.Constraint
	if expr := c.String("constraint"); expr != "" {
		constraint, err = version.ParseConstraint(expr)
		if err != nil {
			return err
		}
	}

	cat, err := e.catalog(c.Context, false)
	if err != nil {
		e.stderr.Error("failed to load releases", "error", err)
		return err
	}

	releases := cat.FilterByChannel(c.Bool("release"), c.Bool("beta"), c.Bool("canary"))
	releases = visibleReleases(releases, e.ignore(), e.platform().OS)
	if constraint != nil {
		releases = slices.DeleteFunc(releases, func(r catalog.Release) bool {
			return !constraint.Check(r.Version)
		})
	}
	if limit := c.Int("limit"); limit > 0 && limit < len(releases) {
		releases = releases[:limit]
	}
	// The feed is newest first; print oldest first so the newest ends up
	// next to the prompt.
	slices.Reverse(releases)

	installed, active := e.localState()

	entries := make([]ListEntry, 0, len(releases))
	for _, r := range releases {
		entry := ListEntry{
			Name:      r.Name,
			Version:   r.Version,
			Build:     r.Build,
			Channel:   channelLabel(r.Channel),
			Date:      r.Date,
			Downloads: map[string]string{},
			Active:    active != nil && installs.Matches(r, active.Version),
		}
		for _, inst := range installed {
			if installs.Matches(r, inst.Version) {
				entry.Installed = true
				break
			}
		}
		for _, d := range osDownloads {
			if dl, ok := r.DownloadFor(d.marker); ok {
				entry.Downloads[d.label] = dl.Size
			}
		}
		entries = append(entries, entry)
	}

	e.stdout.Info("listed releases", "total", cat.Len(), "shown", len(entries))

	if e.format == outputJSON {
		return printJSON(e.out, entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(e.out, "No Android Studio versions match the given filters.")
		return nil
	}
	fmt.Fprintln(e.out, "Available Android Studio versions:")
	fmt.Fprintln(e.out)
	for _, entry := range entries {
		var marks []string
		if entry.Installed {
			marks = append(marks, "installed")
		}
		if entry.Active {
			marks = append(marks, "active")
		}
		status := ""
		if len(marks) > 0 {
			status = " [" + strings.Join(marks, ", ") + "]"
		}
		fmt.Fprintf(e.out, "> %s (%s)%s\n", entry.Version, entry.Channel, status)
		fmt.Fprintf(e.out, "  Name: %s\n", entry.Name)
		fmt.Fprintf(e.out, "  Build: %s\n", entry.Build)
		fmt.Fprintf(e.out, "  Date: %s\n", entry.Date)
		for _, d := range osDownloads {
			if size, ok := entry.Downloads[d.label]; ok {
				fmt.Fprintf(e.out, "  %s: Available (%s)\n", d.label, size)
			}
		}
		fmt.Fprintln(e.out)
	}
	return nil
}

// update implements the update command.
func (a *actions) update(c *cli.Context) error {
	e, err := newEnv(c, a.deps)
	if err != nil {
		return err
	}
	defer e.close()

	previous, hadPrevious := e.cacheAge()

	cat, err := e.catalog(c.Context, true)
	if err != nil {
		e.stderr.Error("failed to refresh releases", "error", err)
		return err
	}

	latest := cat.Releases
	if len(latest) > 5 {
		latest = latest[:5]
	}

	if e.format == outputJSON {
		out := struct {
			Total           int               `json:"total"`
			Latest          []catalog.Release `json:"latest"`
			PreviousFetchMS *int64            `json:"previous_fetch_age_ms,omitempty"`
		}{Total: cat.Len(), Latest: latest}
		if hadPrevious {
			ms := previous.Milliseconds()
			out.PreviousFetchMS = &ms
		}
		return printJSON(e.out, out)
	}

	if hadPrevious {
		fmt.Fprintf(e.out, "Previous catalog was fetched %s ago\n", formatAge(previous))
	}
	fmt.Fprintf(e.out, "Found %d available versions\n", cat.Len())
	if len(latest) > 0 {
		fmt.Fprintln(e.out)
		fmt.Fprintln(e.out, "Latest versions:")
		for _, r := range latest {
			fmt.Fprintf(e.out, "  %s - %s (%s)\n", r.Version, r.Build, channelLabel(r.Channel))
		}
	}
	return nil
}

// selectRelease picks the release named by the arguments and selection
// flags. --latest and --latest-prerelease skip ignored releases.
func (e *env) selectRelease(c *cli.Context, cat *catalog.Catalog, osName string) (catalog.Release, error) {
	query := strings.Join(c.Args().Slice(), " ")
	visible := &catalog.Catalog{
		FeedVersion: cat.FeedVersion,
		Releases:    visibleReleases(cat.Releases, e.ignore(), osName),
	}

	switch {
	case c.Bool("latest"):
		return visible.LatestRelease()
	case c.Bool("latest-prerelease"):
		return visible.LatestPrerelease()
	case query != "":
		m, err := cat.FindWithOptions(query, catalog.FindOptions{StrictBuild: c.Bool("strict")})
		if err != nil {
			return catalog.Release{}, err
		}
		e.stdout.Debug("resolved query", "query", query, "stage", m.Stage.String(), "build", m.Release.Build)
		return m.Release, nil
	default:
		return catalog.Release{}, ErrNoSelection
	}
}

// DownloadOutput is the JSON result of download.
type DownloadOutput struct {
	Name             string `json:"name"`
	Version          string `json:"version"`
	Build            string `json:"build"`
	Platform         string `json:"platform"`
	Path             string `json:"path"`
	Size             int64  `json:"size"`
	SHA256           string `json:"sha256,omitempty"`
	ChecksumVerified bool   `json:"checksum_verified"`
	Skipped          bool   `json:"skipped"`
	ScanStatus       string `json:"scan_status,omitempty"`
}

// download implements the download command.
func (a *actions) download(c *cli.Context) error {
	e, err := newEnv(c, a.deps)
	if err != nil {
		return err
	}
	defer e.close()

	p := e.platform()
	if name := c.String("platform"); name != "" {
		p, err = platform.FindPlatform(name)
		if err != nil {
			return err
		}
	}

	cat, err := e.catalog(c.Context, false)
	if err != nil {
		e.stderr.Error("failed to load releases", "error", err)
		return err
	}
	release, err := e.selectRelease(c, cat, p.OS)
	if err != nil {
		return err
	}

	dir := c.String("directory")
	if dir == "" {
		dir = e.cfg.Paths.VersionsDir
	}
	dir = config.ExpandPath(dir)

	m, err := e.installer(c.Context, installerOptions{downloader: c.String("downloader"), platform: p})
	if err != nil {
		return err
	}

	if e.format == outputText {
		fmt.Fprintf(e.out, "Downloading %s (%s)...\n", release.Name, release.Version)
	}

	result, err := m.Download(c.Context, release, dir)
	if err != nil {
		e.stderr.Error("download failed", "build", release.Build, "error", err)
		return err
	}

	if e.format == outputJSON {
		out := DownloadOutput{
			Name:             release.Name,
			Version:          release.Version,
			Build:            release.Build,
			Platform:         p.Classifier,
			Path:             result.Path,
			Size:             result.Size,
			SHA256:           result.Checksum,
			ChecksumVerified: result.ChecksumVerified,
			Skipped:          result.Skipped,
		}
		if result.Scan != nil {
			out.ScanStatus = result.Scan.Status()
		}
		return printJSON(e.out, out)
	}

	if result.Skipped {
		fmt.Fprintf(e.out, "File already exists: %s\n", result.Path)
		return nil
	}
	fmt.Fprintf(e.out, "%s downloaded successfully\n", release.Name)
	fmt.Fprintf(e.out, "  Location: %s\n", result.Path)
	if result.ChecksumVerified {
		fmt.Fprintf(e.out, "  SHA-256: %s (verified)\n", result.Checksum)
	}
	if result.Scan != nil {
		fmt.Fprintf(e.out, "  Malware scan: %s\n", result.Scan.Status())
	}
	return nil
}

// InstallOutput is the JSON result of install.
type InstallOutput struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Build   string `json:"build"`
	Path    string `json:"path"`
	Active  bool   `json:"active"`
}

// install implements the install command.
func (a *actions) install(c *cli.Context) error {
	e, err := newEnv(c, a.deps)
	if err != nil {
		return err
	}
	defer e.close()

	p := e.platform()
	if !p.IsMac() {
		return fmt.Errorf("%w: installing is only supported on macOS (current platform %s); use 'astudios download --platform' instead",
			installer.ErrUnsupportedArchive, p.Classifier)
	}

	cat, err := e.catalog(c.Context, false)
	if err != nil {
		e.stderr.Error("failed to load releases", "error", err)
		return err
	}
	release, err := e.selectRelease(c, cat, p.OS)
	if err != nil {
		return err
	}

	appsDir := config.ExpandPath(c.String("directory"))
	m, err := e.installer(c.Context, installerOptions{
		downloader:      c.String("downloader"),
		applicationsDir: appsDir,
		platform:        p,
	})
	if err != nil {
		return err
	}
	if appsDir == "" {
		appsDir = e.cfg.Paths.ApplicationsDir
	}

	if e.format == outputText {
		fmt.Fprintf(e.out, "Installing %s (%s)...\n", release.Name, release.Version)
	}

	inst, err := m.Install(c.Context, release, installer.InstallOptions{
		DownloadDir: e.cfg.Paths.VersionsDir,
		Use:         c.Bool("use"),
	})
	if err != nil {
		e.stderr.Error("install failed", "build", release.Build, "error", err)
		return err
	}

	if e.format == outputJSON {
		return printJSON(e.out, InstallOutput{
			Name:    inst.DisplayName(),
			Version: release.Version,
			Build:   inst.Version.BuildVersion,
			Path:    inst.Path,
			Active:  c.Bool("use"),
		})
	}

	fmt.Fprintf(e.out, "%s has been installed to %s\n", release.Name, appsDir)
	if c.Bool("use") {
		fmt.Fprintf(e.out, "Now using %s (%s)\n", inst.DisplayName(), filepath.Base(inst.Path))
	} else {
		fmt.Fprintf(e.out, "Run 'astudios use %s' to make it the active version\n", release.Version)
	}
	return nil
}

// versionLookup maps installed builds to catalog versions when the catalog
// can be loaded; otherwise it is nil and short versions are used.
func (e *env) versionLookup(c *cli.Context) bundle.VersionLookup {
	cat, err := e.catalog(c.Context, false)
	if err != nil {
		e.stdout.Debug("catalog unavailable, using bundle versions", "error", err)
		return nil
	}
	return cat.VersionForBuild
}

// existsAsDir reports whether path exists and is a real directory.
func existsAsDir(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.IsDir()
}
