package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/clean-dependency-project/astudios/internal/bundle"
	"github.com/clean-dependency-project/astudios/internal/installer"
	"github.com/clean-dependency-project/astudios/internal/storage"
)

// ErrIdentifierRequired is returned by use and uninstall without an argument.
var ErrIdentifierRequired = errors.New("please specify the version to act on; run 'astudios installed' to see installed versions")

// localInstaller builds an installer for operations that never download.
func (e *env) localInstaller() (*installer.Manager, error) {
	db, err := e.openDB()
	if err != nil {
		return nil, err
	}
	return installer.NewManager(e.installs(), db, e.runner(), nil, nil, e.platform(), installer.DefaultOptions(), e.stdout), nil
}

// resolveInstalled finds the installation named by the first argument.
func (e *env) resolveInstalled(c *cli.Context) (bundle.Installation, error) {
	identifier := c.Args().First()
	if identifier == "" {
		return bundle.Installation{}, ErrIdentifierRequired
	}
	return e.installs().Resolve(identifier, e.versionLookup(c))
}

// InstalledEntry is one installation in installed and which output.
type InstalledEntry struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Build   string `json:"build"`
	Channel string `json:"channel"`
	Path    string `json:"path"`
	Active  bool   `json:"active"`
}

func installedEntry(inst bundle.Installation, lookup bundle.VersionLookup, active bool) InstalledEntry {
	return InstalledEntry{
		Name:    inst.EnhancedDisplayName(lookup),
		Version: inst.DetailedVersion(lookup),
		Build:   inst.Version.BuildVersion,
		Channel: inst.ChannelHint(),
		Path:    inst.Path,
		Active:  active,
	}
}

// uninstall implements the uninstall command.
func (a *actions) uninstall(c *cli.Context) error {
	e, err := newEnv(c, a.deps)
	if err != nil {
		return err
	}
	defer e.close()

	inst, err := e.resolveInstalled(c)
	if err != nil {
		return err
	}
	m, err := e.localInstaller()
	if err != nil {
		return err
	}
	if err := m.Uninstall(inst); err != nil {
		e.stderr.Error("uninstall failed", "path", inst.Path, "error", err)
		return err
	}

	if e.format == outputJSON {
		return printJSON(e.out, installedEntry(inst, nil, false))
	}
	fmt.Fprintf(e.out, "Uninstalled %s from %s\n", inst.DisplayName(), inst.Path)
	return nil
}

// use implements the use command.
func (a *actions) use(c *cli.Context) error {
	e, err := newEnv(c, a.deps)
	if err != nil {
		return err
	}
	defer e.close()

	inst, err := e.resolveInstalled(c)
	if err != nil {
		return err
	}
	m, err := e.localInstaller()
	if err != nil {
		return err
	}
	if err := m.Switch(inst); err != nil {
		e.stderr.Error("switch failed", "path", inst.Path, "error", err)
		return err
	}

	if e.format == outputJSON {
		return printJSON(e.out, installedEntry(inst, nil, true))
	}
	fmt.Fprintf(e.out, "Now using %s\n", inst.DisplayName())
	fmt.Fprintf(e.out, "  Symlink: %s\n", e.cfg.Paths.ActiveLink)
	fmt.Fprintf(e.out, "  Points to: %s\n", inst.Path)
	return nil
}

// installed implements the installed command.
func (a *actions) installed(c *cli.Context) error {
	e, err := newEnv(c, a.deps)
	if err != nil {
		return err
	}
	defer e.close()

	im := e.installs()
	list, err := im.List()
	if err != nil {
		return err
	}
	active, _ := im.Active()
	lookup := e.versionLookup(c)

	entries := make([]InstalledEntry, 0, len(list))
	for _, inst := range list {
		entries = append(entries, installedEntry(inst, lookup, active != nil && active.Path == inst.Path))
	}

	if e.format == outputJSON {
		return printJSON(e.out, entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(e.out, "No Android Studio versions installed")
		fmt.Fprintln(e.out)
		fmt.Fprintln(e.out, "Use 'astudios install <version>' to install a version")
		return nil
	}

	fmt.Fprintln(e.out, "Installed Android Studio versions:")
	fmt.Fprintln(e.out)
	tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	for _, entry := range entries {
		marker := " "
		if entry.Active {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\n", marker, entry.Name, entry.Build, entry.Path)
	}
	return tw.Flush()
}

// which implements the which command.
func (a *actions) which(c *cli.Context) error {
	e, err := newEnv(c, a.deps)
	if err != nil {
		return err
	}
	defer e.close()

	link := e.cfg.Paths.ActiveLink
	active, err := e.installs().Active()
	if err != nil {
		return err
	}

	if active == nil {
		if e.format == outputJSON {
			return printJSON(e.out, struct {
				Active *InstalledEntry `json:"active"`
			}{})
		}
		if existsAsDir(link) {
			fmt.Fprintf(e.out, "Android Studio is installed as a regular directory (not a symlink) at %s\n", link)
			return nil
		}
		fmt.Fprintln(e.out, "No active Android Studio version")
		fmt.Fprintln(e.out)
		fmt.Fprintln(e.out, "Use 'astudios use <version>' to select an installed version")
		return nil
	}

	entry := installedEntry(*active, e.versionLookup(c), true)
	if e.format == outputJSON {
		return printJSON(e.out, struct {
			Active *InstalledEntry `json:"active"`
		}{&entry})
	}
	fmt.Fprintf(e.out, "Currently using %s\n", entry.Name)
	fmt.Fprintf(e.out, "  Build: %s\n", entry.Build)
	fmt.Fprintf(e.out, "  Symlink: %s\n", link)
	fmt.Fprintf(e.out, "  Points to: %s\n", entry.Path)
	return nil
}

// history implements the history command.
func (a *actions) history(c *cli.Context) error {
	e, err := newEnv(c, a.deps)
	if err != nil {
		return err
	}
	defer e.close()

	db, err := e.openDB()
	if err != nil {
		return err
	}
	installations, err := db.ListInstallations(c.Bool("all"))
	if err != nil {
		return err
	}
	var downloads []*storage.DownloadRecord
	if year := c.Int64("year"); year > 0 {
		downloads, err = db.ListDownloadsByMajorVersion(year)
	} else {
		downloads, err = db.ListDownloads()
	}
	if err != nil {
		return err
	}
	stats, err := db.GetStats()
	if err != nil {
		return err
	}

	if e.format == outputJSON {
		return printJSON(e.out, struct {
			Stats         *storage.Stats                `json:"stats"`
			Installations []*storage.InstallationRecord `json:"installations"`
			Downloads     []*storage.DownloadRecord     `json:"downloads"`
		}{stats, installations, downloads})
	}

	fmt.Fprintf(e.out, "Downloads: %d (%s), installed: %d, removed: %d\n\n",
		stats.TotalDownloads, statusSummary(stats.ByStatus), stats.Installed, stats.Removed)

	tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTALLED\tVERSION\tBUILD\tCHANNEL\tCODESIGN\tREMOVED\tPATH")
	for _, r := range installations {
		removed := "-"
		if r.Removed() {
			removed = r.RemovedAt.Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
			r.InstalledAt.Format(time.DateTime), r.Version, r.Build, r.Channel, r.CodesignVerified, removed, r.Path)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "DOWNLOADED\tVERSION\tBUILD\tPLATFORM\tSTATUS\tSCAN\tFILE")
	for _, r := range downloads {
		scan := r.ScanStatus
		if scan == "" {
			scan = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.DownloadedAt.Format(time.DateTime), r.Version, r.Build, r.Platform, r.VerificationStatus, scan, storage.ExtractFilename(r.Path))
	}
	return tw.Flush()
}

// statusSummary renders download counts per verification status in a fixed
// order, e.g. "success 3, failed 1".
func statusSummary(byStatus map[string]int64) string {
	var parts []string
	for _, status := range []string{storage.StatusSuccess, storage.StatusFailed, storage.StatusInfected, storage.StatusPending} {
		if n := byStatus[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", status, n))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// fileExists reports whether path exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
