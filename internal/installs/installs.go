// Package installs reconciles the release catalog with the Android Studio
// bundles present on disk: listing, active-version detection and resolution
// of user supplied identifiers.
package installs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/clean-dependency-project/astudios/internal/bundle"
	"github.com/clean-dependency-project/astudios/internal/catalog"
)

// Sentinel errors
var (
	ErrNotInstalled   = errors.New("android studio version is not installed")
	ErrAmbiguousMatch = errors.New("identifier matches multiple installations")
)

// NotInstalledError is returned by Resolve when no installation matches.
type NotInstalledError struct {
	Identifier string
}

func (e *NotInstalledError) Error() string {
	return fmt.Sprintf("Android Studio %q is not installed; run 'astudios installed' to see installed versions", e.Identifier)
}

func (e *NotInstalledError) Is(target error) bool {
	return target == ErrNotInstalled
}

// AmbiguousMatchError is returned by Resolve when more than one installation
// matches. Candidates holds every match in listing order.
type AmbiguousMatchError struct {
	Identifier string
	Candidates []bundle.Installation
}

func (e *AmbiguousMatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "identifier %q matches %d installations, use a more specific identifier:", e.Identifier, len(e.Candidates))
	for _, c := range e.Candidates {
		fmt.Fprintf(&b, "\n  %s (version %s, build %s) at %s",
			c.DisplayName(), c.Version.ShortVersion, c.Version.BuildVersion, c.Path)
	}
	return b.String()
}

func (e *AmbiguousMatchError) Is(target error) bool {
	return target == ErrAmbiguousMatch
}

// Manager inspects installations under ApplicationsDir and the symlink at
// ActiveLink.
type Manager struct {
	ApplicationsDir string
	ActiveLink      string
	Reader          *bundle.Reader
	logger          *slog.Logger
}

// NewManager creates an installation manager. A nil logger discards output.
func NewManager(applicationsDir, activeLink string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		ApplicationsDir: applicationsDir,
		ActiveLink:      activeLink,
		Reader:          bundle.NewReader(),
		logger:          logger,
	}
}

// List returns every Android Studio installation in ApplicationsDir, newest
// first. Symlinks (including the active link itself) are skipped. Entries
// that are not installations or whose metadata cannot be read are logged at
// debug level and left out; only a failure to read the directory is
// returned.
func (m *Manager) List() ([]bundle.Installation, error) {
	entries, err := os.ReadDir(m.ApplicationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read applications directory %s: %w", m.ApplicationsDir, err)
	}

	var result []bundle.Installation
	for _, entry := range entries {
		if entry.Type()&fs.ModeSymlink != 0 {
			continue
		}
		path := filepath.Join(m.ApplicationsDir, entry.Name())
		inst, err := m.Reader.TryRead(path)
		if err != nil {
			if !errors.Is(err, bundle.ErrNotAnInstallation) {
				m.logger.Debug("skipping unreadable installation", "path", path, "error", err)
			}
			continue
		}
		result = append(result, inst)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return bundle.Compare(result[i], result[j]) > 0
	})
	return result, nil
}

// Active returns the installation the active symlink points to, or nil when
// the link is absent, is not a symlink, dangles, or its target cannot be
// read.
func (m *Manager) Active() (*bundle.Installation, error) {
	target, err := os.Readlink(m.ActiveLink)
	if err != nil {
		return nil, nil
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(m.ActiveLink), target)
	}
	target = filepath.Clean(target)

	inst, err := m.Reader.TryRead(target)
	if err != nil {
		m.logger.Debug("active link target is not a readable installation", "link", m.ActiveLink, "target", target, "error", err)
		return nil, nil
	}
	return &inst, nil
}

// Matches reports whether release and v describe the same build. Any one of
// the version, the bundle build or the product build number agreeing is
// enough.
func Matches(release catalog.Release, v bundle.Version) bool {
	return release.Version == v.ShortVersion ||
		release.Build == v.BuildVersion ||
		release.Build == v.BuildNumber
}

// IsInstalled reports whether any installation matches release.
func (m *Manager) IsInstalled(release catalog.Release) (bool, error) {
	installed, err := m.List()
	if err != nil {
		return false, err
	}
	for _, inst := range installed {
		if Matches(release, inst.Version) {
			return true, nil
		}
	}
	return false, nil
}

// IsActive reports whether the active installation matches release.
func (m *Manager) IsActive(release catalog.Release) (bool, error) {
	active, err := m.Active()
	if err != nil || active == nil {
		return false, err
	}
	return Matches(release, active.Version), nil
}

// Resolve finds the single installation identified by identifier. An
// installation matches when the identifier equals its short version, its
// build version or the catalog version of its build, or is a prefix of its
// short or catalog version. lookup may be nil.
//
// Zero matches yield a *NotInstalledError and more than one an
// *AmbiguousMatchError listing every candidate.
func (m *Manager) Resolve(identifier string, lookup bundle.VersionLookup) (bundle.Installation, error) {
	installed, err := m.List()
	if err != nil {
		return bundle.Installation{}, err
	}

	var candidates []bundle.Installation
	for _, inst := range installed {
		if resolves(identifier, inst, lookup) {
			candidates = append(candidates, inst)
		}
	}

	switch len(candidates) {
	case 0:
		return bundle.Installation{}, &NotInstalledError{Identifier: identifier}
	case 1:
		return candidates[0], nil
	default:
		return bundle.Installation{}, &AmbiguousMatchError{Identifier: identifier, Candidates: candidates}
	}
}

func resolves(identifier string, inst bundle.Installation, lookup bundle.VersionLookup) bool {
	if identifier == "" {
		return false
	}
	v := inst.Version
	if identifier == v.ShortVersion || identifier == v.BuildVersion || identifier == inst.Identifier() {
		return true
	}
	if strings.HasPrefix(v.ShortVersion, identifier) {
		return true
	}
	if lookup != nil {
		if catalogVersion, ok := lookup(v.BuildVersion); ok {
			if identifier == catalogVersion || strings.HasPrefix(catalogVersion, identifier) {
				return true
			}
		}
	}
	return false
}
