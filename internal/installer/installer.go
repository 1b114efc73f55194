// Package installer downloads Android Studio artifacts, installs disk images
// into the applications directory and manages the active-version symlink.
package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/clean-dependency-project/astudios/internal/bundle"
	"github.com/clean-dependency-project/astudios/internal/catalog"
	"github.com/clean-dependency-project/astudios/internal/clamav"
	"github.com/clean-dependency-project/astudios/internal/installs"
	"github.com/clean-dependency-project/astudios/internal/platform"
	"github.com/clean-dependency-project/astudios/internal/shell"
	"github.com/clean-dependency-project/astudios/internal/storage"
)

// Sentinel errors
var (
	ErrNoDownload         = errors.New("no download available for platform")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrMalwareDetected    = errors.New("malware detected")
	ErrUnsupportedArchive = errors.New("unsupported archive format")
	ErrMissingTool        = errors.New("required tool not found")
	ErrNoAppBundle        = errors.New("no .app bundle found in disk image")
	ErrCodesignFailed     = errors.New("code signature verification failed")
	ErrNotASymlink        = errors.New("active link path is not a symlink")
)

// RequiredTools must be on PATH before Install runs.
var RequiredTools = []string{"hdiutil", "ditto", "codesign"}

// Options toggles the optional verification steps.
type Options struct {
	VerifyChecksum    bool
	VerifyCodesign    bool
	DeleteOnDetection bool
	TempBase          string // scratch space for mount points, system temp when empty
}

// DefaultOptions verifies checksums and code signatures.
func DefaultOptions() Options {
	return Options{
		VerifyChecksum:    true,
		VerifyCodesign:    true,
		DeleteOnDetection: true,
	}
}

// Manager performs download, install, switch and uninstall operations.
type Manager struct {
	installs   *installs.Manager
	store      storage.Store
	runner     shell.CommandRunner
	downloader Downloader
	scanner    clamav.Scanner
	platform   platform.Platform
	opts       Options
	logger     *slog.Logger

	lookPath func(string) (string, error)
	now      func() time.Time
}

// NewManager wires the installer. store and scanner may be nil; without a
// store nothing is recorded, without a scanner nothing is scanned.
func NewManager(im *installs.Manager, store storage.Store, runner shell.CommandRunner, downloader Downloader, scanner clamav.Scanner, p platform.Platform, opts Options, logger *slog.Logger) *Manager {
	return &Manager{
		installs:   im,
		store:      store,
		runner:     runner,
		downloader: downloader,
		scanner:    scanner,
		platform:   p,
		opts:       opts,
		logger:     orDiscard(logger),
		lookPath:   shell.LookPath,
		now:        time.Now,
	}
}

// DownloadResult describes an artifact on local disk.
type DownloadResult struct {
	Path             string
	Size             int64
	Checksum         string
	ChecksumVerified bool
	Skipped          bool // already present, not fetched again
	Scan             *clamav.Result
}

// FileName derives the local artifact name from the download link, falling
// back to android-studio-{version}.dmg.
func FileName(link, version string) string {
	if u, err := url.Parse(link); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			return base
		}
	}
	return fmt.Sprintf("android-studio-%s.dmg", version)
}

// Download fetches the release artifact for the manager's platform into dir.
// An existing non-empty file is reused when the store recorded it as a
// successful download and it is unchanged since, or when its checksum (if
// verified) still matches.
func (m *Manager) Download(ctx context.Context, release catalog.Release, dir string) (*DownloadResult, error) {
	dl, ok := release.DownloadForPlatform(m.platform)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %s artifact", ErrNoDownload, release.DisplayName(), m.platform.Classifier)
	}

	dest := filepath.Join(dir, FileName(dl.Link, release.Version))
	result := &DownloadResult{Path: dest}

	var rec *storage.DownloadRecord
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		result.Size = info.Size()
		result.Skipped = true
		if prev := m.recordedDownload(release, dl, dest, info); prev != nil {
			rec = prev
			result.Checksum = prev.ChecksumValue
			result.ChecksumVerified = prev.ChecksumVerified
			m.logger.Info("download already recorded, skipping", "path", dest, "downloaded_at", prev.DownloadedAt)
		} else if err := m.verifyChecksum(dest, dl.Checksum, result); err != nil {
			m.logger.Warn("existing download failed verification, fetching again", "path", dest, "error", err)
			_ = os.Remove(dest)
			result.Skipped = false
		}
	}

	if !result.Skipped {
		m.logger.Info("starting download",
			"version", release.Version,
			"build", release.Build,
			"url", dl.Link,
			"downloader", m.downloader.Name())

		size, err := m.downloader.Download(ctx, dl.Link, dest)
		if err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", release.DisplayName(), err)
		}
		result.Size = size

		if err := m.verifyChecksum(dest, dl.Checksum, result); err != nil {
			_ = os.Remove(dest)
			m.record(release, dl, result, storage.StatusFailed, err.Error())
			return nil, err
		}
	}

	if rec == nil {
		rec = m.record(release, dl, result, storage.StatusSuccess, "")
	}

	if m.scanner != nil {
		if err := m.scan(ctx, dest, rec, result); err != nil {
			return result, err
		}
	}

	return result, nil
}

// recordedDownload returns the stored record of a successful download of
// this build at dest. It returns nil whenever the file has to be hashed
// again, e.g. when it was modified after the record was written or the feed
// now publishes another checksum.
func (m *Manager) recordedDownload(release catalog.Release, dl catalog.Download, dest string, info os.FileInfo) *storage.DownloadRecord {
	if m.store == nil {
		return nil
	}
	rec, err := m.store.GetDownload(release.Build, m.platform.Classifier)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn("failed to look up download record", "build", release.Build, "error", err)
		}
		return nil
	}
	if rec.VerificationStatus != storage.StatusSuccess || rec.Path != dest || rec.FileSize != info.Size() || info.ModTime().After(rec.DownloadedAt) {
		return nil
	}
	if m.opts.VerifyChecksum && dl.Checksum != "" {
		if !rec.ChecksumVerified || !strings.EqualFold(rec.ChecksumValue, dl.Checksum) {
			return nil
		}
	}
	return rec
}

func (m *Manager) verifyChecksum(file, expected string, result *DownloadResult) error {
	if !m.opts.VerifyChecksum || expected == "" {
		return nil
	}

	actual, err := FileSHA256(file)
	if err != nil {
		return err
	}
	result.Checksum = actual
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("%w for %s: expected %s, got %s", ErrChecksumMismatch, filepath.Base(file), expected, actual)
	}
	result.ChecksumVerified = true
	return nil
}

func (m *Manager) record(release catalog.Release, dl catalog.Download, result *DownloadResult, status, errMsg string) *storage.DownloadRecord {
	if m.store == nil {
		return nil
	}

	rec := &storage.DownloadRecord{
		Version:            release.Version,
		Build:              release.Build,
		Channel:            string(release.Channel),
		Platform:           m.platform.Classifier,
		Filename:           storage.ExtractFilename(result.Path),
		Path:               result.Path,
		FileSize:           result.Size,
		SourceURL:          dl.Link,
		DownloadedAt:       m.now(),
		ChecksumVerified:   result.ChecksumVerified,
		ChecksumValue:      result.Checksum,
		VerificationStatus: status,
		ErrorMessage:       errMsg,
	}
	if result.Checksum != "" {
		rec.ChecksumAlgorithm = "sha256"
	}

	if err := m.store.RecordDownload(rec); err != nil {
		m.logger.Warn("failed to record download", "path", result.Path, "error", err)
		return nil
	}
	return rec
}

func (m *Manager) scan(ctx context.Context, file string, rec *storage.DownloadRecord, result *DownloadResult) error {
	scanResult, err := m.scanner.Scan(ctx, file)
	if err != nil {
		return fmt.Errorf("malware scan failed: %w", err)
	}
	result.Scan = &scanResult

	if rec != nil {
		if err := m.store.UpdateScan(rec.ID, scanResult.Status(), scanResult.Metadata.Engine(), scanResult.Metadata.DatabaseDate); err != nil {
			m.logger.Warn("failed to record scan result", "path", file, "error", err)
		}
	}

	if scanResult.Clean {
		m.logger.Info("malware scan clean", "path", file, "engine", scanResult.Metadata.Engine())
		return nil
	}

	if rec != nil {
		if err := m.store.UpdateVerification(rec.ID, result.ChecksumVerified, storage.StatusInfected, scanResult.Status()); err != nil {
			m.logger.Warn("failed to record verification status", "path", file, "error", err)
		}
	}
	if m.opts.DeleteOnDetection {
		_ = os.Remove(file)
	}
	return fmt.Errorf("%w in %s: %s", ErrMalwareDetected, filepath.Base(file), strings.Join(scanResult.Threats, ", "))
}

// FileSHA256 returns the lowercase hex SHA-256 of the file.
func FileSHA256(file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", file, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// InstallOptions controls Install.
type InstallOptions struct {
	DownloadDir string
	Use         bool // switch the active link afterwards
}

// AppBundleName returns the bundle file name for a release, e.g.
// "Android Studio Ladybug 2024.2.1.app".
func AppBundleName(releaseName string) string {
	name := strings.ReplaceAll(releaseName, " | ", " ")
	name = strings.ReplaceAll(name, "/", "-")
	return strings.TrimSpace(name) + bundle.Extension
}

// CheckTools reports the first required tool missing from PATH.
func (m *Manager) CheckTools() error {
	for _, tool := range RequiredTools {
		if _, err := m.lookPath(tool); err != nil {
			return fmt.Errorf("%w: %s", ErrMissingTool, tool)
		}
	}
	return nil
}

// Install downloads the release disk image, copies the bundle it contains
// into the applications directory and verifies its code signature.
func (m *Manager) Install(ctx context.Context, release catalog.Release, opts InstallOptions) (bundle.Installation, error) {
	dl, ok := release.DownloadForPlatform(m.platform)
	if !ok {
		return bundle.Installation{}, fmt.Errorf("%w: %s has no %s artifact", ErrNoDownload, release.DisplayName(), m.platform.Classifier)
	}
	if !strings.HasSuffix(strings.ToLower(FileName(dl.Link, release.Version)), ".dmg") {
		return bundle.Installation{}, fmt.Errorf("%w: %s", ErrUnsupportedArchive, FileName(dl.Link, release.Version))
	}

	if err := m.CheckTools(); err != nil {
		return bundle.Installation{}, err
	}

	downloaded, err := m.Download(ctx, release, opts.DownloadDir)
	if err != nil {
		return bundle.Installation{}, err
	}

	tmp, err := storage.NewTempDir(m.opts.TempBase, "install", release.Version)
	if err != nil {
		return bundle.Installation{}, err
	}
	defer func() {
		if err := tmp.Remove(); err != nil {
			m.logger.Warn("failed to remove temp directory", "path", tmp.Root(), "error", err)
		}
	}()

	dest, err := m.copyFromImage(ctx, downloaded.Path, tmp.Mount(), AppBundleName(release.Name))
	if err != nil {
		return bundle.Installation{}, err
	}

	codesigned := false
	if m.opts.VerifyCodesign {
		if output, err := m.runner.Run(ctx, "codesign", "-v", dest); err != nil {
			_ = os.RemoveAll(dest)
			return bundle.Installation{}, fmt.Errorf("%w for %s: %s", ErrCodesignFailed, dest, strings.TrimSpace(string(output)))
		}
		codesigned = true
	}

	inst, err := m.installs.Reader.TryRead(dest)
	if err != nil {
		return bundle.Installation{}, fmt.Errorf("installed bundle is unreadable: %w", err)
	}

	if m.store != nil {
		err := m.store.RecordInstallation(&storage.InstallationRecord{
			Version:          release.Version,
			Build:            inst.Version.BuildVersion,
			Channel:          string(release.Channel),
			Path:             dest,
			ArchivePath:      downloaded.Path,
			CodesignVerified: codesigned,
			InstalledAt:      m.now(),
		})
		if err != nil {
			m.logger.Warn("failed to record installation", "path", dest, "error", err)
		}
	}

	m.logger.Info("installed", "name", inst.DisplayName(), "build", inst.Version.BuildVersion, "path", dest)

	if opts.Use {
		if err := m.Switch(inst); err != nil {
			return inst, err
		}
	}
	return inst, nil
}

// copyFromImage mounts image at mountPoint, copies the first .app it
// contains into the applications directory as bundleName and always
// detaches the image.
func (m *Manager) copyFromImage(ctx context.Context, image, mountPoint, bundleName string) (string, error) {
	if output, err := m.runner.Run(ctx, "hdiutil", "attach", image, "-mountpoint", mountPoint, "-nobrowse", "-quiet"); err != nil {
		return "", fmt.Errorf("failed to mount %s: %w: %s", image, err, strings.TrimSpace(string(output)))
	}
	defer func() {
		// Detach must run even when ctx was cancelled.
		if _, err := m.runner.Run(context.WithoutCancel(ctx), "hdiutil", "detach", mountPoint, "-quiet"); err != nil {
			m.logger.Warn("failed to detach disk image", "mount_point", mountPoint, "error", err)
		}
	}()

	src, err := findAppBundle(mountPoint)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(m.installs.ApplicationsDir, bundleName)
	if filepath.Clean(dest) == filepath.Clean(m.installs.ActiveLink) {
		return "", fmt.Errorf("refusing to install over the active link %s", dest)
	}
	if _, err := os.Lstat(dest); err == nil {
		m.logger.Info("replacing existing bundle", "path", dest)
		if err := os.RemoveAll(dest); err != nil {
			return "", fmt.Errorf("failed to remove existing %s: %w", dest, err)
		}
	}

	if output, err := m.runner.Run(ctx, "ditto", src, dest); err != nil {
		return "", fmt.Errorf("failed to copy %s: %w: %s", src, err, strings.TrimSpace(string(output)))
	}
	return dest, nil
}

func findAppBundle(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read mounted image: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() && filepath.Ext(entry.Name()) == bundle.Extension {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", ErrNoAppBundle
}

// Switch points the active link at inst. A real file or directory at the
// link path is never deleted.
func (m *Manager) Switch(inst bundle.Installation) error {
	link := m.installs.ActiveLink

	if info, err := os.Lstat(link); err == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			return fmt.Errorf("%w: %s; move it away first", ErrNotASymlink, link)
		}
		if err := os.Remove(link); err != nil {
			return fmt.Errorf("failed to remove active link: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to inspect active link: %w", err)
	}

	if err := os.Symlink(inst.Path, link); err != nil {
		return fmt.Errorf("failed to create active link: %w", err)
	}

	m.logger.Info("switched active version", "name", inst.DisplayName(), "link", link, "target", inst.Path)
	return nil
}

// Uninstall removes the bundle, clearing the active link first if it points
// at it.
func (m *Manager) Uninstall(inst bundle.Installation) error {
	active, err := m.installs.Active()
	if err != nil {
		return err
	}
	if active != nil && active.Path == inst.Path {
		if err := os.Remove(m.installs.ActiveLink); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove active link: %w", err)
		}
		m.logger.Info("removed active link", "link", m.installs.ActiveLink)
	}

	if err := os.RemoveAll(inst.Path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", inst.Path, err)
	}

	if m.store != nil {
		if err := m.store.MarkRemoved(inst.Path, m.now()); err != nil && !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn("failed to record uninstall", "path", inst.Path, "error", err)
		}
	}

	m.logger.Info("uninstalled", "name", inst.DisplayName(), "path", inst.Path)
	return nil
}
