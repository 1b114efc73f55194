package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/clean-dependency-project/astudios/internal/catalog"
	"github.com/clean-dependency-project/astudios/internal/clamav"
	"github.com/clean-dependency-project/astudios/internal/config"
	"github.com/clean-dependency-project/astudios/internal/feed"
	"github.com/clean-dependency-project/astudios/internal/gpg"
	"github.com/clean-dependency-project/astudios/internal/installer"
	"github.com/clean-dependency-project/astudios/internal/installs"
	"github.com/clean-dependency-project/astudios/internal/platform"
	"github.com/clean-dependency-project/astudios/internal/shell"
	"github.com/clean-dependency-project/astudios/internal/storage"
)

// Output formats accepted by --output.
const (
	outputText = "text"
	outputJSON = "json"
)

// env carries what every command needs: configuration, loggers, the output
// stream and lazily opened resources.
type env struct {
	cfg    *config.Config
	stdout *slog.Logger
	stderr *slog.Logger
	out    io.Writer
	format string
	deps   Deps

	db *storage.DB
}

// newEnv loads the configuration named by --config (defaults when the file
// does not exist) and builds the loggers from --log-level and --log-format.
func newEnv(c *cli.Context, deps Deps) (*env, error) {
	errWriter := c.App.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	out := c.App.Writer
	if out == nil {
		out = os.Stdout
	}

	level := ParseLogLevelOrDefault(c.String("log-level"))
	stdout, stderr := NewLoggersWithFormat(errWriter, level, c.String("log-format"))

	format := c.String("output")
	if format != outputText && format != outputJSON {
		return nil, fmt.Errorf("unsupported output format %q (use text or json)", format)
	}

	path := c.String("config")
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.LoadOrDefault(config.ExpandPath(path))
	if err != nil {
		stderr.Error("failed to load config", "path", path, "error", err)
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	stdout.Debug("loaded configuration", "path", path)

	return &env{
		cfg:    cfg.Expanded(),
		stdout: stdout,
		stderr: stderr,
		out:    out,
		format: format,
		deps:   deps,
	}, nil
}

func (e *env) close() {
	if e.db == nil {
		return
	}
	if err := e.db.Close(); err != nil {
		// Log close error but don't fail - we're in cleanup
		e.stderr.Warn("failed to close database", "error", err)
	}
	e.db = nil
}

// openDB initializes the database on first use.
func (e *env) openDB() (*storage.DB, error) {
	if e.db != nil {
		return e.db, nil
	}
	path := e.cfg.Storage.DatabasePath
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := storage.InitDB(storage.Config{
		DatabasePath: path,
		LogLevel:     "silent", // Database logs are verbose, suppress them
	})
	if err != nil {
		e.stderr.Error("failed to initialize database", "path", path, "error", err)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	e.db = db
	return db, nil
}

func (e *env) runner() shell.CommandRunner {
	if e.deps.Runner != nil {
		return e.deps.Runner
	}
	return shell.NewRealCommandRunner()
}

func (e *env) platform() platform.Platform {
	if e.deps.Platform != nil {
		return *e.deps.Platform
	}
	return platform.CurrentPlatform()
}

func (e *env) installs() *installs.Manager {
	return installs.NewManager(e.cfg.Paths.ApplicationsDir, e.cfg.Paths.ActiveLink, e.stdout)
}

// cache returns the configured feed cache backend.
func (e *env) cache() (feed.Cache, error) {
	if e.cfg.Feed.CacheBackend == "file" {
		return storage.NewFileCache(filepath.Join(e.cfg.Paths.CacheDir, "releases.json")), nil
	}
	db, err := e.openDB()
	if err != nil {
		return nil, err
	}
	source := e.cfg.Feed.Provider + ":" + e.cfg.Feed.URL
	return db.NewFeedCache(source), nil
}

// cacheAge reports how old the cached catalog is, when the cache backend
// can tell.
func (e *env) cacheAge() (time.Duration, bool) {
	cache, err := e.cache()
	if err != nil {
		return 0, false
	}
	ager, ok := cache.(interface {
		Age() (time.Duration, bool, error)
	})
	if !ok {
		return 0, false
	}
	age, found, err := ager.Age()
	if err != nil {
		e.stderr.Warn("failed to read catalog cache age", "error", err)
		return 0, false
	}
	return age, found
}

func (e *env) loader() (*feed.Loader, error) {
	clientConfig := feed.ClientConfig{
		Provider:  e.cfg.Feed.Provider,
		URL:       e.cfg.Feed.URL,
		UserAgent: e.cfg.Feed.UserAgent,
		Timeout:   e.cfg.Feed.GetTimeout(),
	}
	if e.cfg.Feed.Signature.Enabled {
		keyRing, err := gpg.LoadKeyRingFromPath(e.cfg.Feed.Signature.KeysDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load feed signing keys: %w", err)
		}
		e.stdout.Debug("feed signature verification enabled",
			"keys_dir", e.cfg.Feed.Signature.KeysDir,
			"fingerprints", keyRing.Fingerprints())
		clientConfig.Verifier = keyRing
		clientConfig.SignatureURL = e.cfg.Feed.SignatureURL()
	}

	client, err := feed.NewClientFactory().CreateClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed client: %w", err)
	}
	cache, err := e.cache()
	if err != nil {
		return nil, err
	}
	return feed.NewLoader(client, cache, e.cfg.Feed.GetCacheTTL(), e.stdout), nil
}

// catalog loads the release catalog, bypassing the cache when refresh is set.
func (e *env) catalog(ctx context.Context, refresh bool) (*catalog.Catalog, error) {
	loader, err := e.loader()
	if err != nil {
		return nil, err
	}
	if refresh {
		return loader.Refresh(ctx)
	}
	return loader.Load(ctx)
}

// ignore loads the ignore file; a broken file is logged and ignored.
func (e *env) ignore() config.IgnoreConfig {
	if e.cfg.Feed.IgnoreFile == "" {
		return config.IgnoreConfig{}
	}
	ic, err := config.LoadIgnoreConfig(e.cfg.Feed.IgnoreFile)
	if err != nil {
		e.stderr.Warn("failed to load ignore config", "ignore_file", e.cfg.Feed.IgnoreFile, "error", err)
		return config.IgnoreConfig{}
	}
	e.stdout.Debug("loaded ignore configuration", "ignore_file", e.cfg.Feed.IgnoreFile)
	return ic
}

// installerOptions selects the downloader and verification steps.
type installerOptions struct {
	downloader      string // overrides download.downloader
	applicationsDir string // overrides paths.applications_dir
	platform        platform.Platform
}

func (e *env) installer(ctx context.Context, opts installerOptions) (*installer.Manager, error) {
	runner := e.runner()

	kind := e.cfg.Download.Downloader
	if opts.downloader != "" {
		kind = opts.downloader
	}
	aria := e.cfg.Download.Aria2
	downloader, err := installer.SelectDownloader(ctx, installer.DownloaderConfig{
		Kind:      kind,
		UserAgent: e.cfg.Feed.UserAgent,
		Timeout:   e.cfg.Download.GetDownloadTimeout(),
		Aria2: installer.Aria2Options{
			MaxConnections: aria.MaxConnections,
			MinSplitSize:   aria.MinSplitSize,
			MaxTries:       aria.MaxTries,
			RetryWait:      aria.RetryWait,
		},
	}, runner, e.stdout)
	if err != nil {
		return nil, err
	}
	e.stdout.Info("using downloader", "downloader", downloader.Name())

	var scanner clamav.Scanner
	if av := e.cfg.Verification.ClamAV; av.Enabled {
		scanner, err = clamav.NewScanner(av.Mode, runner, av.Image, e.stdout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize malware scanner: %w", err)
		}
	}

	db, err := e.openDB()
	if err != nil {
		return nil, err
	}

	im := e.installs()
	if opts.applicationsDir != "" {
		im.ApplicationsDir = opts.applicationsDir
	}

	return installer.NewManager(im, db, runner, downloader, scanner, opts.platform, installer.Options{
		VerifyChecksum:    e.cfg.Verification.Checksum,
		VerifyCodesign:    e.cfg.Verification.Codesign,
		DeleteOnDetection: e.cfg.Verification.ClamAV.DeleteOnDetection,
		TempBase:          filepath.Join(e.cfg.Paths.Home, "tmp"),
	}, e.stdout), nil
}
