package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/clean-dependency-project/astudios/internal/shell"
)

// Downloader kinds accepted by SelectDownloader.
const (
	DownloaderAuto  = "auto"
	DownloaderHTTP  = "http"
	DownloaderAria2 = "aria2"
)

// DefaultDownloadTimeout bounds a single HTTP download.
const DefaultDownloadTimeout = 300 * time.Second

var (
	ErrAria2NotFound     = errors.New("aria2c not found")
	ErrUnknownDownloader = errors.New("unknown downloader")
)

// Aria2SearchPaths are probed before PATH when looking for aria2c.
var Aria2SearchPaths = []string{
	"/usr/local/bin/aria2c",
	"/opt/homebrew/bin/aria2c",
	"/usr/bin/aria2c",
}

// Downloader fetches url into dest and returns the number of bytes written.
type Downloader interface {
	Download(ctx context.Context, url, dest string) (int64, error)
	Name() string
}

// HTTPClient is the subset of *http.Client used by HTTPDownloader.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPDownloader streams the artifact with net/http.
type HTTPDownloader struct {
	client    HTTPClient
	userAgent string
	logger    *slog.Logger
}

// NewHTTPDownloader creates an HTTP downloader. A nil client gets a default
// one with the given timeout.
func NewHTTPDownloader(client HTTPClient, userAgent string, timeout time.Duration, logger *slog.Logger) *HTTPDownloader {
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPDownloader{client: client, userAgent: userAgent, logger: orDiscard(logger)}
}

// Name implements Downloader.
func (d *HTTPDownloader) Name() string { return "http" }

// Download writes to dest+".part" and renames on success so an interrupted
// download never leaves a file that looks complete.
func (d *HTTPDownloader) Download(ctx context.Context, url, dest string) (int64, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore close error to not override return error
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download returned status %d: %s", resp.StatusCode, resp.Status)
	}

	partial := dest + ".part"
	out, err := os.Create(partial)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}

	size, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(partial)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(partial, dest); err != nil {
		_ = os.Remove(partial)
		return 0, fmt.Errorf("failed to finalize download: %w", err)
	}

	d.logger.Debug("file download completed",
		"url", url,
		"output_path", dest,
		"size_bytes", size,
		"duration_ms", time.Since(start).Milliseconds())

	return size, nil
}

// Aria2Options are passed through to aria2c.
type Aria2Options struct {
	MaxConnections int
	MinSplitSize   string
	MaxTries       int
	RetryWait      int // seconds
}

// DefaultAria2Options returns the segmented-download defaults.
func DefaultAria2Options() Aria2Options {
	return Aria2Options{
		MaxConnections: 16,
		MinSplitSize:   "1M",
		MaxTries:       3,
		RetryWait:      5,
	}
}

// Aria2Downloader shells out to aria2c for segmented downloads.
type Aria2Downloader struct {
	runner shell.CommandRunner
	path   string
	opts   Aria2Options
	logger *slog.Logger
}

// NewAria2Downloader creates a downloader using the aria2c binary at path.
func NewAria2Downloader(runner shell.CommandRunner, path string, opts Aria2Options, logger *slog.Logger) *Aria2Downloader {
	defaults := DefaultAria2Options()
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = defaults.MaxConnections
	}
	if opts.MinSplitSize == "" {
		opts.MinSplitSize = defaults.MinSplitSize
	}
	if opts.MaxTries <= 0 {
		opts.MaxTries = defaults.MaxTries
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = defaults.RetryWait
	}
	return &Aria2Downloader{runner: runner, path: path, opts: opts, logger: orDiscard(logger)}
}

// Name implements Downloader.
func (d *Aria2Downloader) Name() string { return "aria2 (" + d.path + ")" }

// Download implements Downloader.
func (d *Aria2Downloader) Download(ctx context.Context, url, dest string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	args := buildAria2Args(url, dest, d.opts)
	d.logger.Debug("running aria2c", "path", d.path, "args", args)

	output, err := d.runner.Run(ctx, d.path, args...)
	if err != nil {
		return 0, fmt.Errorf("aria2 download failed: %w: %s", err, string(output))
	}

	info, err := os.Stat(dest)
	if err != nil {
		return 0, fmt.Errorf("aria2 reported success but %s is missing: %w", dest, err)
	}
	return info.Size(), nil
}

func buildAria2Args(url, dest string, opts Aria2Options) []string {
	return []string{
		url,
		"--dir", filepath.Dir(dest),
		"--out", filepath.Base(dest),
		"--max-connection-per-server=" + strconv.Itoa(opts.MaxConnections),
		"--split=" + strconv.Itoa(opts.MaxConnections),
		"--min-split-size=" + opts.MinSplitSize,
		"--continue=true",
		"--max-tries=" + strconv.Itoa(opts.MaxTries),
		"--retry-wait=" + strconv.Itoa(opts.RetryWait),
		"--human-readable=true",
		"--console-log-level=error",
	}
}

// FindAria2 returns the first aria2c in Aria2SearchPaths that answers
// --version, falling back to PATH.
func FindAria2(ctx context.Context, runner shell.CommandRunner) (string, error) {
	for _, candidate := range Aria2SearchPaths {
		if _, err := runner.Run(ctx, candidate, "--version"); err == nil {
			return candidate, nil
		}
	}
	if path, err := shell.LookPath("aria2c"); err == nil {
		return path, nil
	}
	return "", ErrAria2NotFound
}

// DownloaderConfig selects and configures a Downloader.
type DownloaderConfig struct {
	Kind      string // auto, http, aria2
	UserAgent string
	Timeout   time.Duration
	Aria2     Aria2Options
}

// SelectDownloader builds the configured downloader. "auto" prefers aria2c
// when installed and falls back to HTTP.
func SelectDownloader(ctx context.Context, cfg DownloaderConfig, runner shell.CommandRunner, logger *slog.Logger) (Downloader, error) {
	switch cfg.Kind {
	case DownloaderHTTP:
		return NewHTTPDownloader(nil, cfg.UserAgent, cfg.Timeout, logger), nil
	case DownloaderAria2:
		path, err := FindAria2(ctx, runner)
		if err != nil {
			return nil, fmt.Errorf("%w: install it with 'brew install aria2' or use --downloader http", err)
		}
		return NewAria2Downloader(runner, path, cfg.Aria2, logger), nil
	case DownloaderAuto, "":
		if path, err := FindAria2(ctx, runner); err == nil {
			return NewAria2Downloader(runner, path, cfg.Aria2, logger), nil
		}
		return NewHTTPDownloader(nil, cfg.UserAgent, cfg.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDownloader, cfg.Kind)
	}
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}
