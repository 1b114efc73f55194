// Package config loads the astudios YAML configuration: where the release
// feed comes from, where installations live, how archives are downloaded and
// which verification steps run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Sentinel errors for configuration validation
var (
	ErrVersionRequired         = errors.New("version is required")
	ErrFeedURLRequired         = errors.New("feed url is required for the jetbrains provider")
	ErrInvalidFeedProvider     = errors.New("feed provider must be jetbrains, file or mock")
	ErrInvalidCacheBackend     = errors.New("cache_backend must be sqlite or file")
	ErrInvalidDuration         = errors.New("invalid duration")
	ErrSignatureKeysRequired   = errors.New("keys_dir is required when signature verification is enabled")
	ErrInvalidDownloader       = errors.New("downloader must be auto, http or aria2")
	ErrInvalidClamAVMode       = errors.New("clamav mode must be docker or local")
	ErrClamAVImageRequired     = errors.New("clamav image is required in docker mode")
	ErrApplicationsDirRequired = errors.New("applications_dir is required")
	ErrActiveLinkRequired      = errors.New("active_link is required")
)

// Defaults
const (
	DefaultFeedURL         = "https://teamcity.jetbrains.com/guestAuth/repository/download/AndroidStudioReleasesList/.lastSuccessful/android-studio-releases-list.xml"
	DefaultUserAgent       = "astudios/0.1.0"
	DefaultFeedTimeout     = "30s"
	DefaultCacheTTL        = "24h"
	DefaultDownloadTimeout = "300s"
	DefaultClamAVImage     = "clamav/clamav-debian:latest"
	DefaultRepository      = "clean-dependency-project/astudios"
	DefaultHome            = "~/.astudios"
	DefaultConfigFile      = "config.yaml"
)

// Config represents the top-level configuration structure.
type Config struct {
	Version      string             `yaml:"version"`
	Feed         FeedConfig         `yaml:"feed"`
	Paths        PathsConfig        `yaml:"paths"`
	Storage      StorageConfig      `yaml:"storage"`
	Download     DownloadConfig     `yaml:"download"`
	Verification VerificationConfig `yaml:"verification"`
	SelfUpdate   SelfUpdateConfig   `yaml:"self_update"`
}

// FeedConfig describes where the release feed is fetched from and how long
// a fetched copy stays fresh.
type FeedConfig struct {
	Provider     string          `yaml:"provider"` // jetbrains, file, mock
	URL          string          `yaml:"url"`
	UserAgent    string          `yaml:"user_agent"`
	Timeout      string          `yaml:"timeout"`
	CacheTTL     string          `yaml:"cache_ttl"`
	CacheBackend string          `yaml:"cache_backend"` // sqlite, file
	IgnoreFile   string          `yaml:"ignore_file"`   // releases hidden from list and --latest
	Signature    SignatureConfig `yaml:"signature"`
}

// SignatureConfig enables detached-signature verification of the feed.
type SignatureConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URLPattern string `yaml:"url_pattern"` // {url} is replaced by the feed URL
	KeysDir    string `yaml:"keys_dir"`
}

// PathsConfig locates installations and astudios' own state.
type PathsConfig struct {
	Home            string `yaml:"home"`
	ApplicationsDir string `yaml:"applications_dir"`
	ActiveLink      string `yaml:"active_link"`
	VersionsDir     string `yaml:"versions_dir"` // downloaded archives
	CacheDir        string `yaml:"cache_dir"`
}

// StorageConfig represents storage configuration for download tracking.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// DownloadConfig selects the downloader.
type DownloadConfig struct {
	Downloader string      `yaml:"downloader"` // auto, http, aria2
	Timeout    string      `yaml:"timeout"`
	Aria2      Aria2Config `yaml:"aria2"`
}

// Aria2Config is passed through to aria2c.
type Aria2Config struct {
	MaxConnections int    `yaml:"max_connections"`
	MinSplitSize   string `yaml:"min_split_size"`
	MaxTries       int    `yaml:"max_tries"`
	RetryWait      int    `yaml:"retry_wait"`
}

// VerificationConfig toggles the checks run on downloads and installs.
type VerificationConfig struct {
	Checksum bool         `yaml:"checksum"`
	Codesign bool         `yaml:"codesign"`
	ClamAV   ClamAVConfig `yaml:"clamav"`
}

// ClamAVConfig represents ClamAV malware scanning configuration.
type ClamAVConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Mode              string `yaml:"mode"`  // docker or local
	Image             string `yaml:"image"` // Docker image, e.g., "clamav/clamav-debian:latest"
	DeleteOnDetection bool   `yaml:"delete_on_detection"`
}

// SelfUpdateConfig points check-update at the astudios release repository.
type SelfUpdateConfig struct {
	GitHubRepository string `yaml:"github_repository"` // Repository in "owner/repo" format
	APIURL           string `yaml:"api_url,omitempty"`  // GitHub Enterprise API root; empty for github.com
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Feed: FeedConfig{
			Provider:     "jetbrains",
			URL:          DefaultFeedURL,
			UserAgent:    DefaultUserAgent,
			Timeout:      DefaultFeedTimeout,
			CacheTTL:     DefaultCacheTTL,
			CacheBackend: "sqlite",
			Signature: SignatureConfig{
				URLPattern: "{url}.sig",
				KeysDir:    DefaultHome + "/keys",
			},
		},
		Paths: PathsConfig{
			Home:            DefaultHome,
			ApplicationsDir: "/Applications",
			ActiveLink:      "/Applications/Android Studio.app",
			VersionsDir:     DefaultHome + "/versions",
			CacheDir:        DefaultHome + "/cache",
		},
		Storage: StorageConfig{
			DatabasePath: DefaultHome + "/astudios.db",
		},
		Download: DownloadConfig{
			Downloader: "auto",
			Timeout:    DefaultDownloadTimeout,
			Aria2: Aria2Config{
				MaxConnections: 16,
				MinSplitSize:   "1M",
				MaxTries:       3,
				RetryWait:      5,
			},
		},
		Verification: VerificationConfig{
			Checksum: true,
			Codesign: true,
			ClamAV: ClamAVConfig{
				Enabled:           false,
				Mode:              "docker",
				Image:             DefaultClamAVImage,
				DeleteOnDetection: true,
			},
		},
		SelfUpdate: SelfUpdateConfig{
			GitHubRepository: DefaultRepository,
		},
	}
}

// DefaultPath returns ~/.astudios/config.yaml.
func DefaultPath() string {
	return ExpandPath(filepath.Join(DefaultHome, DefaultConfigFile))
}

// LoadConfig loads and parses the configuration from a YAML file. Keys
// missing from the file keep their default values.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}
	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// LoadOrDefault is LoadConfig, except that a missing file yields
// DefaultConfig.
func LoadOrDefault(filePath string) (*Config, error) {
	config, err := LoadConfig(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return config, err
}

// Validate validates the configuration structure and required fields.
func (c *Config) Validate() error {
	if c.Version == "" {
		return ErrVersionRequired
	}
	if err := c.Feed.Validate(); err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	if c.Paths.ApplicationsDir == "" {
		return fmt.Errorf("paths: %w", ErrApplicationsDirRequired)
	}
	if c.Paths.ActiveLink == "" {
		return fmt.Errorf("paths: %w", ErrActiveLinkRequired)
	}
	if err := c.Download.Validate(); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	if err := c.Verification.Validate(); err != nil {
		return fmt.Errorf("verification: %w", err)
	}
	return nil
}

// Validate validates feed configuration.
func (f *FeedConfig) Validate() error {
	switch f.Provider {
	case "", "jetbrains":
		if f.URL == "" {
			return ErrFeedURLRequired
		}
	case "file", "mock":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidFeedProvider, f.Provider)
	}
	switch f.CacheBackend {
	case "", "sqlite", "file":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidCacheBackend, f.CacheBackend)
	}
	for _, d := range []string{f.Timeout, f.CacheTTL} {
		if err := validateDuration(d); err != nil {
			return err
		}
	}
	if f.Signature.Enabled && f.Signature.KeysDir == "" {
		return ErrSignatureKeysRequired
	}
	return nil
}

// Validate validates download configuration.
func (d *DownloadConfig) Validate() error {
	switch d.Downloader {
	case "", "auto", "http", "aria2":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidDownloader, d.Downloader)
	}
	return validateDuration(d.Timeout)
}

// Validate validates verification configuration.
func (v *VerificationConfig) Validate() error {
	if !v.ClamAV.Enabled {
		return nil
	}
	switch v.ClamAV.Mode {
	case "", "docker":
		if v.ClamAV.Image == "" {
			return ErrClamAVImageRequired
		}
	case "local":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidClamAVMode, v.ClamAV.Mode)
	}
	return nil
}

func validateDuration(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.ParseDuration(s); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidDuration, s, err)
	}
	return nil
}

func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def // Default on parse error
	}
	return d
}

// GetTimeout parses and returns the feed request timeout
func (f *FeedConfig) GetTimeout() time.Duration {
	return durationOr(f.Timeout, 30*time.Second)
}

// GetCacheTTL parses and returns how long a cached feed stays fresh
func (f *FeedConfig) GetCacheTTL() time.Duration {
	return durationOr(f.CacheTTL, 24*time.Hour)
}

// SignatureURL expands the signature URL pattern for the feed URL.
func (f *FeedConfig) SignatureURL() string {
	pattern := f.Signature.URLPattern
	if pattern == "" {
		pattern = "{url}.sig"
	}
	return strings.ReplaceAll(pattern, "{url}", f.URL)
}

// GetDownloadTimeout parses and returns the download timeout duration
func (d *DownloadConfig) GetDownloadTimeout() time.Duration {
	return durationOr(d.Timeout, 300*time.Second)
}

// Expanded returns a copy with every path ~-expanded.
func (c *Config) Expanded() *Config {
	out := *c
	out.Paths.Home = ExpandPath(c.Paths.Home)
	out.Paths.ApplicationsDir = ExpandPath(c.Paths.ApplicationsDir)
	out.Paths.ActiveLink = ExpandPath(c.Paths.ActiveLink)
	out.Paths.VersionsDir = ExpandPath(c.Paths.VersionsDir)
	out.Paths.CacheDir = ExpandPath(c.Paths.CacheDir)
	out.Storage.DatabasePath = ExpandPath(c.Storage.DatabasePath)
	out.Feed.IgnoreFile = ExpandPath(c.Feed.IgnoreFile)
	out.Feed.Signature.KeysDir = ExpandPath(c.Feed.Signature.KeysDir)
	return &out
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// SaveConfig saves the configuration to a YAML file, creating its directory.
func SaveConfig(config *Config, filePath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filePath, err)
	}
	return nil
}
