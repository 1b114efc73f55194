// Package storage persists the feed cache and download and installation
// history using GORM and SQLite
package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clean-dependency-project/astudios/internal/version"
)

// Sentinel errors following Dave Cheney's principle: define errors as values
var (
	ErrNilDownload     = errors.New("download cannot be nil")
	ErrNilInstallation = errors.New("installation cannot be nil")
	ErrNotFound        = errors.New("record not found")
)

// Verification status values
const (
	StatusPending  = "pending"
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusInfected = "infected"
)

// DownloadRecord is an Android Studio archive fetched to local disk together
// with its verification status
type DownloadRecord struct {
	ID uint `gorm:"primaryKey"`

	// What was downloaded
	Version      string `gorm:"not null;index:idx_version"`
	VersionMajor int64  `gorm:"index"`
	VersionMinor int64
	VersionPatch int64
	Build        string `gorm:"not null;uniqueIndex:idx_unique_download"`
	Channel      string
	Platform     string `gorm:"not null;uniqueIndex:idx_unique_download"`
	Filename     string `gorm:"not null"`
	Path         string `gorm:"not null"`
	FileSize     int64
	SourceURL    string `gorm:"not null"`

	// When
	DownloadedAt time.Time `gorm:"not null"`

	// Checksum verification
	ChecksumVerified  bool `gorm:"not null;default:false"`
	ChecksumAlgorithm string
	ChecksumValue     string

	// Malware scan
	ScanStatus      string
	ScanEngine      string
	ScanDatabaseAge string

	// Status
	VerificationStatus string `gorm:"not null"`
	ErrorMessage       string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store defines the persistence operations the installer depends on
type Store interface {
	RecordDownload(*DownloadRecord) error
	GetDownload(build, platform string) (*DownloadRecord, error)
	UpdateVerification(id uint, checksumVerified bool, status, errorMsg string) error
	UpdateScan(id uint, scanStatus, engine, databaseAge string) error
	RecordInstallation(*InstallationRecord) error
	MarkRemoved(path string, at time.Time) error
}

// Stats summarizes the recorded history.
type Stats struct {
	TotalDownloads int64            `json:"total_downloads"`
	ByStatus       map[string]int64 `json:"by_status"`
	Installed      int64            `json:"installed"`
	Removed        int64            `json:"removed"`
}

// DB wraps gorm.DB with the astudios record operations
type DB struct {
	db *gorm.DB
}

// Config holds database configuration
type Config struct {
	DatabasePath string
	LogLevel     string // silent, error, warn, info
}

// InitDB initializes the database connection and runs migrations
func InitDB(cfg Config) (*DB, error) {
	logLevel := logger.Silent
	switch cfg.LogLevel {
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto-migrate schema
	if err := db.AutoMigrate(&FeedCacheEntry{}, &DownloadRecord{}, &InstallationRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

// RecordDownload creates a download record, replacing an earlier record of
// the same build and platform
func (d *DB) RecordDownload(download *DownloadRecord) error {
	if download == nil {
		return ErrNilDownload
	}
	if download.VersionMajor == 0 {
		if major, minor, patch, err := version.MajorMinorPatch(download.Version); err == nil {
			download.VersionMajor, download.VersionMinor, download.VersionPatch = major, minor, patch
		}
	}

	err := d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("build = ? AND platform = ?", download.Build, download.Platform).
			Delete(&DownloadRecord{}).Error; err != nil {
			return err
		}
		return tx.Create(download).Error
	})
	if err != nil {
		return fmt.Errorf("failed to record download: %w", err)
	}
	return nil
}

// GetDownload retrieves a download by build and platform
func (d *DB) GetDownload(build, platform string) (*DownloadRecord, error) {
	var download DownloadRecord
	err := d.db.Where("build = ? AND platform = ?", build, platform).First(&download).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get download: %w", err)
	}
	return &download, nil
}

// UpdateVerification updates verification status for a download
func (d *DB) UpdateVerification(id uint, checksumVerified bool, status, errorMsg string) error {
	updates := map[string]interface{}{
		"checksum_verified":   checksumVerified,
		"verification_status": status,
	}
	if errorMsg != "" {
		updates["error_message"] = errorMsg
	}
	if err := d.db.Model(&DownloadRecord{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update verification for download %d: %w", id, err)
	}
	return nil
}

// UpdateScan updates only malware scan fields
func (d *DB) UpdateScan(id uint, scanStatus, engine, databaseAge string) error {
	if err := d.db.Model(&DownloadRecord{}).Where("id = ?", id).Updates(map[string]interface{}{
		"scan_status":       scanStatus,
		"scan_engine":       engine,
		"scan_database_age": databaseAge,
	}).Error; err != nil {
		return fmt.Errorf("failed to update scan result for download %d: %w", id, err)
	}
	return nil
}

// ListDownloads returns all downloads, newest first
func (d *DB) ListDownloads() ([]*DownloadRecord, error) {
	var downloads []*DownloadRecord
	if err := d.db.Order("downloaded_at DESC").Find(&downloads).Error; err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}
	return downloads, nil
}

// ListDownloadsByMajorVersion returns all downloads of one year line, e.g. 2024
func (d *DB) ListDownloadsByMajorVersion(major int64) ([]*DownloadRecord, error) {
	var downloads []*DownloadRecord
	if err := d.db.Where("version_major = ?", major).
		Order("downloaded_at DESC").Find(&downloads).Error; err != nil {
		return nil, fmt.Errorf("failed to list downloads for %d: %w", major, err)
	}
	return downloads, nil
}

// GetStats returns download and installation statistics
func (d *DB) GetStats() (*Stats, error) {
	stats := &Stats{ByStatus: make(map[string]int64)}

	if err := d.db.Model(&DownloadRecord{}).Count(&stats.TotalDownloads).Error; err != nil {
		return nil, fmt.Errorf("failed to count total downloads: %w", err)
	}

	var statusCounts []struct {
		Status string
		Count  int64
	}
	if err := d.db.Model(&DownloadRecord{}).Select("verification_status as status, COUNT(*) as count").
		Group("verification_status").Scan(&statusCounts).Error; err != nil {
		return nil, fmt.Errorf("failed to get status counts: %w", err)
	}
	for _, sc := range statusCounts {
		stats.ByStatus[sc.Status] = sc.Count
	}

	if err := d.db.Model(&InstallationRecord{}).Where("removed_at IS NULL").Count(&stats.Installed).Error; err != nil {
		return nil, fmt.Errorf("failed to count installations: %w", err)
	}
	if err := d.db.Model(&InstallationRecord{}).Where("removed_at IS NOT NULL").Count(&stats.Removed).Error; err != nil {
		return nil, fmt.Errorf("failed to count removed installations: %w", err)
	}

	return stats, nil
}

// ExtractFilename extracts the filename from a file path using filepath.Base.
func ExtractFilename(path string) string {
	return filepath.Base(path)
}
