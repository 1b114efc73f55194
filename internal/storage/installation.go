package storage

import (
	"fmt"
	"time"
)

// InstallationRecord tracks an Android Studio bundle copied into the
// applications directory. RemovedAt is set once the bundle is uninstalled.
type InstallationRecord struct {
	ID uint `gorm:"primaryKey"`

	Version          string `gorm:"not null;index"`
	Build            string `gorm:"not null;index"`
	Channel          string
	Path             string `gorm:"not null;index"`
	ArchivePath      string
	CodesignVerified bool `gorm:"not null;default:false"`

	InstalledAt time.Time `gorm:"not null"`
	RemovedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Removed reports whether the installation has been uninstalled.
func (r *InstallationRecord) Removed() bool {
	return r.RemovedAt != nil
}

// RecordInstallation creates a new installation record
func (d *DB) RecordInstallation(rec *InstallationRecord) error {
	if rec == nil {
		return ErrNilInstallation
	}
	if err := d.db.Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record installation: %w", err)
	}
	return nil
}

// MarkRemoved flags every live record for path as removed. It returns
// ErrNotFound when no live record exists, which callers may ignore for
// bundles installed by other means.
func (d *DB) MarkRemoved(path string, at time.Time) error {
	result := d.db.Model(&InstallationRecord{}).
		Where("path = ? AND removed_at IS NULL", path).
		Update("removed_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to mark installation %s removed: %w", path, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListInstallations returns installation records, newest first. Removed
// installations are included only when includeRemoved is set.
func (d *DB) ListInstallations(includeRemoved bool) ([]*InstallationRecord, error) {
	query := d.db.Order("installed_at DESC")
	if !includeRemoved {
		query = query.Where("removed_at IS NULL")
	}
	var records []*InstallationRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list installations: %w", err)
	}
	return records, nil
}
