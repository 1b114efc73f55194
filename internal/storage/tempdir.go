package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TempDir manages the scratch directory of one install operation.
type TempDir struct {
	root  string
	mount string
}

// NewTempDir creates a new scratch directory structure under base (the
// system temp directory when empty). The directory structure is:
//
//	{base}/astudios-{operation}-{version}-{timestamp}/
//	  mount/    - mount point for the installer disk image
//
// The caller is responsible for cleaning up by calling Remove().
func NewTempDir(base, operation, version string) (*TempDir, error) {
	if operation == "" {
		return nil, fmt.Errorf("operation cannot be empty")
	}
	if version == "" {
		return nil, fmt.Errorf("version cannot be empty")
	}
	if base == "" {
		base = os.TempDir()
	}

	timestamp := time.Now().Format("20060102T150405")
	dirname := fmt.Sprintf("astudios-%s-%s-%s", operation, version, timestamp)

	root := filepath.Join(base, dirname)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	mount := filepath.Join(root, "mount")
	if err := os.MkdirAll(mount, 0755); err != nil {
		// Ignore cleanup error as we're already returning an error
		_ = os.RemoveAll(root)
		return nil, fmt.Errorf("failed to create mount directory: %w", err)
	}

	return &TempDir{
		root:  root,
		mount: mount,
	}, nil
}

// Root returns the root temporary directory path.
func (t *TempDir) Root() string {
	return t.root
}

// Mount returns the directory used as the disk image mount point.
func (t *TempDir) Mount() string {
	return t.mount
}

// Remove deletes the temporary directory and all its contents. It does not
// fail if the directory doesn't exist (idempotent).
func (t *TempDir) Remove() error {
	if t.root == "" {
		return nil
	}

	if _, err := os.Stat(t.root); os.IsNotExist(err) {
		return nil
	}

	if err := os.RemoveAll(t.root); err != nil {
		return fmt.Errorf("failed to remove temp directory %s: %w", t.root, err)
	}

	return nil
}
