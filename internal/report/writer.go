package report

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// writeFileIfChanged writes content to path only if it differs from what is
// already there, and reports whether it wrote.
func writeFileIfChanged(path string, content []byte, logger *slog.Logger) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create directory: %w", err)
	}

	if existing, err := os.ReadFile(path); err == nil && contentMatches(existing, content) {
		logger.Debug("file unchanged, skipping", "path", path)
		return false, nil
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return false, fmt.Errorf("failed to write file: %w", err)
	}

	logger.Debug("file written", "path", path)
	return true, nil
}

// contentMatches compares small files directly and larger ones by SHA-256.
func contentMatches(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) < 1024 {
		return bytes.Equal(a, b)
	}
	return sha256.Sum256(a) == sha256.Sum256(b)
}
