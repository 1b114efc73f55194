// Package clamav scans downloaded installer archives for malware using
// ClamAV, either in a Docker container or through a local clamscan.
package clamav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/clean-dependency-project/astudios/internal/shell"
)

// DefaultImage is the ClamAV image used by DockerScanner.
const DefaultImage = "clamav/clamav-debian:latest"

// Scan modes
const (
	ModeDocker = "docker"
	ModeLocal  = "local"
)

// Sentinel errors
var (
	ErrDockerUnavailable   = errors.New("docker command not available")
	ErrClamscanUnavailable = errors.New("clamscan command not available")
	ErrUnknownMode         = errors.New("unknown scan mode")
)

// Scanner scans files for malware.
type Scanner interface {
	Scan(ctx context.Context, path string) (Result, error)
}

// Result represents the outcome of a malware scan.
type Result struct {
	Clean    bool
	Threats  []string
	Metadata Metadata
}

// Status renders the result for download records.
func (r Result) Status() string {
	if r.Clean {
		return "clean"
	}
	return "infected: " + strings.Join(r.Threats, ", ")
}

// Metadata contains information about the scan environment.
type Metadata struct {
	EngineVersion string
	DatabaseDate  string
	ScanDuration  time.Duration
}

// Engine returns "ClamAV <version>" when the version string is recognised,
// otherwise the raw version string.
func (m Metadata) Engine() string {
	if v := extractEngineVersion(m.EngineVersion); v != "" {
		return "ClamAV " + v
	}
	return m.EngineVersion
}

// NewScanner returns the scanner for mode ("docker" or "local").
func NewScanner(mode string, runner shell.CommandRunner, image string, logger *slog.Logger) (Scanner, error) {
	switch mode {
	case ModeDocker, "":
		if image == "" {
			image = DefaultImage
		}
		return NewDockerScanner(runner, image, logger), nil
	case ModeLocal:
		return NewLocalScanner(runner, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
}

// DockerScanner implements Scanner using ClamAV in a Docker container.
type DockerScanner struct {
	runner shell.CommandRunner
	image  string
	logger *slog.Logger
}

// NewDockerScanner creates a scanner that uses ClamAV in Docker.
func NewDockerScanner(runner shell.CommandRunner, image string, logger *slog.Logger) *DockerScanner {
	return &DockerScanner{
		runner: runner,
		image:  image,
		logger: logger,
	}
}

// Scan scans a file for malware using ClamAV in a Docker container.
func (s *DockerScanner) Scan(ctx context.Context, path string) (Result, error) {
	start := time.Now()

	if !isDockerAvailable(ctx, s.runner) {
		return Result{}, ErrDockerUnavailable
	}

	if err := ensureImage(ctx, s.runner, s.image); err != nil {
		return Result{}, fmt.Errorf("failed to ensure image: %w", err)
	}

	version, err := s.getVersion(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("failed to get ClamAV version", "error", err)
		}
		version = "unknown"
	}

	// Get absolute path for volume mount
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get absolute path: %w", err)
	}

	output, err := s.runner.Run(ctx, "docker", buildDockerArgs(s.image, absPath, "/scan")...)
	return finish(output, err, version, start)
}

// getVersion retrieves the ClamAV version from the container.
func (s *DockerScanner) getVersion(ctx context.Context) (string, error) {
	output, err := s.runner.Run(ctx, "docker", "run", "--rm", s.image, "clamscan", "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// LocalScanner implements Scanner using a clamscan binary on PATH.
type LocalScanner struct {
	runner shell.CommandRunner
	logger *slog.Logger
}

// NewLocalScanner creates a scanner that runs clamscan directly.
func NewLocalScanner(runner shell.CommandRunner, logger *slog.Logger) *LocalScanner {
	return &LocalScanner{runner: runner, logger: logger}
}

// Scan scans a file for malware with the local clamscan.
func (s *LocalScanner) Scan(ctx context.Context, path string) (Result, error) {
	start := time.Now()

	versionOut, err := s.runner.Run(ctx, "clamscan", "--version")
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrClamscanUnavailable, err)
	}
	version := strings.TrimSpace(string(versionOut))

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get absolute path: %w", err)
	}

	output, err := s.runner.Run(ctx, "clamscan", "--stdout", "--no-summary", absPath)
	return finish(output, err, version, start)
}

// finish turns the clamscan invocation outcome into a Result.
func finish(output []byte, runErr error, version string, start time.Time) (Result, error) {
	exitCode := 0
	if runErr != nil {
		exitCode = shell.ExitCode(runErr)
		if exitCode < 0 {
			// Non-exit error (e.g., command not found, context cancelled)
			return Result{}, fmt.Errorf("failed to run clamscan: %w", runErr)
		}
	}

	result, err := parseResult(output, exitCode, version)
	if err != nil {
		return result, err
	}
	result.Metadata.ScanDuration = time.Since(start)
	return result, nil
}

// isDockerAvailable checks if the docker command is available.
func isDockerAvailable(ctx context.Context, runner shell.CommandRunner) bool {
	_, err := runner.Run(ctx, "docker", "--version")
	return err == nil
}

// ensureImage ensures the ClamAV image is available locally.
func ensureImage(ctx context.Context, runner shell.CommandRunner, image string) error {
	if _, err := runner.Run(ctx, "docker", "image", "inspect", image); err == nil {
		return nil
	}

	if _, err := runner.Run(ctx, "docker", "pull", image); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", image, err)
	}

	return nil
}

// buildDockerArgs constructs arguments for docker run command.
func buildDockerArgs(image, hostPath, containerPath string) []string {
	return []string{
		"run",
		"--rm",                                                 // Remove container after scan
		"-v", fmt.Sprintf("%s:%s:ro", hostPath, containerPath), // Mount as read-only
		image,
		"clamscan",
		"--stdout",
		containerPath,
	}
}
