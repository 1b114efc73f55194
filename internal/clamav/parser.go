package clamav

import (
	"errors"
	"regexp"
	"strings"
)

// Sentinel errors
var (
	ErrNoThreatsInOutput = errors.New("malware detected but no threats found in output")
	ErrScanFailed        = errors.New("clamscan reported an error")
)

// versionPattern matches "ClamAV 1.4.1/27805/Mon Oct 27 09:50:30 2025".
var versionPattern = regexp.MustCompile(`ClamAV (\d+\.\d+\.\d+)/(\d+)/([A-Za-z]{3} [A-Za-z]{3}\s+\d+\s+\d+:\d+:\d+ \d{4})`)

// parseResult extracts scan results from clamscan output.
// Exit code 0 = clean, 1 = infected, 2+ = error
func parseResult(output []byte, exitCode int, version string) (Result, error) {
	result := Result{
		Clean: exitCode == 0,
		Metadata: Metadata{
			EngineVersion: version,
			DatabaseDate:  extractDatabaseDate(version),
		},
	}

	switch {
	case exitCode == 0:
		return result, nil
	case exitCode == 1:
		result.Threats = extractThreats(string(output))
		if len(result.Threats) == 0 {
			return result, ErrNoThreatsInOutput
		}
		return result, nil
	default:
		return result, ErrScanFailed
	}
}

// extractThreats finds all "FOUND" lines and extracts threat names.
// Format: "/scan/android-studio.dmg: Threat-Name FOUND". The path may itself
// contain colons, so the last ": " separates it from the threat.
func extractThreats(output string) []string {
	var threats []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasSuffix(line, " FOUND") {
			continue
		}
		idx := strings.LastIndex(line, ": ")
		if idx < 0 {
			continue
		}
		threat := strings.TrimSuffix(line[idx+2:], " FOUND")
		threats = append(threats, strings.TrimSpace(threat))
	}
	return threats
}

// extractDatabaseDate parses the virus database date from the version string.
func extractDatabaseDate(version string) string {
	if m := versionPattern.FindStringSubmatch(version); len(m) == 4 {
		return m[3]
	}
	return "unknown"
}

// extractEngineVersion returns the bare engine version, e.g. "1.4.1".
func extractEngineVersion(version string) string {
	if m := versionPattern.FindStringSubmatch(version); len(m) == 4 {
		return m[1]
	}
	return ""
}
