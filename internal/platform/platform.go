// Package platform maps the host system onto the platform markers used in
// Android Studio download links.
package platform

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform represents a target OS/Architecture combination
type Platform struct {
	OS           string   // windows, linux, mac
	Arch         string   // x64, aarch64
	FileExt      string   // dmg, exe, zip, tar.gz
	DownloadName string   // marker every download link for this OS contains
	Classifier   string   // os-arch
	Markers      []string // link markers in order of preference
}

// PredefinedPlatforms returns the platforms the release feed publishes artifacts for
func PredefinedPlatforms() []Platform {
	return []Platform{
		{OS: "mac", Arch: "aarch64", FileExt: "dmg", DownloadName: "mac", Classifier: "mac-aarch64", Markers: []string{"mac_arm", "mac"}},
		{OS: "mac", Arch: "x64", FileExt: "dmg", DownloadName: "mac", Classifier: "mac-x64", Markers: []string{"mac.dmg", "mac"}},
		{OS: "windows", Arch: "x64", FileExt: "exe", DownloadName: "windows", Classifier: "windows-x64", Markers: []string{"windows.exe", "windows"}},
		{OS: "linux", Arch: "x64", FileExt: "tar.gz", DownloadName: "linux", Classifier: "linux-x64", Markers: []string{"linux"}},
	}
}

// FindPlatform finds a platform by its classifier or bare OS name
func FindPlatform(platformStr string) (Platform, error) {
	for _, p := range PredefinedPlatforms() {
		if p.Classifier == platformStr {
			return p, nil
		}
	}

	// A bare OS name selects the first predefined architecture for it
	name := strings.ToLower(platformStr)
	if name == "darwin" || name == "macos" {
		name = "mac"
	}
	for _, p := range PredefinedPlatforms() {
		if p.OS == name {
			return p, nil
		}
	}

	return Platform{}, fmt.Errorf("unknown platform: %s", platformStr)
}

// CurrentPlatform returns the platform for the current system
func CurrentPlatform() Platform {
	return platformFor(runtime.GOOS, runtime.GOARCH)
}

func platformFor(goos, goarch string) Platform {
	os := mapOS(goos)
	arch := mapArch(goarch)

	for _, p := range PredefinedPlatforms() {
		if p.OS == os && p.Arch == arch {
			return p
		}
	}

	// Fallback: construct platform if not in predefined list
	return buildPlatform(os, arch)
}

// IsMac reports whether artifacts for this platform are disk images that
// can be installed into an Applications directory.
func (p Platform) IsMac() bool {
	return p.OS == "mac"
}

// mapOS converts Go's GOOS to our platform OS naming
func mapOS(goos string) string {
	switch goos {
	case "windows":
		return "windows"
	case "darwin", "mac":
		return "mac"
	default:
		return "linux"
	}
}

// mapArch converts Go's GOARCH to our platform architecture naming
func mapArch(goarch string) string {
	switch goarch {
	case "arm64":
		return "aarch64"
	default:
		return "x64"
	}
}

// buildPlatform constructs a Platform from OS and architecture strings
func buildPlatform(os, arch string) Platform {
	fileExt := "tar.gz"
	switch os {
	case "windows":
		fileExt = "exe"
	case "mac":
		fileExt = "dmg"
	}

	return Platform{
		OS:           os,
		Arch:         arch,
		FileExt:      fileExt,
		DownloadName: os,
		Classifier:   fmt.Sprintf("%s-%s", os, arch),
		Markers:      []string{os},
	}
}
