package bundle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"howett.net/plist"
)

const infoPlistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>CFBundleIdentifier</key>
	<string>%s</string>
	<key>CFBundleShortVersionString</key>
	<string>%s</string>
	<key>CFBundleVersion</key>
	<string>%s</string>
</dict>
</plist>
`

// writeBundle lays out a fake application bundle under dir. An empty
// plistData or productJSON leaves the corresponding file out.
func writeBundle(t *testing.T, dir, name string, plistData []byte, productJSON string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	resources := filepath.Join(path, "Contents", "Resources")
	if err := os.MkdirAll(resources, 0755); err != nil {
		t.Fatalf("failed to create bundle dirs: %v", err)
	}
	if plistData != nil {
		if err := os.WriteFile(filepath.Join(path, "Contents", "Info.plist"), plistData, 0644); err != nil {
			t.Fatalf("failed to write Info.plist: %v", err)
		}
	}
	if productJSON != "" {
		if err := os.WriteFile(filepath.Join(resources, "product-info.json"), []byte(productJSON), 0644); err != nil {
			t.Fatalf("failed to write product-info.json: %v", err)
		}
	}
	return path
}

func studioPlist(short, build string) []byte {
	return []byte(fmt.Sprintf(infoPlistTemplate, "com.google.android.studio", short, build))
}

func TestReader_TryRead(t *testing.T) {
	dir := t.TempDir()
	r := NewReader()

	path := writeBundle(t, dir, "Android Studio Koala.app",
		studioPlist("2024.1", "AI-241.18034.62.2411.12071903"),
		`{"name": "Android Studio", "version": "AI-241.18034.62", "buildNumber": "241.18034.62.2411.12071903"}`)

	inst, err := r.TryRead(path)
	if err != nil {
		t.Fatalf("TryRead() unexpected error: %v", err)
	}

	want := Version{
		ShortVersion: "2024.1",
		BuildVersion: "AI-241.18034.62.2411.12071903",
		ProductCode:  "AI",
		BuildNumber:  "241.18034.62.2411.12071903",
		ProductName:  "Android Studio",
	}
	if inst.Version != want {
		t.Errorf("TryRead() version = %+v, want %+v", inst.Version, want)
	}
	if inst.Path != path {
		t.Errorf("TryRead() path = %s, want %s", inst.Path, path)
	}
	if inst.DisplayName() != "Android Studio 2024.1" {
		t.Errorf("DisplayName() = %q", inst.DisplayName())
	}
	if inst.Version.DisplayVersion() != "2024.1 (AI-241.18034.62.2411.12071903)" {
		t.Errorf("DisplayVersion() = %q", inst.Version.DisplayVersion())
	}
	if inst.Identifier() != want.BuildVersion {
		t.Errorf("Identifier() = %q", inst.Identifier())
	}
	if !inst.IsValid() {
		t.Error("IsValid() = false for an existing bundle")
	}
}

func TestReader_TryRead_Defaults(t *testing.T) {
	dir := t.TempDir()

	path := writeBundle(t, dir, "Studio.app",
		studioPlist("2023.3", "AI-233.14808.21.2331.11709847"),
		`{"version": "2023.3.1"}`)

	inst, err := NewReader().TryRead(path)
	if err != nil {
		t.Fatalf("TryRead() unexpected error: %v", err)
	}
	if inst.Version.ProductName != "Android Studio" {
		t.Errorf("ProductName = %q, want default", inst.Version.ProductName)
	}
	if inst.Version.BuildNumber != "2023.3.1" {
		t.Errorf("BuildNumber = %q, want fallback to version", inst.Version.BuildNumber)
	}
	if inst.Version.ProductCode != "AI" {
		t.Errorf("ProductCode = %q, want AI when version has no separator", inst.Version.ProductCode)
	}
}

func TestReader_TryRead_BinaryPlist(t *testing.T) {
	dir := t.TempDir()

	data, err := plist.Marshal(map[string]string{
		"CFBundleIdentifier":         "com.google.android.studio-EAP",
		"CFBundleShortVersionString": "2025.1",
		"CFBundleVersion":            "AI-251.23774.435.2512.13464289",
	}, plist.BinaryFormat)
	if err != nil {
		t.Fatalf("failed to encode binary plist: %v", err)
	}
	path := writeBundle(t, dir, "Android Studio Preview.app", data, `{"version": "AI-251.23774.435"}`)

	inst, err := NewReader().TryRead(path)
	if err != nil {
		t.Fatalf("TryRead() unexpected error: %v", err)
	}
	if inst.Version.ShortVersion != "2025.1" {
		t.Errorf("ShortVersion = %q, want 2025.1", inst.Version.ShortVersion)
	}
}

func TestReader_TryRead_NotAnInstallation(t *testing.T) {
	dir := t.TempDir()

	other := writeBundle(t, dir, "Xcode.app",
		[]byte(fmt.Sprintf(infoPlistTemplate, "com.apple.dt.Xcode", "15.0", "22A240")),
		`{"version": "15.0"}`)
	plainDir := filepath.Join(dir, "Documents")
	if err := os.MkdirAll(plainDir, 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing path", filepath.Join(dir, "Missing.app")},
		{"wrong extension", plainDir},
		{"other application", other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader().TryRead(tt.path)
			if !errors.Is(err, ErrNotAnInstallation) {
				t.Errorf("TryRead() error = %v, want ErrNotAnInstallation", err)
			}
		})
	}
}

func TestReader_TryRead_MetadataErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		plist    []byte
		product  string
		wantKind error
	}{
		{
			name:     "missing Info.plist",
			plist:    nil,
			product:  `{"version": "1"}`,
			wantKind: ErrMetadataIO,
		},
		{
			name:     "garbage Info.plist",
			plist:    []byte("<plist><dict><key>oops"),
			product:  `{"version": "1"}`,
			wantKind: ErrMetadataParse,
		},
		{
			name:     "missing short version",
			plist:    studioPlist("", "AI-1"),
			product:  `{"version": "1"}`,
			wantKind: ErrMetadataParse,
		},
		{
			name:     "missing product-info.json",
			plist:    studioPlist("2024.1", "AI-1"),
			product:  "",
			wantKind: ErrMetadataIO,
		},
		{
			name:     "malformed product-info.json",
			plist:    studioPlist("2024.1", "AI-1"),
			product:  `{"version": `,
			wantKind: ErrMetadataParse,
		},
		{
			name:     "product-info.json without version",
			plist:    studioPlist("2024.1", "AI-1"),
			product:  `{"name": "Android Studio"}`,
			wantKind: ErrMetadataParse,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeBundle(t, dir, fmt.Sprintf("Broken %d.app", i), tt.plist, tt.product)

			_, err := NewReader().TryRead(path)
			if err == nil {
				t.Fatal("TryRead() expected a hard error")
			}
			if errors.Is(err, ErrNotAnInstallation) {
				t.Fatalf("TryRead() returned a soft negative for broken metadata: %v", err)
			}
			if !errors.Is(err, tt.wantKind) {
				t.Errorf("TryRead() error = %v, want kind %v", err, tt.wantKind)
			}
			var metaErr *MetadataError
			if !errors.As(err, &metaErr) || metaErr.Path != path {
				t.Errorf("TryRead() error should be a *MetadataError for %s, got %T", path, err)
			}
		})
	}
}

func TestInstallation_ChannelHint(t *testing.T) {
	tests := map[string]string{
		"/Applications/Android Studio Giraffe 2022.3.1 Patch 4.app":     "Patch",
		"/Applications/Android Studio Ladybug Feature Drop.app":             "Feature Drop",
		"/Applications/Android Studio Iguana 2023.2.1 Beta 2.app":         "Beta",
		"/Applications/Android Studio Jellyfish 2023.3.1 Canary 8.app": "Canary",
		"/Applications/Android Studio Hedgehog 2023.1.1 RC 3.app":         "RC",
		"/Applications/Android Studio.app":                                                       "Release",
	}
	for path, want := range tests {
		inst := Installation{Path: path}
		if got := inst.ChannelHint(); got != want {
			t.Errorf("ChannelHint(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestInstallation_EnhancedDisplayName(t *testing.T) {
	inst := Installation{
		Path: "/Applications/Android Studio Jellyfish 2023.3.1 Canary 8.app",
		Version: Version{
			ShortVersion: "2023.3",
			BuildVersion: "AI-233.14475.28.2331.11486339",
			ProductName:  "Android Studio",
		},
	}

	lookup := func(build string) (string, bool) {
		if build == "AI-233.14475.28.2331.11486339" {
			return "2023.3.1", true
		}
		return "", false
	}

	if got := inst.EnhancedDisplayName(lookup); got != "Android Studio 2023.3.1 (Canary)" {
		t.Errorf("EnhancedDisplayName() = %q", got)
	}
	if got := inst.EnhancedDisplayName(nil); got != "Android Studio 2023.3 (Canary)" {
		t.Errorf("EnhancedDisplayName(nil) = %q", got)
	}
}

// TestCompare_ShortVersionDoubleDigitMinor locks in numeric-segment ordering
// of short versions: 2025.10 is newer than 2025.9.
func TestCompare_ShortVersionDoubleDigitMinor(t *testing.T) {
	older := Installation{Path: "/a.app", Version: Version{ShortVersion: "2025.9", BuildVersion: "AI-1"}}
	newer := Installation{Path: "/b.app", Version: Version{ShortVersion: "2025.10", BuildVersion: "AI-1"}}

	if Compare(older, newer) >= 0 {
		t.Errorf("Compare(2025.9, 2025.10) = %d, want < 0", Compare(older, newer))
	}

	list := []Installation{older, newer}
	sort.Slice(list, func(i, j int) bool { return Compare(list[i], list[j]) > 0 })
	if list[0].Version.ShortVersion != "2025.10" {
		t.Errorf("descending sort put %s first, want 2025.10", list[0].Version.ShortVersion)
	}
}

func TestCompare_BuildVersionFirst(t *testing.T) {
	a := Installation{Version: Version{ShortVersion: "2025.9", BuildVersion: "AI-259.100.1"}}
	b := Installation{Version: Version{ShortVersion: "2025.1", BuildVersion: "AI-2510.5.1"}}

	if Compare(a, b) >= 0 {
		t.Errorf("Compare() should order by build version before short version")
	}
	if Compare(a, a) != 0 {
		t.Errorf("Compare(a, a) = %d, want 0", Compare(a, a))
	}
}
