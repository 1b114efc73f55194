// Package bundle reads version metadata out of installed Android Studio
// application bundles.
package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"howett.net/plist"

	"github.com/clean-dependency-project/astudios/internal/version"
)

const (
	// Extension every application bundle directory carries.
	Extension = ".app"

	// IdentifierMarker must appear in CFBundleIdentifier.
	IdentifierMarker = "android.studio"

	defaultProductName = "Android Studio"
	defaultProductCode = "AI"
)

// Sentinel errors
var (
	// ErrNotAnInstallation is a soft negative: the path is not an Android
	// Studio bundle. Directory scans skip such entries silently.
	ErrNotAnInstallation = errors.New("not an Android Studio installation")

	// ErrMetadataIO matches MetadataErrors caused by unreadable files.
	ErrMetadataIO = errors.New("failed to read bundle metadata")

	// ErrMetadataParse matches MetadataErrors caused by malformed content.
	ErrMetadataParse = errors.New("failed to parse bundle metadata")
)

// MetadataError reports a bundle whose metadata files are missing,
// unreadable or malformed.
type MetadataError struct {
	Path  string
	File  string
	Kind  error // ErrMetadataIO or ErrMetadataParse
	Cause error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("%v: %s in %s: %v", e.Kind, e.File, e.Path, e.Cause)
}

func (e *MetadataError) Unwrap() error {
	return e.Cause
}

func (e *MetadataError) Is(target error) bool {
	return target == e.Kind
}

// Version is the version metadata of one installed bundle. It is rebuilt
// from disk on every query.
type Version struct {
	ShortVersion string `json:"short_version"`
	BuildVersion string `json:"build_version"`
	ProductCode  string `json:"product_code"`
	BuildNumber  string `json:"build_number"`
	ProductName  string `json:"product_name"`
}

// DisplayVersion renders "short (build)".
func (v Version) DisplayVersion() string {
	return fmt.Sprintf("%s (%s)", v.ShortVersion, v.BuildVersion)
}

// Identifier is the unique identifier of an installed version.
func (v Version) Identifier() string {
	return v.BuildVersion
}

// Installation is an installed bundle and its parsed metadata.
type Installation struct {
	Path    string  `json:"path"`
	Version Version `json:"version"`
}

// DisplayName renders "<product name> <short version>".
func (i Installation) DisplayName() string {
	return i.Version.ProductName + " " + i.Version.ShortVersion
}

// Identifier is the build version of the installation.
func (i Installation) Identifier() string {
	return i.Version.Identifier()
}

// IsValid reports whether the bundle still exists on disk.
func (i Installation) IsValid() bool {
	info, err := os.Stat(filepath.Join(i.Path, "Contents"))
	return err == nil && info.IsDir()
}

// ChannelHint guesses the release channel from the bundle's file name.
func (i Installation) ChannelHint() string {
	name := filepath.Base(i.Path)
	for _, hint := range []string{"Patch", "Feature Drop", "Beta", "Canary", "RC"} {
		if strings.Contains(name, hint) {
			return hint
		}
	}
	return "Release"
}

// VersionLookup resolves a build identifier to a catalog version.
type VersionLookup func(build string) (string, bool)

// DetailedVersion returns the catalog version for the installation's build
// when lookup knows it, otherwise the short version.
func (i Installation) DetailedVersion(lookup VersionLookup) string {
	if lookup != nil {
		if v, ok := lookup(i.Version.BuildVersion); ok {
			return v
		}
	}
	return i.Version.ShortVersion
}

// EnhancedDisplayName renders "<product name> <detailed version> (<channel>)".
func (i Installation) EnhancedDisplayName(lookup VersionLookup) string {
	return fmt.Sprintf("%s %s (%s)", i.Version.ProductName, i.DetailedVersion(lookup), i.ChannelHint())
}

// Compare orders installations by build version, then short version, then
// the remaining fields. Version strings compare by numeric segments.
func Compare(a, b Installation) int {
	if c := version.CompareBuild(a.Version.BuildVersion, b.Version.BuildVersion); c != 0 {
		return c
	}
	if c := version.Compare(a.Version.ShortVersion, b.Version.ShortVersion); c != 0 {
		return c
	}
	for _, pair := range [][2]string{
		{a.Version.ProductCode, b.Version.ProductCode},
		{a.Version.BuildNumber, b.Version.BuildNumber},
		{a.Version.ProductName, b.Version.ProductName},
		{a.Path, b.Path},
	} {
		if c := strings.Compare(pair[0], pair[1]); c != 0 {
			return c
		}
	}
	return 0
}

// Reader extracts Installations from bundle directories.
type Reader struct{}

// NewReader creates a bundle reader.
func NewReader() *Reader {
	return &Reader{}
}

type infoPlist struct {
	ShortVersion  string `plist:"CFBundleShortVersionString"`
	BundleVersion string `plist:"CFBundleVersion"`
	Identifier    string `plist:"CFBundleIdentifier"`
}

type productInfo struct {
	Name        *string `json:"name"`
	Version     *string `json:"version"`
	BuildNumber *string `json:"buildNumber"`
}

// TryRead extracts the installation at path.
//
// It returns ErrNotAnInstallation when path does not exist, is not an
// application bundle, or belongs to a different application. Missing or
// malformed metadata files yield a *MetadataError.
func (r *Reader) TryRead(path string) (Installation, error) {
	if filepath.Ext(path) != Extension {
		return Installation{}, ErrNotAnInstallation
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Installation{}, ErrNotAnInstallation
		}
		return Installation{}, &MetadataError{Path: path, File: filepath.Base(path), Kind: ErrMetadataIO, Cause: err}
	}

	info, err := readInfoPlist(path)
	if err != nil {
		return Installation{}, err
	}
	if !strings.Contains(info.Identifier, IdentifierMarker) {
		return Installation{}, ErrNotAnInstallation
	}

	product, err := readProductInfo(path)
	if err != nil {
		return Installation{}, err
	}

	name := defaultProductName
	if product.Name != nil {
		name = *product.Name
	}
	buildNumber := *product.Version
	if product.BuildNumber != nil {
		buildNumber = *product.BuildNumber
	}

	return Installation{
		Path: path,
		Version: Version{
			ShortVersion: info.ShortVersion,
			BuildVersion: info.BundleVersion,
			ProductCode:  version.ProductCode(*product.Version, defaultProductCode),
			BuildNumber:  buildNumber,
			ProductName:  name,
		},
	}, nil
}

func readInfoPlist(bundlePath string) (infoPlist, error) {
	const file = "Contents/Info.plist"

	data, err := os.ReadFile(filepath.Join(bundlePath, file))
	if err != nil {
		return infoPlist{}, &MetadataError{Path: bundlePath, File: file, Kind: ErrMetadataIO, Cause: err}
	}

	var info infoPlist
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return infoPlist{}, &MetadataError{Path: bundlePath, File: file, Kind: ErrMetadataParse, Cause: err}
	}
	if info.ShortVersion == "" {
		return infoPlist{}, &MetadataError{Path: bundlePath, File: file, Kind: ErrMetadataParse, Cause: errors.New("CFBundleShortVersionString not found")}
	}
	if info.BundleVersion == "" {
		return infoPlist{}, &MetadataError{Path: bundlePath, File: file, Kind: ErrMetadataParse, Cause: errors.New("CFBundleVersion not found")}
	}
	return info, nil
}

func readProductInfo(bundlePath string) (productInfo, error) {
	const file = "Contents/Resources/product-info.json"

	data, err := os.ReadFile(filepath.Join(bundlePath, file))
	if err != nil {
		return productInfo{}, &MetadataError{Path: bundlePath, File: file, Kind: ErrMetadataIO, Cause: err}
	}

	var product productInfo
	if err := json.Unmarshal(data, &product); err != nil {
		return productInfo{}, &MetadataError{Path: bundlePath, File: file, Kind: ErrMetadataParse, Cause: err}
	}
	if product.Version == nil {
		return productInfo{}, &MetadataError{Path: bundlePath, File: file, Kind: ErrMetadataParse, Cause: errors.New("version not found")}
	}
	return product, nil
}
