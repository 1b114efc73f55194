// Package catalog parses the Android Studio release feed into a queryable
// list of releases and resolves user queries against it.
package catalog

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"strings"

	"github.com/clean-dependency-project/astudios/internal/platform"
)

// Channel is the release channel as published in the feed.
type Channel string

const (
	ChannelRelease Channel = "Release"
	ChannelBeta    Channel = "Beta"
	ChannelCanary  Channel = "Canary"
	ChannelRC      Channel = "RC"
	ChannelPatch   Channel = "Patch"
)

// Download is one installer artifact of a release.
type Download struct {
	Link     string `json:"link" xml:"link"`
	Size     string `json:"size" xml:"size"`
	Checksum string `json:"checksum" xml:"checksum"`
}

// Release is a single entry of the release feed.
//
// Build uniquely identifies a release within one fetch; Version does not.
type Release struct {
	Name            string     `json:"name" xml:"name"`
	Build           string     `json:"build" xml:"build"`
	Version         string     `json:"version" xml:"version"`
	Channel         Channel    `json:"channel" xml:"channel"`
	PlatformBuild   string     `json:"platform_build" xml:"platformBuild"`
	PlatformVersion string     `json:"platform_version" xml:"platformVersion"`
	Date            string     `json:"date" xml:"date"`
	Downloads       []Download `json:"downloads" xml:"download"`
}

// Catalog holds the releases of one feed fetch in feed order.
type Catalog struct {
	FeedVersion string    `json:"feed_version"`
	Releases    []Release `json:"releases"`
}

// feedDocument mirrors the XML layout of the feed. A document with another
// root element fails to decode.
type feedDocument struct {
	XMLName xml.Name  `xml:"content"`
	Version string    `xml:"version,attr"`
	Items   []Release `xml:"item"`
}

// Parse decodes the XML release feed. Any malformed document or any item
// missing a required field fails the whole parse.
func Parse(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Source: SourceFeed, Reason: "empty document"}
	}

	var doc feedDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		var unexpected xml.UnmarshalError
		if errors.As(err, &unexpected) {
			return nil, &ParseError{Source: SourceFeed, Reason: "unexpected document structure", Cause: err}
		}
		return nil, &ParseError{Source: SourceFeed, Reason: "malformed XML", Cause: err}
	}
	if strings.TrimSpace(doc.Version) == "" {
		return nil, &ParseError{Source: SourceFeed, Reason: "unexpected document structure: missing version attribute"}
	}

	c := &Catalog{FeedVersion: doc.Version, Releases: doc.Items}
	if c.Releases == nil {
		c.Releases = []Release{}
	}
	if err := c.validate(SourceFeed); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseJSON decodes the cached form of a catalog written by Encode.
func ParseJSON(data []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, &ParseError{Source: SourceCache, Reason: "malformed JSON", Cause: err}
	}
	if strings.TrimSpace(c.FeedVersion) == "" || c.Releases == nil {
		return nil, &ParseError{Source: SourceCache, Reason: "unexpected document structure"}
	}
	if err := c.validate(SourceCache); err != nil {
		return nil, err
	}
	return &c, nil
}

// Encode returns the cache form of the catalog.
func (c *Catalog) Encode() ([]byte, error) {
	return json.Marshal(c)
}

func (c *Catalog) validate(source string) error {
	for i, r := range c.Releases {
		var missing string
		switch {
		case strings.TrimSpace(r.Name) == "":
			missing = "name"
		case strings.TrimSpace(r.Build) == "":
			missing = "build"
		case strings.TrimSpace(r.Version) == "":
			missing = "version"
		case strings.TrimSpace(string(r.Channel)) == "":
			missing = "channel"
		default:
			continue
		}
		return &ParseError{Source: source, Item: i, Field: missing, Reason: "missing required field"}
	}
	return nil
}

// Len returns the number of releases in the catalog.
func (c *Catalog) Len() int {
	return len(c.Releases)
}

// FilterByChannel keeps releases matching every enabled flag. The flags are
// independent predicates combined with AND, so enabling two exclusive
// channels yields an empty result. With no flag set every release is kept.
func (c *Catalog) FilterByChannel(releaseOnly, betaOnly, canaryOnly bool) []Release {
	out := make([]Release, 0, len(c.Releases))
	for _, r := range c.Releases {
		if releaseOnly && !r.IsRelease() {
			continue
		}
		if betaOnly && !r.IsBeta() {
			continue
		}
		if canaryOnly && !r.IsCanary() {
			continue
		}
		out = append(out, r)
	}
	return out
}

// VersionForBuild returns the version of the first release with the given
// build identifier.
func (c *Catalog) VersionForBuild(build string) (string, bool) {
	for _, r := range c.Releases {
		if r.Build == build {
			return r.Version, true
		}
	}
	return "", false
}

// IsRelease reports whether r is a stable release.
func (r Release) IsRelease() bool { return r.Channel == ChannelRelease }

// IsBeta reports whether r is a beta release.
func (r Release) IsBeta() bool { return r.Channel == ChannelBeta }

// IsCanary reports whether r is a canary build.
func (r Release) IsCanary() bool { return r.Channel == ChannelCanary }

// IsRC reports whether r is a release candidate.
func (r Release) IsRC() bool { return r.Channel == ChannelRC }

// IsPatch reports whether r is a patch release.
func (r Release) IsPatch() bool { return r.Channel == ChannelPatch }

// IsPrerelease reports whether r is a beta or canary build.
func (r Release) IsPrerelease() bool { return r.IsBeta() || r.IsCanary() }

// DisplayName returns the release name with a channel suffix such as
// " (Beta)". Stable and unrecognised channels carry no suffix.
func (r Release) DisplayName() string {
	switch r.Channel {
	case ChannelBeta, ChannelCanary, ChannelRC, ChannelPatch:
		return r.Name + " (" + string(r.Channel) + ")"
	default:
		return r.Name
	}
}

// DownloadFor returns the first download whose link contains marker.
func (r Release) DownloadFor(marker string) (Download, bool) {
	for _, d := range r.Downloads {
		if strings.Contains(d.Link, marker) {
			return d, true
		}
	}
	return Download{}, false
}

// DownloadForPlatform tries the platform markers in order of preference.
func (r Release) DownloadForPlatform(p platform.Platform) (Download, bool) {
	markers := p.Markers
	if len(markers) == 0 {
		markers = []string{p.DownloadName}
	}
	for _, m := range markers {
		if d, ok := r.DownloadFor(m); ok {
			return d, true
		}
	}
	return Download{}, false
}
