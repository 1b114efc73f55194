package catalog

import (
	"strings"
)

// Stage identifies which step of the lookup cascade produced a match.
type Stage int

const (
	StageNone Stage = iota
	StageExactVersion
	StageVersionSubstring
	StageName
	StageBuild
	StageChannel
	StageCombined
)

func (s Stage) String() string {
	switch s {
	case StageExactVersion:
		return "exact_version"
	case StageVersionSubstring:
		return "version_substring"
	case StageName:
		return "name"
	case StageBuild:
		return "build"
	case StageChannel:
		return "version_channel"
	case StageCombined:
		return "combined"
	default:
		return "none"
	}
}

// FindOptions tunes the lookup cascade.
type FindOptions struct {
	// StrictBuild makes a third whitespace separated token of a channel
	// query ("2023.3.1 Canary 8") a required build substring. By default
	// only the version and channel tokens are considered.
	StrictBuild bool
}

// Match is a release selected by the lookup cascade.
type Match struct {
	Release Release
	Stage   Stage
}

// Find resolves a free-form query to a single release.
//
// Stages are tried in order and each scans the catalog in feed order; the
// first stage with a hit wins and within it the first entry wins:
//
//  1. version equals the query exactly
//  2. version contains the query, ignoring case
//  3. name contains the query, ignoring case
//  4. build contains the query, ignoring case
//  5. "<version> <channel>": version contains the first token and the
//     channel equals the second, ignoring case
//  6. "<version> <channel> <build>" contains the query, ignoring case
func (c *Catalog) Find(query string) (Release, error) {
	m, err := c.FindWithOptions(query, FindOptions{})
	if err != nil {
		return Release{}, err
	}
	return m.Release, nil
}

// FindWithOptions is Find with explicit options; it also reports the stage
// that matched.
func (c *Catalog) FindWithOptions(query string, opts FindOptions) (Match, error) {
	if strings.TrimSpace(query) == "" {
		return Match{}, &VersionNotFoundError{Query: query}
	}

	lower := strings.ToLower(query)
	stages := []struct {
		stage Stage
		match func(Release) bool
	}{
		{StageExactVersion, func(r Release) bool {
			return r.Version == query
		}},
		{StageVersionSubstring, func(r Release) bool {
			return strings.Contains(strings.ToLower(r.Version), lower)
		}},
		{StageName, func(r Release) bool {
			return strings.Contains(strings.ToLower(r.Name), lower)
		}},
		{StageBuild, func(r Release) bool {
			return strings.Contains(strings.ToLower(r.Build), lower)
		}},
		{StageChannel, channelMatcher(query, opts)},
		{StageCombined, func(r Release) bool {
			combined := strings.ToLower(r.Version + " " + string(r.Channel) + " " + r.Build)
			return strings.Contains(combined, lower)
		}},
	}

	for _, s := range stages {
		if s.match == nil {
			continue
		}
		for _, r := range c.Releases {
			if s.match(r) {
				return Match{Release: r, Stage: s.stage}, nil
			}
		}
	}

	return Match{}, &VersionNotFoundError{Query: query}
}

// channelMatcher builds the stage 5 predicate, or nil when the query has
// fewer than two tokens.
func channelMatcher(query string, opts FindOptions) func(Release) bool {
	tokens := strings.Fields(query)
	if len(tokens) < 2 {
		return nil
	}
	version, channel := tokens[0], tokens[1]
	var build string
	if opts.StrictBuild && len(tokens) >= 3 {
		build = strings.ToLower(tokens[2])
	}
	return func(r Release) bool {
		if !strings.Contains(r.Version, version) || !strings.EqualFold(string(r.Channel), channel) {
			return false
		}
		return build == "" || strings.Contains(strings.ToLower(r.Build), build)
	}
}

// LatestRelease returns the first stable release in feed order.
func (c *Catalog) LatestRelease() (Release, error) {
	for _, r := range c.Releases {
		if r.IsRelease() {
			return r, nil
		}
	}
	return Release{}, &VersionNotFoundError{Query: "latest release"}
}

// LatestPrerelease returns the first beta or canary build in feed order.
func (c *Catalog) LatestPrerelease() (Release, error) {
	for _, r := range c.Releases {
		if r.IsPrerelease() {
			return r, nil
		}
	}
	return Release{}, &VersionNotFoundError{Query: "latest prerelease"}
}
