// Package report exports the release catalog, annotated with local
// installation status, as a static HTML page and a JSON document.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/clean-dependency-project/astudios/internal/bundle"
	"github.com/clean-dependency-project/astudios/internal/catalog"
	"github.com/clean-dependency-project/astudios/internal/installs"
	"github.com/clean-dependency-project/astudios/internal/platform"
)

// Output file names inside GenerateOptions.OutputDir.
const (
	IndexFile    = "index.html"
	ReleasesFile = "releases.json"
)

var ErrOutputDirRequired = errors.New("output directory is required")

// CatalogSource provides the release catalog. *feed.Loader implements it.
type CatalogSource interface {
	Load(ctx context.Context) (*catalog.Catalog, error)
}

// InstallationLister provides local installation status.
// *installs.Manager implements it.
type InstallationLister interface {
	List() ([]bundle.Installation, error)
	Active() (*bundle.Installation, error)
}

// Generator renders the catalog report.
type Generator struct {
	source   CatalogSource
	installs InstallationLister
	logger   *slog.Logger
}

// NewGenerator creates a Generator. installs may be nil, in which case no
// release is marked installed.
func NewGenerator(source CatalogSource, installs InstallationLister, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Generator{source: source, installs: installs, logger: logger}
}

// GenerateOptions contains options for report generation.
type GenerateOptions struct {
	OutputDir string
	DryRun    bool
}

// Result describes what Generate did.
type Result struct {
	Model     *SiteModel
	Written   []string
	Unchanged []string
}

// Generate loads the catalog and installations, builds the SiteModel and
// writes index.html and releases.json. Files whose content is already up to
// date are left untouched. In dry-run mode nothing is written.
func (g *Generator) Generate(ctx context.Context, opts GenerateOptions) (*Result, error) {
	if opts.OutputDir == "" {
		return nil, ErrOutputDirRequired
	}

	g.logger.Info("starting report generation", "output_dir", opts.OutputDir, "dry_run", opts.DryRun)

	cat, err := g.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	var installed []bundle.Installation
	var active *bundle.Installation
	if g.installs != nil {
		installed, err = g.installs.List()
		if err != nil {
			// A missing applications directory only means nothing is installed.
			g.logger.Warn("failed to list installations", "error", err)
		}
		active, _ = g.installs.Active()
	}

	model := BuildModel(cat, installed, active)
	g.logger.Info("built report model", "releases", model.Total, "channels", len(model.Channels), "installed", model.Installed)

	result := &Result{Model: model}
	if opts.DryRun {
		g.logger.Info("dry-run mode: skipping file writes")
		return result, nil
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	html, err := renderHTML(model)
	if err != nil {
		return nil, err
	}
	jsonData, err := renderJSON(model)
	if err != nil {
		return nil, err
	}

	for _, f := range []struct {
		name string
		data []byte
	}{
		{IndexFile, html},
		{ReleasesFile, jsonData},
	} {
		path := filepath.Join(opts.OutputDir, f.name)
		written, err := writeFileIfChanged(path, f.data, g.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.name, err)
		}
		if written {
			result.Written = append(result.Written, path)
		} else {
			result.Unchanged = append(result.Unchanged, path)
		}
	}

	g.logger.Info("report generation completed", "written", len(result.Written), "unchanged", len(result.Unchanged))
	return result, nil
}

// SiteModel is the complete report.
type SiteModel struct {
	FeedVersion string         `json:"feed_version"`
	Total       int            `json:"total"`
	Installed   int            `json:"installed"`
	Active      string         `json:"active,omitempty"`
	Channels    []ChannelModel `json:"channels"`
}

// ChannelModel groups the releases of one channel in feed order.
type ChannelModel struct {
	Name     string         `json:"name"`
	Label    string         `json:"label"`
	Releases []ReleaseModel `json:"releases"`
}

// ReleaseModel is one catalog entry with its local status.
type ReleaseModel struct {
	Name            string          `json:"name"`
	DisplayName     string          `json:"display_name"`
	Build           string          `json:"build"`
	Version         string          `json:"version"`
	Date            string          `json:"date"`
	PlatformBuild   string          `json:"platform_build,omitempty"`
	PlatformVersion string          `json:"platform_version,omitempty"`
	Installed       bool            `json:"installed"`
	Active          bool            `json:"active"`
	Downloads       []DownloadModel `json:"downloads"`
}

// DownloadModel is one artifact of a release.
type DownloadModel struct {
	Platform string `json:"platform"`
	Label    string `json:"label"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     string `json:"size"`
	SHA256   string `json:"sha256,omitempty"`
}

// channelOrder fixes the position of the known channels; anything else
// follows in order of first appearance.
var channelOrder = []catalog.Channel{
	catalog.ChannelRelease,
	catalog.ChannelBeta,
	catalog.ChannelCanary,
	catalog.ChannelRC,
	catalog.ChannelPatch,
}

// BuildModel groups the catalog by channel and marks installed and active
// releases.
func BuildModel(cat *catalog.Catalog, installed []bundle.Installation, active *bundle.Installation) *SiteModel {
	model := &SiteModel{}
	if cat == nil {
		return model
	}
	model.FeedVersion = cat.FeedVersion
	if active != nil {
		model.Active = active.Identifier()
	}

	title := cases.Title(language.English, cases.NoLower)
	byChannel := make(map[catalog.Channel]*ChannelModel)
	var seen []catalog.Channel

	for _, r := range cat.Releases {
		rm := ReleaseModel{
			Name:            r.Name,
			DisplayName:     r.DisplayName(),
			Build:           r.Build,
			Version:         r.Version,
			Date:            r.Date,
			PlatformBuild:   r.PlatformBuild,
			PlatformVersion: r.PlatformVersion,
			Active:          active != nil && installs.Matches(r, active.Version),
		}
		for _, inst := range installed {
			if installs.Matches(r, inst.Version) {
				rm.Installed = true
				break
			}
		}
		if rm.Installed {
			model.Installed++
		}
		for _, d := range r.Downloads {
			rm.Downloads = append(rm.Downloads, buildDownload(d, title))
		}

		ch, ok := byChannel[r.Channel]
		if !ok {
			label := title.String(string(r.Channel))
			if label == "" {
				label = "Other"
			}
			ch = &ChannelModel{Name: string(r.Channel), Label: label}
			byChannel[r.Channel] = ch
			seen = append(seen, r.Channel)
		}
		ch.Releases = append(ch.Releases, rm)
		model.Total++
	}

	rank := func(c catalog.Channel) int {
		for i, known := range channelOrder {
			if c == known {
				return i
			}
		}
		return len(channelOrder)
	}
	sort.SliceStable(seen, func(i, j int) bool { return rank(seen[i]) < rank(seen[j]) })

	for _, c := range seen {
		model.Channels = append(model.Channels, *byChannel[c])
	}
	return model
}

func buildDownload(d catalog.Download, title cases.Caser) DownloadModel {
	classifier := classifyLink(d.Link)
	return DownloadModel{
		Platform: classifier,
		Label:    title.String(strings.ReplaceAll(classifier, "-", " ")),
		Filename: filepath.Base(d.Link),
		URL:      d.Link,
		Size:     humanSize(d.Size),
		SHA256:   d.Checksum,
	}
}

// humanSize formats a byte count; sizes the feed already renders for humans
// ("1.4 GB") pass through.
func humanSize(raw string) string {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return formatBytes(n)
	}
	return raw
}

// classifyLink maps a download link onto a platform classifier, preferring
// the most specific marker of each platform.
func classifyLink(link string) string {
	platforms := platform.PredefinedPlatforms()
	for _, p := range platforms {
		if len(p.Markers) > 0 && strings.Contains(link, p.Markers[0]) {
			return p.Classifier
		}
	}
	for _, p := range platforms {
		if strings.Contains(link, p.DownloadName) {
			return p.OS
		}
	}
	return "other"
}
