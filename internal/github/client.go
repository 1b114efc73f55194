// Package github looks up astudios releases on GitHub so the CLI can tell
// users when a newer version is available.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
)

// DefaultRepository is where astudios releases are published.
const DefaultRepository = "clean-dependency-project/astudios"

// Sentinel errors for GitHub operations.
var (
	ErrInvalidRepo     = errors.New("repository must be in format 'owner/repo'")
	ErrNilRelease      = errors.New("github release cannot be nil")
	ErrReleaseNotFound = errors.New("release not found")
	ErrInvalidBaseURL  = errors.New("invalid GitHub API URL")
)

// Release is the subset of a GitHub release that the update check needs.
type Release struct {
	Tag        string
	Name       string
	URL        string
	Prerelease bool
}

// Client wraps the GitHub API client for release lookups.
type Client struct {
	client *github.Client
	owner  string
	repo   string
}

// Option customizes a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	baseURL    string
}

// WithHTTPClient sets the HTTP client used for API requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithBaseURL points the client at another API root, e.g. a GitHub
// Enterprise server's https://ghe.example.com/api/v3/. Empty keeps
// api.github.com.
func WithBaseURL(u string) Option {
	return func(o *clientOptions) { o.baseURL = u }
}

// NewClient creates a GitHub API client for the specified repository.
// The token is optional; unauthenticated requests are rate limited but work
// for public repositories. Repository must be in the format "owner/repo".
func NewClient(token, repository string, opts ...Option) (*Client, error) {
	owner, repo, err := parseRepository(repository)
	if err != nil {
		return nil, err
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	client := github.NewClient(o.httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if o.baseURL != "" {
		base, err := parseBaseURL(o.baseURL)
		if err != nil {
			return nil, err
		}
		client.BaseURL = base
	}

	return &Client{
		client: client,
		owner:  owner,
		repo:   repo,
	}, nil
}

// Repository returns "owner/repo".
func (c *Client) Repository() string {
	return c.owner + "/" + c.repo
}

// LatestRelease returns the newest published, non-draft release.
// Returns ErrReleaseNotFound if the repository has no releases.
func (c *Client) LatestRelease(ctx context.Context) (Release, error) {
	if c.client == nil || c.owner == "" || c.repo == "" {
		return Release{}, fmt.Errorf("client not initialized: use NewClient to create instances")
	}

	release, resp, err := c.client.Repositories.GetLatestRelease(ctx, c.owner, c.repo)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return Release{}, ErrReleaseNotFound
		}
		return Release{}, fmt.Errorf("failed to get latest release of %s: %w", c.Repository(), err)
	}

	return toRelease(release)
}

func toRelease(release *github.RepositoryRelease) (Release, error) {
	if release == nil {
		return Release{}, ErrNilRelease
	}
	return Release{
		Tag:        release.GetTagName(),
		Name:       release.GetName(),
		URL:        release.GetHTMLURL(),
		Prerelease: release.GetPrerelease(),
	}, nil
}

// parseBaseURL requires an absolute http(s) URL and adds the trailing slash
// go-github expects.
func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBaseURL, raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// parseRepository splits a repository string into owner and repo.
// Returns an error if the format is invalid.
func parseRepository(repository string) (owner, repo string, err error) {
	if repository == "" {
		return "", "", ErrInvalidRepo
	}

	parts := strings.Split(repository, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: got %s", ErrInvalidRepo, repository)
	}

	owner = strings.TrimSpace(parts[0])
	repo = strings.TrimSpace(parts[1])

	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("%w: owner or repo is empty", ErrInvalidRepo)
	}

	return owner, repo, nil
}
