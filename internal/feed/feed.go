// Package feed fetches the Android Studio release feed published by
// JetBrains and serves it through a TTL-gated cache.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultURL is the JetBrains TeamCity artifact listing every Android
	// Studio release.
	DefaultURL = "https://teamcity.jetbrains.com/guestAuth/repository/download/AndroidStudioReleasesList/.lastSuccessful/android-studio-releases-list.xml"

	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is the default User-Agent header
	DefaultUserAgent = "astudios/0.1.0"

	// maxFeedSize caps the response body; the real feed is a few MB.
	maxFeedSize = 64 << 20
)

// Custom error types for better error handling
var (
	// ErrFeedNotFound indicates the feed URL returned 404
	ErrFeedNotFound = fmt.Errorf("release feed not found")

	// ErrInvalidResponse indicates the server rejected the request or
	// returned an unusable body
	ErrInvalidResponse = fmt.Errorf("invalid feed response")

	// ErrNetworkError indicates a transport failure or a server error
	ErrNetworkError = fmt.Errorf("network error")

	// ErrSignatureInvalid indicates the feed failed signature verification
	ErrSignatureInvalid = fmt.Errorf("feed signature verification failed")
)

// ErrAPIError represents a failed feed request
type ErrAPIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e ErrAPIError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("feed error for %s: %d %s", e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("feed error: %d %s", e.StatusCode, e.Message)
}

func (e ErrAPIError) Is(target error) bool {
	if target == ErrFeedNotFound && e.StatusCode == 404 {
		return true
	}
	if target == ErrInvalidResponse && e.StatusCode >= 400 && e.StatusCode < 500 {
		return true
	}
	if target == ErrNetworkError && (e.StatusCode >= 500 || e.StatusCode == 0) {
		return true
	}
	return false
}

// Client defines the interface for retrieving the raw release feed
type Client interface {
	// FetchReleases returns the feed document bytes
	FetchReleases(ctx context.Context) ([]byte, error)
}

// HTTPClient defines the interface for HTTP operations
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Verifier checks a detached signature over the feed bytes. gpg.RealKeyRing
// satisfies it.
type Verifier interface {
	VerifyDetached(message, signature []byte) error
}

// Config holds configuration for the feed client
type Config struct {
	URL        string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient HTTPClient

	// Verifier, when set, makes the client fetch SignatureURL and verify
	// the feed against it before returning.
	Verifier     Verifier
	SignatureURL string
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		URL:       DefaultURL,
		UserAgent: DefaultUserAgent,
		Timeout:   DefaultTimeout,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// client implements the Client interface
type client struct {
	config Config
}

// NewClient creates a new feed client
func NewClient(config Config) Client {
	if config.URL == "" {
		config.URL = DefaultURL
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{
			Timeout: config.Timeout,
		}
	}
	if config.Verifier != nil && config.SignatureURL == "" {
		config.SignatureURL = config.URL + ".sig"
	}

	return &client{config: config}
}

// FetchReleases downloads the feed and, when configured, verifies its
// detached signature
func (c *client) FetchReleases(ctx context.Context) ([]byte, error) {
	data, err := c.get(ctx, c.config.URL, "application/xml")
	if err != nil {
		return nil, err
	}

	if c.config.Verifier != nil {
		sig, err := c.get(ctx, c.config.SignatureURL, "application/pgp-signature")
		if err != nil {
			return nil, fmt.Errorf("failed to fetch feed signature: %w", err)
		}
		if err := c.config.Verifier.VerifyDetached(data, sig); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		}
	}

	return data, nil
}

func (c *client) get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return nil, ErrAPIError{
			StatusCode: 0,
			Message:    err.Error(),
			URL:        url,
		}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrAPIError{
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
			URL:        url,
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, ErrAPIError{
			StatusCode: 0,
			Message:    fmt.Sprintf("failed to read response: %v", err),
			URL:        url,
		}
	}

	return data, nil
}
