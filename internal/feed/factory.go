package feed

import (
	"context"
	"fmt"
	"os"
	"time"
)

// ClientConfig represents configuration for creating feed clients
type ClientConfig struct {
	Provider     string
	URL          string
	UserAgent    string
	Timeout      time.Duration
	Verifier     Verifier
	SignatureURL string
}

// ClientFactory creates feed clients based on provider type
type ClientFactory interface {
	CreateClient(config ClientConfig) (Client, error)
}

// DefaultClientFactory implements ClientFactory
type DefaultClientFactory struct{}

// NewClientFactory creates a new client factory
func NewClientFactory() ClientFactory {
	return &DefaultClientFactory{}
}

// CreateClient creates a feed client based on the provider configuration.
// "jetbrains" (the default) fetches over HTTP, "file" reads a local feed
// document from URL, "mock" serves a small built-in feed.
func (f *DefaultClientFactory) CreateClient(clientConfig ClientConfig) (Client, error) {
	switch clientConfig.Provider {
	case "jetbrains", "":
		return f.createJetBrainsClient(clientConfig), nil
	case "file":
		if clientConfig.URL == "" {
			return nil, fmt.Errorf("file provider requires a path")
		}
		return &fileClient{path: clientConfig.URL}, nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", clientConfig.Provider)
	}
}

func (f *DefaultClientFactory) createJetBrainsClient(clientConfig ClientConfig) Client {
	config := DefaultConfig()

	if clientConfig.URL != "" {
		config.URL = clientConfig.URL
	}
	if clientConfig.UserAgent != "" {
		config.UserAgent = clientConfig.UserAgent
	}
	if clientConfig.Timeout > 0 {
		config.Timeout = clientConfig.Timeout
		config.HTTPClient = nil
	}
	config.Verifier = clientConfig.Verifier
	config.SignatureURL = clientConfig.SignatureURL

	return NewClient(config)
}

// fileClient serves a feed document from local disk, for offline use.
type fileClient struct {
	path string
}

func (c *fileClient) FetchReleases(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed file %s: %w", c.path, err)
	}
	return data, nil
}
