package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-github/v57/github"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		repository string
		wantErr    bool
	}{
		{name: "authenticated", token: "ghp_test_token_123", repository: "owner/repo"},
		{name: "anonymous", token: "", repository: "owner/repo"},
		{name: "no slash", token: "t", repository: "ownerrepo", wantErr: true},
		{name: "too many parts", token: "t", repository: "owner/repo/extra", wantErr: true},
		{name: "empty owner", repository: "/repo", wantErr: true},
		{name: "empty repo", repository: "owner/", wantErr: true},
		{name: "empty repository", repository: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.token, tt.repository)

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRepo) {
					t.Errorf("NewClient() error = %v, want ErrInvalidRepo", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient() unexpected error: %v", err)
			}
			if client.Repository() != tt.repository {
				t.Errorf("Repository() = %q, want %q", client.Repository(), tt.repository)
			}
		})
	}
}

func TestParseRepository(t *testing.T) {
	tests := []struct {
		name      string
		repo      string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{name: "valid repository", repo: "owner/repo", wantOwner: "owner", wantRepo: "repo"},
		{name: "valid with whitespace", repo: " owner / repo ", wantOwner: "owner", wantRepo: "repo"},
		{name: "invalid - no slash", repo: "ownerrepo", wantErr: true},
		{name: "invalid - only slash", repo: "/", wantErr: true},
		{name: "invalid - empty string", repo: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := parseRepository(tt.repo)

			if tt.wantErr {
				if err == nil {
					t.Errorf("parseRepository() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRepository() unexpected error: %v", err)
			}
			if owner != tt.wantOwner || repo != tt.wantRepo {
				t.Errorf("parseRepository() = %q, %q; want %q, %q", owner, repo, tt.wantOwner, tt.wantRepo)
			}
		})
	}
}

func TestClient_LatestRelease(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		response   *github.RepositoryRelease
		want       Release
		wantErr    error
		errContain string
	}{
		{
			name:       "latest release",
			statusCode: http.StatusOK,
			response: &github.RepositoryRelease{
				TagName: github.String("v0.2.0"),
				Name:    github.String("astudios 0.2.0"),
				HTMLURL: github.String("https://github.com/owner/repo/releases/tag/v0.2.0"),
			},
			want: Release{
				Tag:  "v0.2.0",
				Name: "astudios 0.2.0",
				URL:  "https://github.com/owner/repo/releases/tag/v0.2.0",
			},
		},
		{
			name:       "no releases",
			statusCode: http.StatusNotFound,
			wantErr:    ErrReleaseNotFound,
		},
		{
			name:       "server error",
			statusCode: http.StatusInternalServerError,
			errContain: "failed to get latest release of owner/repo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/repos/owner/repo/releases/latest" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.statusCode)
				if tt.response != nil {
					_ = json.NewEncoder(w).Encode(tt.response)
				} else {
					_, _ = w.Write([]byte(`{"message":"Not Found"}`))
				}
			}))
			defer server.Close()

			client, err := NewClient("", "owner/repo", WithHTTPClient(server.Client()), WithBaseURL(server.URL))
			if err != nil {
				t.Fatalf("NewClient() error: %v", err)
			}

			got, err := client.LatestRelease(context.Background())
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("LatestRelease() error = %v, want %v", err, tt.wantErr)
				}
			case tt.errContain != "":
				if err == nil || !strings.Contains(err.Error(), tt.errContain) {
					t.Errorf("LatestRelease() error = %v, want error containing %q", err, tt.errContain)
				}
			default:
				if err != nil {
					t.Fatalf("LatestRelease() unexpected error: %v", err)
				}
				if got != tt.want {
					t.Errorf("LatestRelease() = %+v, want %+v", got, tt.want)
				}
			}
		})
	}
}

func TestNewClient_BaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
		wantErr bool
	}{
		{name: "default", baseURL: "", want: "https://api.github.com/"},
		{name: "enterprise", baseURL: "https://ghe.example.com/api/v3", want: "https://ghe.example.com/api/v3/"},
		{name: "trailing slash kept", baseURL: "http://127.0.0.1:8080/", want: "http://127.0.0.1:8080/"},
		{name: "relative", baseURL: "/api/v3", wantErr: true},
		{name: "wrong scheme", baseURL: "ftp://ghe.example.com/", wantErr: true},
		{name: "unparseable", baseURL: "http://[::1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient("", "owner/repo", WithBaseURL(tt.baseURL))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidBaseURL) {
					t.Errorf("NewClient() error = %v, want ErrInvalidBaseURL", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient() unexpected error: %v", err)
			}
			if got := client.client.BaseURL.String(); got != tt.want {
				t.Errorf("BaseURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToRelease_Nil(t *testing.T) {
	if _, err := toRelease(nil); !errors.Is(err, ErrNilRelease) {
		t.Errorf("toRelease(nil) error = %v, want ErrNilRelease", err)
	}
}
