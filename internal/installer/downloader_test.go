package installer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clean-dependency-project/astudios/internal/shell"
)

func TestHTTPDownloader_Download(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.dmg" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("disk image bytes"))
	}))
	defer server.Close()

	d := NewHTTPDownloader(server.Client(), "astudios/test", 0, nil)
	dir := t.TempDir()

	t.Run("success", func(t *testing.T) {
		dest := filepath.Join(dir, "nested", "a.dmg")
		size, err := d.Download(context.Background(), server.URL+"/a.dmg", dest)
		if err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		data, _ := os.ReadFile(dest)
		if size != int64(len("disk image bytes")) || string(data) != "disk image bytes" {
			t.Errorf("Download() size=%d content=%q", size, data)
		}
		if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
			t.Error("partial file left behind")
		}
	})

	t.Run("http error", func(t *testing.T) {
		dest := filepath.Join(dir, "missing.dmg")
		_, err := d.Download(context.Background(), server.URL+"/missing.dmg", dest)
		if err == nil || !strings.Contains(err.Error(), "status 404") {
			t.Errorf("Download() error = %v, want status 404", err)
		}
		if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
			t.Error("file created for failed download")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := d.Download(ctx, server.URL+"/a.dmg", filepath.Join(dir, "c.dmg")); !errors.Is(err, context.Canceled) {
			t.Errorf("Download() error = %v, want context.Canceled", err)
		}
	})
}

func TestBuildAria2Args(t *testing.T) {
	args := buildAria2Args("https://example.com/a.dmg", "/tmp/dl/a.dmg", DefaultAria2Options())

	expected := []string{
		"https://example.com/a.dmg",
		"--dir", "/tmp/dl",
		"--out", "a.dmg",
		"--max-connection-per-server=16",
		"--split=16",
		"--min-split-size=1M",
		"--continue=true",
		"--max-tries=3",
		"--retry-wait=5",
		"--human-readable=true",
		"--console-log-level=error",
	}

	if strings.Join(args, " ") != strings.Join(expected, " ") {
		t.Errorf("buildAria2Args() = %v, want %v", args, expected)
	}
}

func TestAria2Downloader_Download(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "a.dmg")

	t.Run("success", func(t *testing.T) {
		// aria2c itself is mocked, so create the file it would have written.
		if err := os.WriteFile(dest, []byte("12345"), 0644); err != nil {
			t.Fatal(err)
		}
		runner := shell.NewScriptedRunner()
		d := NewAria2Downloader(runner, "/opt/homebrew/bin/aria2c", Aria2Options{MaxConnections: 4}, nil)

		size, err := d.Download(context.Background(), "https://example.com/a.dmg", dest)
		if err != nil || size != 5 {
			t.Fatalf("Download() = %d, %v", size, err)
		}
		if !runner.Called("/opt/homebrew/bin/aria2c https://example.com/a.dmg --dir " + dir) {
			t.Errorf("unexpected calls: %v", runner.Calls)
		}
		if !runner.Called("/opt/homebrew/bin/aria2c https://example.com/a.dmg --dir " + dir + " --out a.dmg --max-connection-per-server=4 --split=4") {
			t.Errorf("connection count not passed through: %v", runner.Calls)
		}
	})

	t.Run("failure", func(t *testing.T) {
		runner := &shell.MockCommandRunner{Output: []byte("errorCode=3"), Err: &shell.ExitError{Code: 3}}
		d := NewAria2Downloader(runner, "aria2c", Aria2Options{}, nil)
		_, err := d.Download(context.Background(), "https://example.com/b.dmg", filepath.Join(dir, "b.dmg"))
		if err == nil || !strings.Contains(err.Error(), "errorCode=3") {
			t.Errorf("Download() error = %v", err)
		}
	})
}

func TestFindAria2(t *testing.T) {
	original := Aria2SearchPaths
	defer func() { Aria2SearchPaths = original }()
	Aria2SearchPaths = []string{"/nope/aria2c", "/opt/homebrew/bin/aria2c"}

	t.Run("second search path answers", func(t *testing.T) {
		runner := shell.NewScriptedRunner().On("/nope/aria2c", "", errors.New("no such file"))
		got, err := FindAria2(context.Background(), runner)
		if err != nil || got != "/opt/homebrew/bin/aria2c" {
			t.Errorf("FindAria2() = %q, %v", got, err)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		t.Setenv("PATH", t.TempDir())
		runner := &shell.MockCommandRunner{Err: errors.New("no such file")}
		if _, err := FindAria2(context.Background(), runner); !errors.Is(err, ErrAria2NotFound) {
			t.Errorf("FindAria2() error = %v, want ErrAria2NotFound", err)
		}
	})
}

func TestSelectDownloader(t *testing.T) {
	original := Aria2SearchPaths
	defer func() { Aria2SearchPaths = original }()
	Aria2SearchPaths = []string{"/opt/homebrew/bin/aria2c"}
	t.Setenv("PATH", t.TempDir())

	present := shell.NewScriptedRunner()
	absent := &shell.MockCommandRunner{Err: errors.New("no such file")}

	tests := []struct {
		name     string
		kind     string
		runner   shell.CommandRunner
		wantName string
		wantErr  error
	}{
		{"http", DownloaderHTTP, present, "http", nil},
		{"aria2 present", DownloaderAria2, present, "aria2 (/opt/homebrew/bin/aria2c)", nil},
		{"aria2 absent", DownloaderAria2, absent, "", ErrAria2NotFound},
		{"auto prefers aria2", DownloaderAuto, present, "aria2 (/opt/homebrew/bin/aria2c)", nil},
		{"auto falls back to http", "", absent, "http", nil},
		{"unknown", "curl", present, "", ErrUnknownDownloader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := SelectDownloader(context.Background(), DownloaderConfig{Kind: tt.kind}, tt.runner, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("SelectDownloader() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectDownloader() error = %v", err)
			}
			if d.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", d.Name(), tt.wantName)
			}
		})
	}
}
