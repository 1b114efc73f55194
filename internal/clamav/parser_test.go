package clamav

import (
	"errors"
	"testing"
)

func TestExtractThreats(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []string
	}{
		{
			name:   "single threat",
			output: "/scan: Eicar-Signature FOUND",
			want:   []string{"Eicar-Signature"},
		},
		{
			name: "multiple threats inside an archive",
			output: `/scan/Android Studio.app/Contents/a.jar: Win.Trojan.Agent FOUND
/scan/Android Studio.app/Contents/b.so: Unix.Malware.Test FOUND`,
			want: []string{"Win.Trojan.Agent", "Unix.Malware.Test"},
		},
		{
			name:   "path containing a colon",
			output: "/Users/dev/Downloads/a:b.dmg: Eicar-Signature FOUND",
			want:   []string{"Eicar-Signature"},
		},
		{
			name:   "clean file",
			output: "/scan: OK",
			want:   nil,
		},
		{
			name:   "empty output",
			output: "",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractThreats(tt.output)
			if len(got) != len(tt.want) {
				t.Fatalf("extractThreats() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("extractThreats()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestExtractDatabaseDate(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"ClamAV 1.5.1/27805/Mon Oct 27 09:50:30 2025", "Mon Oct 27 09:50:30 2025"},
		{"ClamAV 1.4.1/27400/Tue Sep  3 08:35:12 2024", "Tue Sep  3 08:35:12 2024"},
		{"ClamAV 1.4.1", "unknown"},
		{"unknown", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			if got := extractDatabaseDate(tt.version); got != tt.want {
				t.Errorf("extractDatabaseDate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMetadata_Engine(t *testing.T) {
	if got := (Metadata{EngineVersion: "ClamAV 1.5.1/27805/Mon Oct 27 09:50:30 2025"}).Engine(); got != "ClamAV 1.5.1" {
		t.Errorf("Engine() = %q, want ClamAV 1.5.1", got)
	}
	if got := (Metadata{EngineVersion: "unknown"}).Engine(); got != "unknown" {
		t.Errorf("Engine() = %q, want unknown", got)
	}
}

func TestParseResult(t *testing.T) {
	const version = "ClamAV 1.5.1/27805/Mon Oct 27 09:50:30 2025"

	tests := []struct {
		name      string
		output    string
		exitCode  int
		wantClean bool
		wantErr   error
		threats   int
	}{
		{"clean", "/scan: OK", 0, true, nil, 0},
		{"infected", "/scan: Eicar-Signature FOUND", 1, false, nil, 1},
		{"infected without threat lines", "garbage", 1, false, ErrNoThreatsInOutput, 0},
		{"scan error", "ERROR: Can't open file", 2, false, ErrScanFailed, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseResult([]byte(tt.output), tt.exitCode, version)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("parseResult() error = %v, want %v", err, tt.wantErr)
			}
			if result.Clean != tt.wantClean {
				t.Errorf("parseResult() Clean = %v, want %v", result.Clean, tt.wantClean)
			}
			if len(result.Threats) != tt.threats {
				t.Errorf("parseResult() Threats = %v, want %d", result.Threats, tt.threats)
			}
			if result.Metadata.DatabaseDate != "Mon Oct 27 09:50:30 2025" {
				t.Errorf("parseResult() DatabaseDate = %q", result.Metadata.DatabaseDate)
			}
		})
	}
}

func TestResult_Status(t *testing.T) {
	if got := (Result{Clean: true}).Status(); got != "clean" {
		t.Errorf("Status() = %q", got)
	}
	if got := (Result{Threats: []string{"A", "B"}}).Status(); got != "infected: A, B" {
		t.Errorf("Status() = %q", got)
	}
}
