package catalog

import (
	"errors"
	"strings"
	"testing"
)

func TestFind_Cascade(t *testing.T) {
	c := newTestCatalog(t)

	tests := []struct {
		name      string
		query     string
		wantBuild string
		wantStage Stage
	}{
		{
			name:      "bare version picks the first entry in feed order",
			query:     "2023.3.1",
			wantBuild: "AI-233.14475.28.2331.11486339",
			wantStage: StageExactVersion,
		},
		{
			name:      "version with canary channel",
			query:     "2023.3.1 Canary",
			wantBuild: "AI-233.14475.28.2331.11486339",
			wantStage: StageName,
		},
		{
			name:      "version with release channel",
			query:     "2023.3.1 release",
			wantBuild: "AI-233.14808.21.2331.11709847",
			wantStage: StageChannel,
		},
		{
			name:      "version substring",
			query:     "2023.2",
			wantBuild: "AI-232.10227.8.2321.11393454",
			wantStage: StageVersionSubstring,
		},
		{
			name:      "codename",
			query:     "giraffe",
			wantBuild: "AI-223.8836.35.2231.11090377",
			wantStage: StageName,
		},
		{
			name:      "build number",
			query:     "11255304",
			wantBuild: "AI-231.9392.1.2311.11255304",
			wantStage: StageBuild,
		},
		{
			name:      "channel and build fragment",
			query:     "patch ai-223.8836",
			wantBuild: "AI-223.8836.35.2231.11090377",
			wantStage: StageCombined,
		},
		{
			name:      "extra build token is ignored by default",
			query:     "2023.3.1 Release 99999",
			wantBuild: "AI-233.14808.21.2331.11709847",
			wantStage: StageChannel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := c.FindWithOptions(tt.query, FindOptions{})
			if err != nil {
				t.Fatalf("FindWithOptions(%q) unexpected error: %v", tt.query, err)
			}
			if m.Release.Build != tt.wantBuild {
				t.Errorf("FindWithOptions(%q) build = %s, want %s", tt.query, m.Release.Build, tt.wantBuild)
			}
			if m.Stage != tt.wantStage {
				t.Errorf("FindWithOptions(%q) stage = %s, want %s", tt.query, m.Stage, tt.wantStage)
			}

			// Find is deterministic and agrees with FindWithOptions
			for i := 0; i < 3; i++ {
				r, err := c.Find(tt.query)
				if err != nil || r.Build != tt.wantBuild {
					t.Fatalf("Find(%q) run %d = %s, %v", tt.query, i, r.Build, err)
				}
			}
		})
	}
}

func TestFind_ChannelQualifiedStage(t *testing.T) {
	c := &Catalog{Releases: []Release{
		{Name: "Android Studio Iguana", Build: "AI-233.1.1", Version: "2023.3.1", Channel: ChannelCanary},
		{Name: "Android Studio Iguana", Build: "AI-233.9.9", Version: "2023.3.1", Channel: ChannelRelease},
	}}

	tests := []struct {
		query     string
		wantBuild string
	}{
		{"2023.3.1 Canary", "AI-233.1.1"},
		{"2023.3.1 release", "AI-233.9.9"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			m, err := c.FindWithOptions(tt.query, FindOptions{})
			if err != nil {
				t.Fatalf("FindWithOptions() unexpected error: %v", err)
			}
			if m.Release.Build != tt.wantBuild || m.Stage != StageChannel {
				t.Errorf("FindWithOptions(%q) = %s at %s, want %s at %s", tt.query, m.Release.Build, m.Stage, tt.wantBuild, StageChannel)
			}
		})
	}
}

func TestFind_ExactBeatsSubstring(t *testing.T) {
	c := &Catalog{Releases: []Release{
		{Name: "Android Studio A", Build: "AI-1.10", Version: "2023.1.10", Channel: ChannelRelease},
		{Name: "Android Studio B", Build: "AI-1.1", Version: "2023.1.1", Channel: ChannelRelease},
	}}

	r, err := c.Find("2023.1.1")
	if err != nil {
		t.Fatalf("Find() unexpected error: %v", err)
	}
	if r.Version != "2023.1.1" {
		t.Errorf("Find(2023.1.1) = %s, want the exact match even though a substring match comes first", r.Version)
	}
}

func TestFind_ExactStageIsCaseSensitive(t *testing.T) {
	c := &Catalog{Releases: []Release{
		{Name: "Android Studio Ladybug | 2024.2.1 Feature Drop", Build: "AI-242.1", Version: "2024.2.1-fd", Channel: ChannelRelease},
		{Name: "Android Studio Ladybug FD", Build: "AI-242.2", Version: "2024.2.1-FD", Channel: ChannelRelease},
	}}

	m, err := c.FindWithOptions("2024.2.1-FD", FindOptions{})
	if err != nil {
		t.Fatalf("FindWithOptions() unexpected error: %v", err)
	}
	if m.Release.Build != "AI-242.2" || m.Stage != StageExactVersion {
		t.Errorf("FindWithOptions() = %s at %s, want AI-242.2 at exact_version", m.Release.Build, m.Stage)
	}
}

func TestFind_StrictBuild(t *testing.T) {
	c := newTestCatalog(t)

	if _, err := c.FindWithOptions("2023.3.1 Release 99999", FindOptions{StrictBuild: true}); !errors.Is(err, ErrVersionNotFound) {
		t.Errorf("strict FindWithOptions() error = %v, want ErrVersionNotFound", err)
	}

	m, err := c.FindWithOptions("2023.3.1 Release 11709847", FindOptions{StrictBuild: true})
	if err != nil {
		t.Fatalf("strict FindWithOptions() unexpected error: %v", err)
	}
	if m.Release.Build != "AI-233.14808.21.2331.11709847" || m.Stage != StageChannel {
		t.Errorf("strict FindWithOptions() = %s at %s", m.Release.Build, m.Stage)
	}
}

func TestFind_NotFound(t *testing.T) {
	c := newTestCatalog(t)

	for _, q := range []string{"Narwhal", "1999.1", "", "   "} {
		_, err := c.Find(q)
		if err == nil {
			t.Errorf("Find(%q) expected error", q)
			continue
		}
		if !errors.Is(err, ErrVersionNotFound) {
			t.Errorf("Find(%q) error = %v, want ErrVersionNotFound", q, err)
		}
		var nf *VersionNotFoundError
		if !errors.As(err, &nf) || nf.Query != q {
			t.Errorf("Find(%q) error should carry the query, got %v", q, err)
		}
		if !strings.Contains(err.Error(), "astudios list") {
			t.Errorf("Find(%q) error should hint at the list command: %v", q, err)
		}
	}
}

func TestLatest(t *testing.T) {
	c := newTestCatalog(t)

	r, err := c.LatestRelease()
	if err != nil || r.Build != "AI-233.14808.21.2331.11709847" {
		t.Errorf("LatestRelease() = %s, %v", r.Build, err)
	}

	r, err = c.LatestPrerelease()
	if err != nil || r.Build != "AI-233.14475.28.2331.11486339" {
		t.Errorf("LatestPrerelease() = %s, %v", r.Build, err)
	}

	onlyPatches := &Catalog{Releases: []Release{{Name: "x", Build: "AI-1", Version: "1", Channel: ChannelPatch}}}
	if _, err := onlyPatches.LatestRelease(); !errors.Is(err, ErrVersionNotFound) {
		t.Errorf("LatestRelease() on patch-only catalog error = %v", err)
	}
	if _, err := onlyPatches.LatestPrerelease(); !errors.Is(err, ErrVersionNotFound) {
		t.Errorf("LatestPrerelease() on patch-only catalog error = %v", err)
	}
}

func TestStage_String(t *testing.T) {
	if StageCombined.String() != "combined" || StageNone.String() != "none" {
		t.Errorf("Stage.String() mismatch")
	}
}
