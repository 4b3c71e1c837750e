package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func infos(paths ...string) []ArchiveInfo {
	out := make([]ArchiveInfo, len(paths))
	for i, p := range paths {
		out[i] = ArchiveInfo{Path: p, Size: 100}
	}
	return out
}

func paths(archives []ArchiveInfo) []string {
	out := make([]string, len(archives))
	for i, a := range archives {
		out[i] = a.Path
	}
	return out
}

func equalPaths(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCountPolicy(t *testing.T) {
	tests := []struct {
		name string
		max  int
		want []string
	}{
		{"under limit", 5, []string{"a", "b", "c"}},
		{"at limit", 3, []string{"a", "b", "c"}},
		{"over limit", 2, []string{"a", "b"}},
		{"zero", 0, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := paths((&CountPolicy{MaxCount: tt.max}).Apply(infos("a", "b", "c")))
			if !equalPaths(got, tt.want) {
				t.Errorf("Apply() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAgePolicy(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	archives := []ArchiveInfo{
		{Path: "new", CreatedAt: now.Add(-time.Hour)},
		{Path: "week", CreatedAt: now.Add(-6 * 24 * time.Hour)},
		{Path: "old", CreatedAt: now.Add(-40 * 24 * time.Hour)},
	}
	p := &AgePolicy{MaxAge: 7 * 24 * time.Hour, Now: func() time.Time { return now }}

	got := paths(p.Apply(archives))
	if want := []string{"new", "week"}; !equalPaths(got, want) {
		t.Errorf("Apply() = %v, want %v", got, want)
	}
}

func TestSizePolicy(t *testing.T) {
	archives := []ArchiveInfo{
		{Path: "a", Size: 400},
		{Path: "b", Size: 400},
		{Path: "c", Size: 400},
	}

	got := paths((&SizePolicy{MaxTotalBytes: 1000}).Apply(archives))
	if want := []string{"a", "b"}; !equalPaths(got, want) {
		t.Errorf("Apply() = %v, want %v", got, want)
	}

	// The newest archive survives even when it alone exceeds the budget.
	got = paths((&SizePolicy{MaxTotalBytes: 10}).Apply(archives))
	if want := []string{"a"}; !equalPaths(got, want) {
		t.Errorf("Apply() = %v, want %v", got, want)
	}
}

func TestCompositePolicy(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	archives := []ArchiveInfo{
		{Path: "a", CreatedAt: now.Add(-30 * 24 * time.Hour)},
		{Path: "b", CreatedAt: now.Add(-31 * 24 * time.Hour)},
		{Path: "c", CreatedAt: now.Add(-time.Hour)},
	}
	p := &CompositePolicy{Policies: []RetentionPolicy{
		&CountPolicy{MaxCount: 1},
		&AgePolicy{MaxAge: 24 * time.Hour, Now: func() time.Time { return now }},
	}}

	got := paths(p.Apply(archives))
	if want := []string{"a", "c"}; !equalPaths(got, want) {
		t.Errorf("Apply() = %v, want %v", got, want)
	}
}

func writeArchiveFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := Write(path, &Archive{Version: FormatVersion, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return path
}

func TestListArchives(t *testing.T) {
	dir := t.TempDir()
	older := writeArchiveFile(t, dir, "acpsim-backup-20260101-000000.json.gz")
	newer := writeArchiveFile(t, dir, "acpsim-backup-20260301-000000.json.gz")
	broken := filepath.Join(dir, "acpsim-backup-20260201-000000.json.gz")
	if err := os.WriteFile(broken, []byte("garbage"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	got, err := ListArchives(dir)
	if err != nil {
		t.Fatalf("ListArchives() error = %v", err)
	}
	if want := []string{newer, broken, older}; !equalPaths(paths(got), want) {
		t.Fatalf("ListArchives() = %v, want %v", paths(got), want)
	}
	if !got[0].Valid || got[1].Valid {
		t.Errorf("valid flags = %v, %v; want true, false", got[0].Valid, got[1].Valid)
	}
}

func TestListArchives_MissingDir(t *testing.T) {
	got, err := ListArchives(filepath.Join(t.TempDir(), "absent"))
	if err != nil || len(got) != 0 {
		t.Errorf("ListArchives() = %v, %v; want empty, nil", got, err)
	}
}

func TestApplyRetention(t *testing.T) {
	dir := t.TempDir()
	a := writeArchiveFile(t, dir, "acpsim-backup-20260101-000000.json.gz")
	b := writeArchiveFile(t, dir, "acpsim-backup-20260102-000000.json.gz")
	c := writeArchiveFile(t, dir, "acpsim-backup-20260103-000000.json.gz")

	deleted, err := ApplyRetention(dir, &CountPolicy{MaxCount: 1})
	if err != nil {
		t.Fatalf("ApplyRetention() error = %v", err)
	}
	if want := []string{b, a}; !equalPaths(deleted, want) {
		t.Errorf("deleted = %v, want %v", deleted, want)
	}
	if _, err := os.Stat(c); err != nil {
		t.Errorf("newest archive removed: %v", err)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"720h", 720 * time.Hour, false},
		{"30d", 30 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"", 0, true},
		{"d", 0, true},
		{"3y", 0, true},
		{"-1d", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"100B", 100, false},
		{"500KB", 500 << 10, false},
		{"100MB", 100 << 20, false},
		{"1gb", 1 << 30, false},
		{" 2 MB ", 2 << 20, false},
		{"", 0, true},
		{"10", 0, true},
		{"xMB", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
