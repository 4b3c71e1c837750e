package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/acpsim/internal/backup"
	"github.com/nvandessel/acpsim/internal/config"
)

func TestBackupCmds(t *testing.T) {
	home := isolateHome(t)
	db := filepath.Join(home, "runs.db")
	backupDir := filepath.Join(home, ".acpsim", "backups")

	args := append([]string{"run", "--json", "--db", db, "--episodes", "2", "--seed", "3"}, smallRun...)
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var run runOutput
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("invalid run JSON: %v", err)
	}

	older := filepath.Join(backupDir, "acpsim-backup-20260101-000000.json.gz")
	if _, err := execute(t, "backup", "--db", db, "--output", older); err != nil {
		t.Fatalf("backup: %v", err)
	}

	out, err = execute(t, "backup", "--json", "--db", db)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	var created struct {
		Path     string `json:"path"`
		RunCount int    `json:"run_count"`
	}
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("invalid backup JSON %q: %v", out, err)
	}
	if created.RunCount != 1 || filepath.Dir(created.Path) != backupDir {
		t.Fatalf("backup output = %+v", created)
	}

	t.Run("list", func(t *testing.T) {
		out, err := execute(t, "backup", "list", "--json")
		if err != nil {
			t.Fatalf("backup list: %v", err)
		}
		var listed struct {
			Archives []backup.ArchiveInfo `json:"archives"`
			Count    int                  `json:"count"`
		}
		if err := json.Unmarshal([]byte(out), &listed); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if listed.Count != 2 || listed.Archives[0].Path != created.Path || listed.Archives[1].Path != older {
			t.Errorf("listed = %+v", listed)
		}

		text, err := execute(t, "backup", "list")
		if err != nil {
			t.Fatalf("backup list: %v", err)
		}
		if !strings.Contains(text, filepath.Base(older)) {
			t.Errorf("list text:\n%s", text)
		}
	})

	t.Run("verify", func(t *testing.T) {
		text, err := execute(t, "backup", "verify", created.Path)
		if err != nil || !strings.Contains(text, "Archive OK") {
			t.Errorf("verify = %q, %v", text, err)
		}

		corrupt := filepath.Join(home, "corrupt.json.gz")
		data, err := os.ReadFile(created.Path)
		if err != nil {
			t.Fatal(err)
		}
		data[len(data)-1] ^= 0xff
		if err := os.WriteFile(corrupt, data, 0600); err != nil {
			t.Fatal(err)
		}
		out, err := execute(t, "backup", "verify", corrupt, "--json")
		if err == nil {
			t.Fatal("expected verify to fail on a corrupt archive")
		}
		var got map[string]any
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("invalid JSON %q: %v", out, err)
		}
		if got["valid"] != false {
			t.Errorf("verify output = %v", got)
		}
	})

	t.Run("restore", func(t *testing.T) {
		fresh := filepath.Join(home, "fresh.db")
		out, err := execute(t, "backup", "restore", created.Path, "--json", "--db", fresh)
		if err != nil {
			t.Fatalf("backup restore: %v", err)
		}
		var restored struct {
			Restored []string `json:"restored"`
			Skipped  []string `json:"skipped"`
		}
		if err := json.Unmarshal([]byte(out), &restored); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(restored.Restored) != 1 || restored.Restored[0] != run.RunID {
			t.Errorf("restore output = %+v", restored)
		}

		text, err := execute(t, "backup", "restore", created.Path, "--db", fresh)
		if err != nil {
			t.Fatalf("backup restore: %v", err)
		}
		if !strings.Contains(text, "Restored 0 run(s), skipped 1") {
			t.Errorf("second restore = %q", text)
		}

		if _, err := execute(t, "runs", "show", run.RunID, "--db", fresh); err != nil {
			t.Errorf("restored run not readable: %v", err)
		}
		if _, err := execute(t, "backup", "restore", created.Path, "--mode", "wipe", "--db", fresh); err == nil {
			t.Error("expected error for unknown mode")
		}
	})

	t.Run("prune", func(t *testing.T) {
		if _, err := execute(t, "backup", "prune", "--keep", "0"); err == nil {
			t.Error("expected error for --keep 0")
		}
		out, err := execute(t, "backup", "prune", "--keep", "1", "--json")
		if err != nil {
			t.Fatalf("backup prune: %v", err)
		}
		var pruned struct {
			Deleted []string `json:"deleted"`
		}
		if err := json.Unmarshal([]byte(out), &pruned); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(pruned.Deleted) != 1 || pruned.Deleted[0] != older {
			t.Errorf("deleted = %v, want [%s]", pruned.Deleted, older)
		}
	})
}

func TestBuildRetentionPolicy(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.RetentionConfig
		want    string
		wantErr bool
	}{
		{"defaults to count", config.RetentionConfig{}, "*backup.CountPolicy", false},
		{"count only", config.RetentionConfig{MaxCount: 3}, "*backup.CountPolicy", false},
		{"age only", config.RetentionConfig{MaxAge: "30d"}, "*backup.AgePolicy", false},
		{"combined", config.RetentionConfig{MaxCount: 3, MaxTotalSize: "1GB"}, "*backup.CompositePolicy", false},
		{"bad age", config.RetentionConfig{MaxAge: "soon"}, "", true},
		{"bad size", config.RetentionConfig{MaxTotalSize: "huge"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy, err := buildRetentionPolicy(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildRetentionPolicy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := fmt.Sprintf("%T", policy); got != tt.want {
				t.Errorf("policy type = %s, want %s", got, tt.want)
			}
		})
	}
}
