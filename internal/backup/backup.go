// Package backup archives the result store: every stored run is written to
// one compressed, checksummed file that can later be restored into the same
// or a different database.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/acpsim/internal/experiment"
	"github.com/nvandessel/acpsim/internal/store"
)

// Archive is the decoded payload of a backup file.
type Archive struct {
	Version   int                  `json:"version"`
	CreatedAt time.Time            `json:"created_at"`
	Reports   []*experiment.Report `json:"reports"`
}

// EpisodeCount is the number of episode results across all runs.
func (a *Archive) EpisodeCount() int {
	n := 0
	for _, r := range a.Reports {
		n += len(r.RawResults)
	}
	return n
}

// DefaultBackupDir returns ~/.acpsim/backups.
func DefaultBackupDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".acpsim", "backups"), nil
}

// GenerateBackupPath creates a timestamped archive filename in dir.
func GenerateBackupPath(dir string) string {
	ts := time.Now().UTC().Format("20060102-150405")
	return filepath.Join(dir, fmt.Sprintf("%s%s%s", filePrefix, ts, fileSuffix))
}

// Backup loads every stored run and writes them to outputPath.
func Backup(ctx context.Context, s *store.Store, outputPath string) (*Archive, error) {
	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	archive := &Archive{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		Reports:   make([]*experiment.Report, 0, len(runs)),
	}
	// ListRuns is newest first; archive oldest first so a restore preserves
	// insertion order.
	for i := len(runs) - 1; i >= 0; i-- {
		report, err := s.LoadRun(ctx, runs[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load run %s: %w", runs[i].ID, err)
		}
		archive.Reports = append(archive.Reports, report)
	}

	if err := Write(outputPath, archive); err != nil {
		return nil, err
	}
	return archive, nil
}

// RestoreMode controls how restore treats runs that already exist.
type RestoreMode string

const (
	// RestoreMerge skips runs whose id is already stored (default).
	RestoreMerge RestoreMode = "merge"
	// RestoreReplace overwrites stored runs with the archived copy.
	RestoreReplace RestoreMode = "replace"
)

// ParseRestoreMode accepts "merge", "replace", or "" (merge).
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch RestoreMode(s) {
	case "", RestoreMerge:
		return RestoreMerge, nil
	case RestoreReplace:
		return RestoreReplace, nil
	}
	return "", fmt.Errorf("unknown restore mode %q (want merge or replace)", s)
}

// RestoreResult reports what a restore did.
type RestoreResult struct {
	Restored []string `json:"restored"`
	Skipped  []string `json:"skipped"`
}

// Restore imports the runs of an archive into the store.
func Restore(ctx context.Context, s *store.Store, inputPath string, mode RestoreMode) (*RestoreResult, error) {
	archive, err := Read(inputPath)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{Restored: []string{}, Skipped: []string{}}
	for _, report := range archive.Reports {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		id := report.VersionMetadata.RunID
		if mode == RestoreMerge {
			exists, err := s.RunExists(ctx, id)
			if err != nil {
				return result, fmt.Errorf("failed to check run %s: %w", id, err)
			}
			if exists {
				result.Skipped = append(result.Skipped, id)
				continue
			}
		}
		if err := s.SaveReport(ctx, report); err != nil {
			return result, fmt.Errorf("failed to restore run %s: %w", id, err)
		}
		result.Restored = append(result.Restored, id)
	}
	return result, nil
}
