package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nvandessel/acpsim/internal/backup"
	"github.com/nvandessel/acpsim/internal/config"
	"github.com/nvandessel/acpsim/internal/store"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive every stored run to a compressed file",
		Long: `Write all runs in the result store to one gzip archive with a sha256
checksum, then prune old archives according to backup.retention.

Default location: ~/.acpsim/backups/acpsim-backup-YYYYMMDD-HHMMSS.json.gz

Examples:
  acpsim backup                          # archive to the backup directory
  acpsim backup --output runs.json.gz    # archive to a specific file
  acpsim backup list                     # list archives
  acpsim backup verify <file>            # check an archive's checksum
  acpsim backup restore <file>           # import runs into the store
  acpsim backup prune --keep 3           # delete all but the newest 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			outputPath, _ := cmd.Flags().GetString("output")
			if outputPath == "" {
				outputPath = backup.GenerateBackupPath(cfg.BackupDir())
			}

			var archive *backup.Archive
			err = withStore(cmd, func(ctx context.Context, s *store.Store) error {
				archive, err = backup.Backup(ctx, s, outputPath)
				return err
			})
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			// Retention only manages the backup directory.
			var pruned []string
			if filepath.Clean(filepath.Dir(outputPath)) == filepath.Clean(cfg.BackupDir()) {
				policy, err := buildRetentionPolicy(&cfg.Backup.Retention)
				if err != nil {
					return err
				}
				pruned, err = backup.ApplyRetention(cfg.BackupDir(), policy)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to apply retention: %v\n", err)
				}
			}

			var size int64
			if info, err := os.Stat(outputPath); err == nil {
				size = info.Size()
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"path":          outputPath,
					"run_count":     len(archive.Reports),
					"episode_count": archive.EpisodeCount(),
					"size_bytes":    size,
					"pruned":        pruned,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup created: %d runs, %d episodes (%d bytes)\n",
				len(archive.Reports), archive.EpisodeCount(), size)
			fmt.Fprintf(cmd.OutOrStdout(), "  Path: %s\n", outputPath)
			if len(pruned) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  Pruned %d old archive(s)\n", len(pruned))
			}
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Archive path (default: timestamped file in the backup directory)")

	cmd.AddCommand(
		newBackupListCmd(),
		newBackupVerifyCmd(),
		newBackupRestoreCmd(),
		newBackupPruneCmd(),
	)
	return cmd
}

// buildRetentionPolicy turns the configured limits into a policy. With no
// limits set it keeps the newest 10.
func buildRetentionPolicy(cfg *config.RetentionConfig) (backup.RetentionPolicy, error) {
	var policies []backup.RetentionPolicy

	if cfg.MaxCount > 0 {
		policies = append(policies, &backup.CountPolicy{MaxCount: cfg.MaxCount})
	}
	if cfg.MaxAge != "" {
		d, err := backup.ParseDuration(cfg.MaxAge)
		if err != nil {
			return nil, fmt.Errorf("invalid backup.retention.max_age: %w", err)
		}
		policies = append(policies, &backup.AgePolicy{MaxAge: d})
	}
	if cfg.MaxTotalSize != "" {
		size, err := backup.ParseSize(cfg.MaxTotalSize)
		if err != nil {
			return nil, fmt.Errorf("invalid backup.retention.max_total_size: %w", err)
		}
		policies = append(policies, &backup.SizePolicy{MaxTotalBytes: size})
	}

	switch len(policies) {
	case 0:
		return &backup.CountPolicy{MaxCount: 10}, nil
	case 1:
		return policies[0], nil
	}
	return &backup.CompositePolicy{Policies: policies}, nil
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archives in the backup directory, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			archives, err := backup.ListArchives(cfg.BackupDir())
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				if archives == nil {
					archives = []backup.ArchiveInfo{}
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"dir":      cfg.BackupDir(),
					"archives": archives,
					"count":    len(archives),
				})
			}
			if len(archives) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No archives in %s\n", cfg.BackupDir())
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tCREATED\tRUNS\tSIZE")
			for _, a := range archives {
				runs := fmt.Sprintf("%d", a.RunCount)
				if !a.Valid {
					runs = "?"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", filepath.Base(a.Path),
					a.CreatedAt.Local().Format("2006-01-02 15:04:05"), runs, a.Size)
			}
			return tw.Flush()
		},
	}
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Check an archive's checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			verr := backup.VerifyChecksum(path)

			if jsonOutput(cmd) {
				out := map[string]any{"path": path, "valid": verr == nil}
				if verr != nil {
					out["error"] = verr.Error()
				} else if header, err := backup.ReadHeader(path); err == nil {
					out["run_count"] = header.RunCount
					out["episode_count"] = header.EpisodeCount
					out["checksum"] = header.Checksum
				}
				if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
			} else if verr == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Archive OK: %s\n", path)
			}

			if verr != nil {
				return fmt.Errorf("archive verification failed: %w", verr)
			}
			return nil
		},
	}
}

func newBackupRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Import the runs of an archive into the result store",
		Long: `Restore runs from an archive.

Modes:
  merge   - skip runs whose id is already stored (default)
  replace - overwrite stored runs with the archived copy`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modeFlag, _ := cmd.Flags().GetString("mode")
			mode, err := backup.ParseRestoreMode(modeFlag)
			if err != nil {
				return err
			}

			var result *backup.RestoreResult
			err = withStore(cmd, func(ctx context.Context, s *store.Store) error {
				result, err = backup.Restore(ctx, s, args[0], mode)
				return err
			})
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"path":     args[0],
					"mode":     mode,
					"restored": result.Restored,
					"skipped":  result.Skipped,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d run(s), skipped %d\n", len(result.Restored), len(result.Skipped))
			return nil
		},
	}
	cmd.Flags().String("mode", string(backup.RestoreMerge), "Restore mode: merge or replace")
	return cmd
}

func newBackupPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete archives the retention policy does not keep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			retention := cfg.Backup.Retention
			if cmd.Flags().Changed("keep") {
				keep, _ := cmd.Flags().GetInt("keep")
				if keep < 1 {
					return fmt.Errorf("--keep must be at least 1")
				}
				retention = config.RetentionConfig{MaxCount: keep}
			}
			policy, err := buildRetentionPolicy(&retention)
			if err != nil {
				return err
			}

			deleted, err := backup.ApplyRetention(cfg.BackupDir(), policy)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				if deleted == nil {
					deleted = []string{}
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"deleted": deleted})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d archive(s)\n", len(deleted))
			return nil
		},
	}
	cmd.Flags().Int("keep", 0, "Keep only the newest N archives (overrides backup.retention)")
	return cmd
}
