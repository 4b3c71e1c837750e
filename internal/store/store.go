// Package store persists experiment reports in SQLite and reads and writes
// portable report bundles.
//
// A run is keyed by the run id stamped into its report's version metadata.
// Every episode result is kept verbatim as JSON next to a few indexed
// columns, so a loaded report is identical to the one that was saved.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/acpsim/internal/config"
	"github.com/nvandessel/acpsim/internal/experiment"
	"github.com/nvandessel/acpsim/internal/models"
)

// ErrNotFound is returned when a run id is not in the store.
var ErrNotFound = errors.New("run not found")

// strategyOrder sorts rows the way the runner orders strategies.
const strategyOrder = `CASE strategy WHEN 'pessimistic' THEN 0 WHEN 'optimistic_acp' THEN 1 ELSE 2 END`

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	ID           string    `json:"id" yaml:"id"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	Version      string    `json:"version" yaml:"version"`
	RandomSeed   int64     `json:"random_seed" yaml:"random_seed"`
	NumEpisodes  int       `json:"num_episodes" yaml:"num_episodes"`
	TopologyType string    `json:"topology_type" yaml:"topology_type"`
	NumNodes     int       `json:"num_nodes" yaml:"num_nodes"`
	Planned      int       `json:"planned" yaml:"planned"`
	Succeeded    int       `json:"succeeded" yaml:"succeeded"`
	Failed       int       `json:"failed" yaml:"failed"`
	Cancelled    bool      `json:"cancelled" yaml:"cancelled"`
}

// Store is a SQLite-backed result store. It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// ValidateIntegrity checks the underlying database.
func (s *Store) ValidateIntegrity(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ValidateIntegrity(ctx, s.db)
}

// SaveReport stores report in a single transaction. Saving a run id that
// already exists replaces it.
func (s *Store) SaveReport(ctx context.Context, report *experiment.Report) error {
	if report == nil {
		return fmt.Errorf("save report: nil report")
	}
	id := report.VersionMetadata.RunID
	if id == "" {
		return fmt.Errorf("save report: run id is required")
	}

	cfgJSON, err := json.Marshal(report.ConfigSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	var analysis sql.NullString
	if report.Analysis != nil {
		data, err := json.Marshal(report.Analysis)
		if err != nil {
			return fmt.Errorf("failed to marshal analysis: %w", err)
		}
		analysis = sql.NullString{String: string(data), Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to replace run %s: %w", id, err)
	}

	vm := report.VersionMetadata
	cfg := report.ConfigSnapshot
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, created_at, version, commit_hash, go_version,
			random_seed, num_episodes, topology_type, num_nodes,
			planned, succeeded, failed, cancelled, config, analysis
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, vm.CreatedAt.UTC().Format(time.RFC3339Nano), vm.Version, vm.Commit, vm.GoVersion,
		cfg.RandomSeed, cfg.NumEpisodes, cfg.TopologyType, cfg.NumNodes,
		report.Counts.Planned, report.Counts.Succeeded, report.Counts.Failed, boolToInt(report.Cancelled),
		string(cfgJSON), analysis)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", id, err)
	}

	epStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO episodes (
			run_id, episode_index, strategy, seed, total_reward, steps, termination_reason,
			restore_count, deceptions, exploitations, final_compromised_ratio, result
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare episode insert: %w", err)
	}
	defer epStmt.Close()

	for _, r := range report.RawResults {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal episode %d/%s: %w", r.EpisodeIndex, r.Strategy, err)
		}
		if _, err := epStmt.ExecContext(ctx,
			id, r.EpisodeIndex, r.Strategy, r.Seed, r.TotalReward, r.Steps, r.TerminationReason,
			r.RestoreNodeCount, r.DeceptionsDeployed, r.CognitiveLatencyExploitations, r.FinalCompromisedRatio,
			string(data)); err != nil {
			return fmt.Errorf("failed to insert episode %d/%s: %w", r.EpisodeIndex, r.Strategy, err)
		}
	}

	for _, f := range report.Failures {
		var diag sql.NullString
		if len(f.Diagnostic) > 0 {
			data, err := json.Marshal(f.Diagnostic)
			if err != nil {
				return fmt.Errorf("failed to marshal diagnostic: %w", err)
			}
			diag = sql.NullString{String: string(data), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO failures (run_id, episode_index, strategy, seed, error, diagnostic)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, f.EpisodeIndex, f.Strategy, f.Seed, f.Error, diag); err != nil {
			return fmt.Errorf("failed to insert failure %d/%s: %w", f.EpisodeIndex, f.Strategy, err)
		}
	}

	return tx.Commit()
}

// RunExists reports whether a run with id is stored.
func (s *Store) RunExists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to look up run %s: %w", id, err)
	}
	return n > 0, nil
}

// LoadRun returns the stored report for id, or ErrNotFound.
func (s *Store) LoadRun(ctx context.Context, id string) (*experiment.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := &experiment.Report{
		RawResults: []models.EpisodeResult{},
		Failures:   []models.EpisodeFailure{},
	}
	var (
		createdAt, cfgJSON string
		analysis           sql.NullString
		cancelled          int
	)
	vm := &report.VersionMetadata
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, version, commit_hash, go_version,
		       planned, succeeded, failed, cancelled, config, analysis
		FROM runs WHERE id = ?`, id).Scan(
		&vm.RunID, &createdAt, &vm.Version, &vm.Commit, &vm.GoVersion,
		&report.Counts.Planned, &report.Counts.Succeeded, &report.Counts.Failed, &cancelled,
		&cfgJSON, &analysis)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	if vm.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at for run %s: %w", id, err)
	}
	report.Cancelled = cancelled != 0
	report.Counts.Total = report.Counts.Succeeded + report.Counts.Failed

	cfg := config.DefaultSimulationConfig()
	if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config for run %s: %w", id, err)
	}
	report.ConfigSnapshot = cfg

	if analysis.Valid {
		report.Analysis = &experiment.Analysis{}
		if err := json.Unmarshal([]byte(analysis.String), report.Analysis); err != nil {
			return nil, fmt.Errorf("failed to decode analysis for run %s: %w", id, err)
		}
	}

	if report.RawResults, err = s.loadEpisodes(ctx, id, ""); err != nil {
		return nil, err
	}
	if report.Failures, err = s.loadFailures(ctx, id); err != nil {
		return nil, err
	}
	return report, nil
}

// Episodes returns the stored results of run id, optionally filtered by
// strategy, in episode order.
func (s *Store) Episodes(ctx context.Context, id, strategy string) ([]models.EpisodeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadEpisodes(ctx, id, strategy)
}

func (s *Store) loadEpisodes(ctx context.Context, id, strategy string) ([]models.EpisodeResult, error) {
	query := `SELECT result FROM episodes WHERE run_id = ?`
	args := []any{id}
	if strategy != "" {
		query += ` AND strategy = ?`
		args = append(args, strategy)
	}
	query += ` ORDER BY episode_index, ` + strategyOrder

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer rows.Close()

	results := []models.EpisodeResult{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		var r models.EpisodeResult
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("failed to decode episode: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) loadFailures(ctx context.Context, id string) ([]models.EpisodeFailure, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT episode_index, strategy, seed, error, diagnostic
		FROM failures WHERE run_id = ?
		ORDER BY episode_index, `+strategyOrder, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	failures := []models.EpisodeFailure{}
	for rows.Next() {
		var (
			f    models.EpisodeFailure
			diag sql.NullString
		)
		if err := rows.Scan(&f.EpisodeIndex, &f.Strategy, &f.Seed, &f.Error, &diag); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		if diag.Valid {
			if err := json.Unmarshal([]byte(diag.String), &f.Diagnostic); err != nil {
				return nil, fmt.Errorf("failed to decode diagnostic: %w", err)
			}
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, created_at, version, random_seed, num_episodes, topology_type, num_nodes,
		       planned, succeeded, failed, cancelled
		FROM runs ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var (
			r         RunSummary
			createdAt string
			cancelled int
		)
		if err := rows.Scan(&r.ID, &createdAt, &r.Version, &r.RandomSeed, &r.NumEpisodes,
			&r.TopologyType, &r.NumNodes, &r.Planned, &r.Succeeded, &r.Failed, &cancelled); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at for run %s: %w", r.ID, err)
		}
		r.Cancelled = cancelled != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its episodes.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete run %s: %w", id, ErrNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
