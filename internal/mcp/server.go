// Package mcp provides an MCP (Model Context Protocol) server that exposes
// acpsim experiments as tools.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/acpsim/internal/config"
	"github.com/nvandessel/acpsim/internal/logging"
	"github.com/nvandessel/acpsim/internal/metrics"
	"github.com/nvandessel/acpsim/internal/pathutil"
	"github.com/nvandessel/acpsim/internal/ratelimit"
	"github.com/nvandessel/acpsim/internal/store"
)

// DefaultMaxEpisodes caps the episodes per strategy of one tool-initiated
// experiment.
const DefaultMaxEpisodes = 2000

// Server wraps the MCP SDK server and provides acpsim-specific tools.
type Server struct {
	server       *sdk.Server
	store        *store.Store
	defaults     config.SimulationConfig
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	logger       *slog.Logger
	metrics      *metrics.Registry
	version      string
	commit       string
	maxEpisodes  int
	backupDir    *pathutil.Sandbox
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "acpsim")
	Version string // Server version
	Commit  string // Build commit

	// StorePath is the SQLite result store.
	StorePath string

	// Defaults is the configuration tool inputs are applied on top of.
	Defaults config.SimulationConfig

	// AuditDir receives audit.jsonl. Empty disables auditing.
	AuditDir string

	// BackupDir enables the acpsim_backup tool; archives are confined to
	// it. Empty disables the tool.
	BackupDir string

	// MaxEpisodes caps episodes per strategy; 0 means DefaultMaxEpisodes.
	MaxEpisodes int

	// RateLimits overrides ratelimit.DefaultRules when non-nil.
	RateLimits map[string]ratelimit.Rule

	Logger  *slog.Logger
	Metrics *metrics.Registry
}

// NewServer creates a new MCP server with acpsim tools.
func NewServer(ctx context.Context, cfg *Config) (*Server, error) {
	if err := cfg.Defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default configuration: %w", err)
	}

	resultStore, err := store.Open(ctx, cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open result store: %w", err)
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	rules := cfg.RateLimits
	if rules == nil {
		rules = ratelimit.DefaultRules()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	maxEpisodes := cfg.MaxEpisodes
	if maxEpisodes <= 0 {
		maxEpisodes = DefaultMaxEpisodes
	}

	s := &Server{
		server:       mcpServer,
		store:        resultStore,
		defaults:     cfg.Defaults,
		toolLimiters: ratelimit.NewToolLimiters(rules),
		logger:       logger,
		metrics:      cfg.Metrics,
		version:      cfg.Version,
		commit:       cfg.Commit,
		maxEpisodes:  maxEpisodes,
	}
	if cfg.BackupDir != "" {
		sb, err := pathutil.NewSandbox(cfg.BackupDir)
		if err != nil {
			resultStore.Close()
			return nil, fmt.Errorf("invalid backup directory: %w", err)
		}
		s.backupDir = sb
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("mcp server started", "version", s.version, "store", s.store.Path())
	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if closeErr := s.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Close closes the server and releases resources.
func (s *Server) Close() error {
	auditErr := s.auditLogger.Close()
	if err := s.store.Close(); err != nil {
		return err
	}
	return auditErr
}
