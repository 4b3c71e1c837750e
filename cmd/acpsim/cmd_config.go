package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/acpsim/internal/config"
	"github.com/nvandessel/acpsim/internal/models"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect acpsim configuration",
		Long: `View and validate acpsim configuration.

Configuration is read from ~/.acpsim/config.yaml (or --config), then
ACPSIM_* environment variables, then command-line flags.

Examples:
  acpsim config show                         # effective configuration as YAML
  acpsim config show --set acp_strength=0.9  # with overrides applied
  acpsim config validate rows/row-017.yaml   # check a simulation parameter file`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigValidateCmd(),
	)
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Simulation, err = simulationFromFlags(cmd, cfg.Simulation); err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringArray("set", nil, "Override a simulation parameter as key=value (repeatable)")
	return cmd
}

// validationResult is the JSON shape of `acpsim config validate`.
type validationResult struct {
	Valid   bool   `json:"valid"`
	Path    string `json:"path,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [simulation-file]",
		Short: "Validate the configuration or a simulation parameter file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			result := validationResult{}
			if len(args) == 1 {
				result.Path = args[0]
				_, err = config.LoadSimulationConfig(args[0])
			} else {
				_, err = loadConfig(cmd)
			}

			result.Valid = err == nil
			if err != nil {
				result.Message = err.Error()
				var cfgErr *models.ConfigurationError
				if errors.As(err, &cfgErr) {
					result.Field = cfgErr.Field
					result.Message = cfgErr.Message
				}
			}

			if jsonOutput(cmd) {
				if werr := writeJSON(cmd.OutOrStdout(), result); werr != nil {
					return werr
				}
			} else if result.Valid {
				fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
			} else if result.Field != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Invalid configuration: %s: %s\n", result.Field, result.Message)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Invalid configuration: %s\n", result.Message)
			}

			if !result.Valid {
				return fmt.Errorf("configuration is invalid")
			}
			return nil
		},
	}
}
