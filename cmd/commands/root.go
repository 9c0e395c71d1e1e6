package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yourusername/nsgwatch/internal/config"
	"github.com/yourusername/nsgwatch/internal/logger"
	"github.com/yourusername/nsgwatch/internal/report"
)

// rootOptions holds the persistent flags shared by every command
type rootOptions struct {
	output   string
	logLevel string
	envFile  string
}

// NewRootCmd creates a new root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "nsgwatch",
		Short: "Check an NSG SMTP allow-list against published mail provider ranges",
		Long: `nsgwatch compares the inbound SMTP allow-list of a network security group
with the IP ranges published by Office 365 and Google Workspace.

Ranges that a provider publishes but the group does not allow are reported
as missing; ranges the group allows that the provider no longer publishes are
reported as no longer needed. The report is sent to Slack, SNS or stdout.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "Output format (text, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Path to a .env file (defaults to ./.env when present)")

	rootCmd.AddCommand(NewCheckCmd(opts))
	rootCmd.AddCommand(NewRulesCmd(opts))
	rootCmd.AddCommand(NewRangesCmd(opts))
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// load reads the environment and configures the default logger
func (o *rootOptions) load() (*config.Config, error) {
	if err := config.LoadEnvFile(o.envFile); err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	logger.SetDefault(logger.NewLogger(logger.Config{
		Level:  level,
		Format: logger.Format(cfg.Log.Format),
	}))

	return cfg, nil
}

func (o *rootOptions) format() (report.FormatType, error) {
	switch f := report.FormatType(o.output); f {
	case report.FormatText, report.FormatJSON, report.FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", o.output)
	}
}
