package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/yourusername/nsgwatch/internal/checker"
	"github.com/yourusername/nsgwatch/internal/config"
	"github.com/yourusername/nsgwatch/internal/logger"
	"github.com/yourusername/nsgwatch/internal/notify"
	"github.com/yourusername/nsgwatch/internal/report"
)

// NewCheckCmd creates the check command
func NewCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		dryRun bool
		source string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the allow-list for drift and send the report",
		Long: `Read the security group, resolve the published O365 and GSuite ranges,
compute missing and no-longer-needed entries and send the report to the
configured notification channel.

With --dry-run the report is printed and nothing is sent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, source, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the report instead of sending it")
	cmd.Flags().StringVar(&source, "source", "", "Rule source (azure, aws, tfstate, hcl); overrides RULE_SOURCE")

	return cmd
}

func runCheck(cmd *cobra.Command, opts *rootOptions, source string, dryRun bool) error {
	format, err := opts.format()
	if err != nil {
		return err
	}

	cfg, err := opts.load()
	if err != nil {
		return err
	}
	if source != "" {
		cfg.NSG.Source = source
	}
	if dryRun {
		cfg.Notify.Kind = config.NotifyStdout
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var extra []checker.ContainerOption
	switch {
	case dryRun, cfg.Notify.Kind == config.NotifyStdout && format != report.FormatText:
		extra = append(extra, checker.WithNotifier(nil, ""))
	case cfg.Notify.Kind == config.NotifyStdout:
		extra = append(extra, checker.WithNotifier(notify.NewWriterNotifier(cmd.OutOrStdout()), ""))
	}

	container, err := checker.Build(ctx, cfg, extra...)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	return execute(ctx, cmd, container, format, dryRun)
}

func execute(ctx context.Context, cmd *cobra.Command, container *checker.Container, format report.FormatType, dryRun bool) error {
	result, err := container.Run(ctx)
	if err != nil {
		return err
	}

	if format == report.FormatText {
		if !result.Sent {
			fmt.Fprint(cmd.OutOrStdout(), result.Message)
		}
	} else {
		formatter, err := report.NewFormatter(format)
		if err != nil {
			return err
		}
		out, err := formatter.Format(result.Report)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}

	if dryRun {
		logger.Info("Dry run: report not sent")
	}
	return nil
}
