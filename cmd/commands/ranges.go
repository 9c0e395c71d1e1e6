package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/yourusername/nsgwatch/internal/checker"
	"github.com/yourusername/nsgwatch/internal/logger"
	"github.com/yourusername/nsgwatch/internal/models"
	"github.com/yourusername/nsgwatch/internal/report"
	"gopkg.in/yaml.v3"
)

// NewRangesCmd creates the ranges command
func NewRangesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ranges",
		Short: "Print the ranges currently published by each provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRanges(cmd, opts)
		},
	}
}

func runRanges(cmd *cobra.Command, opts *rootOptions) error {
	format, err := opts.format()
	if err != nil {
		return err
	}

	cfg, err := opts.load()
	if err != nil {
		return err
	}

	sources, err := checker.ProviderSources(cfg, logger.DefaultLogger)
	if err != nil {
		return err
	}

	ranges := make(map[string]models.CIDRSet, len(sources))
	for _, s := range sources {
		set, err := s.Source.Resolve(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to resolve %s ranges: %w", s.Provider.DisplayName, err)
		}
		ranges[s.Provider.Key] = set
	}

	if format != report.FormatText {
		return writeStructured(cmd.OutOrStdout(), format, ranges)
	}

	for _, s := range sources {
		set := ranges[s.Provider.Key]
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d):\n", s.Provider.DisplayName, set.Len())
		for _, cidr := range set.Sorted() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", report.Bullet, cidr)
		}
	}
	return nil
}

// writeStructured encodes v as JSON or YAML
func writeStructured(w io.Writer, format report.FormatType, v interface{}) error {
	switch format {
	case report.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case report.FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
