package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/yourusername/nsgwatch/internal/checker"
	"github.com/yourusername/nsgwatch/internal/config"
	"github.com/yourusername/nsgwatch/internal/models"
	"github.com/yourusername/nsgwatch/internal/nsg"
	"github.com/yourusername/nsgwatch/internal/report"
)

// NewRulesCmd creates the rules command
func NewRulesCmd(opts *rootOptions) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the SMTP rules of the security group and their provider",
		Long: `List the inbound rules of the security group that allow the SMTP port,
together with the provider each rule is attributed to. Rules that match no
provider are shown with provider "-" and are ignored by check.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(cmd, opts, source)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Rule source (azure, aws, tfstate, hcl); overrides RULE_SOURCE")

	return cmd
}

// ruleView is the structured form of a classified rule
type ruleView struct {
	Name     string   `json:"name" yaml:"name"`
	Provider string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	Priority int32    `json:"priority,omitempty" yaml:"priority,omitempty"`
	Ports    []string `json:"ports" yaml:"ports"`
	Sources  []string `json:"sources" yaml:"sources"`
}

func runRules(cmd *cobra.Command, opts *rootOptions, source string) error {
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

	rules, err := checker.NewRuleSource(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	fetcher := nsg.NewFetcher(rules, checker.Classifier(cfg),
		[]models.Provider{models.ProviderO365, models.ProviderGSuite}, cfg.NSG.Port, nil)
	classified, err := fetcher.Classify(cmd.Context())
	if err != nil {
		return err
	}

	views := make([]ruleView, 0, len(classified))
	for _, r := range classified {
		v := ruleView{Name: r.Name, Priority: r.Priority, Ports: r.DestinationPorts, Sources: r.SourcePrefixes}
		if r.Matched {
			v.Provider = r.Provider.Key
		}
		views = append(views, v)
	}

	if format != report.FormatText {
		return writeStructured(cmd.OutOrStdout(), format, views)
	}

	if len(views) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No inbound rules for port %s found in %s.\n", cfg.NSG.Port, describeSource(cfg))
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPROVIDER\tPRIORITY\tPORTS\tSOURCES")
	for _, v := range views {
		provider := v.Provider
		if provider == "" {
			provider = "-"
		}
		priority := "-"
		if v.Priority != 0 {
			priority = fmt.Sprint(v.Priority)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			orDash(v.Name),
			provider,
			priority,
			strings.Join(v.Ports, ","),
			strings.Join(v.Sources, ","),
		)
	}
	return w.Flush()
}

func describeSource(cfg *config.Config) string {
	return fmt.Sprintf("%s (%s)", cfg.SecurityGroupName(), cfg.NSG.Source)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
