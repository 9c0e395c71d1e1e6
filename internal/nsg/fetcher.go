package nsg

import (
	"context"
	"fmt"

	"github.com/yourusername/nsgwatch/internal/logger"
	"github.com/yourusername/nsgwatch/internal/models"
)

// DefaultPort is the SMTP port the allow-list is checked for
const DefaultPort = "25"

// RuleSource reads the rules of a single security group
type RuleSource interface {
	Rules(ctx context.Context) ([]models.Rule, error)
}

// ClassifiedRule is a rule together with the provider it was assigned to
type ClassifiedRule struct {
	models.Rule
	Provider models.Provider
	Matched  bool
}

// Fetcher groups the source prefixes of matching inbound rules by provider
type Fetcher struct {
	source     RuleSource
	classifier Classifier
	providers  []models.Provider
	port       string
	logger     *logger.Logger
}

// NewFetcher creates a fetcher. Every provider listed gets an entry in the
// result of Fetch, even when no rule matches it.
func NewFetcher(source RuleSource, classifier Classifier, providers []models.Provider, port string, log *logger.Logger) *Fetcher {
	if port == "" {
		port = DefaultPort
	}
	if log == nil {
		log = logger.DefaultLogger
	}
	return &Fetcher{
		source:     source,
		classifier: classifier,
		providers:  providers,
		port:       port,
		logger:     log,
	}
}

// Classify reads the rules and reports, for each inbound rule on the
// configured port, which provider it belongs to
func (f *Fetcher) Classify(ctx context.Context) ([]ClassifiedRule, error) {
	rules, err := f.source.Rules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read security group rules: %w", err)
	}
	f.logger.Debug("Read %d rules", len(rules))

	var classified []ClassifiedRule
	for _, rule := range rules {
		if !rule.IsInbound() || !rule.HasPort(f.port) {
			continue
		}
		provider, ok := f.classifier.Classify(rule)
		classified = append(classified, ClassifiedRule{Rule: rule, Provider: provider, Matched: ok})
	}
	return classified, nil
}

// Fetch returns the configured source prefixes keyed by provider
func (f *Fetcher) Fetch(ctx context.Context) (map[string]models.CIDRSet, error) {
	classified, err := f.Classify(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[string]models.CIDRSet, len(f.providers))
	for _, p := range f.providers {
		result[p.Key] = models.NewCIDRSet()
	}

	for _, rule := range classified {
		if !rule.Matched {
			f.logger.Debug("Ignoring rule %s", rule.Name)
			continue
		}
		set, ok := result[rule.Provider.Key]
		if !ok {
			set = models.NewCIDRSet()
			result[rule.Provider.Key] = set
		}
		set.AddAll(rule.SourcePrefixes...)
	}

	for _, p := range f.providers {
		f.logger.Info("%s NSG ranges: %d", p.DisplayName, result[p.Key].Len())
	}
	return result, nil
}
