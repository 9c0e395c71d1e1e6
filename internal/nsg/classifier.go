// Package nsg reads the firewall rules of a security group and groups the
// SMTP allow-list ranges by mail provider.
package nsg

import (
	"strings"

	"github.com/yourusername/nsgwatch/internal/models"
)

// Classifier decides which provider, if any, a rule belongs to
type Classifier interface {
	Classify(rule models.Rule) (models.Provider, bool)
}

// Match pairs a provider with the substring that identifies its rules
type Match struct {
	Provider  models.Provider
	Substring string
}

// SubstringClassifier assigns a rule to the first provider whose substring
// appears in the lower-cased rule name
type SubstringClassifier struct {
	matches []Match
}

// NewSubstringClassifier creates a classifier. Substrings are lower-cased;
// matches are tried in the given order.
func NewSubstringClassifier(matches ...Match) *SubstringClassifier {
	normalized := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.Substring == "" {
			continue
		}
		normalized = append(normalized, Match{
			Provider:  m.Provider,
			Substring: strings.ToLower(m.Substring),
		})
	}
	return &SubstringClassifier{matches: normalized}
}

// DefaultClassifier matches "gsuite" before "o365"
func DefaultClassifier() *SubstringClassifier {
	return NewSubstringClassifier(
		Match{Provider: models.ProviderGSuite, Substring: models.ProviderGSuite.Key},
		Match{Provider: models.ProviderO365, Substring: models.ProviderO365.Key},
	)
}

// Classify implements Classifier
func (c *SubstringClassifier) Classify(rule models.Rule) (models.Provider, bool) {
	name := strings.ToLower(rule.Name)
	for _, m := range c.matches {
		if strings.Contains(name, m.Substring) {
			return m.Provider, true
		}
	}
	return models.Provider{}, false
}

// Providers returns the providers known to the classifier, in match order
func (c *SubstringClassifier) Providers() []models.Provider {
	providers := make([]models.Provider, 0, len(c.matches))
	seen := make(map[string]bool)
	for _, m := range c.matches {
		if seen[m.Provider.Key] {
			continue
		}
		seen[m.Provider.Key] = true
		providers = append(providers, m.Provider)
	}
	return providers
}
