package checker

import (
	"context"
	"fmt"

	"github.com/yourusername/nsgwatch/internal/models"
)

// Result is the outcome of a run
type Result struct {
	Report  *models.DriftReport
	Message string
	Sent    bool
}

// Run performs one check. Steps run sequentially: rule read, authoritative
// resolution per provider, reconciliation, formatting and notification. A
// rule source, resolver or notifier error aborts the run.
func (c *Container) Run(ctx context.Context) (*Result, error) {
	configured, err := c.Fetcher().Fetch(ctx)
	if err != nil {
		return nil, err
	}

	authoritative, err := c.Ranges(ctx)
	if err != nil {
		return nil, err
	}

	pairs := make([]models.RuleSetPair, 0, len(c.providers))
	for _, p := range c.providers {
		pairs = append(pairs, models.RuleSetPair{
			Provider:      p.Provider,
			Authoritative: authoritative[p.Provider.Key],
			Configured:    configured[p.Provider.Key],
		})
	}
	driftReport := c.detector.DetectDrift(c.securityGroup, pairs...)

	for _, d := range driftReport.Providers {
		c.logger.Info("The following NSG rules are missing from %s: %v", d.Provider.DisplayName, d.Missing.Sorted())
		c.logger.Info("These NSG rules for %s are no longer needed: %v", d.Provider.DisplayName, d.Extra.Sorted())
	}

	message, err := c.formatter.Format(driftReport)
	if err != nil {
		return nil, fmt.Errorf("failed to format report: %w", err)
	}

	result := &Result{Report: driftReport, Message: message}
	if c.notifier != nil {
		if err := c.notifier.Send(ctx, c.channel, message); err != nil {
			return result, fmt.Errorf("failed to send notification: %w", err)
		}
		result.Sent = true
	}

	c.logger.Info("Finished running NSG watcher for %s (drift: %t)", c.securityGroup, driftReport.HasDrift)
	return result, nil
}

// Ranges resolves the authoritative ranges of every provider, in order
func (c *Container) Ranges(ctx context.Context) (map[string]models.CIDRSet, error) {
	out := make(map[string]models.CIDRSet, len(c.providers))
	for _, p := range c.providers {
		set, err := p.Source.Resolve(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s ranges: %w", p.Provider.DisplayName, err)
		}
		if set == nil {
			set = models.NewCIDRSet()
		}
		c.logger.Info("%s published ranges: %d", p.Provider.DisplayName, set.Len())
		out[p.Provider.Key] = set
	}
	return out, nil
}
