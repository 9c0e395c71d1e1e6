package detector

import (
	"time"

	"github.com/yourusername/nsgwatch/internal/models"
)

// Detector reconciles authoritative provider ranges against the ranges
// configured in a security group. It holds no state between calls.
type Detector struct {
	now func() time.Time
}

// NewDetector creates a new drift detector
func NewDetector() *Detector {
	return &Detector{now: time.Now}
}

// Compare computes the drift for a single provider
func (d *Detector) Compare(pair models.RuleSetPair) models.ProviderDrift {
	authoritative := pair.Authoritative
	if authoritative == nil {
		authoritative = models.NewCIDRSet()
	}
	configured := pair.Configured
	if configured == nil {
		configured = models.NewCIDRSet()
	}

	return models.ProviderDrift{
		Provider: pair.Provider,
		Missing:  authoritative.Difference(configured),
		Extra:    configured.Difference(authoritative),
	}
}

// DetectDrift compares every pair and returns a report whose providers
// follow the order of pairs
func (d *Detector) DetectDrift(securityGroup string, pairs ...models.RuleSetPair) *models.DriftReport {
	report := &models.DriftReport{
		SecurityGroup: securityGroup,
		GeneratedAt:   d.now().UTC(),
		Providers:     make([]models.ProviderDrift, 0, len(pairs)),
	}

	for _, pair := range pairs {
		drift := d.Compare(pair)
		if drift.HasDrift() {
			report.HasDrift = true
		}
		report.Providers = append(report.Providers, drift)
	}

	return report
}

// Reconcile is the two-provider form: it returns the missing and extra sets
// for provider A followed by those for provider B.
func Reconcile(authA, confA, authB, confB models.CIDRSet) (missingA, extraA, missingB, extraB models.CIDRSet) {
	d := NewDetector()
	a := d.Compare(models.RuleSetPair{Authoritative: authA, Configured: confA})
	b := d.Compare(models.RuleSetPair{Authoritative: authB, Configured: confB})
	return a.Missing, a.Extra, b.Missing, b.Extra
}
