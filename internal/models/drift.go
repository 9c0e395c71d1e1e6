package models

import "time"

// ProviderDrift is the reconciliation result for a single provider
type ProviderDrift struct {
	Provider Provider `json:"provider" yaml:"provider"`
	// Missing holds ranges published by the provider but absent from the NSG
	Missing CIDRSet `json:"missing" yaml:"missing"`
	// Extra holds ranges allowed by the NSG that the provider no longer publishes
	Extra CIDRSet `json:"extra" yaml:"extra"`
}

// HasDrift reports whether either set is non-empty
func (d ProviderDrift) HasDrift() bool {
	return d.Missing.Len() > 0 || d.Extra.Len() > 0
}

// DriftReport contains all drift findings for one run
type DriftReport struct {
	SecurityGroup string          `json:"security_group" yaml:"security_group"`
	GeneratedAt   time.Time       `json:"generated_at" yaml:"generated_at"`
	HasDrift      bool            `json:"has_drift" yaml:"has_drift"`
	Providers     []ProviderDrift `json:"providers" yaml:"providers"`
}

// Drift returns the findings for the provider with the given key
func (r *DriftReport) Drift(key string) (ProviderDrift, bool) {
	for _, d := range r.Providers {
		if d.Provider.Key == key {
			return d, true
		}
	}
	return ProviderDrift{}, false
}
