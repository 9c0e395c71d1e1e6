package models

import "strings"

// Provider identifies an external mail provider whose ranges are checked
type Provider struct {
	// Key is the stable identifier used in reports, e.g. "o365"
	Key string `json:"key" yaml:"key"`
	// DisplayName is used in human-readable messages, e.g. "O365"
	DisplayName string `json:"display_name" yaml:"display_name"`
}

// Well-known providers
var (
	ProviderO365   = Provider{Key: "o365", DisplayName: "O365"}
	ProviderGSuite = Provider{Key: "gsuite", DisplayName: "GSuite"}
)

// DirectionInbound is the normalized direction for inbound rules
const DirectionInbound = "inbound"

// Rule is a firewall rule as read from a rule source
type Rule struct {
	Name      string `json:"name" yaml:"name"`
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty"`
	Protocol  string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Priority  int32  `json:"priority,omitempty" yaml:"priority,omitempty"`

	// DestinationPorts holds the literal port tokens of the rule. A rule
	// with a single port field carries a one-element list.
	DestinationPorts []string `json:"destination_ports" yaml:"destination_ports"`
	SourcePrefixes   []string `json:"source_prefixes" yaml:"source_prefixes"`
}

// IsInbound reports whether the rule applies to inbound traffic. Sources
// that carry no direction are treated as inbound.
func (r Rule) IsInbound() bool {
	return r.Direction == "" || strings.EqualFold(r.Direction, DirectionInbound)
}

// HasPort reports whether port appears literally in the destination ports
func (r Rule) HasPort(port string) bool {
	for _, p := range r.DestinationPorts {
		if p == port {
			return true
		}
	}
	return false
}

// RuleSetPair holds the authoritative and configured ranges for one provider
type RuleSetPair struct {
	Provider      Provider
	Authoritative CIDRSet
	Configured    CIDRSet
}
