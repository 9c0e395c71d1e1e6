// Package terraform reads Azure network security rules from Terraform state
// and configuration so that the allow-list can be checked before it is
// applied.
package terraform

import (
	"encoding/json"
	"strconv"

	"github.com/yourusername/nsgwatch/internal/models"
)

// Resource types that carry network security rules
const (
	resourceSecurityGroup = "azurerm_network_security_group"
	resourceSecurityRule  = "azurerm_network_security_rule"
	blockSecurityRule     = "security_rule"
)

// ruleFromAttributes builds a rule from azurerm security rule attributes
func ruleFromAttributes(attrs map[string]interface{}) models.Rule {
	rule := models.Rule{
		Name:      stringAttr(attrs, "name"),
		Direction: stringAttr(attrs, "direction"),
		Protocol:  stringAttr(attrs, "protocol"),
	}
	if p, ok := numberAttr(attrs, "priority"); ok {
		rule.Priority = int32(p)
	}
	rule.DestinationPorts = collect(attrs, "destination_port_range", "destination_port_ranges")
	rule.SourcePrefixes = collect(attrs, "source_address_prefix", "source_address_prefixes")
	return rule
}

// inlineRules returns the security_rule entries of a security group
func inlineRules(attrs map[string]interface{}) []models.Rule {
	var rules []models.Rule
	entries, _ := attrs[blockSecurityRule].([]interface{})
	for _, entry := range entries {
		if m, ok := entry.(map[string]interface{}); ok {
			rules = append(rules, ruleFromAttributes(m))
		}
	}
	return rules
}

func stringAttr(attrs map[string]interface{}, name string) string {
	s, _ := attrs[name].(string)
	return s
}

func numberAttr(attrs map[string]interface{}, name string) (int64, bool) {
	switch v := attrs[name].(type) {
	case float64:
		return int64(v), true
	case json.Number:
		i, err := v.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(v, 10, 32)
		return i, err == nil
	}
	return 0, false
}

// collect merges the singular and plural forms azurerm uses for ports and
// prefixes
func collect(attrs map[string]interface{}, single, plural string) []string {
	var out []string
	if s := stringAttr(attrs, single); s != "" {
		out = append(out, s)
	}
	items, _ := attrs[plural].([]interface{})
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
