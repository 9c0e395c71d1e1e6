package terraform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	tfjson "github.com/hashicorp/terraform-json"
	"github.com/yourusername/nsgwatch/internal/logger"
	"github.com/yourusername/nsgwatch/internal/models"
)

// ErrNoRules is returned when a state or configuration holds no security
// rules for the requested group
var ErrNoRules = errors.New("no network security rules found")

// StateSource reads rules from the JSON form of a Terraform state, as
// produced by "terraform show -json"
type StateSource struct {
	path      string
	groupName string
	logger    *logger.Logger
}

// NewStateSource creates a source for the state file at path. When groupName
// is set, only rules belonging to that security group are returned.
func NewStateSource(path, groupName string) *StateSource {
	return &StateSource{
		path:      path,
		groupName: groupName,
		logger: logger.WithFields(map[string]interface{}{
			"component": "tfstate",
			"path":      path,
		}),
	}
}

// Rules implements nsg.RuleSource
func (s *StateSource) Rules(_ context.Context) ([]models.Rule, error) {
	if s.path == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	content, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	rules, err := ParseState(content, s.groupName)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Read %d rules from state", len(rules))
	return rules, nil
}

// ParseState extracts security rules from a JSON state document
func ParseState(content []byte, groupName string) ([]models.Rule, error) {
	var state tfjson.State
	if err := json.Unmarshal(content, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}

	if state.Values == nil || state.Values.RootModule == nil {
		return nil, fmt.Errorf("%w: state has no values", ErrNoRules)
	}

	rules := collectModule(state.Values.RootModule, groupName)
	if len(rules) == 0 {
		return nil, ErrNoRules
	}
	return rules, nil
}

// collectModule walks a module and its children depth first
func collectModule(module *tfjson.StateModule, groupName string) []models.Rule {
	var rules []models.Rule

	for _, resource := range module.Resources {
		if resource == nil || resource.Mode != tfjson.ManagedResourceMode {
			continue
		}

		switch resource.Type {
		case resourceSecurityGroup:
			if groupName != "" && stringAttr(resource.AttributeValues, "name") != groupName {
				continue
			}
			rules = append(rules, inlineRules(resource.AttributeValues)...)
		case resourceSecurityRule:
			if groupName != "" && stringAttr(resource.AttributeValues, "network_security_group_name") != groupName {
				continue
			}
			rules = append(rules, ruleFromAttributes(resource.AttributeValues))
		}
	}

	for _, child := range module.ChildModules {
		if child == nil {
			continue
		}
		rules = append(rules, collectModule(child, groupName)...)
	}

	return rules
}
