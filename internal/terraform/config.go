package terraform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	hcljson "github.com/hashicorp/hcl/v2/json"
	"github.com/yourusername/nsgwatch/internal/logger"
	"github.com/yourusername/nsgwatch/internal/models"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "variable", LabelNames: []string{"name"}},
		{Type: "locals"},
		{Type: "resource", LabelNames: []string{"type", "name"}},
	},
}

var ruleAttributes = []string{
	"name",
	"direction",
	"access",
	"protocol",
	"priority",
	"description",
	"source_address_prefix",
	"source_address_prefixes",
	"source_port_range",
	"destination_port_range",
	"destination_port_ranges",
	"destination_address_prefix",
	"network_security_group_name",
	"resource_group_name",
}

var (
	variableSchema = &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{{Name: "default"}},
	}
	groupSchema = &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{{Name: "name"}},
		Blocks:     []hcl.BlockHeaderSchema{{Type: blockSecurityRule}},
	}
	ruleSchema = attributeSchema(ruleAttributes)
)

func attributeSchema(names []string) *hcl.BodySchema {
	schema := &hcl.BodySchema{}
	for _, n := range names {
		schema.Attributes = append(schema.Attributes, hcl.AttributeSchema{Name: n})
	}
	return schema
}

// functions available to expressions in configuration files
var functions = map[string]function.Function{
	"concat":    stdlib.ConcatFunc,
	"flatten":   stdlib.FlattenFunc,
	"format":    stdlib.FormatFunc,
	"join":      stdlib.JoinFunc,
	"lower":     stdlib.LowerFunc,
	"split":     stdlib.SplitFunc,
	"trimspace": stdlib.TrimSpaceFunc,
	"upper":     stdlib.UpperFunc,
}

// ConfigSource reads rules from the .tf and .tf.json files of a directory.
// Variable defaults and locals are resolved; other references evaluate to
// null.
type ConfigSource struct {
	dir       string
	groupName string
	logger    *logger.Logger
}

// NewConfigSource creates a source for the configuration in dir
func NewConfigSource(dir, groupName string) *ConfigSource {
	return &ConfigSource{
		dir:       dir,
		groupName: groupName,
		logger: logger.WithFields(map[string]interface{}{
			"component": "hcl",
			"dir":       dir,
		}),
	}
}

// Rules implements nsg.RuleSource
func (s *ConfigSource) Rules(_ context.Context) ([]models.Rule, error) {
	rules, err := ParseConfigDir(s.dir, s.groupName, s.logger)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Read %d rules from configuration", len(rules))
	return rules, nil
}

type resourceBlock struct {
	kind  string
	label string
	body  hcl.Body
}

// ParseConfigDir parses every configuration file in dir and returns the
// security rules declared for groupName, or for every group when groupName
// is empty
func ParseConfigDir(dir, groupName string, log *logger.Logger) ([]models.Rule, error) {
	if log == nil {
		log = logger.DefaultLogger
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var (
		variables []*hcl.Block
		locals    []*hcl.Block
		resources []resourceBlock
	)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		file, err := parseFile(path)
		if err != nil {
			return nil, err
		}
		if file == nil {
			continue
		}

		content, _, diags := file.Body.PartialContent(fileSchema)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %v", path, diags)
		}

		for _, block := range content.Blocks {
			switch block.Type {
			case "variable":
				variables = append(variables, block)
			case "locals":
				locals = append(locals, block)
			case "resource":
				kind := block.Labels[0]
				if kind == resourceSecurityGroup || kind == resourceSecurityRule {
					resources = append(resources, resourceBlock{kind: kind, label: block.Labels[1], body: block.Body})
				}
			}
		}
	}

	ctx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
		Functions: functions,
	}
	ctx.Variables["var"] = cty.ObjectVal(loadVariables(variables, ctx, log))
	ctx.Variables["local"] = cty.ObjectVal(loadLocals(locals, ctx, log))

	groups := map[string]cty.Value{}
	for _, r := range resources {
		if r.kind != resourceSecurityGroup {
			continue
		}
		content, _, _ := r.body.PartialContent(groupSchema)
		name := cty.NullVal(cty.String)
		if attr, ok := content.Attributes["name"]; ok {
			name = evaluate(attr.Expr, ctx, log)
		}
		groups[r.label] = cty.ObjectVal(map[string]cty.Value{"name": name})
	}
	if len(groups) > 0 {
		ctx.Variables[resourceSecurityGroup] = cty.ObjectVal(groups)
	}

	var rules []models.Rule
	for _, r := range resources {
		switch r.kind {
		case resourceSecurityGroup:
			content, _, diags := r.body.PartialContent(groupSchema)
			if diags.HasErrors() {
				return nil, fmt.Errorf("failed to parse %s.%s: %v", r.kind, r.label, diags)
			}
			if groupName != "" && stringAttr(evaluateAttributes(content.Attributes, ctx, log), "name") != groupName {
				continue
			}
			for _, block := range content.Blocks {
				ruleContent, _, diags := block.Body.PartialContent(ruleSchema)
				if diags.HasErrors() {
					return nil, fmt.Errorf("failed to parse %s.%s: %v", r.kind, r.label, diags)
				}
				rules = append(rules, ruleFromAttributes(evaluateAttributes(ruleContent.Attributes, ctx, log)))
			}
		case resourceSecurityRule:
			content, _, diags := r.body.PartialContent(ruleSchema)
			if diags.HasErrors() {
				return nil, fmt.Errorf("failed to parse %s.%s: %v", r.kind, r.label, diags)
			}
			attrs := evaluateAttributes(content.Attributes, ctx, log)
			if groupName != "" && stringAttr(attrs, "network_security_group_name") != groupName {
				continue
			}
			rules = append(rules, ruleFromAttributes(attrs))
		}
	}

	if len(rules) == 0 {
		return nil, ErrNoRules
	}
	return rules, nil
}

// parseFile parses a native or JSON configuration file. Other files yield nil.
func parseFile(path string) (*hcl.File, error) {
	var parse func([]byte, string) (*hcl.File, hcl.Diagnostics)
	switch {
	case strings.HasSuffix(path, ".tf.json"):
		parse = hcljson.Parse
	case strings.HasSuffix(path, ".tf"):
		parse = func(src []byte, filename string) (*hcl.File, hcl.Diagnostics) {
			return hclsyntax.ParseConfig(src, filename, hcl.Pos{Line: 1, Column: 1})
		}
	default:
		return nil, nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	file, diags := parse(src, path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %v", path, diags)
	}
	return file, nil
}

// loadVariables evaluates variable defaults. Variables without a default are
// null.
func loadVariables(blocks []*hcl.Block, ctx *hcl.EvalContext, log *logger.Logger) map[string]cty.Value {
	variables := make(map[string]cty.Value)
	for _, block := range blocks {
		name := block.Labels[0]
		content, _, diags := block.Body.PartialContent(variableSchema)
		if diags.HasErrors() {
			log.Warn("Failed to read variable %s: %v", name, diags)
			variables[name] = cty.NullVal(cty.DynamicPseudoType)
			continue
		}
		if attr, ok := content.Attributes["default"]; ok {
			variables[name] = evaluate(attr.Expr, ctx, log)
		} else {
			variables[name] = cty.NullVal(cty.DynamicPseudoType)
		}
	}
	return variables
}

// loadLocals evaluates locals in declaration order; a local may refer to
// variables and to locals declared before it
func loadLocals(blocks []*hcl.Block, ctx *hcl.EvalContext, log *logger.Logger) map[string]cty.Value {
	locals := make(map[string]cty.Value)
	for _, block := range blocks {
		attrs, diags := block.Body.JustAttributes()
		if diags.HasErrors() {
			log.Warn("Failed to read locals: %v", diags)
			continue
		}
		for _, attr := range sortedAttributes(attrs) {
			ctx.Variables["local"] = cty.ObjectVal(locals)
			locals[attr.Name] = evaluate(attr.Expr, ctx, log)
		}
	}
	return locals
}

// sortedAttributes orders attributes by source position
func sortedAttributes(attrs hcl.Attributes) []*hcl.Attribute {
	out := make([]*hcl.Attribute, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Range.Start.Byte < out[j].Range.Start.Byte
	})
	return out
}

// evaluate returns null for expressions that cannot be resolved
func evaluate(expr hcl.Expression, ctx *hcl.EvalContext, log *logger.Logger) cty.Value {
	val, diags := expr.Value(ctx)
	if diags.HasErrors() {
		log.Debug("Unresolved expression at %s: %v", expr.Range(), diags)
		return cty.NullVal(cty.DynamicPseudoType)
	}
	return val
}

func evaluateAttributes(attrs hcl.Attributes, ctx *hcl.EvalContext, log *logger.Logger) map[string]interface{} {
	out := make(map[string]interface{}, len(attrs))
	for name, attr := range attrs {
		if v := toGo(evaluate(attr.Expr, ctx, log)); v != nil {
			out[name] = v
		}
	}
	return out
}

// toGo converts a cty value into the shapes produced by encoding/json
func toGo(val cty.Value) interface{} {
	if val.IsNull() || !val.IsWhollyKnown() {
		return nil
	}

	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString()
	case ty == cty.Number:
		f, _ := val.AsBigFloat().Float64()
		return f
	case ty == cty.Bool:
		return val.True()
	case ty.IsListType() || ty.IsSetType() || ty.IsTupleType():
		var out []interface{}
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			if g := toGo(v); g != nil {
				out = append(out, g)
			}
		}
		return out
	case ty.IsMapType() || ty.IsObjectType():
		out := make(map[string]interface{})
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			if g := toGo(v); g != nil {
				out[k.AsString()] = g
			}
		}
		return out
	}
	return nil
}
