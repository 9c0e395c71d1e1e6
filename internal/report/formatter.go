package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yourusername/nsgwatch/internal/models"
	"gopkg.in/yaml.v3"
)

// Bullet prefixes each range in the text message
const Bullet = "• "

// Formatter defines the interface for formatting drift reports
type Formatter interface {
	Format(report *models.DriftReport) (string, error)
}

// FormatType represents the output format for the report
type FormatType string

const (
	// FormatJSON outputs the report in JSON format
	FormatJSON FormatType = "json"
	// FormatYAML outputs the report in YAML format
	FormatYAML FormatType = "yaml"
	// FormatText outputs the report as the notification message
	FormatText FormatType = "text"
)

// NewFormatter creates a new formatter based on the specified format
func NewFormatter(format FormatType) (Formatter, error) {
	switch format {
	case FormatJSON:
		return &jsonFormatter{}, nil
	case FormatYAML:
		return &yamlFormatter{}, nil
	case FormatText:
		return &MessageFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

type jsonFormatter struct{}

func (f *jsonFormatter) Format(report *models.DriftReport) (string, error) {
	if report == nil {
		return "", fmt.Errorf("cannot format nil report")
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to JSON: %w", err)
	}
	return string(data), nil
}

type yamlFormatter struct{}

func (f *yamlFormatter) Format(report *models.DriftReport) (string, error) {
	if report == nil {
		return "", fmt.Errorf("cannot format nil report")
	}

	data, err := yaml.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to YAML: %w", err)
	}
	return string(data), nil
}

// MessageFormatter renders the report as the text sent to the notification
// channel. Every provider gets a missing section; extra sections appear only
// when non-empty.
type MessageFormatter struct{}

// Format implements Formatter
func (f *MessageFormatter) Format(report *models.DriftReport) (string, error) {
	if report == nil {
		return "", fmt.Errorf("cannot format nil report")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SMTP allow-list check for NSG %s\n", report.SecurityGroup)

	for _, d := range report.Providers {
		if d.Missing.Len() == 0 {
			fmt.Fprintf(&sb, "No %s rules are missing from the NSG.\n", d.Provider.DisplayName)
			continue
		}
		fmt.Fprintf(&sb, "The following %s rules are missing from the NSG:\n", d.Provider.DisplayName)
		writeBullets(&sb, d.Missing)
	}

	for _, d := range report.Providers {
		if d.Extra.Len() == 0 {
			continue
		}
		fmt.Fprintf(&sb, "These %s rules are no longer needed in the NSG:\n", d.Provider.DisplayName)
		writeBullets(&sb, d.Extra)
	}

	return sb.String(), nil
}

func writeBullets(sb *strings.Builder, set models.CIDRSet) {
	for _, cidr := range set.Sorted() {
		sb.WriteString(Bullet)
		sb.WriteString(cidr)
		sb.WriteString("\n")
	}
}
