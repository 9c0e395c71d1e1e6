// Package checker runs one SMTP allow-list check: it reads the security group,
// resolves each provider's published ranges, reconciles them and sends the
// resulting message.
package checker

import (
	"errors"
	"fmt"

	"github.com/yourusername/nsgwatch/internal/detector"
	"github.com/yourusername/nsgwatch/internal/logger"
	"github.com/yourusername/nsgwatch/internal/models"
	"github.com/yourusername/nsgwatch/internal/notify"
	"github.com/yourusername/nsgwatch/internal/nsg"
	"github.com/yourusername/nsgwatch/internal/report"
	"github.com/yourusername/nsgwatch/internal/resolver"
)

// ProviderSource binds a provider to the source of its authoritative ranges
type ProviderSource struct {
	Provider models.Provider
	Source   resolver.AuthoritativeSource
}

// Container holds all the dependencies of a check
type Container struct {
	ruleSource    nsg.RuleSource
	classifier    nsg.Classifier
	providers     []ProviderSource
	port          string
	securityGroup string

	detector  *detector.Detector
	formatter report.Formatter
	notifier  notify.Notifier
	channel   string

	logger *logger.Logger
}

// ContainerOption is a function that configures the container
type ContainerOption func(*Container) error

// WithRuleSource sets the backend the security group rules are read from
func WithRuleSource(source nsg.RuleSource) ContainerOption {
	return func(c *Container) error {
		if source == nil {
			return errors.New("rule source cannot be nil")
		}
		c.ruleSource = source
		return nil
	}
}

// WithClassifier replaces the default rule name classifier
func WithClassifier(classifier nsg.Classifier) ContainerOption {
	return func(c *Container) error {
		if classifier == nil {
			return errors.New("classifier cannot be nil")
		}
		c.classifier = classifier
		return nil
	}
}

// WithProvider adds a provider and its authoritative source. Providers are
// resolved and reported in the order they are added.
func WithProvider(provider models.Provider, source resolver.AuthoritativeSource) ContainerOption {
	return func(c *Container) error {
		if source == nil {
			return fmt.Errorf("authoritative source for %s cannot be nil", provider.DisplayName)
		}
		for _, p := range c.providers {
			if p.Provider.Key == provider.Key {
				return fmt.Errorf("provider %s added twice", provider.Key)
			}
		}
		c.providers = append(c.providers, ProviderSource{Provider: provider, Source: source})
		return nil
	}
}

// WithPort sets the destination port rules are checked for
func WithPort(port string) ContainerOption {
	return func(c *Container) error {
		c.port = port
		return nil
	}
}

// WithSecurityGroup sets the group name shown in the report
func WithSecurityGroup(name string) ContainerOption {
	return func(c *Container) error {
		c.securityGroup = name
		return nil
	}
}

// WithFormatter replaces the message formatter
func WithFormatter(formatter report.Formatter) ContainerOption {
	return func(c *Container) error {
		c.formatter = formatter
		return nil
	}
}

// WithNotifier sets where the message is sent. Without a notifier the
// message is only rendered.
func WithNotifier(notifier notify.Notifier, channel string) ContainerOption {
	return func(c *Container) error {
		c.notifier = notifier
		c.channel = channel
		return nil
	}
}

// WithLogger sets the logger
func WithLogger(log *logger.Logger) ContainerOption {
	return func(c *Container) error {
		if log != nil {
			c.logger = log
		}
		return nil
	}
}

// NewContainer creates a container with all dependencies
func NewContainer(opts ...ContainerOption) (*Container, error) {
	container := &Container{
		classifier: nsg.DefaultClassifier(),
		port:       nsg.DefaultPort,
		detector:   detector.NewDetector(),
		formatter:  &report.MessageFormatter{},
		logger:     logger.DefaultLogger,
	}

	for _, opt := range opts {
		if err := opt(container); err != nil {
			return nil, fmt.Errorf("applying container option: %w", err)
		}
	}

	if container.ruleSource == nil {
		return nil, errors.New("a rule source is required")
	}
	if len(container.providers) == 0 {
		return nil, errors.New("at least one provider is required")
	}

	return container, nil
}

// Providers returns the configured providers in order
func (c *Container) Providers() []models.Provider {
	out := make([]models.Provider, 0, len(c.providers))
	for _, p := range c.providers {
		out = append(out, p.Provider)
	}
	return out
}

// Fetcher returns a rule fetcher over the container's source and classifier
func (c *Container) Fetcher() *nsg.Fetcher {
	return nsg.NewFetcher(c.ruleSource, c.classifier, c.Providers(), c.port, c.logger)
}
