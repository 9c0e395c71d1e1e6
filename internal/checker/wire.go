package checker

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/yourusername/nsgwatch/internal/aws"
	"github.com/yourusername/nsgwatch/internal/azure"
	"github.com/yourusername/nsgwatch/internal/config"
	"github.com/yourusername/nsgwatch/internal/logger"
	"github.com/yourusername/nsgwatch/internal/models"
	"github.com/yourusername/nsgwatch/internal/notify"
	"github.com/yourusername/nsgwatch/internal/nsg"
	"github.com/yourusername/nsgwatch/internal/resolver"
	"github.com/yourusername/nsgwatch/internal/secrets"
	"github.com/yourusername/nsgwatch/internal/terraform"
)

// Build creates a container from configuration. Credentials are resolved
// first, then the rule source, resolvers and notifier are constructed. Extra
// options are applied last and may override any of them.
func Build(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	log := logger.DefaultLogger

	source, err := NewRuleSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	providers, err := ProviderSources(cfg, log)
	if err != nil {
		return nil, err
	}

	notifier, err := NewNotifier(ctx, cfg)
	if err != nil {
		return nil, err
	}

	base := []ContainerOption{
		WithRuleSource(source),
		WithClassifier(Classifier(cfg)),
		WithPort(cfg.NSG.Port),
		WithSecurityGroup(cfg.SecurityGroupName()),
		WithNotifier(notifier, cfg.Notify.Channel),
		WithLogger(log),
	}

	for _, p := range providers {
		base = append(base, WithProvider(p.Provider, p.Source))
	}

	return NewContainer(append(base, opts...)...)
}

// Classifier matches rule names against the configured provider substrings.
// GSuite is tried first, so a name carrying both substrings is a GSuite rule.
func Classifier(cfg *config.Config) *nsg.SubstringClassifier {
	return nsg.NewSubstringClassifier(
		nsg.Match{Provider: models.ProviderGSuite, Substring: cfg.Providers.GSuiteRuleMatch},
		nsg.Match{Provider: models.ProviderO365, Substring: cfg.Providers.O365RuleMatch},
	)
}

// ProviderSources creates the authoritative sources: the published endpoint
// list for O365 and the netblock TXT records for GSuite
func ProviderSources(cfg *config.Config, log *logger.Logger) ([]ProviderSource, error) {
	lookup, err := resolver.NewDNSClient(cfg.Providers.DNSServers, cfg.Providers.DNSTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create DNS client: %w", err)
	}

	published := resolver.NewPublishedListResolver(
		cfg.Providers.O365URL,
		cfg.Providers.O365HostSuffix,
		cfg.NSG.Port,
		resolver.WithHTTPClient(&http.Client{Timeout: cfg.Providers.HTTPTimeout}),
		resolver.WithPublishedListLogger(log),
	)

	return []ProviderSource{
		{Provider: models.ProviderO365, Source: published},
		{Provider: models.ProviderGSuite, Source: resolver.NewDNSResolver(lookup, cfg.Providers.GSuiteNetblocks, log)},
	}, nil
}

// NewRuleSource creates the rule source selected by RULE_SOURCE
func NewRuleSource(ctx context.Context, cfg *config.Config) (nsg.RuleSource, error) {
	switch cfg.NSG.Source {
	case config.SourceAzure:
		creds, err := AzureCredentials(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return azure.NewNSGSource(creds, cfg.NSG.ResourceGroup, cfg.NSG.Name)
	case config.SourceAWS:
		return aws.NewSecurityGroupSource(ctx, cfg.NSG.AWSRegion, cfg.NSG.AWSGroupID)
	case config.SourceTFState:
		return terraform.NewStateSource(cfg.NSG.TerraformState, cfg.NSG.Name), nil
	case config.SourceHCL:
		return terraform.NewConfigSource(cfg.NSG.TerraformDir, cfg.NSG.Name), nil
	default:
		return nil, fmt.Errorf("%w: unknown RULE_SOURCE %q", config.ErrInvalidConfig, cfg.NSG.Source)
	}
}

// AzureCredentials reads the service principal from the secret store when a
// secret name is configured and from AZURE_* variables otherwise
func AzureCredentials(ctx context.Context, cfg *config.Config) (azure.Credentials, error) {
	if !cfg.UseSecretStore() {
		return azure.Credentials{
			ClientID:       cfg.Azure.ClientID,
			TenantID:       cfg.Azure.TenantID,
			Secret:         cfg.Azure.ClientSecret,
			SubscriptionID: cfg.Azure.SubscriptionID,
		}, nil
	}

	store, err := secrets.NewStore(ctx, cfg.Secrets.Region)
	if err != nil {
		return azure.Credentials{}, err
	}
	return LoadAzureCredentials(ctx, store, cfg.Secrets.Name)
}

// SecretDecoder reads a JSON secret into v
type SecretDecoder interface {
	Decode(ctx context.Context, name string, v interface{}) error
}

// LoadAzureCredentials decodes and validates the credential secret
func LoadAzureCredentials(ctx context.Context, store SecretDecoder, name string) (azure.Credentials, error) {
	var creds azure.Credentials
	if err := store.Decode(ctx, name, &creds); err != nil {
		return azure.Credentials{}, fmt.Errorf("failed to load Azure credentials: %w", err)
	}
	if err := creds.Validate(); err != nil {
		return azure.Credentials{}, err
	}
	return creds, nil
}

// NewNotifier creates the notifier selected by NOTIFY_KIND
func NewNotifier(ctx context.Context, cfg *config.Config) (notify.Notifier, error) {
	switch cfg.Notify.Kind {
	case config.NotifySlack:
		return notify.NewSlackNotifier(cfg.Notify.SlackToken), nil
	case config.NotifySNS:
		region := cfg.Notify.SNSRegion
		if region == "" {
			region = cfg.NSG.AWSRegion
		}
		return notify.NewSNSNotifier(ctx, region)
	case config.NotifyStdout, "":
		return notify.NewWriterNotifier(os.Stdout), nil
	default:
		return nil, fmt.Errorf("%w: unknown NOTIFY_KIND %q", config.ErrInvalidConfig, cfg.Notify.Kind)
	}
}
