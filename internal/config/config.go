package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// Rule source kinds
const (
	SourceAzure   = "azure"
	SourceAWS     = "aws"
	SourceTFState = "tfstate"
	SourceHCL     = "hcl"
)

// Notifier kinds
const (
	NotifySlack  = "slack"
	NotifySNS    = "sns"
	NotifyStdout = "stdout"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration for a run. It is built once at startup and
// handed to each component's constructor.
type Config struct {
	NSG       NSGConfig
	Providers ProvidersConfig
	Secrets   SecretsConfig
	Azure     AzureConfig
	Notify    NotifyConfig
	Log       LogConfig
}

// NSGConfig identifies the security group and the backend it is read from.
type NSGConfig struct {
	Source         string `env:"RULE_SOURCE" envDefault:"azure"`
	ResourceGroup  string `env:"AZURE_NSG_RGP"`
	Name           string `env:"AZURE_NSG_NAME"`
	Port           string `env:"RULE_PORT" envDefault:"25"`
	AWSGroupID     string `env:"AWS_SECURITY_GROUP_ID"`
	AWSRegion      string `env:"AWS_REGION"`
	TerraformState string `env:"TF_STATE"`
	TerraformDir   string `env:"TF_DIR"`
}

// ProvidersConfig holds where the authoritative ranges come from and how
// rules are attributed to each provider.
type ProvidersConfig struct {
	O365URL         string        `env:"O365_URL" envDefault:"https://endpoints.office.com/endpoints/worldwide?clientrequestid="`
	O365HostSuffix  string        `env:"O365_HOST_SUFFIX" envDefault:"mail.protection.outlook.com"`
	O365RuleMatch   string        `env:"O365_RULE_MATCH" envDefault:"o365"`
	GSuiteNetblocks []string      `env:"GSUITE_NETBLOCKS" envSeparator:"," envDefault:"_netblocks.google.com,_netblocks2.google.com,_netblocks3.google.com"`
	GSuiteRuleMatch string        `env:"GSUITE_RULE_MATCH" envDefault:"gsuite"`
	DNSServers      []string      `env:"DNS_SERVERS" envSeparator:","`
	DNSTimeout      time.Duration `env:"DNS_TIMEOUT" envDefault:"5s"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
}

// SecretsConfig points at the secret holding the Azure app credentials.
type SecretsConfig struct {
	Name   string `env:"AZURE_APP_SECRET_NAME"`
	Region string `env:"AWS_SECRET_REGION"`
}

// AzureConfig holds credentials used when no secret name is configured.
type AzureConfig struct {
	ClientID       string `env:"AZURE_CLIENT_ID"`
	TenantID       string `env:"AZURE_TENANT_ID"`
	ClientSecret   string `env:"AZURE_CLIENT_SECRET"`
	SubscriptionID string `env:"AZURE_SUBSCRIPTION_ID"`
}

// NotifyConfig selects the notification channel.
type NotifyConfig struct {
	Kind       string `env:"NOTIFY_KIND" envDefault:"stdout"`
	Channel    string `env:"NOTIFY_CHANNEL"`
	SlackToken string `env:"SLACK_TOKEN"`
	SNSRegion  string `env:"SNS_REGION"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// LoadEnvFile loads variables from a dotenv file into the process
// environment. A missing default file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	return LoadWith(env.Options{})
}

// LoadWith loads configuration using the given parse options. Tests use
// Options.Environment to avoid touching the process environment.
func LoadWith(opts env.Options) (*Config, error) {
	cfg := &Config{}

	if err := env.ParseWithOptions(&cfg.NSG, opts); err != nil {
		return nil, fmt.Errorf("parsing nsg config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.Providers, opts); err != nil {
		return nil, fmt.Errorf("parsing providers config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.Secrets, opts); err != nil {
		return nil, fmt.Errorf("parsing secrets config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.Azure, opts); err != nil {
		return nil, fmt.Errorf("parsing azure config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.Notify, opts); err != nil {
		return nil, fmt.Errorf("parsing notify config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.Log, opts); err != nil {
		return nil, fmt.Errorf("parsing log config: %w", err)
	}

	cfg.Providers.GSuiteNetblocks = trimAll(cfg.Providers.GSuiteNetblocks)
	cfg.Providers.DNSServers = trimAll(cfg.Providers.DNSServers)

	return cfg, nil
}

func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// UseSecretStore returns true if Azure credentials come from the secret store.
func (c *Config) UseSecretStore() bool {
	return c.Secrets.Name != ""
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.NSG.Port == "" {
		return fmt.Errorf("%w: RULE_PORT cannot be empty", ErrInvalidConfig)
	}

	switch c.NSG.Source {
	case SourceAzure:
		if c.NSG.ResourceGroup == "" {
			return fmt.Errorf("%w: AZURE_NSG_RGP is required", ErrInvalidConfig)
		}
		if c.NSG.Name == "" {
			return fmt.Errorf("%w: AZURE_NSG_NAME is required", ErrInvalidConfig)
		}
		if c.UseSecretStore() {
			if c.Secrets.Region == "" {
				return fmt.Errorf("%w: AWS_SECRET_REGION is required with AZURE_APP_SECRET_NAME", ErrInvalidConfig)
			}
		} else if c.Azure.ClientID == "" || c.Azure.TenantID == "" || c.Azure.ClientSecret == "" || c.Azure.SubscriptionID == "" {
			return fmt.Errorf("%w: set AZURE_APP_SECRET_NAME or all AZURE_CLIENT_ID, AZURE_TENANT_ID, AZURE_CLIENT_SECRET and AZURE_SUBSCRIPTION_ID", ErrInvalidConfig)
		}
	case SourceAWS:
		if c.NSG.AWSGroupID == "" {
			return fmt.Errorf("%w: AWS_SECURITY_GROUP_ID is required for the aws source", ErrInvalidConfig)
		}
	case SourceTFState:
		if c.NSG.TerraformState == "" {
			return fmt.Errorf("%w: TF_STATE is required for the tfstate source", ErrInvalidConfig)
		}
	case SourceHCL:
		if c.NSG.TerraformDir == "" {
			return fmt.Errorf("%w: TF_DIR is required for the hcl source", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown RULE_SOURCE %q", ErrInvalidConfig, c.NSG.Source)
	}

	if c.Providers.O365URL == "" {
		return fmt.Errorf("%w: O365_URL is required", ErrInvalidConfig)
	}
	if len(c.Providers.GSuiteNetblocks) == 0 {
		return fmt.Errorf("%w: GSUITE_NETBLOCKS is required", ErrInvalidConfig)
	}

	switch c.Notify.Kind {
	case NotifySlack:
		if c.Notify.SlackToken == "" || c.Notify.Channel == "" {
			return fmt.Errorf("%w: SLACK_TOKEN and NOTIFY_CHANNEL are required for slack", ErrInvalidConfig)
		}
	case NotifySNS:
		if c.Notify.Channel == "" {
			return fmt.Errorf("%w: NOTIFY_CHANNEL must hold the topic ARN for sns", ErrInvalidConfig)
		}
	case NotifyStdout:
	default:
		return fmt.Errorf("%w: unknown NOTIFY_KIND %q", ErrInvalidConfig, c.Notify.Kind)
	}

	return nil
}

// SecurityGroupName returns the label used for the monitored group in reports.
func (c *Config) SecurityGroupName() string {
	switch c.NSG.Source {
	case SourceAWS:
		return c.NSG.AWSGroupID
	case SourceTFState:
		if c.NSG.Name != "" {
			return c.NSG.Name
		}
		return c.NSG.TerraformState
	case SourceHCL:
		if c.NSG.Name != "" {
			return c.NSG.Name
		}
		return c.NSG.TerraformDir
	default:
		return c.NSG.Name
	}
}
