// Package azure reads the security rules of an Azure network security group.
package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"
	"github.com/yourusername/nsgwatch/internal/logger"
	"github.com/yourusername/nsgwatch/internal/models"
)

// Common Azure errors that we want to handle specifically
var (
	ErrMissingCredentials = errors.New("incomplete Azure credentials")
	ErrGroupNotFound      = errors.New("network security group not found")
	ErrAccessDenied       = errors.New("access denied to Azure resources")
)

// Credentials identifies the service principal used to read the NSG. The JSON
// form matches the secret stored in the credential store.
type Credentials struct {
	ClientID       string `json:"client_id"`
	TenantID       string `json:"tenant_id"`
	Secret         string `json:"key"`
	SubscriptionID string `json:"subscription_id"`
}

// Validate reports the first missing field
func (c Credentials) Validate() error {
	switch {
	case c.ClientID == "":
		return fmt.Errorf("%w: client_id is empty", ErrMissingCredentials)
	case c.TenantID == "":
		return fmt.Errorf("%w: tenant_id is empty", ErrMissingCredentials)
	case c.Secret == "":
		return fmt.Errorf("%w: key is empty", ErrMissingCredentials)
	case c.SubscriptionID == "":
		return fmt.Errorf("%w: subscription_id is empty", ErrMissingCredentials)
	}
	return nil
}

// SecurityGroupsAPI is the subset of armnetwork.SecurityGroupsClient used here
type SecurityGroupsAPI interface {
	Get(ctx context.Context, resourceGroupName, networkSecurityGroupName string,
		options *armnetwork.SecurityGroupsClientGetOptions) (armnetwork.SecurityGroupsClientGetResponse, error)
}

// NSGSource reads the rules of one network security group
type NSGSource struct {
	client        SecurityGroupsAPI
	resourceGroup string
	name          string
	logger        *logger.Logger
}

// noRetry disables the azcore retry policy
var noRetry = policy.RetryOptions{MaxRetries: -1}

// ClientOptions returns the ARM client options used by NewNSGSource. Requests
// are sent once.
func ClientOptions() *arm.ClientOptions {
	return &arm.ClientOptions{
		ClientOptions: policy.ClientOptions{Retry: noRetry},
	}
}

// NewNSGSource authenticates with a client secret credential and creates a
// source for the named security group
func NewNSGSource(creds Credentials, resourceGroup, name string) (*NSGSource, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	cred, err := azidentity.NewClientSecretCredential(creds.TenantID, creds.ClientID, creds.Secret,
		&azidentity.ClientSecretCredentialOptions{
			ClientOptions: azcore.ClientOptions{Retry: noRetry},
		})
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	return NewNSGSourceWithCredential(cred, creds.SubscriptionID, resourceGroup, name, ClientOptions())
}

// NewNSGSourceWithCredential creates a source from an existing token
// credential. A nil opts uses ClientOptions.
func NewNSGSourceWithCredential(cred azcore.TokenCredential, subscriptionID, resourceGroup, name string, opts *arm.ClientOptions) (*NSGSource, error) {
	if opts == nil {
		opts = ClientOptions()
	}
	client, err := armnetwork.NewSecurityGroupsClient(subscriptionID, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create security groups client: %w", err)
	}

	return NewNSGSourceWithClient(client, resourceGroup, name), nil
}

// NewNSGSourceWithClient wraps an existing security groups client
func NewNSGSourceWithClient(client SecurityGroupsAPI, resourceGroup, name string) *NSGSource {
	return &NSGSource{
		client:        client,
		resourceGroup: resourceGroup,
		name:          name,
		logger: logger.WithFields(map[string]interface{}{
			"component":      "azure-client",
			"resource_group": resourceGroup,
			"nsg":            name,
		}),
	}
}

// Rules implements nsg.RuleSource. Default security rules are not included.
func (s *NSGSource) Rules(ctx context.Context) ([]models.Rule, error) {
	s.logger.Debug("Fetching network security group")

	resp, err := s.client.Get(ctx, s.resourceGroup, s.name, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			switch respErr.StatusCode {
			case http.StatusNotFound:
				s.logger.Warn("Network security group not found")
				return nil, fmt.Errorf("%w: %s/%s: %v", ErrGroupNotFound, s.resourceGroup, s.name, err)
			case http.StatusUnauthorized, http.StatusForbidden:
				s.logger.Error("Access denied when reading network security group")
				return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
			}
		}
		s.logger.Error("Failed to read network security group: %v", err)
		return nil, fmt.Errorf("failed to read network security group: %w", err)
	}

	var rules []models.Rule
	if resp.Properties != nil {
		for _, sr := range resp.Properties.SecurityRules {
			if sr == nil {
				continue
			}
			rules = append(rules, convertRule(sr))
		}
	}

	s.logger.Info("Successfully retrieved network security group: %d rules", len(rules))
	return rules, nil
}

func convertRule(sr *armnetwork.SecurityRule) models.Rule {
	rule := models.Rule{}
	if sr.Name != nil {
		rule.Name = *sr.Name
	}
	p := sr.Properties
	if p == nil {
		return rule
	}

	if p.Direction != nil {
		rule.Direction = string(*p.Direction)
	}
	if p.Protocol != nil {
		rule.Protocol = string(*p.Protocol)
	}
	if p.Priority != nil {
		rule.Priority = *p.Priority
	}
	rule.DestinationPorts = collect(p.DestinationPortRange, p.DestinationPortRanges)
	rule.SourcePrefixes = collect(p.SourceAddressPrefix, p.SourceAddressPrefixes)
	return rule
}

// collect merges the singular and plural forms ARM uses for ports and prefixes
func collect(single *string, multiple []*string) []string {
	var out []string
	if single != nil && *single != "" {
		out = append(out, *single)
	}
	for _, v := range multiple {
		if v != nil && *v != "" {
			out = append(out, *v)
		}
	}
	return out
}
