// Package aws reads the ingress rules of an EC2 security group so that they
// can be checked against the published mail provider ranges.
package aws

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/yourusername/nsgwatch/internal/logger"
	"github.com/yourusername/nsgwatch/internal/models"
)

// Common AWS errors that we want to handle specifically
var (
	ErrGroupNotFound = errors.New("security group not found")
	ErrInvalidRegion = errors.New("invalid AWS region")
	ErrAccessDenied  = errors.New("access denied to AWS resources")
)

// EC2DescribeSecurityGroupsAPI defines the interface for the DescribeSecurityGroups API
// This interface allows us to mock the EC2 client in tests
type EC2DescribeSecurityGroupsAPI interface {
	DescribeSecurityGroups(
		ctx context.Context,
		params *ec2.DescribeSecurityGroupsInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeSecurityGroupsOutput, error)
}

// SecurityGroupSource reads the rules of one EC2 security group
type SecurityGroupSource struct {
	Client  EC2DescribeSecurityGroupsAPI
	GroupID string
	logger  *logger.Logger
}

// NewSecurityGroupSource creates a source for groupID using the default AWS
// credential chain. Each request is sent once; optFns are applied after the
// defaults.
func NewSecurityGroupSource(ctx context.Context, region, groupID string, optFns ...func(*config.LoadOptions) error) (*SecurityGroupSource, error) {
	if region == "" {
		return nil, fmt.Errorf("%w: region cannot be empty", ErrInvalidRegion)
	}
	if groupID == "" {
		return nil, fmt.Errorf("%w: group ID cannot be empty", ErrGroupNotFound)
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(so *retry.StandardOptions) {
				so.MaxAttempts = 1
			})
		}),
	}
	cfg, err := config.LoadDefaultConfig(ctx, append(opts, optFns...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSecurityGroupSourceWithClient(ec2.NewFromConfig(cfg), groupID, region), nil
}

// NewSecurityGroupSourceWithClient wraps an existing EC2 API client
func NewSecurityGroupSourceWithClient(client EC2DescribeSecurityGroupsAPI, groupID, region string) *SecurityGroupSource {
	log := logger.WithFields(map[string]interface{}{
		"component": "aws-client",
		"region":    region,
		"group_id":  groupID,
	})
	log.Info("Initialized AWS EC2 client")

	return &SecurityGroupSource{
		Client:  client,
		GroupID: groupID,
		logger:  log,
	}
}

// Rules implements nsg.RuleSource. Each IP range of an ingress or egress
// permission becomes one rule named by the range description.
func (s *SecurityGroupSource) Rules(ctx context.Context) ([]models.Rule, error) {
	s.logger.Debug("Describing security group")

	result, err := s.Client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		GroupIds: []string{s.GroupID},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "UnauthorizedOperation", "AccessDenied":
				s.logger.Error("Access denied when describing security group")
				return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
			case "InvalidGroup.NotFound", "InvalidGroupId.Malformed":
				s.logger.Warn("Security group not found")
				return nil, fmt.Errorf("%w: %s: %v", ErrGroupNotFound, s.GroupID, err)
			}
		}

		s.logger.Error("Failed to describe security group: %v", err)
		return nil, fmt.Errorf("failed to describe security group: %w", err)
	}

	if len(result.SecurityGroups) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, s.GroupID)
	}

	group := result.SecurityGroups[0]
	rules := convertPermissions(group.IpPermissions, models.DirectionInbound)
	rules = append(rules, convertPermissions(group.IpPermissionsEgress, "outbound")...)

	s.logger.Info("Successfully retrieved security group %s: %d rules", aws.ToString(group.GroupName), len(rules))
	return rules, nil
}

func convertPermissions(permissions []types.IpPermission, direction string) []models.Rule {
	var rules []models.Rule
	for _, perm := range permissions {
		port := portRange(perm.FromPort, perm.ToPort)
		for _, r := range perm.IpRanges {
			rules = append(rules, models.Rule{
				Name:             aws.ToString(r.Description),
				Direction:        direction,
				Protocol:         aws.ToString(perm.IpProtocol),
				DestinationPorts: []string{port},
				SourcePrefixes:   []string{aws.ToString(r.CidrIp)},
			})
		}
	}
	return rules
}

// portRange renders an EC2 port range: "N" for a single port, "from-to"
// otherwise and "*" when the permission covers every port
func portRange(from, to *int32) string {
	if from == nil || to == nil || aws.ToInt32(from) == -1 {
		return "*"
	}
	f, t := aws.ToInt32(from), aws.ToInt32(to)
	if f == t {
		return strconv.Itoa(int(f))
	}
	return fmt.Sprintf("%d-%d", f, t)
}
