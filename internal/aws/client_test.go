package aws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/nsgwatch/internal/aws/testutils"
	"github.com/yourusername/nsgwatch/internal/logger"
	"github.com/yourusername/nsgwatch/internal/models"
)

func TestNewSecurityGroupSource(t *testing.T) {
	tests := []struct {
		name          string
		region        string
		groupID       string
		expectedError error
	}{
		{
			name:          "empty region",
			region:        "",
			groupID:       "sg-123456",
			expectedError: ErrInvalidRegion,
		},
		{
			name:          "empty group",
			region:        "us-west-2",
			groupID:       "",
			expectedError: ErrGroupNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, err := NewSecurityGroupSource(context.Background(), tt.region, tt.groupID)
			assert.ErrorIs(t, err, tt.expectedError)
			assert.Nil(t, source)
		})
	}
}

func newTestSource(api EC2DescribeSecurityGroupsAPI) *SecurityGroupSource {
	return &SecurityGroupSource{
		Client:  api,
		GroupID: "sg-123456",
		logger:  logger.NewLogger(logger.Config{Level: logger.LevelFatal}),
	}
}

func TestRules_Success(t *testing.T) {
	mockSvc := new(testutils.MockEC2API)

	expectedOutput := &ec2.DescribeSecurityGroupsOutput{
		SecurityGroups: []types.SecurityGroup{{
			GroupId:   aws.String("sg-123456"),
			GroupName: aws.String("smtp-inbound"),
			IpPermissions: []types.IpPermission{
				{
					IpProtocol: aws.String("tcp"),
					FromPort:   aws.Int32(25),
					ToPort:     aws.Int32(25),
					IpRanges: []types.IpRange{
						{CidrIp: aws.String("192.168.2.1/24"), Description: aws.String("O365_Rule_1")},
						{CidrIp: aws.String("192.168.0.1/24"), Description: aws.String("GSUITE_Rule_1")},
					},
				},
				{
					IpProtocol: aws.String("tcp"),
					FromPort:   aws.Int32(20),
					ToPort:     aws.Int32(30),
					IpRanges:   []types.IpRange{{CidrIp: aws.String("10.0.0.0/8")}},
				},
			},
			IpPermissionsEgress: []types.IpPermission{{
				IpProtocol: aws.String("-1"),
				IpRanges:   []types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
			}},
		}},
	}

	mockSvc.On("DescribeSecurityGroups", mock.Anything, &ec2.DescribeSecurityGroupsInput{
		GroupIds: []string{"sg-123456"},
	}).Return(expectedOutput, nil)

	rules, err := newTestSource(mockSvc).Rules(context.Background())

	require.NoError(t, err)
	require.Len(t, rules, 4)
	assert.Equal(t, models.Rule{
		Name:             "O365_Rule_1",
		Direction:        models.DirectionInbound,
		Protocol:         "tcp",
		DestinationPorts: []string{"25"},
		SourcePrefixes:   []string{"192.168.2.1/24"},
	}, rules[0])
	assert.Equal(t, []string{"20-30"}, rules[2].DestinationPorts)
	assert.Equal(t, "outbound", rules[3].Direction)
	assert.Equal(t, []string{"*"}, rules[3].DestinationPorts)

	mockSvc.AssertExpectations(t)
}

func TestRules_Error(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(*testutils.MockEC2API)
		expectedErr error
		contains    string
	}{
		{
			name: "group not found",
			setupMock: func(m *testutils.MockEC2API) {
				err := &smithy.GenericAPIError{Code: "InvalidGroup.NotFound", Message: "The security group 'sg-123456' does not exist"}
				m.On("DescribeSecurityGroups", mock.Anything, mock.Anything).Return(nil, err)
			},
			expectedErr: ErrGroupNotFound,
		},
		{
			name: "access denied",
			setupMock: func(m *testutils.MockEC2API) {
				err := &smithy.GenericAPIError{Code: "UnauthorizedOperation", Message: "You are not authorized to perform this operation"}
				m.On("DescribeSecurityGroups", mock.Anything, mock.Anything).Return(nil, err)
			},
			expectedErr: ErrAccessDenied,
		},
		{
			name: "other failure",
			setupMock: func(m *testutils.MockEC2API) {
				m.On("DescribeSecurityGroups", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))
			},
			contains: "failed to describe security group",
		},
		{
			name: "empty result",
			setupMock: func(m *testutils.MockEC2API) {
				m.On("DescribeSecurityGroups", mock.Anything, mock.Anything).
					Return(&ec2.DescribeSecurityGroupsOutput{}, nil)
			},
			expectedErr: ErrGroupNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(testutils.MockEC2API)
			tt.setupMock(mockSvc)

			rules, err := newTestSource(mockSvc).Rules(context.Background())

			assert.Error(t, err)
			assert.Nil(t, rules)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			}
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
			mockSvc.AssertExpectations(t)
		})
	}
}

func TestPortRange(t *testing.T) {
	assert.Equal(t, "25", portRange(aws.Int32(25), aws.Int32(25)))
	assert.Equal(t, "20-30", portRange(aws.Int32(20), aws.Int32(30)))
	assert.Equal(t, "*", portRange(nil, nil))
	assert.Equal(t, "*", portRange(aws.Int32(-1), aws.Int32(-1)))
}

func TestNewSecurityGroupSource_SingleAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	source, err := NewSecurityGroupSource(context.Background(), "us-west-2", "sg-123456",
		config.WithBaseEndpoint(srv.URL),
		config.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	require.NoError(t, err)

	rules, err := source.Rules(context.Background())

	require.Error(t, err)
	assert.Nil(t, rules)
	assert.Equal(t, int32(1), hits.Load())
}
