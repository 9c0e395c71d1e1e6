// Package secrets reads JSON credentials from AWS Secrets Manager.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/yourusername/nsgwatch/internal/logger"
)

// Errors reported by the secret store
var (
	ErrDecryptionFailure = errors.New("secret could not be decrypted with the provided KMS key")
	ErrInternalService   = errors.New("secrets manager internal service error")
	ErrInvalidParameter  = errors.New("invalid parameter in secret request")
	ErrInvalidRequest    = errors.New("secret request is invalid for the current state of the resource")
	ErrNotFound          = errors.New("secret not found")
	ErrEmptySecret       = errors.New("secret has no value")
)

var errorCodes = map[string]error{
	"DecryptionFailure":         ErrDecryptionFailure,
	"InternalServiceError":      ErrInternalService,
	"InvalidParameterException": ErrInvalidParameter,
	"InvalidRequestException":   ErrInvalidRequest,
	"ResourceNotFoundException": ErrNotFound,
}

// GetSecretValueAPI defines the interface for the GetSecretValue API
type GetSecretValueAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// Store reads secrets by name
type Store struct {
	client GetSecretValueAPI
	logger *logger.Logger
}

// NewStore creates a store for region using the default AWS credential chain.
// Lookups are not retried.
func NewStore(ctx context.Context, region string, optFns ...func(*config.LoadOptions) error) (*Store, error) {
	if region == "" {
		return nil, errors.New("secret region cannot be empty")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithRetryMaxAttempts(1),
	}
	cfg, err := config.LoadDefaultConfig(ctx, append(opts, optFns...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewStoreWithClient(secretsmanager.NewFromConfig(cfg)), nil
}

// NewStoreWithClient wraps an existing Secrets Manager client
func NewStoreWithClient(client GetSecretValueAPI) *Store {
	return &Store{
		client: client,
		logger: logger.WithFields(map[string]interface{}{"component": "secrets"}),
	}
}

// Get returns the raw value of the named secret. SecretString is preferred;
// SecretBinary is used when the string form is absent.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			if sentinel, ok := errorCodes[apiErr.ErrorCode()]; ok {
				s.logger.Error("Unable to read secret %s: %s", name, apiErr.ErrorMessage())
				return nil, fmt.Errorf("%w: %s: %v", sentinel, name, err)
			}
		}
		s.logger.Error("Unable to read secret %s: %v", name, err)
		return nil, fmt.Errorf("failed to read secret %s: %w", name, err)
	}

	if out.SecretString != nil {
		return []byte(aws.ToString(out.SecretString)), nil
	}
	if len(out.SecretBinary) > 0 {
		return out.SecretBinary, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrEmptySecret, name)
}

// Decode reads the named secret and unmarshals its JSON value into v
func (s *Store) Decode(ctx context.Context, name string, v interface{}) error {
	raw, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode secret %s: %w", name, err)
	}
	return nil
}
