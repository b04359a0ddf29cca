// Package secretstore pushes CI credentials to AWS Secrets Manager.
//
// Values flow one way: they are written under a configured prefix and are
// never logged or echoed by any caller in this repository.
package secretstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// api is the subset of the Secrets Manager client the store uses.
type api interface {
	CreateSecret(ctx context.Context, in *secretsmanager.CreateSecretInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, in *secretsmanager.PutSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Store reads and writes named secrets under a prefix.
type Store struct {
	sm     api
	prefix string
}

// New builds a Store from the ambient AWS credential chain.
func New(ctx context.Context, region, prefix string) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Store{sm: secretsmanager.NewFromConfig(awsCfg), prefix: prefix}, nil
}

// newWithClient wires an explicit client; used by tests.
func newWithClient(sm api, prefix string) *Store {
	return &Store{sm: sm, prefix: prefix}
}

func (s *Store) qualified(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// Put stores a value under the prefixed name with create-or-update
// semantics. Error messages carry the secret's name, never its value.
func (s *Store) Put(ctx context.Context, name, value string) error {
	full := s.qualified(name)
	_, err := s.sm.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(full),
		SecretString: aws.String(value),
	})
	if err == nil {
		return nil
	}

	var exists *smtypes.ResourceExistsException
	if !errors.As(err, &exists) {
		return fmt.Errorf("failed to create secret %s: %w", full, err)
	}

	_, err = s.sm.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(full),
		SecretString: aws.String(value),
	})
	if err != nil {
		return fmt.Errorf("failed to update secret %s: %w", full, err)
	}
	return nil
}

// Get fetches a value by prefixed name.
func (s *Store) Get(ctx context.Context, name string) (string, error) {
	full := s.qualified(name)
	out, err := s.sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(full),
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch secret %s: %w", full, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", full)
	}
	return *out.SecretString, nil
}
