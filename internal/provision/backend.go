package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/todofleet/fleetctl/internal/config"
)

// s3API is the subset of the S3 client the backend bootstrap uses.
type s3API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutBucketVersioning(ctx context.Context, in *s3.PutBucketVersioningInput, opts ...func(*s3.Options)) (*s3.PutBucketVersioningOutput, error)
}

// dynamoAPI is the subset of the DynamoDB client the backend bootstrap uses.
type dynamoAPI interface {
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Backend bootstraps the remote state storage Terraform depends on: a
// versioned S3 bucket for state and a DynamoDB table for the state lock.
// Ensure is idempotent; existing resources are detected and left alone.
type Backend struct {
	s3  s3API
	ddb dynamoAPI
	cfg config.BackendConfig
}

// NewBackend builds a Backend from the ambient AWS credential chain.
func NewBackend(ctx context.Context, cfg config.BackendConfig) (*Backend, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Backend{
		s3:  s3.NewFromConfig(awsCfg),
		ddb: dynamodb.NewFromConfig(awsCfg),
		cfg: cfg,
	}, nil
}

// newBackendWithClients wires explicit clients; used by tests.
func newBackendWithClients(s3c s3API, ddb dynamoAPI, cfg config.BackendConfig) *Backend {
	return &Backend{s3: s3c, ddb: ddb, cfg: cfg}
}

// Ensure creates the state bucket and lock table if absent. Re-running
// against an existing backend is a no-op.
func (b *Backend) Ensure(ctx context.Context) error {
	if err := b.ensureBucket(ctx); err != nil {
		return err
	}
	return b.ensureLockTable(ctx)
}

func (b *Backend) ensureBucket(ctx context.Context) error {
	_, err := b.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.cfg.Bucket)})
	if err == nil {
		return nil
	}
	if !isBucketNotFound(err) {
		return fmt.Errorf("failed to check state bucket %s: %w", b.cfg.Bucket, err)
	}

	createInput := &s3.CreateBucketInput{Bucket: aws.String(b.cfg.Bucket)}
	// us-east-1 rejects an explicit location constraint.
	if b.cfg.Region != "us-east-1" {
		createInput.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(b.cfg.Region),
		}
	}
	if _, err := b.s3.CreateBucket(ctx, createInput); err != nil {
		if isBucketAlreadyOwned(err) {
			return nil
		}
		return fmt.Errorf("failed to create state bucket %s: %w", b.cfg.Bucket, err)
	}

	_, err = b.s3.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: aws.String(b.cfg.Bucket),
		VersioningConfiguration: &s3types.VersioningConfiguration{
			Status: s3types.BucketVersioningStatusEnabled,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to enable versioning on %s: %w", b.cfg.Bucket, err)
	}
	return nil
}

func (b *Backend) ensureLockTable(ctx context.Context) error {
	_, err := b.ddb.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(b.cfg.LockTable),
	})
	if err == nil {
		return nil
	}
	var notFound *ddbtypes.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to check lock table %s: %w", b.cfg.LockTable, err)
	}

	_, err = b.ddb.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(b.cfg.LockTable),
		BillingMode: ddbtypes.BillingModePayPerRequest,
		AttributeDefinitions: []ddbtypes.AttributeDefinition{
			{AttributeName: aws.String("LockID"), AttributeType: ddbtypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbtypes.KeySchemaElement{
			{AttributeName: aws.String("LockID"), KeyType: ddbtypes.KeyTypeHash},
		},
	})
	if err != nil {
		var inUse *ddbtypes.ResourceInUseException
		if errors.As(err, &inUse) {
			return nil
		}
		return fmt.Errorf("failed to create lock table %s: %w", b.cfg.LockTable, err)
	}
	return nil
}

// isBucketNotFound checks for the typed S3 not-found errors, falling back
// to API error codes.
func isBucketNotFound(err error) bool {
	var nsb *s3types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchBucket" || code == "NotFound"
	}
	return false
}

// isBucketAlreadyOwned checks whether the bucket exists and is ours.
func isBucketAlreadyOwned(err error) bool {
	var owned *s3types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		return true
	}
	var exists *s3types.BucketAlreadyExists
	if errors.As(err, &exists) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists"
	}
	return false
}
