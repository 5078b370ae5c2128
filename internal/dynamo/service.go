// Package dynamo provides the access layer for the external AWS services
// the backup job is a client of: DynamoDB for restores and exports, STS
// for identity resolution, and S3 for reading export artifacts.
package dynamo

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/sts"
)

// TableAPI is the subset of the DynamoDB API the backup job depends on.
// Declared here so tests can substitute a mock implementation.
type TableAPI interface {
	DescribeTableWithContext(ctx aws.Context, input *dynamodb.DescribeTableInput, opts ...request.Option) (*dynamodb.DescribeTableOutput, error)
	DeleteTableWithContext(ctx aws.Context, input *dynamodb.DeleteTableInput, opts ...request.Option) (*dynamodb.DeleteTableOutput, error)
	RestoreTableToPointInTimeWithContext(ctx aws.Context, input *dynamodb.RestoreTableToPointInTimeInput, opts ...request.Option) (*dynamodb.RestoreTableToPointInTimeOutput, error)
	ExportTableToPointInTimeWithContext(ctx aws.Context, input *dynamodb.ExportTableToPointInTimeInput, opts ...request.Option) (*dynamodb.ExportTableToPointInTimeOutput, error)
	DescribeExportWithContext(ctx aws.Context, input *dynamodb.DescribeExportInput, opts ...request.Option) (*dynamodb.DescribeExportOutput, error)
}

// IdentityAPI is the subset of the STS API used to resolve the caller account.
type IdentityAPI interface {
	GetCallerIdentityWithContext(ctx aws.Context, input *sts.GetCallerIdentityInput, opts ...request.Option) (*sts.GetCallerIdentityOutput, error)
}

// ObjectAPI is the subset of the S3 API used to read export artifacts.
type ObjectAPI interface {
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
}

// Service bundles the AWS clients the job needs, constructed from a
// single shared session.
type Service struct {
	Tables   TableAPI
	Identity IdentityAPI
	Objects  ObjectAPI
	Region   string
}

// NewService creates a Service backed by real AWS clients. Credentials and
// region resolution follow the default chain (environment, shared config,
// instance metadata); an explicit region overrides the chain.
func NewService(region string) (*Service, error) {
	opts := session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}
	if region != "" {
		opts.Config = aws.Config{Region: aws.String(region)}
	}

	sess, err := session.NewSessionWithOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	resolved := aws.StringValue(sess.Config.Region)
	if resolved == "" {
		return nil, fmt.Errorf("AWS region is not configured")
	}

	return &Service{
		Tables:   dynamodb.New(sess),
		Identity: sts.New(sess),
		Objects:  s3.New(sess),
		Region:   resolved,
	}, nil
}
