package application

import (
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynamodb-backup-export/internal/backup"
	"dynamodb-backup-export/internal/dynamo"
	"dynamodb-backup-export/internal/logging"
)

type stubTables struct {
	exportErr   error
	exportCalls int
	lastExport  *dynamodb.ExportTableToPointInTimeInput
}

func (s *stubTables) DescribeTableWithContext(ctx aws.Context, input *dynamodb.DescribeTableInput, opts ...request.Option) (*dynamodb.DescribeTableOutput, error) {
	return nil, awserr.New(dynamodb.ErrCodeResourceNotFoundException, "not found", nil)
}

func (s *stubTables) DeleteTableWithContext(ctx aws.Context, input *dynamodb.DeleteTableInput, opts ...request.Option) (*dynamodb.DeleteTableOutput, error) {
	return &dynamodb.DeleteTableOutput{}, nil
}

func (s *stubTables) RestoreTableToPointInTimeWithContext(ctx aws.Context, input *dynamodb.RestoreTableToPointInTimeInput, opts ...request.Option) (*dynamodb.RestoreTableToPointInTimeOutput, error) {
	return &dynamodb.RestoreTableToPointInTimeOutput{}, nil
}

func (s *stubTables) ExportTableToPointInTimeWithContext(ctx aws.Context, input *dynamodb.ExportTableToPointInTimeInput, opts ...request.Option) (*dynamodb.ExportTableToPointInTimeOutput, error) {
	s.exportCalls++
	s.lastExport = input
	if s.exportErr != nil {
		return nil, s.exportErr
	}
	return &dynamodb.ExportTableToPointInTimeOutput{
		ExportDescription: &dynamodb.ExportDescription{
			ExportArn: aws.String("arn:export"),
		},
	}, nil
}

func (s *stubTables) DescribeExportWithContext(ctx aws.Context, input *dynamodb.DescribeExportInput, opts ...request.Option) (*dynamodb.DescribeExportOutput, error) {
	return &dynamodb.DescribeExportOutput{
		ExportDescription: &dynamodb.ExportDescription{
			ExportArn:    input.ExportArn,
			ExportStatus: aws.String("COMPLETED"),
		},
	}, nil
}

type stubIdentity struct{ account string }

func (s *stubIdentity) GetCallerIdentityWithContext(ctx aws.Context, input *sts.GetCallerIdentityInput, opts ...request.Option) (*sts.GetCallerIdentityOutput, error) {
	return &sts.GetCallerIdentityOutput{Account: aws.String(s.account)}, nil
}

type stubObjects struct{}

func (s *stubObjects) GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	return nil, awserr.New("NoSuchKey", "the specified key does not exist", nil)
}

func testService(tables *stubTables) *dynamo.Service {
	return &dynamo.Service{
		Tables:   tables,
		Identity: &stubIdentity{account: "123456789012"},
		Objects:  &stubObjects{},
		Region:   "ap-northeast-1",
	}
}

func testLogger() *logging.Logger {
	logger, _ := logging.NewLogger(logging.Config{
		Level:  logging.LogLevelQuiet,
		Output: io.Discard,
	})
	return logger
}

func testConfig() backup.Config {
	cfg := backup.DefaultConfig()
	cfg.TableName = "Orders"
	cfg.Bucket = "my-bucket"
	return cfg
}

func TestNewApplicationWithService_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.TableName = ""

	_, err := NewApplicationWithService(cfg, testService(&stubTables{}), testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table name is required")
}

func TestRunLiveExport_ResolvesARNAndStartsExport(t *testing.T) {
	tables := &stubTables{}
	app, err := NewApplicationWithService(testConfig(), testService(tables), testLogger())
	require.NoError(t, err)

	resp := app.RunLiveExport(context.Background())

	assert.True(t, resp.OK())
	assert.Equal(t, "arn:export", resp.Body.ExportArn)
	require.Equal(t, 1, tables.exportCalls)
	assert.Equal(t, "arn:aws:dynamodb:ap-northeast-1:123456789012:table/Orders",
		aws.StringValue(tables.lastExport.TableArn))
}

func TestRunLiveExport_RuntimeFailureBecomesResponse(t *testing.T) {
	tables := &stubTables{
		exportErr: awserr.New("AccessDeniedException", "not authorized", nil),
	}
	app, err := NewApplicationWithService(testConfig(), testService(tables), testLogger())
	require.NoError(t, err)

	resp := app.RunLiveExport(context.Background())

	// The failure is reported in the body, never raised.
	assert.Equal(t, 500, resp.StatusCode)
	assert.Contains(t, resp.Body.Error, "error during export")
}
