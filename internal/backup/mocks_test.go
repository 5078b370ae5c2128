package backup

import (
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/s3"

	"dynamodb-backup-export/internal/dynamo"
	"dynamodb-backup-export/internal/logging"

	apperrors "dynamodb-backup-export/internal/errors"
)

// mockTableAPI implements dynamo.TableAPI with scriptable behavior.
type mockTableAPI struct {
	describeTableFn  func(input *dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error)
	deleteTableFn    func(input *dynamodb.DeleteTableInput) (*dynamodb.DeleteTableOutput, error)
	restoreTableFn   func(input *dynamodb.RestoreTableToPointInTimeInput) (*dynamodb.RestoreTableToPointInTimeOutput, error)
	exportTableFn    func(input *dynamodb.ExportTableToPointInTimeInput) (*dynamodb.ExportTableToPointInTimeOutput, error)
	describeExportFn func(input *dynamodb.DescribeExportInput) (*dynamodb.DescribeExportOutput, error)

	describeTableCalls  int
	deleteTableCalls    int
	restoreTableCalls   int
	exportTableCalls    int
	describeExportCalls int
}

func (m *mockTableAPI) DescribeTableWithContext(ctx aws.Context, input *dynamodb.DescribeTableInput, opts ...request.Option) (*dynamodb.DescribeTableOutput, error) {
	m.describeTableCalls++
	return m.describeTableFn(input)
}

func (m *mockTableAPI) DeleteTableWithContext(ctx aws.Context, input *dynamodb.DeleteTableInput, opts ...request.Option) (*dynamodb.DeleteTableOutput, error) {
	m.deleteTableCalls++
	return m.deleteTableFn(input)
}

func (m *mockTableAPI) RestoreTableToPointInTimeWithContext(ctx aws.Context, input *dynamodb.RestoreTableToPointInTimeInput, opts ...request.Option) (*dynamodb.RestoreTableToPointInTimeOutput, error) {
	m.restoreTableCalls++
	return m.restoreTableFn(input)
}

func (m *mockTableAPI) ExportTableToPointInTimeWithContext(ctx aws.Context, input *dynamodb.ExportTableToPointInTimeInput, opts ...request.Option) (*dynamodb.ExportTableToPointInTimeOutput, error) {
	m.exportTableCalls++
	return m.exportTableFn(input)
}

func (m *mockTableAPI) DescribeExportWithContext(ctx aws.Context, input *dynamodb.DescribeExportInput, opts ...request.Option) (*dynamodb.DescribeExportOutput, error) {
	m.describeExportCalls++
	return m.describeExportFn(input)
}

// mockObjectAPI implements dynamo.ObjectAPI over a map of key to body.
type mockObjectAPI struct {
	objects  map[string][]byte
	getCalls []string
}

func (m *mockObjectAPI) GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	key := aws.StringValue(input.Key)
	m.getCalls = append(m.getCalls, key)
	body, ok := m.objects[key]
	if !ok {
		return nil, awserr.New("NoSuchKey", "the specified key does not exist", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(newByteReader(body))}, nil
}

func newByteReader(b []byte) io.Reader {
	return &byteReader{data: b}
}

type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func notFoundErr() error {
	return awserr.New(dynamodb.ErrCodeResourceNotFoundException, "Requested resource not found", nil)
}

func throttledErr() error {
	return awserr.New("ThrottlingException", "Rate exceeded", nil)
}

func activeTableOutput(name, arn string) *dynamodb.DescribeTableOutput {
	return tableOutput(name, arn, string(TableStatusActive))
}

func tableOutput(name, arn, status string) *dynamodb.DescribeTableOutput {
	return &dynamodb.DescribeTableOutput{
		Table: &dynamodb.TableDescription{
			TableName:   aws.String(name),
			TableArn:    aws.String(arn),
			TableStatus: aws.String(status),
		},
	}
}

func exportOutput(arn string) *dynamodb.ExportTableToPointInTimeOutput {
	return &dynamodb.ExportTableToPointInTimeOutput{
		ExportDescription: &dynamodb.ExportDescription{
			ExportArn: aws.String(arn),
		},
	}
}

func exportStatusOutput(arn, status, failureMessage string) *dynamodb.DescribeExportOutput {
	desc := &dynamodb.ExportDescription{
		ExportArn:    aws.String(arn),
		ExportStatus: aws.String(status),
	}
	if failureMessage != "" {
		desc.FailureMessage = aws.String(failureMessage)
	}
	return &dynamodb.DescribeExportOutput{ExportDescription: desc}
}

func quietLogger() *logging.Logger {
	logger, _ := logging.NewLogger(logging.Config{
		Level:  logging.LogLevelQuiet,
		Output: io.Discard,
	})
	return logger
}

// newTestJob builds a job with instant sleeps and a fixed clock.
func newTestJob(cfg Config, tables dynamo.TableAPI, objects dynamo.ObjectAPI, now time.Time) *BackupJob {
	logger := quietLogger()
	noSleep := func(ctx context.Context, d time.Duration) error { return nil }

	poller := NewPoller(cfg.PollInterval, logger)
	poller.sleep = noSleep
	retry := apperrors.NewRetryHandlerWithSleep(cfg.RetryConfig(), noSleep)

	return &BackupJob{
		tables:    tables,
		lifecycle: NewTempTableLifecycle(tables, poller, retry, logger),
		verifier:  NewManifestVerifier(objects, logger),
		poller:    poller,
		retry:     retry,
		logger:    logger,
		config:    cfg,
		now:       func() time.Time { return now },
		runID:     "test-run",
		state:     StateStart,
	}
}
