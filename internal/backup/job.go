package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/google/uuid"

	"dynamodb-backup-export/internal/dynamo"
	"dynamodb-backup-export/internal/logging"

	apperrors "dynamodb-backup-export/internal/errors"
)

// State is a phase of the backup job state machine.
type State string

const (
	StateStart       State = "START"
	StateRestoring   State = "RESTORING"
	StateTableReady  State = "TABLE_READY"
	StateExporting   State = "EXPORTING"
	StateExportReady State = "EXPORT_READY"
	StateCleaningUp  State = "CLEANING_UP"
	StateDone        State = "DONE"
	StateFailed      State = "FAILED"
)

// BackupJob orchestrates one backup export run. A job instance is
// single-use: it holds no state across invocations beyond its
// collaborators, and overlapping runs for the same source table are
// safe because each run restores into a uniquely named table.
type BackupJob struct {
	tables    dynamo.TableAPI
	lifecycle *TempTableLifecycle
	verifier  *ManifestVerifier
	poller    *Poller
	retry     *apperrors.RetryHandler
	logger    *logging.Logger
	config    Config
	now       func() time.Time
	runID     string
	state     State
}

// NewBackupJob creates a job over the given service APIs.
func NewBackupJob(tables dynamo.TableAPI, objects dynamo.ObjectAPI, config Config, logger *logging.Logger) *BackupJob {
	poller := NewPoller(config.PollInterval, logger)
	retry := apperrors.NewRetryHandler(config.RetryConfig())

	return &BackupJob{
		tables:    tables,
		lifecycle: NewTempTableLifecycle(tables, poller, retry, logger),
		verifier:  NewManifestVerifier(objects, logger),
		poller:    poller,
		retry:     retry,
		logger:    logger,
		config:    config,
		now:       time.Now,
		runID:     uuid.NewString(),
		state:     StateStart,
	}
}

// State returns the job's current state machine phase.
func (j *BackupJob) State() State {
	return j.state
}

func (j *BackupJob) setState(s State) {
	j.state = s
	j.logger.WithFields(map[string]interface{}{
		"run_id": j.runID,
		"state":  string(s),
	}).Debug("Job state changed")
}

// RunLiveExport executes the direct export variant: a time-travel
// export of the permanent source table. All errors are converted into a
// structured 500 response; the caller never sees a raised error.
func (j *BackupJob) RunLiveExport(ctx context.Context, req BackupRequest) Response {
	done := j.logger.LogOperationStart("live_export", map[string]interface{}{
		"run_id":      j.runID,
		"table":       req.SourceTableName,
		"export_time": req.ExportTime.Format(time.RFC3339),
	})

	j.setState(StateExporting)
	exportTime := req.ExportTime
	exportArn, err := j.initiateExport(ctx, req.SourceTableARN, req.Prefix, &exportTime, req.ExportFormat)
	if err != nil {
		j.setState(StateFailed)
		done(err)
		return NewErrorResponse(fmt.Errorf("error during export: %w", err))
	}

	if j.config.WaitForExport {
		j.setState(StateExportReady)
		if _, err := j.waitForExport(ctx, exportArn); err != nil {
			j.setState(StateFailed)
			done(err)
			return NewErrorResponse(fmt.Errorf("error during export: %w", err))
		}
	}

	j.setState(StateDone)
	done(nil)
	return NewSuccessResponse(
		"Point-in-time export started for table "+req.SourceTableName,
		exportArn,
		req.ExportTime,
		S3Location(req.Bucket, req.Prefix),
	)
}

// RunRestoreExport executes the restore-then-export variant. Cleanup of
// the temporary table is always attempted exactly once, with the name
// precomputed on the request, and a cleanup failure never masks the
// primary error. Failures are returned as errors so the invoking
// scheduler sees a failed run.
func (j *BackupJob) RunRestoreExport(ctx context.Context, req BackupRequest) (Response, error) {
	if !req.RestorePath() {
		err := apperrors.NewAppError(apperrors.ErrorTypeConfiguration,
			"restore-export requires a restore lag", nil)
		return NewErrorResponse(err), err
	}

	done := j.logger.LogOperationStart("restore_export", map[string]interface{}{
		"run_id":       j.runID,
		"table":        req.SourceTableName,
		"temp_table":   req.TempTableName,
		"restore_time": req.ExportTime.Format(time.RFC3339),
	})

	resp, runErr := j.restoreAndExport(ctx, req)

	// Cleanup runs regardless of where the run failed. If the restore
	// never created the table, Destroy treats absence as success.
	j.setState(StateCleaningUp)
	cleanupErr := j.lifecycle.Destroy(ctx, req.TempTableName)

	if runErr != nil {
		if cleanupErr != nil {
			j.logger.Errorf("Cleanup after failure also failed: %v", cleanupErr)
		}
		j.setState(StateFailed)
		done(runErr)
		return NewErrorResponse(runErr), runErr
	}
	if cleanupErr != nil {
		j.setState(StateFailed)
		done(cleanupErr)
		return NewErrorResponse(cleanupErr), cleanupErr
	}

	j.setState(StateDone)
	done(nil)
	return resp, nil
}

// restoreAndExport performs the fallible middle of the restore variant:
// restore, wait, export, wait, verify.
func (j *BackupJob) restoreAndExport(ctx context.Context, req BackupRequest) (Response, error) {
	j.setState(StateRestoring)
	handle, err := j.lifecycle.CreateFromSnapshot(ctx, req.SourceTableName, req.TempTableName, req.ExportTime)
	if err != nil {
		return Response{}, err
	}
	j.setState(StateTableReady)

	j.setState(StateExporting)
	exportTime := j.now().In(req.RequestedAt.Location())
	destPrefix := DestinationPrefix(req.Prefix, req.TempTableName, exportTime)

	// Full export of the restored table: no export time means the
	// latest state, which is exactly the restored snapshot.
	exportArn, err := j.initiateExport(ctx, handle.ARN, destPrefix, nil, req.ExportFormat)
	if err != nil {
		return Response{}, err
	}

	j.setState(StateExportReady)
	export, err := j.waitForExport(ctx, exportArn)
	if err != nil {
		return Response{}, err
	}

	if j.config.Verify {
		if _, err := j.verifier.Verify(ctx, req.Bucket, destPrefix, exportArn); err != nil {
			return Response{}, err
		}
	}

	j.logger.Infof("Export completed, manifest at s3://%s/%s",
		req.Bucket, ManifestSummaryKey(destPrefix, exportArn))

	return NewSuccessResponse(
		"Restore and export completed for table "+req.SourceTableName,
		export.ExportArn,
		exportTime,
		"s3://"+req.Bucket+"/"+destPrefix,
	), nil
}

// initiateExport starts an export with retry around the initiating
// call. A nil exportTime requests a full export of the table's current
// state; otherwise the service produces the snapshot as of that time.
func (j *BackupJob) initiateExport(ctx context.Context, tableArn, destPrefix string, exportTime *time.Time, format string) (string, error) {
	input := &dynamodb.ExportTableToPointInTimeInput{
		TableArn:     aws.String(tableArn),
		S3Bucket:     aws.String(j.config.Bucket),
		ExportFormat: aws.String(format),
	}
	if destPrefix != "" {
		input.S3Prefix = aws.String(destPrefix)
	}
	if exportTime != nil {
		input.ExportTime = aws.Time(*exportTime)
	}

	var exportArn string
	err := j.retry.Retry(ctx, func() error {
		out, err := j.tables.ExportTableToPointInTimeWithContext(ctx, input)
		if err != nil {
			return err
		}
		exportArn = aws.StringValue(out.ExportDescription.ExportArn)
		return nil
	})
	j.logger.LogExportOperation(tableArn, exportArn, S3Location(j.config.Bucket, destPrefix), err)
	if err != nil {
		return "", err
	}
	return exportArn, nil
}

// waitForExport polls the export until it reaches a terminal status.
// FAILED and CANCELLED surface the service's failure message verbatim.
func (j *BackupJob) waitForExport(ctx context.Context, exportArn string) (*ExportJob, error) {
	export := &ExportJob{ExportArn: exportArn}

	err := j.poller.Wait(ctx, "export "+ExportID(exportArn), func(ctx context.Context) (Decision, error) {
		out, err := j.tables.DescribeExportWithContext(ctx, &dynamodb.DescribeExportInput{
			ExportArn: aws.String(exportArn),
		})
		if err != nil {
			return Continue, apperrors.NewAppError(apperrors.ErrorTypeResourceState,
				"failed to check export status", err)
		}

		desc := out.ExportDescription
		export.Status = ExportStatus(aws.StringValue(desc.ExportStatus))
		export.FailureMessage = aws.StringValue(desc.FailureMessage)
		j.logger.LogPollStatus("export "+ExportID(exportArn), string(export.Status))

		switch export.Status {
		case ExportStatusCompleted:
			return Done, nil
		case ExportStatusInProgress:
			return Continue, nil
		case ExportStatusFailed, ExportStatusCancelled:
			msg := export.FailureMessage
			if msg == "" {
				msg = "no failure message"
			}
			return Continue, apperrors.NewAppError(apperrors.ErrorTypeExportFailure,
				fmt.Sprintf("export failed or cancelled: %s", msg), nil)
		default:
			return Continue, apperrors.NewAppError(apperrors.ErrorTypeResourceState,
				fmt.Sprintf("unexpected export status: %s", export.Status), nil)
		}
	})
	if err != nil {
		return nil, err
	}
	return export, nil
}
