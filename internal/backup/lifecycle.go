package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"

	"dynamodb-backup-export/internal/dynamo"
	"dynamodb-backup-export/internal/logging"

	apperrors "dynamodb-backup-export/internal/errors"
)

// TempTableLifecycle creates temporary tables from point-in-time
// snapshots and guarantees their deletion. Destroy is idempotent and
// safe to call even when the restore never completed: a table that does
// not exist is treated as already cleaned up.
type TempTableLifecycle struct {
	tables dynamo.TableAPI
	poller *Poller
	retry  *apperrors.RetryHandler
	logger *logging.Logger
}

// NewTempTableLifecycle creates a lifecycle manager around the given
// table API.
func NewTempTableLifecycle(tables dynamo.TableAPI, poller *Poller, retry *apperrors.RetryHandler, logger *logging.Logger) *TempTableLifecycle {
	return &TempTableLifecycle{
		tables: tables,
		poller: poller,
		retry:  retry,
		logger: logger,
	}
}

// CheckTable performs one status check. Absence is reported in the
// returned TableState rather than as an error, so callers can decide
// whether a missing table means "not visible yet" or "deletion done".
func (l *TempTableLifecycle) CheckTable(ctx context.Context, tableName string) (TableState, error) {
	out, err := l.tables.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		if apperrors.IsNotFound(err) {
			return TableState{Found: false}, nil
		}
		return TableState{}, apperrors.NewAppError(apperrors.ErrorTypeResourceState,
			fmt.Sprintf("failed to describe table %s", tableName), err)
	}

	handle := TableHandle{
		Name:   aws.StringValue(out.Table.TableName),
		ARN:    aws.StringValue(out.Table.TableArn),
		Status: TableStatus(aws.StringValue(out.Table.TableStatus)),
	}
	l.logger.LogPollStatus(handle.Name, string(handle.Status))
	return TableState{Found: true, Handle: handle}, nil
}

// CreateFromSnapshot restores sourceTable as of asOfTime into
// targetTable and waits until the new table is ACTIVE. The initiating
// call is retried with backoff; the wait loop is not.
func (l *TempTableLifecycle) CreateFromSnapshot(ctx context.Context, sourceTable, targetTable string, asOfTime time.Time) (TableHandle, error) {
	err := l.retry.Retry(ctx, func() error {
		_, err := l.tables.RestoreTableToPointInTimeWithContext(ctx, &dynamodb.RestoreTableToPointInTimeInput{
			SourceTableName:         aws.String(sourceTable),
			TargetTableName:         aws.String(targetTable),
			RestoreDateTime:         aws.Time(asOfTime),
			UseLatestRestorableTime: aws.Bool(false),
		})
		return err
	})
	l.logger.LogRestoreOperation(sourceTable, targetTable, asOfTime, err)
	if err != nil {
		return TableHandle{}, err
	}

	var handle TableHandle
	err = l.poller.Wait(ctx, "table "+targetTable, func(ctx context.Context) (Decision, error) {
		state, err := l.CheckTable(ctx, targetTable)
		if err != nil {
			return Continue, err
		}
		if !state.Found {
			// The restored table can take a moment to become visible.
			return Continue, nil
		}
		switch {
		case state.Handle.Status == TableStatusActive:
			handle = state.Handle
			return Done, nil
		case state.Handle.Status.InProgress():
			return Continue, nil
		default:
			return Continue, apperrors.NewAppError(apperrors.ErrorTypeResourceState,
				fmt.Sprintf("unexpected table status: %s", state.Handle.Status), nil)
		}
	})
	if err != nil {
		return TableHandle{}, err
	}

	return handle, nil
}

// Destroy deletes the table and waits until it is gone. A table that
// does not exist is success, not an error; any other failure is logged
// and returned as a cleanup error.
func (l *TempTableLifecycle) Destroy(ctx context.Context, tableName string) error {
	state, err := l.CheckTable(ctx, tableName)
	if err != nil {
		l.logger.LogTableCleanup(tableName, true, err)
		return apperrors.NewAppError(apperrors.ErrorTypeCleanup,
			fmt.Sprintf("failed to check table %s before cleanup", tableName), err)
	}
	if !state.Found {
		l.logger.LogTableCleanup(tableName, false, nil)
		return nil
	}

	_, err = l.tables.DeleteTableWithContext(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		if apperrors.IsNotFound(err) {
			l.logger.LogTableCleanup(tableName, false, nil)
			return nil
		}
		l.logger.LogTableCleanup(tableName, true, err)
		return apperrors.NewAppError(apperrors.ErrorTypeCleanup,
			fmt.Sprintf("failed to delete table %s", tableName), err)
	}

	err = l.poller.Wait(ctx, "deletion of table "+tableName, func(ctx context.Context) (Decision, error) {
		state, err := l.CheckTable(ctx, tableName)
		if err != nil {
			return Continue, err
		}
		if !state.Found || state.Handle.Status == TableStatusDeleted {
			return Done, nil
		}
		if state.Handle.Status == TableStatusDeleting {
			return Continue, nil
		}
		return Continue, apperrors.NewAppError(apperrors.ErrorTypeResourceState,
			fmt.Sprintf("unexpected table status during deletion: %s", state.Handle.Status), nil)
	})
	if err != nil {
		l.logger.LogTableCleanup(tableName, true, err)
		return apperrors.NewAppError(apperrors.ErrorTypeCleanup,
			fmt.Sprintf("failed waiting for table %s to be deleted", tableName), err)
	}

	l.logger.LogTableCleanup(tableName, true, nil)
	return nil
}
