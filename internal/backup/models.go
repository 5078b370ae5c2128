package backup

import (
	"fmt"
	"time"
)

// TableStatus represents the lifecycle status of a DynamoDB table as
// reported by DescribeTable, plus the synthetic NOT_FOUND value used
// when the table does not exist.
type TableStatus string

const (
	TableStatusCreating  TableStatus = "CREATING"
	TableStatusUpdating  TableStatus = "UPDATING"
	TableStatusActive    TableStatus = "ACTIVE"
	TableStatusRestoring TableStatus = "RESTORING"
	TableStatusDeleting  TableStatus = "DELETING"
	TableStatusDeleted   TableStatus = "DELETED"
	TableStatusNotFound  TableStatus = "NOT_FOUND"
)

// InProgress reports whether the status is an expected transitional
// state on the way to ACTIVE.
func (s TableStatus) InProgress() bool {
	return s == TableStatusCreating || s == TableStatusRestoring || s == TableStatusUpdating
}

// ExportStatus represents the status of an export job.
type ExportStatus string

const (
	ExportStatusInProgress ExportStatus = "IN_PROGRESS"
	ExportStatusCompleted  ExportStatus = "COMPLETED"
	ExportStatusFailed     ExportStatus = "FAILED"
	ExportStatusCancelled  ExportStatus = "CANCELLED"
)

// Terminal reports whether the export has reached a final status.
func (s ExportStatus) Terminal() bool {
	return s == ExportStatusCompleted || s == ExportStatusFailed || s == ExportStatusCancelled
}

// TableHandle identifies a table observed during one poll cycle. It is
// never cached beyond a single status check.
type TableHandle struct {
	Name   string
	ARN    string
	Status TableStatus
}

// TableState is the result of one table status check. A missing table is
// an ordinary outcome here, not an error: the restore wait treats it as
// "not visible yet" while the deletion wait treats it as terminal.
type TableState struct {
	Found  bool
	Handle TableHandle
}

// ExportJob tracks a single export initiated against the service. It is
// terminal once the status is COMPLETED, FAILED, or CANCELLED.
type ExportJob struct {
	ExportArn       string
	Status          ExportStatus
	FailureMessage  string
	DestinationPath string
}

// BackupRequest carries everything a single job run needs. It is
// immutable once constructed: in particular the temporary table name is
// computed here, before any fallible step, and reused verbatim for both
// creation and cleanup.
type BackupRequest struct {
	SourceTableName string
	SourceTableARN  string
	TempTableName   string
	RestoreLag      *time.Duration
	Bucket          string
	Prefix          string
	ExportFormat    string
	ExportTime      time.Time
	RequestedAt     time.Time
}

// RestorePath reports whether this request uses the restore-then-export
// variant.
func (r BackupRequest) RestorePath() bool {
	return r.RestoreLag != nil
}

// TempTableName derives the uniquely named temporary table for one
// invocation from the source table name and the invocation epoch.
func TempTableName(sourceTable, suffix string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%d", sourceTable, suffix, now.Unix())
}

// NewLiveExportRequest builds a request for the direct export variant.
// The export time is either now minus the configured lag, or the end of
// the previous month, evaluated in the configured timezone.
func NewLiveExportRequest(cfg Config, tableARN string, now time.Time) (BackupRequest, error) {
	loc, err := cfg.Location()
	if err != nil {
		return BackupRequest{}, err
	}
	localNow := now.In(loc)

	exportTime := localNow.Add(-cfg.ExportLag)
	if cfg.PreviousMonthEnd {
		exportTime = PreviousMonthEnd(localNow)
	}

	return BackupRequest{
		SourceTableName: cfg.TableName,
		SourceTableARN:  tableARN,
		Bucket:          cfg.Bucket,
		Prefix:          cfg.Prefix,
		ExportFormat:    cfg.ExportFormat,
		ExportTime:      exportTime,
		RequestedAt:     localNow,
	}, nil
}

// NewRestoreExportRequest builds a request for the restore-then-export
// variant. The restore point is now minus the restore lag, and the
// temporary table name is fixed here for the rest of the run.
func NewRestoreExportRequest(cfg Config, tableARN string, now time.Time) (BackupRequest, error) {
	loc, err := cfg.Location()
	if err != nil {
		return BackupRequest{}, err
	}
	localNow := now.In(loc)
	lag := cfg.RestoreLag

	return BackupRequest{
		SourceTableName: cfg.TableName,
		SourceTableARN:  tableARN,
		TempTableName:   TempTableName(cfg.TableName, cfg.TempTableSuffix, localNow),
		RestoreLag:      &lag,
		Bucket:          cfg.Bucket,
		Prefix:          cfg.Prefix,
		ExportFormat:    cfg.ExportFormat,
		ExportTime:      localNow.Add(-lag),
		RequestedAt:     localNow,
	}, nil
}
