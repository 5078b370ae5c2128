package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dynamodb-backup-export/internal/backup"
	"dynamodb-backup-export/internal/dynamo"
	"dynamodb-backup-export/internal/logging"

	apperrors "dynamodb-backup-export/internal/errors"
)

// Application wires configuration, logging, and the AWS service layer
// into runnable backup jobs.
type Application struct {
	config  backup.Config
	service *dynamo.Service
	logger  *logging.Logger
}

// NewApplication validates the configuration and constructs the AWS
// clients. Configuration problems are fatal here, before any job runs.
func NewApplication(config backup.Config) (*Application, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logLevel := logging.LogLevelNormal
	if config.Quiet {
		logLevel = logging.LogLevelQuiet
	} else if config.Verbose {
		logLevel = logging.LogLevelVerbose
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:   logLevel,
		Format:  config.LogFormat,
		LogFile: config.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	service, err := dynamo.NewService(config.Region)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeConfiguration,
			"failed to initialize AWS clients", err)
	}

	return &Application{
		config:  config,
		service: service,
		logger:  logger,
	}, nil
}

// NewApplicationWithService constructs an application over an existing
// service, used by tests to substitute mocks.
func NewApplicationWithService(config backup.Config, service *dynamo.Service, logger *logging.Logger) (*Application, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Application{
		config:  config,
		service: service,
		logger:  logger,
	}, nil
}

// RunLiveExport runs the direct export variant. Every failure is folded
// into the structured response; the scheduler sees a clean invocation
// and reads the body.
func (a *Application) RunLiveExport(ctx context.Context) backup.Response {
	tableARN, err := a.service.ResolveTableARN(ctx, a.config.TableName)
	if err != nil {
		a.logError(err)
		return backup.NewErrorResponse(fmt.Errorf("error during export: %w", err))
	}

	req, err := backup.NewLiveExportRequest(a.config, tableARN, time.Now())
	if err != nil {
		a.logError(err)
		return backup.NewErrorResponse(fmt.Errorf("error during export: %w", err))
	}

	job := backup.NewBackupJob(a.service.Tables, a.service.Objects, a.config, a.logger)
	return job.RunLiveExport(ctx, req)
}

// RunRestoreExport runs the restore-then-export variant. Failures
// propagate to the caller after best-effort cleanup, so the invoking
// scheduler sees a failed run and can alert or retry.
func (a *Application) RunRestoreExport(ctx context.Context) (backup.Response, error) {
	tableARN, err := a.service.ResolveTableARN(ctx, a.config.TableName)
	if err != nil {
		a.logError(err)
		return backup.NewErrorResponse(err), err
	}

	req, err := backup.NewRestoreExportRequest(a.config, tableARN, time.Now())
	if err != nil {
		a.logError(err)
		return backup.NewErrorResponse(err), err
	}

	job := backup.NewBackupJob(a.service.Tables, a.service.Objects, a.config, a.logger)
	resp, err := job.RunRestoreExport(ctx, req)
	if err != nil {
		a.logError(err)
	}
	return resp, err
}

// Logger exposes the application logger to cmd.
func (a *Application) Logger() *logging.Logger {
	return a.logger
}

func (a *Application) logError(err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		a.logger.WithFields(map[string]interface{}{
			"error_type":  string(appErr.Type),
			"recoverable": appErr.IsRecoverable(),
			"context":     appErr.Context,
		}).Error(appErr.Message)
		return
	}
	a.logger.Errorf("Job failed: %v", err)
}
