package backup

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/service/dynamodb"

	apperrors "dynamodb-backup-export/internal/errors"
)

// Config holds the settings for one backup job. Settings come from the
// environment first (the job is normally configured entirely through
// variables on the scheduled task) with flags layered on top by cmd.
type Config struct {
	// TableName is the source table to back up. Required.
	TableName string `mapstructure:"table_name"`
	// Bucket is the destination S3 bucket. Required.
	Bucket string `mapstructure:"bucket"`
	// Prefix is an optional key prefix under the bucket.
	Prefix string `mapstructure:"prefix"`
	// Region overrides the default AWS region resolution.
	Region string `mapstructure:"region"`
	// ExportFormat is DYNAMODB_JSON or ION.
	ExportFormat string `mapstructure:"export_format"`
	// Timezone is the IANA zone the export time is computed in.
	Timezone string `mapstructure:"timezone"`

	// ExportLag is how far in the past the live export snapshot is taken.
	ExportLag time.Duration `mapstructure:"export_lag"`
	// PreviousMonthEnd switches the live export time to the last second
	// of the previous month, for the monthly schedule.
	PreviousMonthEnd bool `mapstructure:"previous_month_end"`
	// WaitForExport makes the live export variant poll until the export
	// completes instead of returning right after initiation.
	WaitForExport bool `mapstructure:"wait_for_export"`

	// RestoreLag is how far in the past the restore point is taken on
	// the restore-then-export variant.
	RestoreLag time.Duration `mapstructure:"restore_lag"`
	// TempTableSuffix names the temporary table: {table}-{suffix}-{epoch}.
	TempTableSuffix string `mapstructure:"temp_table_suffix"`
	// Verify fetches and checks the export manifest after completion.
	Verify bool `mapstructure:"verify"`

	// PollInterval is the delay between status checks while waiting on
	// the service. The wait loops have no timeout of their own; the
	// invoker's deadline is the upper bound.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// Retry settings for the calls that initiate restores and exports.
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`

	// Logging surface.
	Verbose   bool   `mapstructure:"verbose"`
	Quiet     bool   `mapstructure:"quiet"`
	LogFile   string `mapstructure:"log_file"`
	LogFormat string `mapstructure:"log_format"`
}

// DefaultConfig returns the configuration defaults shared by both
// variants.
func DefaultConfig() Config {
	return Config{
		ExportFormat:    dynamodb.ExportFormatDynamodbJson,
		Timezone:        "UTC",
		ExportLag:       time.Hour,
		RestoreLag:      30 * 24 * time.Hour,
		TempTableSuffix: "restored",
		PollInterval:    30 * time.Second,
		MaxRetries:      3,
		RetryBaseDelay:  30 * time.Second,
		RetryMaxDelay:   5 * time.Minute,
		LogFormat:       "text",
	}
}

// Validate checks the required settings. Missing required settings are
// fatal at startup and never retried.
func (c *Config) Validate() error {
	if c.TableName == "" {
		return apperrors.NewAppError(apperrors.ErrorTypeConfiguration,
			"source table name is required (SOURCE_TABLE_NAME or TABLE_NAME)", nil)
	}
	if c.Bucket == "" {
		return apperrors.NewAppError(apperrors.ErrorTypeConfiguration,
			"destination bucket is required (S3_BUCKET_NAME or BUCKET_NAME)", nil)
	}
	switch c.ExportFormat {
	case dynamodb.ExportFormatDynamodbJson, dynamodb.ExportFormatIon:
	default:
		return apperrors.NewAppError(apperrors.ErrorTypeConfiguration,
			fmt.Sprintf("invalid export format %q, must be %s or %s",
				c.ExportFormat, dynamodb.ExportFormatDynamodbJson, dynamodb.ExportFormatIon), nil)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return apperrors.NewAppError(apperrors.ErrorTypeConfiguration,
			"poll interval must be greater than 0", nil)
	}
	if c.MaxRetries < 1 {
		return apperrors.NewAppError(apperrors.ErrorTypeConfiguration,
			"max retries must be at least 1", nil)
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeConfiguration,
			fmt.Sprintf("invalid timezone %q", c.Timezone), err)
	}
	return loc, nil
}

// RetryConfig maps the retry settings onto the retry handler.
func (c *Config) RetryConfig() apperrors.RetryConfig {
	return apperrors.RetryConfig{
		MaxAttempts: c.MaxRetries,
		BaseDelay:   c.RetryBaseDelay,
		MaxDelay:    c.RetryMaxDelay,
	}
}
