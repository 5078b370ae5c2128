package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// ErrorTypeConfiguration represents missing or invalid settings, fatal at startup
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeThrottling represents transient throttling or capacity errors
	ErrorTypeThrottling ErrorType = "throttling"
	// ErrorTypeResourceState represents a resource in an unexpected status
	ErrorTypeResourceState ErrorType = "resource_state"
	// ErrorTypeExportFailure represents an export reported FAILED or CANCELLED
	ErrorTypeExportFailure ErrorType = "export_failure"
	// ErrorTypeCleanup represents a failure while deleting a temporary table
	ErrorTypeCleanup ErrorType = "cleanup"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeInterruption represents cancellation by the invoker
	ErrorTypeInterruption ErrorType = "interruption"
	// ErrorTypePermission represents access denied errors
	ErrorTypePermission ErrorType = "permission"
	// ErrorTypeUnknown represents unknown errors
	ErrorTypeUnknown ErrorType = "unknown"
)

// AppError represents an application-specific error with context
type AppError struct {
	Type        ErrorType
	Message     string
	Cause       error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsRecoverable returns whether the error is recoverable
func (e *AppError) IsRecoverable() bool {
	return e.Recoverable
}

// WithContext adds context information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewRecoverableError creates a new recoverable error
func NewRecoverableError(errorType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:        errorType,
		Message:     message,
		Cause:       cause,
		Context:     make(map[string]interface{}),
		Recoverable: true,
	}
}

// throttlingCodes are AWS error codes treated as transient capacity problems.
var throttlingCodes = map[string]bool{
	"ThrottlingException":                    true,
	"ProvisionedThroughputExceededException": true,
	"RequestLimitExceeded":                   true,
	dynamodb.ErrCodeLimitExceededException:   true,
}

// ErrorClassifier provides methods to classify and handle different types of errors
type ErrorClassifier struct{}

// NewErrorClassifier creates a new error classifier
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// ClassifyError analyzes an error and returns an AppError with appropriate classification
func (ec *ErrorClassifier) ClassifyError(err error) *AppError {
	if err == nil {
		return nil
	}

	// Check if it's already an AppError
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if awsErr := ec.classifyAWSError(err); awsErr != nil {
		return awsErr
	}
	if netErr := ec.classifyNetworkError(err); netErr != nil {
		return netErr
	}
	if ctxErr := ec.classifyContextError(err); ctxErr != nil {
		return ctxErr
	}

	return NewAppError(ErrorTypeUnknown, "An unexpected error occurred", err)
}

// classifyAWSError classifies service errors returned by the AWS SDK
func (ec *ErrorClassifier) classifyAWSError(err error) *AppError {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return nil
	}

	code := aerr.Code()
	switch {
	case throttlingCodes[code]:
		return NewRecoverableError(ErrorTypeThrottling,
			"Request throttled by the service", err).
			WithContext("aws_error_code", code)
	case code == dynamodb.ErrCodeInternalServerError || code == "ServiceUnavailable":
		return NewRecoverableError(ErrorTypeThrottling,
			"Service-side error, safe to retry", err).
			WithContext("aws_error_code", code)
	case code == "AccessDeniedException" || code == "UnrecognizedClientException":
		return NewAppError(ErrorTypePermission,
			"Access denied - check IAM permissions for DynamoDB and S3", err).
			WithContext("aws_error_code", code)
	case code == dynamodb.ErrCodeResourceNotFoundException:
		return NewAppError(ErrorTypeResourceState,
			"Resource does not exist", err).
			WithContext("aws_error_code", code)
	case code == dynamodb.ErrCodeTableAlreadyExistsException:
		return NewAppError(ErrorTypeResourceState,
			"Target table already exists", err).
			WithContext("aws_error_code", code)
	case code == dynamodb.ErrCodePointInTimeRecoveryUnavailableException:
		return NewAppError(ErrorTypeConfiguration,
			"Point-in-time recovery is not enabled on the source table", err).
			WithContext("aws_error_code", code)
	case code == dynamodb.ErrCodeInvalidExportTimeException:
		return NewAppError(ErrorTypeConfiguration,
			"Export time is outside the point-in-time recovery window", err).
			WithContext("aws_error_code", code)
	case code == dynamodb.ErrCodeExportConflictException:
		return NewRecoverableError(ErrorTypeThrottling,
			"A conflicting export is already running", err).
			WithContext("aws_error_code", code)
	}

	// Fall back to the SDK's own transience heuristics
	if request.IsErrorThrottle(err) || request.IsErrorRetryable(err) {
		return NewRecoverableError(ErrorTypeThrottling,
			fmt.Sprintf("Retryable service error: %s", code), err).
			WithContext("aws_error_code", code)
	}

	return NewAppError(ErrorTypeUnknown,
		fmt.Sprintf("AWS service error: %s", aerr.Message()), err).
		WithContext("aws_error_code", code)
}

// classifyNetworkError classifies network-related errors
func (ec *ErrorClassifier) classifyNetworkError(err error) *AppError {
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewRecoverableError(ErrorTypeTimeout,
				"Network operation timed out", err)
		}
		return NewRecoverableError(ErrorTypeThrottling,
			"Network error", err)
	}
	return nil
}

// classifyContextError classifies context-related errors
func (ec *ErrorClassifier) classifyContextError(err error) *AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewAppError(ErrorTypeTimeout, "Operation timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewAppError(ErrorTypeInterruption, "Operation was canceled", err)
	}
	return nil
}

// RetryConfig holds configuration for retry operations
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   30 * time.Second,
		MaxDelay:    5 * time.Minute,
	}
}

// RetryHandler provides retry functionality with exponential backoff.
// It wraps the calls that initiate restores and exports; the long poll
// loops have their own continuation logic and are not retried here.
type RetryHandler struct {
	config     RetryConfig
	classifier *ErrorClassifier
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewRetryHandler creates a new retry handler
func NewRetryHandler(config RetryConfig) *RetryHandler {
	return &RetryHandler{
		config:     config,
		classifier: NewErrorClassifier(),
		sleep:      sleepContext,
	}
}

// NewRetryHandlerWithSleep creates a retry handler with an injected sleep
// function so tests can simulate backoff without waiting.
func NewRetryHandlerWithSleep(config RetryConfig, sleep func(ctx context.Context, d time.Duration) error) *RetryHandler {
	rh := NewRetryHandler(config)
	rh.sleep = sleep
	return rh
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry executes a function, retrying recoverable errors with exponential
// backoff, and re-raises the last error after exhausting all attempts.
func (rh *RetryHandler) Retry(ctx context.Context, operation func() error) error {
	var lastErr *AppError

	for attempt := 1; attempt <= rh.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return NewAppError(ErrorTypeInterruption, "Operation canceled", ctx.Err())
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}

		appErr := rh.classifier.ClassifyError(err)
		if !appErr.IsRecoverable() {
			return appErr
		}
		lastErr = appErr

		if attempt == rh.config.MaxAttempts {
			break
		}

		if err := rh.sleep(ctx, rh.BackoffDelay(attempt)); err != nil {
			return NewAppError(ErrorTypeInterruption, "Operation canceled during retry", err)
		}
	}

	return lastErr.WithContext("attempts", rh.config.MaxAttempts)
}

// BackoffDelay returns the delay before retrying after the given attempt:
// min(base * 2^(attempt-1), cap).
func (rh *RetryHandler) BackoffDelay(attempt int) time.Duration {
	delay := rh.config.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= rh.config.MaxDelay {
			return rh.config.MaxDelay
		}
	}
	if delay > rh.config.MaxDelay {
		delay = rh.config.MaxDelay
	}
	return delay
}

// IsRecoverableError checks if an error is recoverable
func IsRecoverableError(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.IsRecoverable()
	}
	return false
}

// GetErrorType returns the error type of an error
func GetErrorType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// IsNotFound reports whether err is the service's resource-not-found error.
func IsNotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code() == dynamodb.ErrCodeResourceNotFoundException
	}
	return false
}
