// Package errors provides standardized error handling for the underwriting service.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Request validation. Never retryable: the input itself is wrong.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Policy compliance oracle failures. The pipeline fails closed on all of
	// these; an unreachable or unparsable oracle is never treated as compliant.
	ErrCodeOracleTimeout     ErrorCode = "ORACLE_TIMEOUT"
	ErrCodeOracleUnavailable ErrorCode = "ORACLE_UNAVAILABLE"
	ErrCodeOracleMalformed   ErrorCode = "ORACLE_MALFORMED_RESPONSE"

	// Policy document handling.
	ErrCodePolicyLoadFailed ErrorCode = "POLICY_LOAD_FAILED"

	// Persistence and sinks.
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeDuplicateRequest         ErrorCode = "DUPLICATE_REQUEST"
	ErrCodeIndexWriteFailed         ErrorCode = "INDEX_WRITE_FAILED"
	ErrCodeEventPublishFailed       ErrorCode = "EVENT_PUBLISH_FAILED"
	ErrCodeNotificationSendFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches structured metadata and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine
// when the evaluation runs as a Zeebe job.
type BPMNError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
	Retries   int    `json:"retries"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationFailedError creates a non-retryable validation error. Details
// carries the human-readable summary; attach the per-field violation list via
// WithMetadata("violations", ...).
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Loan application failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOracleTimeoutError creates a retryable oracle timeout error.
func NewOracleTimeoutError(timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeOracleTimeout,
		Message:   "Policy compliance check timed out",
		Details:   fmt.Sprintf("oracle call exceeded %s timeout", timeout),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewOracleUnavailableError creates a retryable oracle transport error.
func NewOracleUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOracleUnavailable,
		Message:   "Policy compliance service unreachable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewOracleMalformedError creates a non-retryable error for unparsable or
// schema-invalid oracle output.
func NewOracleMalformedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeOracleMalformed,
		Message:   "Policy compliance response could not be parsed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPolicyLoadFailedError creates a non-retryable policy document error.
func NewPolicyLoadFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePolicyLoadFailed,
		Message:   "Policy documents could not be loaded",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateRequestError creates a non-retryable duplicate request error.
func NewDuplicateRequestError(requestID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateRequest,
		Message:   "Loan request already evaluated",
		Details:   fmt.Sprintf("requestId: %s", requestID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewIndexWriteFailedError creates a retryable index write error.
func NewIndexWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexWriteFailed,
		Message:   "Outcome index write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEventPublishFailedError creates a retryable event publish error.
func NewEventPublishFailedError(topic string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEventPublishFailed,
		Message:   "Decision event publish failed",
		Details:   fmt.Sprintf("topic: %s, error: %s", topic, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected internal error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes. The codes
// are identical so BPMN boundary events can match on them directly.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidationFailed:         "VALIDATION_FAILED",
	ErrCodeOracleTimeout:            "ORACLE_TIMEOUT",
	ErrCodeOracleUnavailable:        "ORACLE_UNAVAILABLE",
	ErrCodeOracleMalformed:          "ORACLE_MALFORMED_RESPONSE",
	ErrCodePolicyLoadFailed:         "POLICY_LOAD_FAILED",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeDatabaseInsertFailed:     "DATABASE_INSERT_FAILED",
	ErrCodeDuplicateRequest:         "DUPLICATE_REQUEST",
	ErrCodeIndexWriteFailed:         "INDEX_WRITE_FAILED",
	ErrCodeEventPublishFailed:       "EVENT_PUBLISH_FAILED",
	ErrCodeNotificationSendFailed:   "NOTIFICATION_SEND_FAILED",
	ErrCodeInternal:                 "INTERNAL_ERROR",
}

// GetRetryCount returns the recommended retry count per error code. The
// pipeline itself never retries the oracle; these counts drive the Zeebe
// job-level retry behavior only.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeIndexWriteFailed,
		ErrCodeEventPublishFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeOracleUnavailable:
		return 2

	case ErrCodeOracleTimeout:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// FromError normalizes any error into a StandardError.
func FromError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return NewInternalError(err)
}

// IsValidationError reports whether err is a request validation failure.
func IsValidationError(err error) bool {
	stdErr, ok := err.(*StandardError)
	return ok && stdErr.Code == ErrCodeValidationFailed
}

// IsCapabilityFailure reports whether err means the compliance oracle could
// not produce a usable verdict. Callers use this to distinguish "try again
// later" from "fix your input".
func IsCapabilityFailure(err error) bool {
	stdErr, ok := err.(*StandardError)
	if !ok {
		return false
	}
	switch stdErr.Code {
	case ErrCodeOracleTimeout, ErrCodeOracleUnavailable, ErrCodeOracleMalformed:
		return true
	default:
		return false
	}
}
