// Package errors provides the standardized error model shared by the HTTP
// API and the BPMN job workers.
package errors

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Client errors
const (
	ErrCodeInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidAddress      ErrorCode = "INVALID_ADDRESS"
	ErrCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodeTierTooLow          ErrorCode = "TIER_TOO_LOW"
)

// Allocation outcomes
const (
	ErrCodeSoldOut             ErrorCode = "SOLD_OUT"
	ErrCodeClaimConflict       ErrorCode = "CLAIM_CONFLICT"
	ErrCodeIssuanceUnavailable ErrorCode = "ISSUANCE_UNAVAILABLE"
)

// Upstream / technical errors
const (
	ErrCodeOracleUnavailable ErrorCode = "ORACLE_UNAVAILABLE"
	ErrCodeOracleTimeout     ErrorCode = "ORACLE_TIMEOUT"
	ErrCodeStoreUnavailable  ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
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

// WithMetadata attaches a key that is echoed back to the caller alongside the
// message (for example the balance on an insufficient-balance rejection).
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// HTTPStatus maps the code onto the transport status.
func (e *StandardError) HTTPStatus() int {
	return HTTPStatusFor(e.Code)
}

// HTTPStatusFor returns the HTTP status for a code. Unknown codes are 500.
func HTTPStatusFor(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidInput, ErrCodeInvalidAddress:
		return http.StatusBadRequest
	case ErrCodeInsufficientBalance:
		return http.StatusUnauthorized
	case ErrCodeTierTooLow:
		return http.StatusForbidden
	case ErrCodeSoldOut, ErrCodeIssuanceUnavailable:
		return http.StatusNotFound
	case ErrCodeClaimConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError reports a request that failed shape validation.
func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid request", details, false)
}

// NewInvalidAddressError reports a wallet that is not a Solana public key.
func NewInvalidAddressError(details string) *StandardError {
	return newError(ErrCodeInvalidAddress, "Invalid wallet address", details, false)
}

// NewInsufficientBalanceError carries the observed balance and the minimum
// as metadata so the caller can render them.
func NewInsufficientBalanceError(balance, minimum string) *StandardError {
	return newError(ErrCodeInsufficientBalance,
		fmt.Sprintf("Insufficient PGT balance: holding %s, minimum required %s", balance, minimum),
		"", false).
		WithMetadata("balance", balance).
		WithMetadata("minimum", minimum)
}

// NewTierTooLowError names the tier the resource requires.
func NewTierTooLowError(required, actual string) *StandardError {
	return newError(ErrCodeTierTooLow,
		fmt.Sprintf("This resource requires %s tier or above", required),
		fmt.Sprintf("caller tier: %s", actual), false).
		WithMetadata("requiredTier", required).
		WithMetadata("tier", actual)
}

func NewSoldOutError(resourceID string) *StandardError {
	return newError(ErrCodeSoldOut, "No tickets available for this resource",
		fmt.Sprintf("resourceId: %s", resourceID), false)
}

// NewClaimConflictError is returned when a concurrent claim won the record.
// The caller may retry.
func NewClaimConflictError(ticketID string) *StandardError {
	return newError(ErrCodeClaimConflict, "Ticket was claimed by another request, please retry",
		fmt.Sprintf("ticketId: %s", ticketID), false)
}

func NewIssuanceUnavailableError(mode string) *StandardError {
	return newError(ErrCodeIssuanceUnavailable, "This issuance route is not enabled",
		fmt.Sprintf("active mode: %s", mode), false)
}

func NewOracleUnavailableError(err error) *StandardError {
	return newError(ErrCodeOracleUnavailable, "Token balance could not be verified", errDetails(err), true)
}

func NewOracleTimeoutError(err error) *StandardError {
	return newError(ErrCodeOracleTimeout, "Token balance lookup timed out", errDetails(err), true)
}

func NewStoreUnavailableError(err error) *StandardError {
	return newError(ErrCodeStoreUnavailable, "Ticket store unavailable", errDetails(err), true)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Internal server error", errDetails(err), false)
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes. The BPMN
// models catch on the same names.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInput:        "INVALID_INPUT",
	ErrCodeInvalidAddress:      "INVALID_ADDRESS",
	ErrCodeInsufficientBalance: "INSUFFICIENT_BALANCE",
	ErrCodeTierTooLow:          "TIER_TOO_LOW",
	ErrCodeSoldOut:             "SOLD_OUT",
	ErrCodeClaimConflict:       "CLAIM_CONFLICT",
	ErrCodeIssuanceUnavailable: "ISSUANCE_UNAVAILABLE",
	ErrCodeOracleUnavailable:   "ORACLE_UNAVAILABLE",
	ErrCodeOracleTimeout:       "ORACLE_TIMEOUT",
	ErrCodeStoreUnavailable:    "STORE_UNAVAILABLE",
	ErrCodeInternal:            "INTERNAL_ERROR",
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeOracleUnavailable, ErrCodeStoreUnavailable:
		return 3
	case ErrCodeOracleTimeout:
		return 2
	default:
		return 0 // Business errors: no retry
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

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INVALID"):
		return "VALIDATION"
	case code == ErrCodeInsufficientBalance || code == ErrCodeTierTooLow:
		return "ACCESS"
	case code == ErrCodeSoldOut || code == ErrCodeClaimConflict || code == ErrCodeIssuanceUnavailable:
		return "ALLOCATION"
	case strings.HasPrefix(codeStr, "ORACLE"):
		return "ORACLE"
	case strings.HasPrefix(codeStr, "STORE"):
		return "STORE"
	default:
		return "OTHER"
	}
}
