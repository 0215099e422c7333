package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeServiceUnavailable is used when a dependency is down
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeValidationRange is used when a value is out of range
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
)

// Tenant error codes
const (
	// ErrCodeUnauthorized is used when the caller cannot be identified
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeTenantRequired is used when no tenant is attached to the request
	ErrCodeTenantRequired = "ERR_TENANT_REQUIRED"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeBusinessRule is used for generic business rule violations
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// Payment error codes. These are the fee engine's own codes and are sent to
// clients unchanged, since callers branch on them.
const (
	ErrCodeFeeAccountNotFound      = "FEE_ACCOUNT_NOT_FOUND"
	ErrCodeLedgerEntryNotFound     = "LEDGER_ENTRY_NOT_FOUND"
	ErrCodeLedgerEntryDeleted      = "LEDGER_ENTRY_DELETED"
	ErrCodeInvalidPlanType         = "INVALID_PLAN_TYPE"
	ErrCodePlanMismatch            = "PLAN_MISMATCH"
	ErrCodeStudentMismatch         = "STUDENT_MISMATCH"
	ErrCodeEnrollmentHasAccount    = "ENROLLMENT_HAS_ACCOUNT"
	ErrCodeEMIIndexRequired        = "EMI_INDEX_REQUIRED"
	ErrCodeEMIIndexOutOfRange      = "EMI_INDEX_OUT_OF_RANGE"
	ErrCodeEMIAlreadyPaid          = "EMI_ALREADY_PAID"
	ErrCodeEMIOutOfOrder           = "EMI_OUT_OF_ORDER"
	ErrCodeEMIScheduleMissing      = "EMI_SCHEDULE_MISSING"
	ErrCodeInvalidInstallmentCount = "INVALID_INSTALLMENT_COUNT"
	ErrCodeInvalidScheduleTotal    = "INVALID_SCHEDULE_TOTAL"
	ErrCodeInvalidSchedule         = "INVALID_SCHEDULE"
	ErrCodeNegativeFee             = "NEGATIVE_FEE"
	ErrCodeInvalidDueDay           = "INVALID_DUE_DAY"
	ErrCodeInvalidAmount           = "INVALID_AMOUNT"
	ErrCodeInvalidEntryStatus      = "INVALID_ENTRY_STATUS"
	ErrCodeInvalidPaymentMode      = "INVALID_PAYMENT_MODE"
	ErrCodeInvalidPayerType        = "INVALID_PAYER_TYPE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:            http.StatusInternalServerError,
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,

	// Tenant errors
	ErrCodeUnauthorized:   http.StatusUnauthorized,
	ErrCodeTenantRequired: http.StatusUnauthorized,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState: http.StatusUnprocessableEntity,
	ErrCodeBusinessRule: http.StatusUnprocessableEntity,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// Rate limiting -> 429 Too Many Requests
	ErrCodeRateLimited: http.StatusTooManyRequests,

	// Payment lookups
	ErrCodeFeeAccountNotFound:  http.StatusNotFound,
	ErrCodeLedgerEntryNotFound: http.StatusNotFound,

	// Malformed payment input
	ErrCodeInvalidPlanType:         http.StatusBadRequest,
	ErrCodeEMIIndexRequired:        http.StatusBadRequest,
	ErrCodeEMIIndexOutOfRange:      http.StatusBadRequest,
	ErrCodeInvalidInstallmentCount: http.StatusBadRequest,
	ErrCodeInvalidScheduleTotal:    http.StatusBadRequest,
	ErrCodeInvalidSchedule:         http.StatusBadRequest,
	ErrCodeNegativeFee:             http.StatusBadRequest,
	ErrCodeInvalidDueDay:           http.StatusBadRequest,
	ErrCodeInvalidAmount:           http.StatusBadRequest,
	ErrCodeInvalidPaymentMode:      http.StatusBadRequest,
	ErrCodeInvalidPayerType:        http.StatusBadRequest,

	// Payments that conflict with the account's state
	ErrCodePlanMismatch:         http.StatusUnprocessableEntity,
	ErrCodeStudentMismatch:      http.StatusUnprocessableEntity,
	ErrCodeEMIAlreadyPaid:       http.StatusUnprocessableEntity,
	ErrCodeEMIOutOfOrder:        http.StatusUnprocessableEntity,
	ErrCodeEMIScheduleMissing:   http.StatusUnprocessableEntity,
	ErrCodeLedgerEntryDeleted:   http.StatusUnprocessableEntity,
	ErrCodeInvalidEntryStatus:   http.StatusUnprocessableEntity,
	ErrCodeEnrollmentHasAccount: http.StatusConflict,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps shared domain error codes to standardized codes
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"UNAUTHORIZED":         ErrCodeUnauthorized,
	"TENANT_REQUIRED":      ErrCodeTenantRequired,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"VALIDATION_FAILED":    ErrCodeValidation,
	"BAD_REQUEST":          ErrCodeBadRequest,
	"INTERNAL_ERROR":       ErrCodeInternal,
	"INVALID_EMAIL":        ErrCodeInvalidInput,
}

// NormalizeErrorCode converts a legacy error code to the standardized format
// If the code is already in the new format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
