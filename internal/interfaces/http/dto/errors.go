package dto

import "net/http"

// Error codes returned in the error envelope.
// Format: ERR_<DESCRIPTION>

// General error codes
const (
	ErrCodeInternal   = "ERR_INTERNAL"
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeRequestTooLarge is used when the body exceeds http.max_body_size
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Document and conversion error codes
const (
	ErrCodeNotFound              = "ERR_NOT_FOUND"
	ErrCodeInvalidInput          = "ERR_INVALID_INPUT"
	ErrCodeInvalidScope          = "ERR_INVALID_SCOPE"
	ErrCodeInvalidKind           = "ERR_INVALID_KIND"
	ErrCodeInvalidItem           = "ERR_INVALID_ITEM"
	ErrCodeInvalidDocument       = "ERR_INVALID_DOCUMENT"
	ErrCodeAlreadyConverted      = "ERR_ALREADY_CONVERTED"
	ErrCodeConversionInProgress  = "ERR_CONVERSION_IN_PROGRESS"
	ErrCodeUnsupportedConversion = "ERR_UNSUPPORTED_CONVERSION"
	ErrCodeSequenceExhausted     = "ERR_SEQUENCE_EXHAUSTED"
	ErrCodeConversionFailed      = "ERR_CONVERSION_FAILED"
)

// Packaging error codes
const (
	ErrCodeInvalidPackaging = "ERR_INVALID_PACKAGING"
	ErrCodePriceNotFound    = "ERR_PRICE_NOT_FOUND"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeNotFound:              http.StatusNotFound,
	ErrCodeInvalidInput:          http.StatusBadRequest,
	ErrCodeInvalidScope:          http.StatusBadRequest,
	ErrCodeInvalidKind:           http.StatusBadRequest,
	ErrCodeInvalidItem:           http.StatusUnprocessableEntity,
	ErrCodeInvalidDocument:       http.StatusUnprocessableEntity,
	ErrCodeAlreadyConverted:      http.StatusConflict,
	ErrCodeConversionInProgress:  http.StatusConflict,
	ErrCodeUnsupportedConversion: http.StatusUnprocessableEntity,
	ErrCodeSequenceExhausted:     http.StatusInternalServerError,
	ErrCodeConversionFailed:      http.StatusInternalServerError,

	ErrCodeInvalidPackaging: http.StatusUnprocessableEntity,
	ErrCodePriceNotFound:    http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to envelope codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":              ErrCodeNotFound,
	"INVALID_INPUT":          ErrCodeInvalidInput,
	"INVALID_SCOPE":          ErrCodeInvalidScope,
	"INVALID_KIND":           ErrCodeInvalidKind,
	"INVALID_ITEM":           ErrCodeInvalidItem,
	"INVALID_DOCUMENT":       ErrCodeInvalidDocument,
	"ALREADY_CONVERTED":      ErrCodeAlreadyConverted,
	"CONVERSION_IN_PROGRESS": ErrCodeConversionInProgress,
	"UNSUPPORTED_CONVERSION": ErrCodeUnsupportedConversion,
	"SEQUENCE_EXHAUSTED":     ErrCodeSequenceExhausted,
	"CONVERSION_FAILED":      ErrCodeConversionFailed,
	"INVALID_PACKAGING":      ErrCodeInvalidPackaging,
	"PRICE_NOT_FOUND":        ErrCodePriceNotFound,
	"INTERNAL_ERROR":         ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to its envelope code.
// Codes already in envelope form, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
