// Package errors defines stable error codes for retrieval failures.
package errors

import (
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// StoreUnavailable indicates the backing store is not reachable
	StoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	// QueryTimeout indicates a store query exceeded its deadline
	QueryTimeout ErrorCode = "QUERY_TIMEOUT"
	// SchemaMismatch indicates a query referenced columns the store lacks
	SchemaMismatch ErrorCode = "SCHEMA_MISMATCH"
	// VocabularyMissing indicates the tag vocabulary could not be loaded
	VocabularyMissing ErrorCode = "VOCABULARY_MISSING"
	// SourceNotFound indicates the original source file does not exist
	SourceNotFound ErrorCode = "SOURCE_NOT_FOUND"
	// SourceReadFailed indicates the source file exists but could not be read
	SourceReadFailed ErrorCode = "SOURCE_READ_FAILED"
	// InvalidRange indicates a byte range with start >= end or start < 0
	InvalidRange ErrorCode = "INVALID_RANGE"
	// BadFingerprint indicates a fingerprint that failed to parse
	BadFingerprint ErrorCode = "BAD_FINGERPRINT"
	// CompoundMissing indicates an atom references an unknown compound
	CompoundMissing ErrorCode = "COMPOUND_MISSING"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// Error represents a retrieval error with a stable code and message.
// Every public entry point of the engine degrades rather than returning
// one of these; they surface only in logs and diagnostics.
type Error struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error
}

// New creates a new Error
func New(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// CodeOf extracts the stable code from an error, or InternalError for
// errors that did not originate here.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if me, ok := err.(*Error); ok {
		return me.Code
	}
	return InternalError
}
