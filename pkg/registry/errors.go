package registry

import "errors"

// Error represents a domain error from registry operations.
//
// These are business logic errors (dataset not found, duplicate organization,
// malformed tag, etc.) as opposed to infrastructure errors (network failure,
// disk error). Transport layers translate the Code to their own status codes;
// the core never inspects infrastructure errors beyond wrapping them.
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the object path related to the error (if applicable)
	Path string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode represents the category of a registry error.
type ErrorCode int

const (
	// CodeNotFound indicates the requested organization/dataset/path/token
	// doesn't exist
	CodeNotFound ErrorCode = iota

	// CodeBadRequest indicates malformed or missing required input
	// Examples: blank tag, upload against a closed batch, empty path
	CodeBadRequest

	// CodeConflict indicates the operation collides with existing state
	// Examples: move destination already exists, duplicate organization
	CodeConflict

	// CodeUnauthorized indicates the caller lacks rights over the target
	CodeUnauthorized

	// CodeQuotaExceeded indicates a storage ceiling was reached.
	// Surfaced as a BadRequest-class failure to clients.
	CodeQuotaExceeded
)

// NotFound returns a CodeNotFound error.
func NotFound(message string, path ...string) *Error {
	return newError(CodeNotFound, message, path)
}

// BadRequest returns a CodeBadRequest error.
func BadRequest(message string, path ...string) *Error {
	return newError(CodeBadRequest, message, path)
}

// Conflict returns a CodeConflict error.
func Conflict(message string, path ...string) *Error {
	return newError(CodeConflict, message, path)
}

// Unauthorized returns a CodeUnauthorized error.
func Unauthorized(message string) *Error {
	return newError(CodeUnauthorized, message, nil)
}

// QuotaExceeded returns a CodeQuotaExceeded error.
func QuotaExceeded(message string, path ...string) *Error {
	return newError(CodeQuotaExceeded, message, path)
}

func newError(code ErrorCode, message string, path []string) *Error {
	e := &Error{Code: code, Message: message}
	if len(path) > 0 {
		e.Path = path[0]
	}
	return e
}

// IsNotFound reports whether err is a registry error with CodeNotFound.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsBadRequest reports whether err is a registry error with CodeBadRequest.
func IsBadRequest(err error) bool { return hasCode(err, CodeBadRequest) }

// IsConflict reports whether err is a registry error with CodeConflict.
func IsConflict(err error) bool { return hasCode(err, CodeConflict) }

// IsUnauthorized reports whether err is a registry error with CodeUnauthorized.
func IsUnauthorized(err error) bool { return hasCode(err, CodeUnauthorized) }

// IsQuotaExceeded reports whether err is a registry error with CodeQuotaExceeded.
func IsQuotaExceeded(err error) bool { return hasCode(err, CodeQuotaExceeded) }

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
