// Package errors provides the typed application error used across the service.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code classifies an AppError for transport mapping.
type Code string

const (
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeConflict     Code = "CONFLICT"
	ErrCodeForbidden    Code = "FORBIDDEN"
	ErrCodeUnauthorized Code = "UNAUTHORIZED"
	ErrCodeInternal     Code = "INTERNAL"
)

// AppError is an error carrying a machine-readable code.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError with the given code.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s not found: %s", resource, id)}
}

// InvalidInput reports a validation failure on a single field.
func InvalidInput(field, message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Field: field, Message: message}
}

// Forbidden reports an action the caller is not permitted to take.
func Forbidden(message string) *AppError {
	return &AppError{Code: ErrCodeForbidden, Message: message}
}

// CodeOf returns the code of the first AppError in err's chain, or ErrCodeInternal.
func CodeOf(err error) Code {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// HTTPStatus maps an error to an HTTP status code.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// GRPCStatus converts an error into a gRPC status error.
func GRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	var c codes.Code
	switch CodeOf(err) {
	case ErrCodeNotFound:
		c = codes.NotFound
	case ErrCodeInvalidInput:
		c = codes.InvalidArgument
	case ErrCodeConflict:
		c = codes.FailedPrecondition
	case ErrCodeForbidden:
		c = codes.PermissionDenied
	case ErrCodeUnauthorized:
		c = codes.Unauthenticated
	default:
		c = codes.Internal
	}
	return status.Error(c, err.Error())
}

// FromGRPC converts a gRPC status error back into an AppError.
func FromGRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return Wrap(err, ErrCodeInternal, "rpc failed")
	}
	var code Code
	switch st.Code() {
	case codes.NotFound:
		code = ErrCodeNotFound
	case codes.InvalidArgument:
		code = ErrCodeInvalidInput
	case codes.FailedPrecondition, codes.AlreadyExists:
		code = ErrCodeConflict
	case codes.PermissionDenied:
		code = ErrCodeForbidden
	case codes.Unauthenticated:
		code = ErrCodeUnauthorized
	default:
		code = ErrCodeInternal
	}
	return New(code, st.Message())
}
