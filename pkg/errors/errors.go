package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("resource conflict")
	ErrInternal     = errors.New("internal server error")
	ErrValidation   = errors.New("validation error")

	// Stock domain errors
	ErrInsufficientStock         = errors.New("insufficient stock")
	ErrInsufficientBatchQuantity = errors.New("insufficient batch quantity")
	ErrInvalidQuantity           = errors.New("invalid quantity")
	ErrNotEditable               = errors.New("not editable in current state")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// Stock domain error constructors

// InsufficientStock is returned when a stock decrement would push a product
// below zero. Available and requested are decimal strings.
func InsufficientStock(productCode, available, requested string) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("insufficient stock for product %s: available %s, requested %s", productCode, available, requested),
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"product":   productCode,
			"available": available,
			"requested": requested,
		},
	}
}

// InsufficientBatchQuantity is returned when a batch consumption exceeds the
// remaining quantity of the lot.
func InsufficientBatchQuantity(batchNumber, available, requested string) *AppError {
	return &AppError{
		Err:        ErrInsufficientBatchQuantity,
		Code:       "INSUFFICIENT_BATCH_QUANTITY",
		Message:    fmt.Sprintf("insufficient quantity in batch %s: available %s, requested %s", batchNumber, available, requested),
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"batch":     batchNumber,
			"available": available,
			"requested": requested,
		},
	}
}

// InvalidQuantity is returned for negative quantities, or fractional
// quantities on non-divisible products.
func InvalidQuantity(message string) *AppError {
	return &AppError{
		Err:        ErrInvalidQuantity,
		Code:       "INVALID_QUANTITY",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NotEditable is returned when a state-machine guard rejects a mutation,
// e.g. counting against a validated inventory or adding items to a
// validated transfer.
func NotEditable(resource, status string) *AppError {
	return &AppError{
		Err:        ErrNotEditable,
		Code:       "NOT_EDITABLE",
		Message:    fmt.Sprintf("%s cannot be modified in status %s", resource, status),
		StatusCode: http.StatusConflict,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
