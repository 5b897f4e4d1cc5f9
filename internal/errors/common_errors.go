package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeLoad             ErrorType = "LOAD"
	ErrTypeJoinMiss         ErrorType = "JOIN_MISS"
	ErrTypeMissingPredictor ErrorType = "MISSING_PREDICTOR"
	ErrTypeDegenerateFit    ErrorType = "DEGENERATE_FIT"
	ErrTypeTypeCoercion     ErrorType = "TYPE_COERCION"
	ErrTypeValidation       ErrorType = "VALIDATION"
	ErrTypeConfig           ErrorType = "CONFIG"
	ErrTypeStorage          ErrorType = "STORAGE"
)

// ErrDegenerateFit is the cause carried by every DEGENERATE_FIT error.
var ErrDegenerateFit = stderrors.New("degenerate fit")

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// IsType reports whether err or anything it wraps is an AppError of errType.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Type == errType {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// TypeOf returns the ErrorType of the outermost AppError in err, or "".
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// NewLoadError creates an error for an unreachable or unparsable source
func NewLoadError(source string, cause error) *AppError {
	return NewAppError(ErrTypeLoad, fmt.Sprintf("failed to load %s", source), cause).
		WithContext("source", source)
}

// NewJoinMissError creates an error describing rows dropped by an inner join
func NewJoinMissError(join string, rows int) *AppError {
	return NewAppError(ErrTypeJoinMiss, fmt.Sprintf("%d rows without a %s match", rows, join), nil).
		WithContext("join", join).
		WithContext("rows", rows)
}

// NewMissingPredictorError creates an error for rows lacking a model column
func NewMissingPredictorError(model string, rows int) *AppError {
	return NewAppError(ErrTypeMissingPredictor, fmt.Sprintf("%d rows missing a column required by model %s", rows, model), nil).
		WithContext("model", model).
		WithContext("rows", rows)
}

// NewDegenerateFitError creates an error for a model that cannot be estimated
func NewDegenerateFitError(model, reason string) *AppError {
	return NewAppError(ErrTypeDegenerateFit, fmt.Sprintf("model %s: %s", model, reason), ErrDegenerateFit).
		WithContext("model", model)
}

// NewTypeCoercionError creates an error for a non-numeric value where a number is required
func NewTypeCoercionError(entity, series, value string, cause error) *AppError {
	return NewAppError(ErrTypeTypeCoercion,
		fmt.Sprintf("series %s for %s has non-numeric value %q", series, entity, value), cause).
		WithContext("entity", entity).
		WithContext("series", series).
		WithContext("value", value)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}
