package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without cause",
			err:      NewAppValidationError("holdout starts before training ends"),
			expected: "[VALIDATION] holdout starts before training ends",
		},
		{
			name:     "with cause",
			err:      NewLoadError("observations", errors.New("connection refused")),
			expected: "[LOAD] failed to load observations: connection refused",
		},
		{
			name:     "degenerate fit wraps sentinel",
			err:      NewDegenerateFitError("cases", "2 rows for 4 parameters"),
			expected: "[DEGENERATE_FIT] model cases: 2 rows for 4 parameters: degenerate fit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestIsType(t *testing.T) {
	coercion := NewTypeCoercionError("AAA", "SP.URB.TOTL.IN.ZS", "n/a", errors.New("invalid syntax"))
	wrapped := fmt.Errorf("feature derivation: %w", coercion)
	nested := NewAppError(ErrTypeValidation, "stage failed", coercion)

	tests := []struct {
		name     string
		err      error
		errType  ErrorType
		expected bool
	}{
		{"direct match", coercion, ErrTypeTypeCoercion, true},
		{"wrapped by fmt", wrapped, ErrTypeTypeCoercion, true},
		{"nested app error", nested, ErrTypeTypeCoercion, true},
		{"outer type of nested", nested, ErrTypeValidation, true},
		{"no match", coercion, ErrTypeLoad, false},
		{"plain error", errors.New("boom"), ErrTypeLoad, false},
		{"nil error", nil, ErrTypeLoad, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsType(tt.err, tt.errType))
		})
	}
}

func TestDegenerateFitSentinel(t *testing.T) {
	err := fmt.Errorf("fit: %w", NewDegenerateFitError("living", "singular design matrix"))

	assert.True(t, errors.Is(err, ErrDegenerateFit))
	assert.Equal(t, ErrTypeDegenerateFit, TypeOf(err))
}

func TestAppError_WithContext(t *testing.T) {
	err := NewTypeCoercionError("BBB", "SP.POP.80UP.FE", "12,5", nil)

	require.NotNil(t, err.Context)
	assert.Equal(t, "BBB", err.Context["entity"])
	assert.Equal(t, "SP.POP.80UP.FE", err.Context["series"])
	assert.Equal(t, "12,5", err.Context["value"])

	err.WithContext("row", 7)
	assert.Equal(t, 7, err.Context["row"])
}

func TestAppError_NilContextMap(t *testing.T) {
	err := &AppError{Type: ErrTypeConfig, Message: "bad"}
	err.WithContext("key", "value")
	assert.Equal(t, "value", err.Context["key"])
}
