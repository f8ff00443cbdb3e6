package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConveyorError_Message(t *testing.T) {
	err := NewError(ErrCodeValidation, "workflow id is empty")
	assert.Equal(t, "[VALIDATION_ERROR] workflow id is empty", err.Error())
}

func TestConveyorError_WithStation(t *testing.T) {
	err := NewErrorf(ErrCodeExecution, "command exited %d", 137).WithStation("build")
	assert.Equal(t, "[EXECUTION_ERROR] station build: command exited 137", err.Error())
	assert.Equal(t, "build", err.Station)
}

func TestConveyorError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewError(ErrCodeStore, "write failed").WithCause(cause)

	assert.ErrorIs(t, err, cause)

	var cerr *ConveyorError
	require.True(t, errors.As(fmt.Errorf("persist: %w", err), &cerr))
	assert.Equal(t, ErrCodeStore, cerr.Code)
}

func TestConveyorError_Details(t *testing.T) {
	err := NewError(ErrCodeInvalidTransition, "bad transition").
		WithDetails(map[string]any{"from": "completed", "to": "running"})

	assert.Equal(t, "completed", err.Details["from"])
	assert.Equal(t, "running", err.Details["to"])
}
