package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelMatching(t *testing.T) {
	wrapped := fmt.Errorf("apply: %w", NewUnauthorizedError("waiting on the applicant"))
	assert.True(t, stderrors.Is(wrapped, ErrUnauthorized))
	assert.False(t, stderrors.Is(wrapped, ErrInvalidState))

	pending := NewNoAmendmentsPendingError("app-1")
	assert.True(t, stderrors.Is(pending, ErrNoAmendmentsPending))
	assert.True(t, stderrors.Is(pending, ErrInvalidState))
	assert.False(t, stderrors.Is(NewInvalidStateError("x"), ErrNoAmendmentsPending))
}

func TestConflictKinds(t *testing.T) {
	version := NewVersionConflictError("app-1", 4)
	vote := NewDuplicateVoteError("reviewer-a", "Safe people")

	assert.True(t, stderrors.Is(version, ErrConflict))
	assert.True(t, stderrors.Is(vote, ErrConflict))
	assert.True(t, IsVersionConflict(fmt.Errorf("save: %w", version)))
	assert.False(t, IsVersionConflict(vote))
	assert.Equal(t, 4, version.Metadata["expectedVersion"])
}

func TestErrorString(t *testing.T) {
	err := NewNotFoundError("version", "1.9")
	assert.Contains(t, err.Error(), string(ErrCodeNotFound))
	assert.Contains(t, err.Error(), "1.9")
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantRetries int
	}{
		{"database failure retries", NewQueryExecutionFailedError("select", stderrors.New("connection reset")), 3},
		{"timeout retries twice", NewTimeoutError("zeebe", stderrors.New("deadline exceeded")), 2},
		{"version conflict retries once", NewVersionConflictError("app-1", 1), 1},
		{"duplicate vote is terminal", NewDuplicateVoteError("r", "s"), 0},
		{"unauthorized is terminal", NewUnauthorizedError("nope"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, string(tt.err.Code), bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)
			vars := bpmn.ToErrorVariables()
			assert.Equal(t, string(tt.err.Code), vars["errorCode"])
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "AUTHORIZATION", GetErrorCategory(ErrCodeUnauthorized))
	assert.Equal(t, "CONCURRENCY", GetErrorCategory(ErrCodeConflict))
	assert.Equal(t, "STATE", GetErrorCategory(ErrCodeInvalidState))
	assert.Equal(t, "STATE", GetErrorCategory(ErrCodeNoAmendmentsPending))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryExecutionFailed))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeSearchIndexFailed))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeNotificationSendFailed))
	assert.Equal(t, "PROCESS_ENGINE", GetErrorCategory(ErrCodeWorkflowRequestFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeValidation))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidJobInput))
	assert.Equal(t, "NOT_FOUND", GetErrorCategory(ErrCodeNotFound))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestNormalize(t *testing.T) {
	plain := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Details)

	std := NewValidationError("bad")
	require.Same(t, std, Normalize(fmt.Errorf("wrap: %w", std)))
	assert.Equal(t, ErrCodeValidation, CodeOf(std))
	assert.Equal(t, ErrCodeInternal, CodeOf(stderrors.New("x")))
}
