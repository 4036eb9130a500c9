package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageErrorMatching(t *testing.T) {
	cause := errors.New("HTTP 502")
	err := NewExtractionError(KindTransportFailure, "upload", "bad gateway", cause)

	wrapped := fmt.Errorf("intake: %w", err)

	assert.ErrorIs(t, wrapped, ErrTransportFailure)
	assert.ErrorIs(t, wrapped, cause)
	assert.NotErrorIs(t, wrapped, ErrTimeout)
	assert.Equal(t, KindTransportFailure, KindOf(wrapped))
	assert.Equal(t, "extraction/upload: transport_failure: bad gateway: HTTP 502", err.Error())
}

func TestStageErrorWithoutCause(t *testing.T) {
	err := NewStructuringError(KindNoObservations, "", nil)

	assert.ErrorIs(t, err, ErrNoObservations)
	assert.Equal(t, "structuring: no_observations", err.Error())
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestStageErrorWrapsContext(t *testing.T) {
	err := NewExtractionError(KindTimeout, "poll", "", context.DeadlineExceeded)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUserError(t *testing.T) {
	inner := errors.New("boom")
	err := NewUserError("could not save goal", inner)

	assert.Equal(t, "could not save goal: boom", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "just text", NewUserError("just text", nil).Error())
}
