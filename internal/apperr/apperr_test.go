package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap(KindStorage, "ignored", nil))
}

func TestKindOf_ThroughFmtWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("generate reply: %w", Wrap(KindServiceUnavailable, "AI service is offline", cause))

	assert.Equal(t, KindServiceUnavailable, KindOf(err))
	assert.True(t, IsKind(err, KindServiceUnavailable))
	assert.False(t, IsKind(err, KindTimeout))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "AI service is offline", MessageOf(err, "fallback"))
}

func TestKindOf_Unclassified(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, KindUnknown, KindOf(err))
	assert.Equal(t, "fallback", MessageOf(err, "fallback"))
	assert.False(t, IsKind(nil, KindUnknown))
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "Conversation not found", New(KindNotFound, "Conversation not found").Error())
	assert.Equal(t, "storage failure: disk full", Wrap(KindStorage, "storage failure", errors.New("disk full")).Error())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "timeout", KindTimeout.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
