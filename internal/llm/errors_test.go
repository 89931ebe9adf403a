package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := statusError(KindServerError, 503)

	assert.True(t, errors.Is(err, ErrServerError))
	assert.True(t, errors.Is(err, &Error{Kind: KindServerError, StatusCode: 503}))
	assert.False(t, errors.Is(err, &Error{Kind: KindServerError, StatusCode: 500}))
	assert.False(t, errors.Is(err, ErrRateLimited))
}

func TestError_WrappedStillClassified(t *testing.T) {
	err := fmt.Errorf("analyzing: %w", newError(KindNetwork, errors.New("connection reset")))

	assert.Equal(t, KindNetwork, KindOf(err))
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, "An unknown error occurred.", Message(errors.New("boom")))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "API key not configured. Please add your API key in Settings.", Message(ErrCredentialMissing))
	assert.Equal(t, "Rate limit exceeded. Please try again in a moment.", Message(ErrRateLimited))
	assert.Equal(t, "API error: 502", Message(statusError(KindServerError, 502)))
	assert.Equal(t, "Network error. Please check your internet connection.", Message(ErrNetwork))
}

func TestKind_Action(t *testing.T) {
	assert.Equal(t, ActionSettings, KindCredentialMissing.Action())
	assert.Equal(t, ActionSettings, KindInvalidCredential.Action())
	assert.Equal(t, ActionRetry, KindRateLimited.Action())
	assert.Equal(t, ActionRetry, KindIncompleteResponse.Action())
	assert.Equal(t, ActionNone, KindUnknown.Action())
}

func TestError_String(t *testing.T) {
	assert.Equal(t, "server_error (status 500)", statusError(KindServerError, 500).Error())
	assert.Equal(t, "credential_missing", ErrCredentialMissing.Error())
}
