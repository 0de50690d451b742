package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicatesFollowWrapping(t *testing.T) {
	base := NewUnauthorizedError("Authentication required. Please log in again.", nil)
	wrapped := fmt.Errorf("fetch projects: %w", base)

	assert.True(t, IsUnauthorizedError(wrapped))
	assert.False(t, IsNetworkError(wrapped))
	assert.Equal(t, "UNAUTHORIZED", base.Code)
}

func TestRemoteErrorCarriesStatus(t *testing.T) {
	err := NewRemoteError(http.StatusNotFound, "Analyzed script not found")

	assert.True(t, IsRemoteError(err))
	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.Equal(t, "Analyzed script not found", err.Error())
}

func TestMessageDropsCause(t *testing.T) {
	err := NewNetworkError("Network error: Unable to connect to server", fmt.Errorf("dial tcp: refused"))

	assert.Equal(t, "Network error: Unable to connect to server", Message(err))
	assert.Contains(t, err.Error(), "dial tcp")
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "plain", Message(fmt.Errorf("plain")))
}

func TestWrapErrorKeepsType(t *testing.T) {
	err := WrapError(NewRemoteError(500, "boom"), "save analysis", ErrorTypeError)

	assert.True(t, IsRemoteError(err))
	assert.Equal(t, "save analysis: boom", Message(err))
	assert.Nil(t, WrapError(nil, "x", ErrorTypeError))

	plain := WrapError(fmt.Errorf("io"), "read", ErrorTypeValidation)
	assert.True(t, IsValidationError(plain))
}
