package simpleai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorUnwrapExposesKindAndCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := wrapErr(ErrProvider, "openai", "provider call failed", cause)

	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrSettings)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "openai", e.Provider)
	assert.Equal(t, "provider call failed", e.Message)
}

func TestWrapErrPassesThroughExistingError(t *testing.T) {
	t.Parallel()

	inner := wrapErr(ErrRateLimited, "claude", "rate limit retries exhausted", nil)
	outer := wrapErr(ErrProvider, "claude", "provider call failed", inner)

	// Wrapping an already-classified error must not reclassify it.
	assert.Same(t, inner, outer)
	assert.ErrorIs(t, outer, ErrRateLimited)
	assert.NotErrorIs(t, outer, ErrProvider)
}

func TestErrorMessageFormats(t *testing.T) {
	t.Parallel()

	withProvider := wrapErr(ErrFile, "gemini", "read file x.pdf", errors.New("permission denied"))
	assert.Contains(t, withProvider.Error(), "provider gemini")
	assert.Contains(t, withProvider.Error(), "permission denied")

	bare := wrapErr(ErrSettings, "", "prompt must not be empty", nil)
	assert.Equal(t, "simpleai: prompt must not be empty", bare.Error())
}
