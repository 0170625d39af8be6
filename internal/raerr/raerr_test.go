package raerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	err := New(SendBufferFull, "connection %d full", 3)
	assert.True(t, errors.Is(err, Sentinel(SendBufferFull)))
	assert.False(t, errors.Is(err, Sentinel(InvalidParameter)))
}

func TestErrorUnwrap(t *testing.T) {
	err := New(InternalError, "boom")
	require.Error(t, errors.Unwrap(err))
}

func TestErrorStringWithoutCause(t *testing.T) {
	err := Sentinel(NotInitialized)
	assert.Equal(t, "not_initialized", err.Error())
}

func TestKindStringUnknown(t *testing.T) {
	k := Kind(999)
	assert.Contains(t, k.String(), "raerr.Kind(999)")
}

func TestDefaultFatalHandlerPanics(t *testing.T) {
	assert.Panics(t, func() { DefaultFatalHandler(InternalError, errors.New("x")) })
}
