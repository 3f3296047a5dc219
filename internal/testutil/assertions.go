package testutil

import (
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gers-dev/gers-host/domain/errors"
)

// RequireLoadKind asserts that err is a LoadError of the given kind and returns it.
func RequireLoadKind(t *testing.T, err error, kind errors.LoadKind) *errors.LoadError {
	t.Helper()
	require.Error(t, err)
	var le *errors.LoadError
	require.True(t, stdErrors.As(err, &le), "expected *LoadError, got %T: %v", err, err)
	assert.Equal(t, kind, le.Kind, "unexpected load error: %v", err)
	return le
}

// RequireBoundsError asserts that err wraps a BoundsError and returns it.
func RequireBoundsError(t *testing.T, err error) *errors.BoundsError {
	t.Helper()
	require.Error(t, err)
	var be *errors.BoundsError
	require.True(t, stdErrors.As(err, &be), "expected *BoundsError, got %T: %v", err, err)
	return be
}
