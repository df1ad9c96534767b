package generic_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/grade-engine/generic"
)

func TestFetchError_UnwrapsKindAndCause(t *testing.T) {
	err := fmt.Errorf("roster: %w", &generic.FetchError{
		Op: "riders", FetchID: "f-1", Timeout: true,
		Kind: generic.ErrFetchFailure, Err: context.DeadlineExceeded,
	})

	assert.ErrorIs(t, err, generic.ErrFetchFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, generic.IsRetryable(err))
	assert.False(t, generic.IsAuthExpired(err))

	var fe *generic.FetchError
	assert.True(t, errors.As(err, &fe))
	assert.Contains(t, err.Error(), "timeout")
}

func TestFetchError_AuthExpiredNotRetryable(t *testing.T) {
	err := &generic.FetchError{Op: "riders", FetchID: "f-2", StatusCode: 401, Kind: generic.ErrAuthExpired}

	assert.True(t, generic.IsAuthExpired(err))
	assert.False(t, generic.IsRetryable(err))
	assert.Contains(t, err.Error(), "status 401")
}

func TestClientErrors(t *testing.T) {
	assert.True(t, generic.IsClientError(generic.NewInvalidInput("login4", "12a4", "expected 4 digits")))
	assert.True(t, generic.IsClientError(&generic.AmbiguousMatchError{NameKey: "kim", Suffix: "5678", Matches: 2}))
	assert.True(t, generic.IsNotFound(fmt.Errorf("lookup: %w", generic.ErrNotFound)))
	assert.False(t, generic.IsClientError(generic.ErrFetchFailure))
}
