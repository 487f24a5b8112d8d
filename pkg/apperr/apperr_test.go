package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSample = Conflict("property_occupied", "property already occupied")

func TestIsMatchesWrappedSentinel(t *testing.T) {
	err := fmt.Errorf("create lease: %w", errSample)
	assert.True(t, errors.Is(err, errSample))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, "property_occupied", Code(err))
	assert.Equal(t, "property already occupied", Message(err))
}

func TestIsDoesNotMatchDifferentCode(t *testing.T) {
	other := Conflict("tenant_housed", "tenant already housed")
	assert.False(t, errors.Is(errSample, other))
}

func TestUnavailableIsOnlyRetryableKind(t *testing.T) {
	err := Unavailable(context.DeadlineExceeded)
	assert.True(t, IsRetryable(err))
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	assert.False(t, IsRetryable(errSample))
	assert.False(t, IsRetryable(Validation("invalid_dates", "bad dates")))
	assert.False(t, IsRetryable(NotFound("lease_not_found", "lease not found")))
	assert.Nil(t, Unavailable(nil))
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, "internal server error", Message(errors.New("boom")))
}
