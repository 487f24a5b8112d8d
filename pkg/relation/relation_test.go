package relation

import (
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKindRejectsUnknown(t *testing.T) {
	_, err := ParseKind("document")
	assert.True(t, errors.Is(err, ErrUnknownKind))

	k, err := ParseKind(" Lease ")
	require.NoError(t, err)
	assert.Equal(t, KindLease, k)
}

func TestRefRoundTrip(t *testing.T) {
	ref := Lease(snowflake.ID(42))
	parsed, err := Parse(ref.String())
	require.NoError(t, err)
	assert.Equal(t, ref, parsed)
	assert.True(t, parsed.Valid())

	_, err = Parse("lease:0")
	assert.Error(t, err)
	_, err = Parse("nokind")
	assert.Error(t, err)
}
