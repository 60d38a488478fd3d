package uuid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunIDIsVersion7(t *testing.T) {
	t.Parallel()

	raw, err := NewRunID()
	require.NoError(t, err)
	parsed, err := uuid.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	other, err := NewRunID()
	require.NoError(t, err)
	assert.NotEqual(t, raw, other)
}

func TestRunIDOrRandom(t *testing.T) {
	t.Parallel()

	_, err := uuid.Parse(RunIDOrRandom())
	require.NoError(t, err)
}
