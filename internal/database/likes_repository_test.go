package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoweredAll(t *testing.T) {
	assert.Equal(t,
		[]string{"https://liked/a", "https://liked/b"},
		loweredAll([]string{"HTTPS://Liked/A", "https://liked/b"}))
	assert.Empty(t, loweredAll(nil))
}

func TestDisabledRepositoryIsInert(t *testing.T) {
	r := &LikesRepository{}
	require.False(t, r.Enabled())

	like, err := r.Random(context.Background(), "g", "u", []string{"HTTPS://X"})
	require.NoError(t, err)
	assert.Nil(t, like)

	count, err := r.Count(context.Background(), "g", "u")
	require.NoError(t, err)
	assert.Zero(t, count)
}
