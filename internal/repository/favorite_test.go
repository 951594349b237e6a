package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/testutil"
)

func TestFavoriteRepository(t *testing.T) {
	repo := NewFavoriteRepository(testutil.NewTestRedis(t))
	ctx := context.Background()

	on, err := repo.Toggle(ctx, "s1", "ev-1")
	require.NoError(t, err)
	assert.True(t, on)

	fav, err := repo.IsFavorite(ctx, "s1", "ev-1")
	require.NoError(t, err)
	assert.True(t, fav)

	_, err = repo.Toggle(ctx, "s1", "ev-2")
	require.NoError(t, err)
	ids, err := repo.List(ctx, "s1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ev-1", "ev-2"}, ids)

	off, err := repo.Toggle(ctx, "s1", "ev-1")
	require.NoError(t, err)
	assert.False(t, off)

	require.NoError(t, repo.Remove(ctx, "s1", "ev-2"))
	ids, err = repo.List(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, ids)

	others, err := repo.List(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, others)
}
