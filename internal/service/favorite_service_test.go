package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFavoriteService_ToggleTwiceRestoresSet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "u1", "Ana")
	f.user(t, "u2", "Ben")
	lamp := f.item(t, "u1", "Lamp")
	kettle := f.item(t, "u1", "Kettle")
	require.NoError(t, f.favSvc.Add(ctx, "u2", kettle.ID))

	before, err := f.users.FindByID(ctx, "u2")
	require.NoError(t, err)

	on, err := f.favSvc.Toggle(ctx, "u2", lamp.ID)
	require.NoError(t, err)
	assert.True(t, on)
	mid, err := f.users.FindByID(ctx, "u2")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{kettle.ID, lamp.ID}, mid.Favorites)

	on, err = f.favSvc.Toggle(ctx, "u2", lamp.ID)
	require.NoError(t, err)
	assert.False(t, on)
	after, err := f.users.FindByID(ctx, "u2")
	require.NoError(t, err)
	assert.ElementsMatch(t, before.Favorites, after.Favorites)
}

func TestFavoriteService_AddIsSetLike(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "u1", "Ana")
	lamp := f.item(t, "u1", "Lamp")

	require.NoError(t, f.favSvc.Add(ctx, "u1", lamp.ID))
	require.NoError(t, f.favSvc.Add(ctx, "u1", lamp.ID))
	u, err := f.users.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{lamp.ID}, u.Favorites)

	assert.ErrorIs(t, f.favSvc.Add(ctx, "u1", "missing"), ErrNotFound)
	assert.ErrorIs(t, f.favSvc.Add(ctx, "", lamp.ID), ErrAuthRequired)
	_, err = f.favSvc.Toggle(ctx, "ghost", lamp.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFavoriteService_ListSkipsMissingItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "u1", "Ana")
	lamp := f.item(t, "u1", "Lamp")
	kettle := f.item(t, "u1", "Kettle")
	require.NoError(t, f.favSvc.Add(ctx, "u1", lamp.ID))
	require.NoError(t, f.favSvc.Add(ctx, "u1", kettle.ID))
	require.NoError(t, f.items.Delete(ctx, lamp.ID))

	list, err := f.favSvc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, kettle.ID, list[0].ID)
}
