package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arfaar/swapfinity/internal/docstore"
	"github.com/arfaar/swapfinity/internal/model"
)

func TestItemService_PostCopiesOwnerProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "u1", "Ana")
	pic := "https://img.example.com/ana"
	require.NoError(t, f.users.SetProfilePicture(ctx, "u1", &pic))

	item, err := f.itemSvc.Post(ctx, "u1", ItemInput{
		Title:       "  Dune  ",
		Description: "Paperback",
		LookingFor:  "Sci-fi",
		Image:       "https://img.example.com/dune",
		Category:    "books",
	})
	require.NoError(t, err)
	assert.Equal(t, "Dune", item.Title)
	assert.Equal(t, model.CategoryBooks, item.Category)
	assert.Equal(t, "Ana", item.UserName)
	require.NotNil(t, item.UserProfilePic)
	assert.Equal(t, pic, *item.UserProfilePic)
	assert.False(t, item.SwapRequested)
	assert.False(t, item.PostedAt.IsZero())
}

func TestItemService_PostValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "u1", "Ana")

	_, err := f.itemSvc.Post(ctx, "u1", ItemInput{Title: strings.Repeat("x", 121), Image: "data:image/png;base64,AA", Category: "Cars"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, ErrValidation)

	fields := map[string]bool{}
	for _, fe := range verr.Errors {
		fields[fe.Field] = true
	}
	for _, want := range []string{"title", "description", "whatTheyAreLookingFor", "image", "category"} {
		assert.True(t, fields[want], want)
	}

	_, err = f.itemSvc.Post(ctx, "", ItemInput{})
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestItemService_FeedAnnotatesFavorites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "u1", "Ana")
	f.user(t, "u2", "Ben")
	lamp := f.item(t, "u1", "Lamp")
	f.item(t, "u1", "Kettle")
	require.NoError(t, f.favSvc.Add(ctx, "u2", lamp.ID))

	feed, err := f.itemSvc.Feed(ctx, "u2", "")
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, "Kettle", feed[0].Title)
	assert.False(t, feed[0].IsFavorited)
	assert.True(t, feed[1].IsFavorited)

	anon, err := f.itemSvc.Feed(ctx, "", "Others")
	require.NoError(t, err)
	assert.Len(t, anon, 2)

	_, err = f.itemSvc.Feed(ctx, "u2", "Cars")
	assert.ErrorIs(t, err, ErrValidation)

	books, err := f.itemSvc.Feed(ctx, "u2", "Books")
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestItemService_Search(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "u1", "Ana")
	f.item(t, "u1", "Desk Lamp")
	f.item(t, "u1", "Kettle")

	got, err := f.itemSvc.Search(ctx, "u1", "LAMP")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Desk Lamp", got[0].Title)

	got, err = f.itemSvc.Search(ctx, "u1", "   ")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestItemService_UpdateOwnerOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "u1", "Ana")
	f.user(t, "u2", "Ben")
	lamp := f.item(t, "u1", "Lamp")

	in := ItemInput{Title: "Lamp v2", Description: "d", LookingFor: "l", Image: "https://img.example.com/2", Category: "Toys"}
	_, err := f.itemSvc.Update(ctx, "u2", lamp.ID, in)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := f.itemSvc.Update(ctx, "u1", lamp.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Lamp v2", updated.Title)
	assert.Equal(t, model.CategoryToys, updated.Category)
	assert.Equal(t, "u1", updated.UserID)

	mine, err := f.itemSvc.ListMine(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Lamp v2", mine[0].Title)
}

func TestItemService_DeletePost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "u1", "Ana")
	f.user(t, "u2", "Ben")
	f.user(t, "u3", "Cai")
	lamp := f.item(t, "u1", "Lamp")
	kettle := f.item(t, "u1", "Kettle")
	require.NoError(t, f.favSvc.Add(ctx, "u2", lamp.ID))
	require.NoError(t, f.favSvc.Add(ctx, "u3", lamp.ID))
	require.NoError(t, f.favSvc.Add(ctx, "u3", kettle.ID))

	assert.ErrorIs(t, f.itemSvc.Delete(ctx, "u2", lamp.ID), ErrForbidden)
	require.NoError(t, f.itemSvc.Delete(ctx, "u1", lamp.ID))

	_, err := f.items.FindByID(ctx, lamp.ID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	_, err = f.itemSvc.Get(ctx, "u1", lamp.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	u2, err := f.users.FindByID(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, u2.Favorites)
	u3, err := f.users.FindByID(ctx, "u3")
	require.NoError(t, err)
	assert.Equal(t, []string{kettle.ID}, u3.Favorites)

	assert.ErrorIs(t, f.itemSvc.Delete(ctx, "u1", lamp.ID), ErrNotFound)
}

func TestItemService_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)
	f.user(t, "u1", "Ana")

	ch, err := f.itemSvc.Watch(ctx, "")
	require.NoError(t, err)
	first := receive(t, ch)
	require.NoError(t, first.Err)
	assert.Empty(t, first.Items)

	f.item(t, "u1", "Lamp")
	snap := receive(t, ch)
	for len(snap.Items) == 0 {
		snap = receive(t, ch)
	}
	assert.Equal(t, "Lamp", snap.Items[0].Title)
}
