package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPage(slug string) PublicPage {
	return PublicPage{
		Slug:            slug,
		Title:           "karmany evadhikaras te Simplified Meaning in English",
		Content:         "content",
		SourceQuery:     "karmany evadhikaras te",
		Language:        "English",
		Mode:            "simplify",
		MetaDescription: "Read this simplified Shastra passage in English.",
		Keywords:        []string{"shastra explanation", "sanskrit simplified meaning", "english"},
	}
}

func TestInsertAndGetPublicPage(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	saved, err := store.InsertPublicPage(ctx, testPage("karmany-meaning-english"))
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)
	assert.Equal(t, "karmany-meaning-english", saved.Slug)
	assert.False(t, saved.CreatedAt.IsZero())

	page, err := store.GetPublicPage(ctx, "karmany-meaning-english")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, page.ID)
	assert.Equal(t, []string{"shastra explanation", "sanskrit simplified meaning", "english"}, page.Keywords)

	_, err = store.GetPublicPage(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertPublicPage_SlugConflict(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.InsertPublicPage(ctx, testPage("taken"))
	require.NoError(t, err)

	_, err = store.InsertPublicPage(ctx, testPage("taken"))
	assert.ErrorIs(t, err, ErrSlugConflict)
}

func TestInsertPublicPage_NilKeywords(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	page := testPage("no-keywords")
	page.Keywords = nil
	saved, err := store.InsertPublicPage(ctx, page)
	require.NoError(t, err)
	assert.Empty(t, saved.Keywords)
}

func TestListPublicPages(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := store.InsertPublicPage(ctx, testPage(fmt.Sprintf("page-%d", i)))
		require.NoError(t, err)
	}
	other := testPage("translated")
	other.Mode = "translate"
	_, err := store.InsertPublicPage(ctx, other)
	require.NoError(t, err)

	pages, err := store.ListPublicPages(ctx, "simplify", "English", 3)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, "page-5", pages[0].Slug, "newest first")
	assert.Equal(t, "page-4", pages[1].Slug)
	assert.Equal(t, "page-3", pages[2].Slug)

	pages, err = store.ListPublicPages(ctx, "translate", "English", 100)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "translated", pages[0].Slug)

	pages, err = store.ListPublicPages(ctx, "simplify", "Hindi", 100)
	require.NoError(t, err)
	assert.Empty(t, pages)
}
