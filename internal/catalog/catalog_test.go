package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookstore/services/library/internal/db"
	"github.com/bookstore/services/library/internal/db/dbtest"
	"github.com/bookstore/services/library/internal/errs"
	"github.com/bookstore/services/library/internal/repo"
	"github.com/bookstore/services/library/pkg/logger"
)

func setupCatalog(t *testing.T) (*Catalog, *repo.Repository) {
	store := repo.NewRepository(dbtest.New(t), logger.NewLogger("test", "error"))
	ctx := context.Background()
	for _, in := range []repo.BookInput{
		{Title: "Dune", Author: "Frank Herbert", Category: "Science Fiction", TotalCopies: 2},
		{Title: "Emma", Author: "Jane Austen", Category: "Classic", TotalCopies: 1},
		{Title: "Neuromancer", Author: "William Gibson", Category: "Science Fiction", TotalCopies: 1},
		{Title: "100% Pure", Author: "Anon", Category: "Misc", TotalCopies: 1},
	} {
		_, err := store.CreateBook(ctx, in)
		require.NoError(t, err)
	}
	return New(store), store
}

func titles(books []db.Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.Title
	}
	return out
}

func TestSearchEmptyQueryReturnsAllInCreationOrder(t *testing.T) {
	c, _ := setupCatalog(t)

	result, err := c.Search(context.Background(), "", Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dune", "Emma", "Neuromancer", "100% Pure"}, titles(result.Books))
	assert.Equal(t, int64(4), result.Total)
}

func TestSearchMatchesAcrossFieldsIgnoringCase(t *testing.T) {
	c, _ := setupCatalog(t)
	ctx := context.Background()

	tests := []struct {
		query string
		want  []string
	}{
		{"DUNE", []string{"Dune"}},
		{"austen", []string{"Emma"}},
		{"science", []string{"Dune", "Neuromancer"}},
		{"  gibson ", []string{"Neuromancer"}},
		{"%", []string{"100% Pure"}},
		{"_", []string{}},
		{"nothing matches", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			result, err := c.Search(ctx, tt.query, Page{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(result.Books))
			assert.Equal(t, int64(len(tt.want)), result.Total)
		})
	}
}

func TestSearchPaging(t *testing.T) {
	c, _ := setupCatalog(t)
	ctx := context.Background()

	result, err := c.Search(ctx, "", Page{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"Emma", "Neuromancer"}, titles(result.Books))
	assert.Equal(t, int64(4), result.Total)

	result, err = c.Search(ctx, "", Page{Limit: MaxLimit + 50})
	require.NoError(t, err)
	assert.Len(t, result.Books, 4)

	_, err = c.Search(ctx, "", Page{Limit: -1})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = c.Search(ctx, "", Page{Offset: -1})
	assert.ErrorIs(t, err, errs.ErrValidation)
}
