// Package catalog answers book searches for the catalog views.
package catalog

import (
	"context"

	"github.com/bookstore/services/library/internal/db"
	"github.com/bookstore/services/library/internal/errs"
	"github.com/bookstore/services/library/internal/repo"
)

// MaxLimit caps a single page
const MaxLimit = 100

// Page selects a window of results. A zero Limit means every match.
type Page struct {
	Limit  int
	Offset int
}

// Result is one page of matches together with the number of matches overall
type Result struct {
	Books []db.Book
	Total int64
}

// BookLister is the store query the catalog runs on
type BookLister interface {
	ListBooks(ctx context.Context, filter repo.BookFilter) ([]db.Book, int64, error)
}

// Catalog searches books by title, author and category
type Catalog struct {
	books BookLister
}

// New creates a catalog over the given store
func New(books BookLister) *Catalog {
	return &Catalog{books: books}
}

// Search returns books whose title, author or category contains query,
// ignoring case, in creation order. An empty query matches every book.
func (c *Catalog) Search(ctx context.Context, query string, page Page) (Result, error) {
	if page.Limit < 0 {
		return Result{}, errs.Validation("limit must be >= 0")
	}
	if page.Offset < 0 {
		return Result{}, errs.Validation("offset must be >= 0")
	}
	if page.Limit > MaxLimit {
		page.Limit = MaxLimit
	}

	books, total, err := c.books.ListBooks(ctx, repo.BookFilter{
		Query:  query,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Books: books, Total: total}, nil
}
