package repo

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bookstore/services/library/internal/db"
	"github.com/bookstore/services/library/internal/errs"
)

// BookInput carries the admin-supplied fields of a new book.
// A nil AvailableCopies defaults to TotalCopies.
type BookInput struct {
	Title           string
	Author          string
	Category        string
	ISBN            string
	TotalCopies     int
	AvailableCopies *int
}

// BookFilter selects books for listing. Query matches title, author and category
// case-insensitively; a zero Limit means no limit.
type BookFilter struct {
	Query  string
	Limit  int
	Offset int
}

// CreateBook validates and stores a new book
func (r *Repository) CreateBook(ctx context.Context, in BookInput) (*db.Book, error) {
	book, err := newBook(in)
	if err != nil {
		return nil, err
	}

	err = r.transaction(ctx, func(tx *Repository) error {
		if book.ISBN != nil {
			var n int64
			if err := tx.db.WithContext(ctx).Model(&db.Book{}).Where("isbn = ?", *book.ISBN).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return errs.Conflict("a book with isbn %s already exists", *book.ISBN)
			}
		}
		return tx.db.WithContext(ctx).Create(book).Error
	})
	if err != nil {
		err = translate(err, nil, errs.Conflict("a book with isbn %s already exists", deref(book.ISBN)))
		if errs.KindOf(err) == errs.KindInternal {
			r.log.Error("Failed to create book", zap.String("title", book.Title), zap.Error(err))
		}
		return nil, err
	}

	r.log.Info("Book created",
		zap.String("book_id", book.ID),
		zap.String("title", book.Title),
		zap.Int("total_copies", book.TotalCopies),
	)
	return book, nil
}

func newBook(in BookInput) (*db.Book, error) {
	title := strings.TrimSpace(in.Title)
	author := strings.TrimSpace(in.Author)
	if title == "" {
		return nil, errs.Validation("title is required")
	}
	if author == "" {
		return nil, errs.Validation("author is required")
	}
	if in.TotalCopies < 0 {
		return nil, errs.Validation("total_copies must not be negative")
	}

	available := in.TotalCopies
	if in.AvailableCopies != nil {
		available = *in.AvailableCopies
	}
	if available < 0 {
		return nil, errs.Validation("available_copies must not be negative")
	}
	if available > in.TotalCopies {
		return nil, errs.Validation("available_copies (%d) must not exceed total_copies (%d)", available, in.TotalCopies)
	}

	book := &db.Book{
		Title:           title,
		Author:          author,
		Category:        strings.TrimSpace(in.Category),
		TotalCopies:     in.TotalCopies,
		AvailableCopies: available,
		WithdrawnCopies: in.TotalCopies - available,
	}
	if isbn := strings.TrimSpace(in.ISBN); isbn != "" {
		book.ISBN = &isbn
	}
	return book, nil
}

// GetBook retrieves a book by id
func (r *Repository) GetBook(ctx context.Context, id string) (*db.Book, error) {
	var book db.Book
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&book).Error
	if err != nil {
		return nil, translate(err, errs.NotFound("book %s not found", id), nil)
	}
	return &book, nil
}

// LockBook retrieves a book and holds its row lock until the surrounding transaction ends.
func (r *Repository) LockBook(ctx context.Context, id string) (*db.Book, error) {
	var book db.Book
	err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&book).Error
	if err != nil {
		return nil, translate(err, errs.NotFound("book %s not found", id), nil)
	}
	return &book, nil
}

// ListBooks returns books in creation order together with the number of matches before paging
func (r *Repository) ListBooks(ctx context.Context, filter BookFilter) ([]db.Book, int64, error) {
	scope := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&db.Book{})
		if q := strings.TrimSpace(filter.Query); q != "" {
			pattern := likePattern(q)
			query = query.Where(
				`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(author) LIKE ? ESCAPE '\' OR LOWER(category) LIKE ? ESCAPE '\'`,
				pattern, pattern, pattern,
			)
		}
		return query
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		r.log.Error("Failed to count books", zap.Error(err))
		return nil, 0, err
	}

	query := scope().Order("created_at ASC").Order("id ASC")
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	books := []db.Book{}
	if err := query.Find(&books).Error; err != nil {
		r.log.Error("Failed to list books", zap.Error(err))
		return nil, 0, err
	}

	return books, total, nil
}

// DeleteBook removes a book that has no active loans. Returned loans keep their book_id.
func (r *Repository) DeleteBook(ctx context.Context, id string) error {
	err := r.transaction(ctx, func(tx *Repository) error {
		if _, err := tx.LockBook(ctx, id); err != nil {
			return err
		}

		active, err := tx.CountActiveLoans(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return errs.Conflict("book %s has %d active loan(s)", id, active)
		}

		return tx.db.WithContext(ctx).Where("id = ?", id).Delete(&db.Book{}).Error
	})
	if err != nil {
		if errs.KindOf(err) == errs.KindInternal {
			r.log.Error("Failed to delete book", zap.String("book_id", id), zap.Error(err))
		}
		return err
	}

	r.log.Info("Book deleted", zap.String("book_id", id))
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
