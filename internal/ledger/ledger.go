// Package ledger keeps a book's available copy count consistent with its
// active loans. Every change to available_copies goes through here.
package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bookstore/services/library/internal/db"
	"github.com/bookstore/services/library/internal/errs"
	"github.com/bookstore/services/library/internal/metrics"
	"github.com/bookstore/services/library/internal/repo"
)

// Ledger adjusts copy counts with conditional updates, so two callers racing
// for the last copy can never both win.
type Ledger struct {
	db      *gorm.DB
	repo    *repo.Repository
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewLedger creates a ledger over the given store
func NewLedger(database *db.DB, repository *repo.Repository, logger *zap.Logger, m *metrics.Metrics) *Ledger {
	return &Ledger{
		db:      database.DB,
		repo:    repository,
		log:     logger,
		metrics: m,
	}
}

// WithTx returns a ledger whose statements run inside tx.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{
		db:      tx,
		repo:    l.repo.WithTx(tx),
		log:     l.log,
		metrics: l.metrics,
	}
}

// ReserveCopy takes one copy of a book off the shelf.
func (l *Ledger) ReserveCopy(ctx context.Context, bookID string) error {
	result := l.db.WithContext(ctx).Model(&db.Book{}).
		Where("id = ? AND available_copies > 0", bookID).
		Updates(map[string]interface{}{
			"available_copies": gorm.Expr("available_copies - 1"),
			"updated_at":       db.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}

	if _, err := l.repo.GetBook(ctx, bookID); err != nil {
		return err
	}
	return errs.OutOfStock("no copies of book %s are available", bookID)
}

// ReleaseCopy puts one copy of a book back on the shelf. A release that would
// push the count past the owned copies means the accounting is already broken.
func (l *Ledger) ReleaseCopy(ctx context.Context, bookID string) error {
	result := l.db.WithContext(ctx).Model(&db.Book{}).
		Where("id = ? AND available_copies + withdrawn_copies < total_copies", bookID).
		Updates(map[string]interface{}{
			"available_copies": gorm.Expr("available_copies + 1"),
			"updated_at":       db.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}

	book, err := l.repo.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	return l.violation(book, "release would exceed total copies")
}

// AdjustTotalCopies sets the number of owned copies. Copies currently on loan
// stay on loan, so the new total may not drop below the active loan count.
func (l *Ledger) AdjustTotalCopies(ctx context.Context, bookID string, newTotal int) (*db.Book, error) {
	if newTotal < 0 {
		return nil, errs.Validation("total_copies must be >= 0")
	}

	var adjusted *db.Book
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := l.repo.WithTx(tx)

		book, err := store.LockBook(ctx, bookID)
		if err != nil {
			return err
		}

		active, err := store.CountActiveLoans(ctx, bookID)
		if err != nil {
			return err
		}
		if int64(newTotal) < active {
			return errs.Validation("book %s has %d copies on loan, total_copies cannot be %d", bookID, active, newTotal)
		}

		book.TotalCopies = newTotal
		book.AvailableCopies = newTotal - int(active)
		book.WithdrawnCopies = 0
		book.UpdatedAt = db.Now()

		err = tx.Model(&db.Book{}).Where("id = ?", bookID).Updates(map[string]interface{}{
			"total_copies":     book.TotalCopies,
			"available_copies": book.AvailableCopies,
			"withdrawn_copies": 0,
			"updated_at":       book.UpdatedAt,
		}).Error
		if err != nil {
			return err
		}

		adjusted = book
		return nil
	})
	if err != nil {
		if errs.KindOf(err) == errs.KindInternal {
			l.log.Error("Failed to adjust copies", zap.String("book_id", bookID), zap.Error(err))
		}
		return nil, err
	}

	l.log.Info("Copies adjusted",
		zap.String("book_id", bookID),
		zap.Int("total_copies", adjusted.TotalCopies),
		zap.Int("available_copies", adjusted.AvailableCopies),
	)
	return adjusted, nil
}

// ActiveLoanCount reports how many copies of a book are out on loan
func (l *Ledger) ActiveLoanCount(ctx context.Context, bookID string) (int64, error) {
	return l.repo.CountActiveLoans(ctx, bookID)
}

func (l *Ledger) violation(book *db.Book, reason string) error {
	l.metrics.InvariantViolated()
	l.log.Error("Copy accounting violated",
		zap.String("book_id", book.ID),
		zap.Int("total_copies", book.TotalCopies),
		zap.Int("available_copies", book.AvailableCopies),
		zap.Int("withdrawn_copies", book.WithdrawnCopies),
		zap.String("reason", reason),
	)
	return errs.InvariantViolation("book %s: %s", book.ID, reason)
}

// Violation describes one book whose counts disagree with its loans.
type Violation struct {
	BookID          string `json:"book_id"`
	Title           string `json:"title,omitempty"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
	ActiveLoans     int64  `json:"active_loans"`
	Reason          string `json:"reason"`
}

// Report is the result of a full consistency check.
type Report struct {
	BooksChecked int         `json:"books_checked"`
	ActiveLoans  int64       `json:"active_loans"`
	Violations   []Violation `json:"violations"`
}

// OK reports whether no violation was found
func (r Report) OK() bool {
	return len(r.Violations) == 0
}

// Err returns an invariant violation summarizing the report, or nil
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	return errs.InvariantViolation("%d copy accounting violation(s), first: book %s: %s",
		len(r.Violations), r.Violations[0].BookID, r.Violations[0].Reason)
}

// Verify recomputes every book's expected available count from the loan table.
func (l *Ledger) Verify(ctx context.Context) (Report, error) {
	report := Report{Violations: []Violation{}}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var books []db.Book
		if err := tx.Order("created_at ASC").Order("id ASC").Find(&books).Error; err != nil {
			return err
		}

		counts, err := l.repo.WithTx(tx).CountActiveLoansByBook(ctx)
		if err != nil {
			return err
		}

		report.BooksChecked = len(books)
		for i := range books {
			book := &books[i]
			active := counts[book.ID]
			report.ActiveLoans += active
			delete(counts, book.ID)

			if reason := checkBook(book, active); reason != "" {
				report.Violations = append(report.Violations, Violation{
					BookID:          book.ID,
					Title:           book.Title,
					TotalCopies:     book.TotalCopies,
					AvailableCopies: book.AvailableCopies,
					ActiveLoans:     active,
					Reason:          reason,
				})
			}
		}

		for bookID, active := range counts {
			report.ActiveLoans += active
			report.Violations = append(report.Violations, Violation{
				BookID:      bookID,
				ActiveLoans: active,
				Reason:      "active loans reference a missing book",
			})
		}
		return nil
	})
	if err != nil {
		l.log.Error("Failed to verify copy accounting", zap.Error(err))
		return Report{}, err
	}

	for _, v := range report.Violations {
		l.metrics.InvariantViolated()
		l.log.Error("Copy accounting violated",
			zap.String("book_id", v.BookID),
			zap.Int64("active_loans", v.ActiveLoans),
			zap.String("reason", v.Reason),
		)
	}
	return report, nil
}

func checkBook(book *db.Book, active int64) string {
	switch {
	case book.AvailableCopies < 0:
		return "available copies below zero"
	case book.AvailableCopies > book.TotalCopies:
		return "available copies above total"
	case int64(book.AvailableCopies) != int64(book.TotalCopies-book.WithdrawnCopies)-active:
		return fmt.Sprintf("expected %d available, found %d",
			int64(book.TotalCopies-book.WithdrawnCopies)-active, book.AvailableCopies)
	}
	return ""
}
