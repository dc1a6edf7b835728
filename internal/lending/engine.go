// Package lending implements borrowing and returning. Each operation runs in
// one transaction that locks the book row, so the loan table and the book's
// available count move together or not at all.
package lending

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bookstore/services/library/internal/db"
	"github.com/bookstore/services/library/internal/errs"
	"github.com/bookstore/services/library/internal/events"
	"github.com/bookstore/services/library/internal/ledger"
	"github.com/bookstore/services/library/internal/metrics"
	"github.com/bookstore/services/library/internal/repo"
)

const (
	// DefaultLoanDays applies when a borrow request names no duration
	DefaultLoanDays = 14
	// DefaultMaxLoanDays caps the loan duration unless configured otherwise
	DefaultMaxLoanDays = 365
)

// Engine runs the lending lifecycle
type Engine struct {
	db          *gorm.DB
	repo        *repo.Repository
	ledger      *ledger.Ledger
	log         *zap.Logger
	metrics     *metrics.Metrics
	events      *events.Dispatcher
	maxLoanDays int
	now         func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces the wall clock used for borrow and return timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMaxLoanDays sets the longest accepted loan
func WithMaxLoanDays(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.maxLoanDays = days
		}
	}
}

// WithMetrics records borrow and return outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithEvents publishes loan events after commit
func WithEvents(d *events.Dispatcher) Option {
	return func(e *Engine) { e.events = d }
}

// NewEngine creates a lending engine
func NewEngine(database *db.DB, repository *repo.Repository, l *ledger.Ledger, log *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		db:          database.DB,
		repo:        repository,
		ledger:      l,
		log:         log,
		maxLoanDays: DefaultMaxLoanDays,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxLoanDays reports the configured upper bound on loan duration
func (e *Engine) MaxLoanDays() int {
	return e.maxLoanDays
}

// Borrow lends one copy of a book to a member for the given number of days.
// The returned loan embeds the book with its updated available count.
func (e *Engine) Borrow(ctx context.Context, memberID, bookID string, days int) (*db.Loan, error) {
	loan, err := e.borrow(ctx, strings.TrimSpace(memberID), strings.TrimSpace(bookID), days)
	e.metrics.Borrowed(outcome(err))
	if err != nil {
		if errs.KindOf(err) == errs.KindInternal || errs.KindOf(err) == errs.KindInvariant {
			e.log.Error("Failed to borrow book",
				zap.String("member_id", memberID),
				zap.String("book_id", bookID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	e.log.Info("Book borrowed",
		zap.String("loan_id", loan.ID),
		zap.String("member_id", loan.MemberID),
		zap.String("book_id", loan.BookID),
		zap.Time("due_date", loan.DueDate),
	)
	available := 0
	if loan.Book != nil {
		available = loan.Book.AvailableCopies
	}
	e.events.Emit(events.LoanBorrowed(ctx, loan, available))
	return loan, nil
}

func (e *Engine) borrow(ctx context.Context, memberID, bookID string, days int) (*db.Loan, error) {
	switch {
	case memberID == "":
		return nil, errs.Validation("member_id is required")
	case bookID == "":
		return nil, errs.Validation("book_id is required")
	case days < 1:
		return nil, errs.Validation("days must be at least 1")
	case days > e.maxLoanDays:
		return nil, errs.Validation("days must be at most %d", e.maxLoanDays)
	}

	var loan *db.Loan
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := e.repo.WithTx(tx)

		if _, err := store.LockBook(ctx, bookID); err != nil {
			return err
		}
		if _, err := store.GetMember(ctx, memberID); err != nil {
			return err
		}

		existing, err := store.FindActiveLoan(ctx, memberID, bookID)
		if err != nil {
			return err
		}
		if existing != nil {
			return errs.Conflict("member %s has already borrowed book %s", memberID, bookID)
		}

		if err := e.ledger.WithTx(tx).ReserveCopy(ctx, bookID); err != nil {
			return err
		}

		borrowedAt := e.timestamp()
		created := &db.Loan{
			BookID:     bookID,
			MemberID:   memberID,
			BorrowedAt: borrowedAt,
			DueDate:    borrowedAt.AddDate(0, 0, days),
		}
		if err := store.CreateLoan(ctx, created); err != nil {
			return err
		}

		loan, err = store.GetLoan(ctx, created.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// Return closes an active loan and puts its copy back on the shelf.
// Returning a loan twice is a conflict.
func (e *Engine) Return(ctx context.Context, loanID string) (*db.Loan, error) {
	loan, err := e.giveBack(ctx, strings.TrimSpace(loanID))
	e.metrics.Returned(outcome(err))
	if err != nil {
		if errs.KindOf(err) == errs.KindInternal || errs.KindOf(err) == errs.KindInvariant {
			e.log.Error("Failed to return loan", zap.String("loan_id", loanID), zap.Error(err))
		}
		return nil, err
	}

	e.log.Info("Book returned",
		zap.String("loan_id", loan.ID),
		zap.String("member_id", loan.MemberID),
		zap.String("book_id", loan.BookID),
	)
	e.events.Emit(events.LoanReturned(ctx, loan))
	return loan, nil
}

func (e *Engine) giveBack(ctx context.Context, loanID string) (*db.Loan, error) {
	if loanID == "" {
		return nil, errs.Validation("loan_id is required")
	}

	var loan *db.Loan
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := e.repo.WithTx(tx)

		current, err := store.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if current.Returned {
			return errs.Conflict("loan %s has already been returned", loanID)
		}

		marked, err := store.MarkReturned(ctx, loanID, e.timestamp())
		if err != nil {
			return err
		}
		if !marked {
			return errs.Conflict("loan %s has already been returned", loanID)
		}

		if err := e.ledger.WithTx(tx).ReleaseCopy(ctx, current.BookID); err != nil {
			if errs.KindOf(err) == errs.KindNotFound {
				return errs.InvariantViolation("loan %s was active for missing book %s", loanID, current.BookID)
			}
			return err
		}

		loan, err = store.GetLoan(ctx, loanID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// ActiveLoanCount counts loans not yet returned across all books
func (e *Engine) ActiveLoanCount(ctx context.Context) (int64, error) {
	return e.repo.CountActiveLoans(ctx, "")
}

// ActiveLoansFor counts loans not yet returned for one book
func (e *Engine) ActiveLoansFor(ctx context.Context, bookID string) (int64, error) {
	return e.ledger.ActiveLoanCount(ctx, bookID)
}

func (e *Engine) timestamp() time.Time {
	return e.now().UTC().Truncate(time.Microsecond)
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	return string(errs.KindOf(err))
}
