package repo

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bookstore/services/library/internal/db"
	"github.com/bookstore/services/library/internal/errs"
)

// LoanFilter narrows a loan listing. Empty fields match everything.
type LoanFilter struct {
	MemberID   string
	BookID     string
	ActiveOnly bool
}

// CreateLoan inserts a loan. Lending rules are the caller's job; only the
// active-loan uniqueness is enforced here, as a conflict.
func (r *Repository) CreateLoan(ctx context.Context, loan *db.Loan) error {
	err := r.db.WithContext(ctx).Omit("Book", "Member").Create(loan).Error
	return translate(err, nil, errs.Conflict("member %s already has book %s on loan", loan.MemberID, loan.BookID))
}

// GetLoan retrieves a loan with its book and member summaries
func (r *Repository) GetLoan(ctx context.Context, id string) (*db.Loan, error) {
	var loan db.Loan
	err := r.db.WithContext(ctx).Preload("Book").Preload("Member").Where("id = ?", id).First(&loan).Error
	if err != nil {
		return nil, translate(err, errs.NotFound("loan %s not found", id), nil)
	}
	return &loan, nil
}

// FindActiveLoan returns the active loan linking member and book, or nil
func (r *Repository) FindActiveLoan(ctx context.Context, memberID, bookID string) (*db.Loan, error) {
	var loans []db.Loan
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND book_id = ? AND returned = ?", memberID, bookID, false).
		Limit(1).
		Find(&loans).Error
	if err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return nil, nil
	}
	return &loans[0], nil
}

// ListLoans returns loans in borrow order with embedded book and member summaries
func (r *Repository) ListLoans(ctx context.Context, filter LoanFilter) ([]db.Loan, error) {
	query := r.db.WithContext(ctx).Preload("Book").Preload("Member")
	if filter.MemberID != "" {
		query = query.Where("member_id = ?", filter.MemberID)
	}
	if filter.BookID != "" {
		query = query.Where("book_id = ?", filter.BookID)
	}
	if filter.ActiveOnly {
		query = query.Where("returned = ?", false)
	}

	loans := []db.Loan{}
	if err := query.Order("borrowed_at ASC").Order("id ASC").Find(&loans).Error; err != nil {
		r.log.Error("Failed to list loans", zap.Error(err))
		return nil, err
	}
	return loans, nil
}

// ListActiveLoans returns every loan that has not been returned
func (r *Repository) ListActiveLoans(ctx context.Context) ([]db.Loan, error) {
	return r.ListLoans(ctx, LoanFilter{ActiveOnly: true})
}

// MarkReturned flips an active loan to returned. It reports false when the loan
// was already returned, so concurrent returns of one loan cannot both succeed.
func (r *Repository) MarkReturned(ctx context.Context, id string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&db.Loan{}).
		Where("id = ? AND returned = ?", id, false).
		Updates(map[string]interface{}{
			"returned":    true,
			"returned_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CountActiveLoans counts loans not yet returned, for one book or all books when bookID is empty
func (r *Repository) CountActiveLoans(ctx context.Context, bookID string) (int64, error) {
	query := r.db.WithContext(ctx).Model(&db.Loan{}).Where("returned = ?", false)
	if bookID != "" {
		query = query.Where("book_id = ?", bookID)
	}
	var n int64
	if err := query.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// CountActiveLoansByBook returns active loan counts keyed by book id
func (r *Repository) CountActiveLoansByBook(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		BookID string
		N      int64
	}
	err := r.db.WithContext(ctx).Model(&db.Loan{}).
		Select("book_id, COUNT(*) AS n").
		Where("returned = ?", false).
		Group("book_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.BookID] = row.N
	}
	return counts, nil
}
