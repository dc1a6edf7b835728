package repo

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bookstore/services/library/internal/db"
)

// Repository is the entity store for books, members and loans.
// It enforces uniqueness and reference checks but no lending rules.
type Repository struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewRepository creates a new repository
func NewRepository(database *db.DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:  database.DB,
		log: logger,
	}
}

// WithTx returns a repository whose statements run inside tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx, log: r.log}
}

// transaction runs fn in a transaction, or in a savepoint when r is already bound to one.
func (r *Repository) transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

// Stats holds the dashboard counters.
type Stats struct {
	Books       int64 `json:"books"`
	Members     int64 `json:"members"`
	ActiveLoans int64 `json:"active_loans"`
}

// GetStats counts books, members and active loans on demand
func (r *Repository) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := r.db.WithContext(ctx).Model(&db.Book{}).Count(&s.Books).Error; err != nil {
		return Stats{}, err
	}
	if err := r.db.WithContext(ctx).Model(&db.Member{}).Count(&s.Members).Error; err != nil {
		return Stats{}, err
	}
	active, err := r.CountActiveLoans(ctx, "")
	if err != nil {
		return Stats{}, err
	}
	s.ActiveLoans = active
	return s, nil
}

// translate maps gorm sentinel errors onto the store's error kinds.
func translate(err, notFound, duplicate error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound) && notFound != nil:
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey) && duplicate != nil:
		return duplicate
	}
	return err
}

// likePattern builds a case-insensitive substring pattern with LIKE wildcards escaped.
func likePattern(q string) string {
	q = strings.ToLower(q)
	q = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(q)
	return "%" + q + "%"
}
