package db

import (
	"gorm.io/gorm"
)

// RunMigrations runs all database migrations
func RunMigrations(db *DB) error {
	if err := db.AutoMigrate(&Book{}, &Member{}, &Loan{}); err != nil {
		return err
	}

	if err := createIndexes(db.DB); err != nil {
		return err
	}

	return nil
}

func createIndexes(db *gorm.DB) error {
	// Partial indexes are understood by both PostgreSQL and SQLite.
	indexes := []string{
		// A member may hold at most one active loan per book
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_loans_active_member_book ON loans(member_id, book_id) WHERE returned = false`,

		// Active loan counts per book
		`CREATE INDEX IF NOT EXISTS idx_loans_active_book ON loans(book_id) WHERE returned = false`,
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			return err
		}
	}

	return nil
}
