package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DB wraps the GORM database connection
type DB struct {
	*gorm.DB
}

// Connect opens the database for the given driver ("postgres" or "sqlite").
// For sqlite the dsn is a file path.
func Connect(driver, dsn string) (*DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(SQLiteDSN(dsn))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	database, err := Open(dialector)
	if err != nil {
		return nil, err
	}

	sqlDB, err := database.DB.DB()
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		// SQLite allows a single writer; queueing in the pool beats SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
		return database, nil
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return database, nil
}

// Open wraps an already chosen dialector with the settings every store relies on.
func Open(dialector gorm.Dialector) (*DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(log.New(os.Stdout, "\r\n", log.LstdFlags)),
		TranslateError: true,
		// Loans outlive deleted books, so references are checked by the store instead.
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc:                                  Now,
	})
	if err != nil {
		return nil, err
	}
	return &DB{DB: db}, nil
}

// newGormLogger reports slow queries and real failures; a missing row is an
// expected answer for lookups and is not logged.
func newGormLogger(w logger.Writer) logger.Interface {
	return logger.New(w, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// SQLiteDSN turns a file path into a DSN with the pragmas the ledger needs:
// immediate transactions serialize writers, the busy timeout absorbs contention.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", path)
}

// ForUpdate adds a row lock to the query where the dialect supports one.
// SQLite already serializes write transactions.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// Ping checks if the database connection is alive
func (db *DB) Ping() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
