// Package dbtest provides migrated in-memory SQLite databases for tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/bookstore/services/library/internal/db"
)

// New returns a private, migrated in-memory database that lives until the test ends.
// The single connection makes concurrent transactions queue the way SQLite writers do in production.
func New(t testing.TB) *db.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:test-%s?mode=memory&cache=shared&_busy_timeout=5000&_txlock=immediate", uuid.NewString())
	database, err := db.Open(sqlite.Open(dsn))
	require.NoError(t, err)

	sqlDB, err := database.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.RunMigrations(database))

	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}
