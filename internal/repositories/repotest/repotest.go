// Package repotest opens throwaway in-memory databases for tests.
package repotest

import (
	"testing"

	"exchange/internal/config"
	"exchange/internal/repositories"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewDB returns a migrated, isolated in-memory sqlite database.
// A single connection keeps every statement on the same in-memory database
// and serializes transactions the way row locks would on postgres.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := repositories.Open(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := repositories.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { _ = repositories.Close(db) })
	return db
}
