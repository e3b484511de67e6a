// Package storetest opens a migrated sqlite store for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/platewise/api/internal/config"
	"github.com/platewise/api/internal/store"
)

// Open returns a fresh sqlite database in a temp dir with all migrations applied
func Open(t testing.TB) *store.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "platewise.db") + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := store.Open(context.Background(), &config.DatabaseConfig{
		Driver:          "sqlite",
		DSN:             dsn,
		MaxOpenConns:    1,
		ConnMaxLifetime: time.Hour,
		AutoMigrate:     true,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
