// Package storetest opens throwaway SQLite databases for tests that need
// real gorm transactions behind a store.Client.
package storetest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/kg-components/storefront/internal/config"
	"github.com/kg-components/storefront/internal/pkg/logger"
	"github.com/kg-components/storefront/internal/store"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config is a minimal configuration good enough for a store.Client
func Config() *config.Config {
	return &config.Config{
		App:      config.AppConfig{Name: "KG Components"},
		JWT:      config.JWTConfig{Secret: "0123456789abcdef0123456789abcdef", AccessTokenExpiry: time.Hour},
		Security: config.SecurityConfig{BcryptCost: 4},
	}
}

// Open creates a database in the test's temp dir and migrates models.
// Row locks are ignored by SQLite; a single connection serialises writers.
func Open(t testing.TB, models ...any) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models...))
	return db
}

// Client wraps db in an online store.Client without redis
func Client(db *gorm.DB) *store.Client {
	return store.NewClient(Config(), db, nil, logger.Discard())
}
