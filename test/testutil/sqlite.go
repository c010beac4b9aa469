package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	persistence "github.com/questhold/questhold/internal/infrastructure/persistence/gorm"
)

// SetupSQLite opens a migrated SQLite database in a temporary file. The
// database is closed when the test finishes.
func SetupSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "questhold.db")
	db, err := gorm.Open(sqlite.Open(persistence.SQLiteDSN(path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, persistence.AutoMigrate(db))

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}
