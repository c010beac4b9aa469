package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	persistence "github.com/questhold/questhold/internal/infrastructure/persistence/gorm"
)

// PostgresEnv enables the container-backed tests
const PostgresEnv = "QUESTHOLD_TEST_POSTGRES"

// PostgresContainer is a running PostgreSQL with the catalog schema migrated.
type PostgresContainer struct {
	*tcpostgres.PostgresContainer
	ConnectionString string
	DB               *gorm.DB
}

// SetupPostgresContainer starts a disposable PostgreSQL for t. The test is
// skipped unless QUESTHOLD_TEST_POSTGRES=1 since it needs a container runtime.
func SetupPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	if os.Getenv(PostgresEnv) != "1" {
		t.Skipf("set %s=1 to run PostgreSQL tests", PostgresEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("questhold"),
		tcpostgres.WithUsername("questhold"),
		tcpostgres.WithPassword("questhold"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start postgres container")

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, persistence.AutoMigrate(db))

	return &PostgresContainer{
		PostgresContainer: ctr,
		ConnectionString:  dsn,
		DB:                db,
	}
}

// TruncateTables empties tables between tests sharing one container.
func (pc *PostgresContainer) TruncateTables(tableNames ...string) error {
	if len(tableNames) == 0 {
		return nil
	}
	quoted := make([]string, len(tableNames))
	for i, name := range tableNames {
		quoted[i] = `"` + name + `"`
	}
	stmt := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(quoted, ", "))
	return pc.DB.Exec(stmt).Error
}
