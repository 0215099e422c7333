// Package integration runs the fee engine against a real PostgreSQL started
// with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/academy/backend/internal/infrastructure/migration"
	"github.com/academy/backend/migrations"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	sharedContainer    *tcpostgres.PostgresContainer
	sharedContainerMu  sync.Mutex
	sharedContainerDSN string
)

// feeTables are truncated between tests, children first.
var feeTables = []string{
	"payment_ledger_entries",
	"fee_accounts",
	"sequence_counters",
	"course_fees",
	"cohort_fees",
	"student_contacts",
}

// TestDB represents a test database connection
type TestDB struct {
	DB        *gorm.DB
	SqlDB     *sql.DB
	Container testcontainers.Container
	DSN       string
	shared    bool
	t         *testing.T
}

func runPostgres(ctx context.Context, dbName string) (*tcpostgres.PostgresContainer, error) {
	return tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(dbName),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
}

// NewTestDB starts a dedicated PostgreSQL container with the fee schema applied.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	container, err := runPostgres(ctx, "academy_test")
	require.NoError(t, err, "Failed to start PostgreSQL container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	db, sqlDB := connectToDatabase(t, dsn)
	runMigrations(t, sqlDB)

	testDB := &TestDB{
		DB:        db,
		SqlDB:     sqlDB,
		Container: container,
		DSN:       dsn,
		t:         t,
	}
	t.Cleanup(testDB.Close)
	return testDB
}

// NewSharedTestDB reuses one container per test binary. Callers are expected
// to CleanTables before seeding.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	ctx := context.Background()
	if sharedContainer == nil {
		container, err := runPostgres(ctx, "academy_shared_test")
		require.NoError(t, err, "Failed to start shared PostgreSQL container")

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err, "Failed to get connection string")

		_, sqlDB := connectToDatabase(t, dsn)
		runMigrations(t, sqlDB)
		_ = sqlDB.Close()

		sharedContainer = container
		sharedContainerDSN = dsn
	}

	db, sqlDB := connectToDatabase(t, sharedContainerDSN)
	testDB := &TestDB{
		DB:        db,
		SqlDB:     sqlDB,
		Container: sharedContainer,
		DSN:       sharedContainerDSN,
		shared:    true,
		t:         t,
	}
	t.Cleanup(testDB.Close)
	return testDB
}

// Close closes the database connection and terminates the container
func (tdb *TestDB) Close() {
	if tdb.SqlDB != nil {
		_ = tdb.SqlDB.Close()
	}
	if tdb.Container != nil && !tdb.shared {
		if err := tdb.Container.Terminate(context.Background()); err != nil {
			tdb.t.Logf("Warning: Failed to terminate container: %v", err)
		}
	}
}

// CleanTables truncates every fee table.
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()
	for _, table := range feeTables {
		err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error
		require.NoError(tdb.t, err, "Failed to truncate %s", table)
	}
}

// SeedCourseFee registers a catalog fee for a course.
func (tdb *TestDB) SeedCourseFee(tenantID, courseID fmt.Stringer, fee string) {
	tdb.t.Helper()
	err := tdb.DB.Exec(`
		INSERT INTO course_fees (id, created_at, updated_at, tenant_id, course_id, name, fee)
		VALUES (gen_random_uuid(), NOW(), NOW(), ?, ?, 'Course', ?)
	`, tenantID.String(), courseID.String(), fee).Error
	require.NoError(tdb.t, err, "Failed to seed course fee")
}

// SeedStudentContact registers the reminder address of a student.
func (tdb *TestDB) SeedStudentContact(tenantID, studentID fmt.Stringer, email string) {
	tdb.t.Helper()
	err := tdb.DB.Exec(`
		INSERT INTO student_contacts (id, created_at, updated_at, tenant_id, student_id, name, email)
		VALUES (gen_random_uuid(), NOW(), NOW(), ?, ?, 'Student', ?)
	`, tenantID.String(), studentID.String(), email).Error
	require.NoError(tdb.t, err, "Failed to seed student contact")
}

func connectToDatabase(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	gormConfig := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), gormConfig)
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "Failed to get underlying SQL DB")

	// Enough connections for the concurrency tests to contend on row locks.
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, sqlDB
}

// runMigrations applies the same embedded migrations the server runs on start.
func runMigrations(t *testing.T, sqlDB *sql.DB) {
	t.Helper()
	m, err := migration.NewFromFS(sqlDB, migrations.FS, zaptest.NewLogger(t))
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, m.Up(), "Failed to run migrations")
}

// CleanupSharedContainer terminates the shared container. Call it from TestMain.
func CleanupSharedContainer() {
	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	if sharedContainer != nil {
		_ = sharedContainer.Terminate(context.Background())
		sharedContainer = nil
		sharedContainerDSN = ""
	}
}
