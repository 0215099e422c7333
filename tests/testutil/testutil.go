// Package testutil holds helpers shared by the fee engine's integration and
// API tests: a sqlmock-backed GORM handle, gin test contexts carrying tenant
// and actor, fixed clocks and polling assertions.
package testutil

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/academy/backend/internal/interfaces/http/handler"
	"github.com/academy/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockDB wraps a postgres-dialect GORM handle over sqlmock.
type MockDB struct {
	DB    *gorm.DB
	Mock  sqlmock.Sqlmock
	SqlDB *sql.DB
}

// NewMockDB creates a mock database that is closed with the test and whose
// expectations are checked on cleanup.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create sqlmock")

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       sqlDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err, "Failed to open GORM connection")

	m := &MockDB{DB: db, Mock: mock, SqlDB: sqlDB}
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet(), "unmet sqlmock expectations")
		_ = sqlDB.Close()
	})
	return m
}

// TestContext is a gin context bound to a response recorder.
type TestContext struct {
	*gin.Context
	Recorder *httptest.ResponseRecorder
}

// NewTestContext builds a GET / context with a request ID already set.
func NewTestContext(t *testing.T) *TestContext {
	t.Helper()
	return NewTestContextWithRequest(t, httptest.NewRequest(http.MethodGet, "/", nil))
}

// NewTestContextWithRequest wraps req in a gin test context.
func NewTestContextWithRequest(t *testing.T, req *http.Request) *TestContext {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set(middleware.RequestIDKey, "test-request")
	return &TestContext{Context: c, Recorder: w}
}

// SetTenantID stores the tenant the way the tenant middleware does.
func (tc *TestContext) SetTenantID(id uuid.UUID) {
	tc.Set(middleware.TenantIDKey, id.String())
}

// SetActor sets the header handlers read the acting user from.
func (tc *TestContext) SetActor(actor string) {
	tc.Request.Header.Set(handler.UserHeaderKey, actor)
}

func (tc *TestContext) ResponseBody() []byte { return tc.Recorder.Body.Bytes() }

func (tc *TestContext) ResponseCode() int { return tc.Recorder.Code }

// NewTestUUID derives a stable UUID from seed.
func NewTestUUID(seed string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed))
}

// FixedClock returns a clock frozen at the given instant.
func FixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// ContextWithTimeout returns a context cancelled with the test.
func ContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// RequireEventually polls condition until it holds or timeout elapses.
func RequireEventually(t *testing.T, condition func() bool, timeout time.Duration, msgAndArgs ...any) {
	t.Helper()
	require.Eventually(t, condition, timeout, 10*time.Millisecond, msgAndArgs...)
}
