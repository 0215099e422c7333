package persistence

import (
	"context"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/academy/backend/internal/domain/fee"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestGormSequenceCounter_Next(t *testing.T) {
	db := setupFeeTestDB(t)
	counter := NewGormSequenceCounter(db)
	ctx := context.Background()
	tenantA, tenantB := uuid.New(), uuid.New()

	for want := int64(1); want <= 3; want++ {
		got, err := counter.Next(ctx, tenantA, fee.ScopeReceipt, "202406")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	t.Run("buckets are independent", func(t *testing.T) {
		got, err := counter.Next(ctx, tenantB, fee.ScopeReceipt, "202406")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)

		got, err = counter.Next(ctx, tenantA, fee.ScopeInvoice, "202406")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)

		got, err = counter.Next(ctx, tenantA, fee.ScopeReceipt, "202407")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)
	})

	t.Run("row holds the last value", func(t *testing.T) {
		var value int64
		require.NoError(t, db.Table("sequence_counters").
			Select("value").
			Where("tenant_id = ? AND scope = ? AND period_key = ?", tenantA, fee.ScopeReceipt, "202406").
			Scan(&value).Error)
		assert.Equal(t, int64(3), value)
	})
}

func TestGormSequenceCounter_ConcurrentCallsAreUnique(t *testing.T) {
	db := setupFeeTestDB(t)
	counter := NewGormSequenceCounter(db)
	tenantID := uuid.New()

	const n = 100
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool, n)
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := counter.Next(context.Background(), tenantID, fee.ScopeReceipt, "202406")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			seen[v] = true
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Len(t, seen, n)
	for v := int64(1); v <= n; v++ {
		assert.True(t, seen[v], "missing value %d", v)
	}
}

func TestGormSequenceCounter_PostgresStatement(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	counter := NewGormSequenceCounter(gormDB)
	tenantID := uuid.New()

	t.Run("single upsert returning the value", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO "sequence_counters" .* ON CONFLICT \("tenant_id","scope","period_key"\) DO UPDATE SET "value"=sequence_counters.value \+ 1.* RETURNING "value"`).
			WithArgs(tenantID, fee.ScopeReceipt, "202406", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(7))

		got, err := counter.Next(context.Background(), tenantID, fee.ScopeReceipt, "202406")
		require.NoError(t, err)
		assert.Equal(t, int64(7), got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps database errors", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO "sequence_counters"`).
			WillReturnError(assert.AnError)

		_, err := counter.Next(context.Background(), tenantID, fee.ScopeInvoice, "202406")
		require.Error(t, err)
		assert.ErrorIs(t, err, assert.AnError)
		assert.Contains(t, err.Error(), "INVOICE counter")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
