package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"eabridge/src/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Test index:
// - TestSymbolConfigRepositoryUpsert: single upsert statement keyed on symbol
// - TestSymbolConfigRepositoryDeleteFromBucket: delete is scoped to the bucket
// - TestSymbolConfigRepositoryFindAll: ordered read of the collapsed table

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}

	return gdb, mock
}

func TestSymbolConfigRepositoryUpsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&SymbolConfigRepository{}).WithDB(db)

	cfg := &model.SymbolConfig{
		Symbol:         "EURUSD",
		Bucket:         model.BucketMT4,
		LotSize:        "0.1",
		Direction:      model.DirectionBuy,
		Platform:       model.PlatformMT4,
		NumberOfTrades: 2,
		ActivatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "symbol_configs" ("symbol","bucket","lot_size","direction","platform","number_of_trades","activated_at","updated_at")`) +
		`.*` + regexp.QuoteMeta(`ON CONFLICT ("symbol") DO UPDATE SET`)).
		WithArgs("EURUSD", "mt4", "0.1", "BUY", "MT4", 2, cfg.ActivatedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Upsert(context.Background(), cfg))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSymbolConfigRepositoryDeleteFromBucket(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&SymbolConfigRepository{}).WithDB(db)

	t.Run("removed", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "symbol_configs" WHERE symbol = $1 AND bucket = $2`)).
			WithArgs("EURUSD", "mt4").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		removed, err := repo.DeleteFromBucket(context.Background(), model.BucketMT4, "EURUSD")
		require.NoError(t, err)
		assert.True(t, removed)
	})

	t.Run("active elsewhere is untouched", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "symbol_configs" WHERE symbol = $1 AND bucket = $2`)).
			WithArgs("EURUSD", "mt5").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		removed, err := repo.DeleteFromBucket(context.Background(), model.BucketMT5, "EURUSD")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSymbolConfigRepositoryFindAll(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&SymbolConfigRepository{}).WithDB(db)

	activated := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"symbol", "bucket", "lot_size", "direction", "platform", "number_of_trades", "activated_at"}).
		AddRow("EURUSD", "mt4", "0.1", "BUY", "MT4", 1, activated).
		AddRow("XAUUSD", "legacy", "0.01", "BOTH", "MT5", 3, activated)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "symbol_configs" ORDER BY symbol ASC`)).WillReturnRows(rows)

	configs, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, model.BucketLegacy, configs[1].Bucket)
	assert.Equal(t, 3, configs[1].NumberOfTrades)
	require.NoError(t, mock.ExpectationsWereMet())
}
