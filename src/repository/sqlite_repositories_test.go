package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"eabridge/src/database"
	"eabridge/src/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// helper to create a migrated in-memory database private to the test
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func TestKVRepository(t *testing.T) {
	ctx := context.Background()
	repo := (&KVRepository{}).WithDB(newTestDB(t))

	entry, err := repo.Get(ctx, model.KVBotActive)
	require.NoError(t, err)
	assert.Nil(t, entry)

	require.NoError(t, repo.Put(ctx, model.KVBotActive, "true"))
	require.NoError(t, repo.Put(ctx, model.KVBotActive, "false"))

	entry, err = repo.Get(ctx, model.KVBotActive)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "false", entry.Value)

	require.NoError(t, repo.Delete(ctx, model.KVBotActive))
	require.NoError(t, repo.Delete(ctx, model.KVBotActive))
	entry, err = repo.Get(ctx, model.KVBotActive)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestSymbolConfigRepositoryUpsertMovesBucket(t *testing.T) {
	ctx := context.Background()
	repo := (&SymbolConfigRepository{}).WithDB(newTestDB(t))
	at := time.Date(2025, 5, 1, 8, 0, 0, 123000000, time.UTC)

	require.NoError(t, repo.Upsert(ctx, &model.SymbolConfig{Symbol: "EURUSD", Bucket: model.BucketLegacy, LotSize: "0.1", Direction: "BUY", Platform: model.PlatformMT4, NumberOfTrades: 1, ActivatedAt: at}))
	require.NoError(t, repo.Upsert(ctx, &model.SymbolConfig{Symbol: "EURUSD", Bucket: model.BucketMT5, LotSize: "0.2", Direction: "SELL", Platform: model.PlatformMT5, NumberOfTrades: 2, ActivatedAt: at.Add(time.Second)}))

	configs, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, model.BucketMT5, configs[0].Bucket)
	assert.Equal(t, "0.2", configs[0].LotSize)

	removed, err := repo.DeleteFromBucket(ctx, model.BucketLegacy, "EURUSD")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestAccountRepositorySetConnected(t *testing.T) {
	ctx := context.Background()
	repo := (&AccountRepository{}).WithDB(newTestDB(t))

	require.Error(t, repo.SetConnected(ctx, model.PlatformMT4, true), "no account yet")

	require.NoError(t, repo.SaveCredentials(ctx, model.PlatformMT4, "4001", "sealed", "Broker-Demo"))
	require.NoError(t, repo.SetConnected(ctx, model.PlatformMT4, true))

	acc, err := repo.FindByPlatform(ctx, model.PlatformMT4)
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.True(t, acc.Connected)
	assert.Equal(t, "sealed", acc.PasswordSealed)

	unified, err := repo.FindByKey(ctx, model.AccountKeyUnified)
	require.NoError(t, err)
	require.NotNil(t, unified)
	assert.True(t, unified.Connected)
	assert.Equal(t, model.PlatformMT4, unified.Platform)
	assert.Equal(t, "4001", unified.Login)
	assert.Empty(t, unified.PasswordSealed)

	require.NoError(t, repo.SetConnected(ctx, model.PlatformMT4, false))
	unified, err = repo.FindByKey(ctx, model.AccountKeyUnified)
	require.NoError(t, err)
	assert.False(t, unified.Connected)

	// new credentials reset the connection flag
	require.NoError(t, repo.SetConnected(ctx, model.PlatformMT4, true))
	require.NoError(t, repo.SaveCredentials(ctx, model.PlatformMT4, "4002", "sealed2", "Broker-Live"))
	acc, err = repo.FindByPlatform(ctx, model.PlatformMT4)
	require.NoError(t, err)
	assert.False(t, acc.Connected)
	assert.Equal(t, "4002", acc.Login)

	missing, err := repo.FindByPlatform(ctx, model.PlatformMT5)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSignalLogRepositoryCapsAndOrders(t *testing.T) {
	ctx := context.Background()
	repo := (&SignalLogRepository{capacity: model.SignalLogCapacity}).WithDB(newTestDB(t))

	// 30 older signals, then a batch of 30 newer ones delivered newest first
	var older []model.SignalLog
	for i := 29; i >= 0; i-- {
		older = append(older, model.SignalLog{SignalID: fmt.Sprintf("old-%02d", i)})
	}
	require.NoError(t, repo.Append(ctx, older))

	var newer []model.SignalLog
	for i := 29; i >= 0; i-- {
		newer = append(newer, model.SignalLog{SignalID: fmt.Sprintf("new-%02d", i)})
	}
	require.NoError(t, repo.Append(ctx, newer))

	logs, err := repo.FindRecent(ctx)
	require.NoError(t, err)
	require.Len(t, logs, model.SignalLogCapacity)
	assert.Equal(t, "new-29", logs[0].SignalID)
	assert.Equal(t, "new-00", logs[29].SignalID)
	assert.Equal(t, "old-29", logs[30].SignalID)
	assert.Equal(t, "old-10", logs[49].SignalID)
}

func TestExpertAdvisorRepository(t *testing.T) {
	ctx := context.Background()
	repo := (&ExpertAdvisorRepository{}).WithDB(newTestDB(t))

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Append(ctx, &model.ExpertAdvisor{ID: id, Name: id, LicenseKey: "KEY-" + id, Status: model.EAStatusConnected}))
	}

	dup, err := repo.FindDuplicate(ctx, "zzz", "key-b")
	require.NoError(t, err)
	require.NotNil(t, dup)
	assert.Equal(t, "b", dup.ID)

	dup, err = repo.FindDuplicate(ctx, "zzz", "KEY-z")
	require.NoError(t, err)
	assert.Nil(t, dup)

	require.NoError(t, repo.MoveToFront(ctx, "c"))
	eas, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, eas, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{eas[0].ID, eas[1].ID, eas[2].ID})

	assert.Error(t, repo.MoveToFront(ctx, "missing"))

	removed, err := repo.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, removed)

	require.NoError(t, repo.Append(ctx, &model.ExpertAdvisor{ID: "d", Name: "d", LicenseKey: "KEY-d", Status: model.EAStatusConnected}))
	eas, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "d"}, []string{eas[0].ID, eas[1].ID, eas[2].ID})
}

func TestExecutionLogRepositoryFindRecent(t *testing.T) {
	ctx := context.Background()
	repo := (&ExecutionLogRepository{}).WithDB(newTestDB(t))

	for _, status := range []string{model.ExecutionStatusFailed, model.ExecutionStatusSucceeded} {
		require.NoError(t, repo.Create(ctx, &model.ExecutionLog{RequestID: status, Status: status, RequestedAt: time.Now()}))
	}

	logs, err := repo.FindRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, model.ExecutionStatusSucceeded, logs[0].Status)
}
