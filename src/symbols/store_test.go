package symbols

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"eabridge/src/database"
	"eabridge/src/model"
	"eabridge/src/repository"
	"eabridge/src/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

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

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	db := newTestDB(t)
	store := NewStore((&repository.SymbolConfigRepository{}).WithDB(db), risk.DefaultLimits())
	return store, db
}

func TestStoreActivateMovesBetweenBuckets(t *testing.T) {
	ctx := context.Background()
	store, db := newTestStore(t)

	_, err := store.Activate(ctx, model.BucketLegacy, model.SymbolConfig{Symbol: "eurusd", LotSize: "0.1", Platform: "mt4"})
	require.NoError(t, err)

	cfg, ok := store.Resolve("EURUSD")
	require.True(t, ok)
	assert.Equal(t, model.BucketLegacy, cfg.Bucket)
	assert.Equal(t, model.PlatformMT4, cfg.Platform)
	assert.Equal(t, model.DirectionBoth, cfg.Direction)
	assert.Equal(t, 1, cfg.NumberOfTrades)

	_, err = store.Activate(ctx, model.BucketMT5, model.SymbolConfig{Symbol: "EURUSD", LotSize: "0.2", Direction: "SELL", Platform: "MT4"})
	require.NoError(t, err)

	cfg, ok = store.Resolve(" eurusd ")
	require.True(t, ok)
	assert.Equal(t, model.BucketMT5, cfg.Bucket)
	assert.Equal(t, model.PlatformMT5, cfg.Platform, "platform bucket forces the platform")
	assert.Len(t, store.List(), 1)

	var count int64
	require.NoError(t, db.Model(&model.SymbolConfig{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// removing from the bucket it is no longer in changes nothing
	removed, err := store.Deactivate(ctx, model.BucketLegacy, "EURUSD")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.True(t, store.IsActive("EURUSD"))

	removed, err = store.Deactivate(ctx, model.BucketMT5, "eurusd")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, store.IsActive("EURUSD"))

	removed, err = store.Deactivate(ctx, model.BucketMT5, "eurusd")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStorePersistsAcrossReload(t *testing.T) {
	ctx := context.Background()
	store, db := newTestStore(t)
	activated := time.Date(2025, 3, 4, 5, 6, 7, 891234567, time.UTC)

	_, err := store.Activate(ctx, model.BucketMT4, model.SymbolConfig{Symbol: "XAUUSD", LotSize: "0.05", Direction: "buy", NumberOfTrades: 3, ActivatedAt: activated})
	require.NoError(t, err)

	reloaded := NewStore((&repository.SymbolConfigRepository{}).WithDB(db), risk.DefaultLimits())
	require.NoError(t, reloaded.Load(ctx))

	cfg, ok := reloaded.Resolve("XAUUSD")
	require.True(t, ok)
	assert.Equal(t, model.BucketMT4, cfg.Bucket)
	assert.Equal(t, "0.05", cfg.LotSize)
	assert.Equal(t, model.DirectionBuy, cfg.Direction)
	assert.Equal(t, 3, cfg.NumberOfTrades)
	assert.True(t, cfg.ActivatedAt.Equal(activated.Truncate(time.Millisecond)), "activatedAt kept at millisecond precision, got %s", cfg.ActivatedAt)
}

func TestStoreActivateRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.Activate(ctx, model.BucketMT4, model.SymbolConfig{Symbol: "XAUUSD", LotSize: "-1"})
	assert.ErrorIs(t, err, risk.ErrInvalidSymbolConfig)

	_, err = store.Activate(ctx, model.Bucket("mt6"), model.SymbolConfig{Symbol: "XAUUSD", LotSize: "1"})
	assert.ErrorIs(t, err, ErrUnknownBucket)

	assert.Empty(t, store.List())
}

func TestSupersedes(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	legacy := model.SymbolConfig{Bucket: model.BucketLegacy, ActivatedAt: at}
	mt5 := model.SymbolConfig{Bucket: model.BucketMT5, ActivatedAt: at}
	laterMT5 := model.SymbolConfig{Bucket: model.BucketMT5, ActivatedAt: at.Add(time.Millisecond)}

	assert.True(t, supersedes(legacy, mt5))
	assert.False(t, supersedes(mt5, legacy))
	assert.True(t, supersedes(laterMT5, legacy))
}

func TestApplyPresets(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	path := filepath.Join(t.TempDir(), "symbols.yaml")
	content := `symbols:
  - bucket: mt4
    symbol: eurusd
    lot_size: "0.1"
    direction: BUY
    number_of_trades: 2
  - bucket: legacy
    symbol: xauusd
    lot_size: "0.01"
    platform: MT5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	presets, err := LoadPresets(path)
	require.NoError(t, err)
	require.Len(t, presets, 2)

	applied, err := store.ApplyPresets(ctx, presets)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "EURUSD", list[0].Symbol)
	assert.Equal(t, model.PlatformMT4, list[0].Platform)
	assert.Equal(t, "XAUUSD", list[1].Symbol)
	assert.Equal(t, model.PlatformMT5, list[1].Platform)

	_, err = store.ApplyPresets(ctx, []Preset{{Bucket: "nope", Symbol: "GBPUSD", LotSize: "1"}})
	assert.ErrorIs(t, err, ErrUnknownBucket)
}

type failingRepository struct {
	Repository
	upsertErr error
	deleteErr error
}

func (f *failingRepository) Upsert(ctx context.Context, cfg *model.SymbolConfig) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	return f.Repository.Upsert(ctx, cfg)
}

func (f *failingRepository) DeleteFromBucket(ctx context.Context, bucket model.Bucket, symbol string) (bool, error) {
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	return f.Repository.DeleteFromBucket(ctx, bucket, symbol)
}

func TestStoreKeepsViewWhenWriteFails(t *testing.T) {
	ctx := context.Background()
	repo := &failingRepository{Repository: (&repository.SymbolConfigRepository{}).WithDB(newTestDB(t))}
	store := NewStore(repo, risk.DefaultLimits())

	_, err := store.Activate(ctx, model.BucketMT4, model.SymbolConfig{Symbol: "EURUSD", LotSize: "0.1"})
	require.NoError(t, err)
	before, ok := store.Resolve("EURUSD")
	require.True(t, ok)

	t.Run("failed activate", func(t *testing.T) {
		repo.upsertErr = errors.New("disk full")
		defer func() { repo.upsertErr = nil }()

		_, err := store.Activate(ctx, model.BucketMT5, model.SymbolConfig{Symbol: "EURUSD", LotSize: "0.5"})
		require.ErrorIs(t, err, repo.upsertErr)

		_, err = store.Activate(ctx, model.BucketLegacy, model.SymbolConfig{Symbol: "GBPUSD", LotSize: "0.1"})
		require.Error(t, err)

		cfg, ok := store.Resolve("EURUSD")
		require.True(t, ok)
		assert.Equal(t, before, cfg)
		assert.False(t, store.IsActive("GBPUSD"))
	})

	t.Run("failed deactivate", func(t *testing.T) {
		repo.deleteErr = errors.New("database is locked")
		defer func() { repo.deleteErr = nil }()

		removed, err := store.Deactivate(ctx, model.BucketMT4, "EURUSD")
		require.ErrorIs(t, err, repo.deleteErr)
		assert.False(t, removed)

		cfg, ok := store.Resolve("EURUSD")
		require.True(t, ok)
		assert.Equal(t, before, cfg)
	})

	persisted := NewStore(repo, risk.DefaultLimits())
	require.NoError(t, persisted.Load(ctx))
	cfg, ok := persisted.Resolve("EURUSD")
	require.True(t, ok)
	assert.Equal(t, model.BucketMT4, cfg.Bucket)
	assert.False(t, persisted.IsActive("GBPUSD"))
}
