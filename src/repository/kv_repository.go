package repository

import (
	"context"
	"errors"

	"eabridge/src/database"
	"eabridge/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVRepository persists key-value preferences.
type KVRepository struct {
	db *gorm.DB
}

func NewKVRepository() *KVRepository {
	return &KVRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance (tests, transactions).
func (r *KVRepository) WithDB(db *gorm.DB) *KVRepository {
	return &KVRepository{db: db}
}

// Get returns (nil, nil) when the key is absent.
func (r *KVRepository) Get(ctx context.Context, key string) (*model.KVEntry, error) {
	var entry model.KVEntry
	err := r.db.WithContext(ctx).Where(&model.KVEntry{Key: key}).Take(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo": "KVRepository",
			"op":   "Get",
			"key":  key,
		}).WithError(err).Error("Failed to load key")
		return nil, err
	}
	return &entry, nil
}

// Put inserts or replaces the value stored under key.
func (r *KVRepository) Put(ctx context.Context, key, value string) error {
	entry := model.KVEntry{Key: key, Value: value}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "KVRepository",
			"op":   "Put",
			"key":  key,
		}).WithError(err).Error("Failed to store key")
	}
	return err
}

// Delete removes key; absent keys are not an error.
func (r *KVRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where(&model.KVEntry{Key: key}).Delete(&model.KVEntry{}).Error
}
