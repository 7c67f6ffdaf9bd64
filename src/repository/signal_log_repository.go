package repository

import (
	"context"
	"fmt"

	"eabridge/src/database"
	"eabridge/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SignalLogRepository keeps the most recent polled signals, capped at model.SignalLogCapacity.
type SignalLogRepository struct {
	db       *gorm.DB
	capacity int
}

func NewSignalLogRepository() *SignalLogRepository {
	return &SignalLogRepository{db: database.MainDB, capacity: model.SignalLogCapacity}
}

func (r *SignalLogRepository) WithDB(db *gorm.DB) *SignalLogRepository {
	return &SignalLogRepository{db: db, capacity: r.capacity}
}

// Append stores a poll batch so that it reads back in batch order ahead of older
// entries, then trims everything beyond the capacity.
func (r *SignalLogRepository) Append(ctx context.Context, batch []model.SignalLog) error {
	if len(batch) == 0 {
		return nil
	}
	capacity := r.capacity
	if capacity <= 0 {
		capacity = model.SignalLogCapacity
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// ids grow with insertion, so insert the batch back to front
		for i := len(batch) - 1; i >= 0; i-- {
			entry := batch[i]
			entry.ID = 0
			if err := tx.Create(&entry).Error; err != nil {
				return fmt.Errorf("insert signal log %s: %w", entry.SignalID, err)
			}
		}

		keep := tx.Model(&model.SignalLog{}).Select("id").Order("id DESC").Limit(capacity)
		return tx.Where("id NOT IN (?)", keep).Delete(&model.SignalLog{}).Error
	})
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "SignalLogRepository",
			"op":    "Append",
			"batch": len(batch),
		}).WithError(err).Error("Failed to append signal logs")
	}
	return err
}

// FindRecent returns the log newest first.
func (r *SignalLogRepository) FindRecent(ctx context.Context) ([]model.SignalLog, error) {
	var logs []model.SignalLog
	err := r.db.WithContext(ctx).Order("id DESC").Limit(model.SignalLogCapacity).Find(&logs).Error
	return logs, err
}
