package repository

import (
	"context"

	"eabridge/src/database"
	"eabridge/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ExecutionLogRepository records how each execution request ended.
type ExecutionLogRepository struct {
	db *gorm.DB
}

func NewExecutionLogRepository() *ExecutionLogRepository {
	return &ExecutionLogRepository{db: database.MainDB}
}

func (r *ExecutionLogRepository) WithDB(db *gorm.DB) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db}
}

func (r *ExecutionLogRepository) Create(ctx context.Context, entry *model.ExecutionLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "ExecutionLogRepository",
			"op":        "Create",
			"requestID": entry.RequestID,
			"status":    entry.Status,
		}).WithError(err).Error("Failed to record execution outcome")
		return err
	}
	return nil
}

// FindRecent returns the newest outcomes first.
func (r *ExecutionLogRepository) FindRecent(ctx context.Context, limit int) ([]model.ExecutionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []model.ExecutionLog
	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
