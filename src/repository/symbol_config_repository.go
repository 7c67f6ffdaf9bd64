package repository

import (
	"context"

	"eabridge/src/database"
	"eabridge/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SymbolConfigRepository persists the collapsed symbol table.
type SymbolConfigRepository struct {
	db *gorm.DB
}

func NewSymbolConfigRepository() *SymbolConfigRepository {
	return &SymbolConfigRepository{db: database.MainDB}
}

func (r *SymbolConfigRepository) WithDB(db *gorm.DB) *SymbolConfigRepository {
	return &SymbolConfigRepository{db: db}
}

// FindAll returns every active configuration.
func (r *SymbolConfigRepository) FindAll(ctx context.Context) ([]model.SymbolConfig, error) {
	var configs []model.SymbolConfig
	if err := r.db.WithContext(ctx).Order("symbol ASC").Find(&configs).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "SymbolConfigRepository",
			"op":   "FindAll",
		}).WithError(err).Error("Failed to load symbol configs")
		return nil, err
	}
	return configs, nil
}

// Upsert activates cfg in its bucket. The symbol is the primary key, so the single
// statement both writes the new bucket and removes the symbol from any other bucket.
func (r *SymbolConfigRepository) Upsert(ctx context.Context, cfg *model.SymbolConfig) error {
	logger.WithFields(map[string]interface{}{
		"repo":   "SymbolConfigRepository",
		"op":     "Upsert",
		"symbol": cfg.Symbol,
		"bucket": cfg.Bucket,
	}).Debug("Activating symbol")

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		UpdateAll: true,
	}).Create(cfg).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "SymbolConfigRepository",
			"op":     "Upsert",
			"symbol": cfg.Symbol,
		}).WithError(err).Error("Failed to activate symbol")
	}
	return err
}

// DeleteFromBucket removes symbol only if it is active in bucket. It reports whether a row was removed.
func (r *SymbolConfigRepository) DeleteFromBucket(ctx context.Context, bucket model.Bucket, symbol string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("symbol = ? AND bucket = ?", symbol, bucket).
		Delete(&model.SymbolConfig{})
	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "SymbolConfigRepository",
			"op":     "DeleteFromBucket",
			"symbol": symbol,
			"bucket": bucket,
		}).WithError(res.Error).Error("Failed to deactivate symbol")
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
