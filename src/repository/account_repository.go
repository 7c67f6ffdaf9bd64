package repository

import (
	"context"
	"errors"
	"fmt"

	"eabridge/src/database"
	"eabridge/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountRepository persists terminal accounts: one per platform plus the unified record.
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{db: database.MainDB}
}

func (r *AccountRepository) WithDB(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// FindByKey returns (nil, nil) when no record exists.
func (r *AccountRepository) FindByKey(ctx context.Context, key string) (*model.Account, error) {
	var acc model.Account
	err := r.db.WithContext(ctx).Where(&model.Account{Key: key}).Take(&acc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo": "AccountRepository",
			"op":   "FindByKey",
			"key":  key,
		}).WithError(err).Error("Failed to load account")
		return nil, err
	}
	return &acc, nil
}

// FindByPlatform returns the per-platform record.
func (r *AccountRepository) FindByPlatform(ctx context.Context, platform model.Platform) (*model.Account, error) {
	return r.FindByKey(ctx, model.AccountKey(platform))
}

func (r *AccountRepository) FindAll(ctx context.Context) ([]model.Account, error) {
	var accounts []model.Account
	if err := r.db.WithContext(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// SaveCredentials stores new credentials for platform. The account is not connected
// until the terminal confirms a login with them.
func (r *AccountRepository) SaveCredentials(ctx context.Context, platform model.Platform, login, passwordSealed, server string) error {
	acc := model.Account{
		Key:            model.AccountKey(platform),
		Platform:       platform,
		Login:          login,
		PasswordSealed: passwordSealed,
		Server:         server,
		Connected:      false,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&acc).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "AccountRepository",
			"op":       "SaveCredentials",
			"platform": platform,
		}).WithError(err).Error("Failed to save account")
	}
	return err
}

// SetConnected records an authentication outcome on both the per-platform and the
// unified account in one transaction.
func (r *AccountRepository) SetConnected(ctx context.Context, platform model.Platform, connected bool) error {
	key := model.AccountKey(platform)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acc model.Account
		if err := tx.Where(&model.Account{Key: key}).Take(&acc).Error; err != nil {
			return fmt.Errorf("load %s account: %w", key, err)
		}

		if err := tx.Model(&acc).Update("connected", connected).Error; err != nil {
			return fmt.Errorf("update %s account: %w", key, err)
		}

		unified := model.Account{
			Key:       model.AccountKeyUnified,
			Platform:  platform,
			Login:     acc.Login,
			Server:    acc.Server,
			Connected: connected,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"platform", "login", "server", "connected", "updated_at"}),
		}).Create(&unified).Error
	})

	entry := logger.WithFields(map[string]interface{}{
		"repo":      "AccountRepository",
		"op":        "SetConnected",
		"platform":  platform,
		"connected": connected,
	})
	if err != nil {
		entry.WithError(err).Error("Failed to record account connection state")
		return err
	}
	entry.Info("Account connection state recorded")
	return nil
}
