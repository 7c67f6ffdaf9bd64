package migrations

import (
	"errors"
	"fmt"
	"time"

	"eabridge/src/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var legacySymbolKeys = map[model.Bucket]string{
	model.BucketLegacy: model.KVActiveSymbols,
	model.BucketMT4:    model.KVMT4Symbols,
	model.BucketMT5:    model.KVMT5Symbols,
}

func loadKV(tx *gorm.DB, key string) (*model.KVEntry, error) {
	var entry model.KVEntry
	err := tx.Where(&model.KVEntry{Key: key}).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return &entry, nil
}

// foldLegacySymbolBuckets moves the three legacy symbol blobs into symbol_configs.
// When a symbol appears more than once the latest activatedAt wins; ties keep the
// earlier bucket in legacy, MT4, MT5 order. Rows already in the table compete too.
func foldLegacySymbolBuckets(tx *gorm.DB) error {
	var existing []model.SymbolConfig
	if err := tx.Find(&existing).Error; err != nil {
		return fmt.Errorf("load symbol configs: %w", err)
	}

	winners := make(map[string]model.SymbolConfig, len(existing))
	for _, cfg := range existing {
		winners[cfg.Symbol] = cfg
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	var folded []string

	for _, bucket := range model.Buckets {
		key := legacySymbolKeys[bucket]
		entry, err := loadKV(tx, key)
		if err != nil {
			return err
		}
		if entry == nil {
			continue
		}

		configs, err := model.DecodeLegacySymbols(bucket, []byte(entry.Value))
		if err != nil {
			// left in place for inspection
			logrus.WithField("key", key).WithError(err).Warn("[migrations] skipping unreadable legacy symbol bucket")
			continue
		}

		for _, cfg := range configs {
			if cfg.ActivatedAt.IsZero() {
				cfg.ActivatedAt = now
			}
			if cur, ok := winners[cfg.Symbol]; !ok || cfg.ActivatedAt.After(cur.ActivatedAt) {
				winners[cfg.Symbol] = cfg
			}
		}
		folded = append(folded, key)
	}

	for _, cfg := range winners {
		cfg := cfg
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			UpdateAll: true,
		}).Create(&cfg).Error
		if err != nil {
			return fmt.Errorf("upsert symbol %s: %w", cfg.Symbol, err)
		}
	}

	if len(folded) > 0 {
		if err := tx.Where(map[string]interface{}{"key": folded}).Delete(&model.KVEntry{}).Error; err != nil {
			return fmt.Errorf("delete folded buckets: %w", err)
		}
	}

	logrus.WithFields(map[string]interface{}{
		"buckets": len(folded),
		"symbols": len(winners),
	}).Info("[migrations] legacy symbol buckets folded")

	return nil
}

// foldLegacyAccounts imports login and server of the per-platform account blobs.
// Legacy passwords were stored in cleartext and are not carried over: imported
// accounts start disconnected and without a password until the user re-enters it.
func foldLegacyAccounts(tx *gorm.DB) error {
	legacy := map[model.Platform]string{
		model.PlatformMT4: model.KVMT4Account,
		model.PlatformMT5: model.KVMT5Account,
	}

	for _, platform := range []model.Platform{model.PlatformMT4, model.PlatformMT5} {
		key := legacy[platform]
		entry, err := loadKV(tx, key)
		if err != nil {
			return err
		}
		if entry == nil {
			continue
		}

		acc, err := model.DecodeLegacyAccount([]byte(entry.Value))
		if err != nil {
			logrus.WithField("key", key).WithError(err).Warn("[migrations] skipping unreadable legacy account")
			continue
		}

		if acc != nil && acc.Login != "" {
			row := model.Account{
				Key:      model.AccountKey(platform),
				Platform: platform,
				Login:    acc.Login,
				Server:   acc.Server,
			}
			err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("import %s: %w", key, err)
			}
		}

		if err := tx.Where(&model.KVEntry{Key: key}).Delete(&model.KVEntry{}).Error; err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}

	return nil
}
