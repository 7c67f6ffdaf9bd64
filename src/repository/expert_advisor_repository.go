package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eabridge/src/database"
	"eabridge/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ExpertAdvisorRepository persists the ordered EA list.
type ExpertAdvisorRepository struct {
	db *gorm.DB
}

func NewExpertAdvisorRepository() *ExpertAdvisorRepository {
	return &ExpertAdvisorRepository{db: database.MainDB}
}

func (r *ExpertAdvisorRepository) WithDB(db *gorm.DB) *ExpertAdvisorRepository {
	return &ExpertAdvisorRepository{db: db}
}

// List returns EAs in list order; the first one is the active EA.
func (r *ExpertAdvisorRepository) List(ctx context.Context) ([]model.ExpertAdvisor, error) {
	var eas []model.ExpertAdvisor
	err := r.db.WithContext(ctx).Order("position ASC").Order("created_at ASC").Find(&eas).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "ExpertAdvisorRepository",
			"op":   "List",
		}).WithError(err).Error("Failed to list expert advisors")
	}
	return eas, err
}

// FindByID returns (nil, nil) when absent.
func (r *ExpertAdvisorRepository) FindByID(ctx context.Context, id string) (*model.ExpertAdvisor, error) {
	var ea model.ExpertAdvisor
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&ea).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ea, nil
}

// FindDuplicate looks for an EA with the same id or the same license key, ignoring case.
func (r *ExpertAdvisorRepository) FindDuplicate(ctx context.Context, id, licenseKey string) (*model.ExpertAdvisor, error) {
	var ea model.ExpertAdvisor
	err := r.db.WithContext(ctx).
		Where("id = ? OR UPPER(license_key) = UPPER(?)", id, licenseKey).
		Take(&ea).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "ExpertAdvisorRepository",
			"op":   "FindDuplicate",
		}).WithError(err).Error("Failed to check for duplicate expert advisor")
		return nil, err
	}
	return &ea, nil
}

// Append adds ea at the end of the list.
func (r *ExpertAdvisorRepository) Append(ctx context.Context, ea *model.ExpertAdvisor) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxPos sql.NullInt64
		if err := tx.Model(&model.ExpertAdvisor{}).Select("MAX(position)").Row().Scan(&maxPos); err != nil {
			return fmt.Errorf("read list tail: %w", err)
		}
		ea.Position = 0
		if maxPos.Valid {
			ea.Position = int(maxPos.Int64) + 1
		}
		return tx.Create(ea).Error
	})
}

func (r *ExpertAdvisorRepository) Update(ctx context.Context, ea *model.ExpertAdvisor) error {
	return r.db.WithContext(ctx).Save(ea).Error
}

// Delete reports whether the EA existed.
func (r *ExpertAdvisorRepository) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.ExpertAdvisor{})
	return res.RowsAffected > 0, res.Error
}

// MoveToFront makes id the first EA and keeps the relative order of the others.
func (r *ExpertAdvisorRepository) MoveToFront(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var eas []model.ExpertAdvisor
		if err := tx.Order("position ASC").Order("created_at ASC").Find(&eas).Error; err != nil {
			return err
		}

		ordered := make([]model.ExpertAdvisor, 0, len(eas))
		for _, ea := range eas {
			if ea.ID == id {
				ordered = append([]model.ExpertAdvisor{ea}, ordered...)
				continue
			}
			ordered = append(ordered, ea)
		}
		if len(ordered) == 0 || ordered[0].ID != id {
			return gorm.ErrRecordNotFound
		}

		for pos, ea := range ordered {
			if err := tx.Model(&model.ExpertAdvisor{}).Where("id = ?", ea.ID).Update("position", pos).Error; err != nil {
				return fmt.Errorf("reorder %s: %w", ea.ID, err)
			}
		}
		return nil
	})
}
