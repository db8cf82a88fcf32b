package ledger

import (
	"context"
	"errors"
	"time"

	"unicarbon-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetOwner returns the balance row for (userID, propertyID).
func (s *Store) GetOwner(ctx context.Context, userID string, propertyID uuid.UUID) (*domain.Owner, error) {
	var o domain.Owner
	if err := s.DB.WithContext(ctx).Where("user_id = ? AND property_id = ?", userID, propertyID).First(&o).Error; err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

// ListOwners returns every balance row held by userID, largest first.
func (s *Store) ListOwners(ctx context.Context, userID string) ([]domain.Owner, error) {
	var owners []domain.Owner
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("credits DESC").
		Find(&owners).Error
	return owners, err
}

// DebitOwner removes credits from an owner, deleting the row when it reaches zero.
// It returns the row as it was before the debit.
func (s *Store) DebitOwner(ctx context.Context, userID string, propertyID uuid.UUID, credits decimal.Decimal) (*domain.Owner, error) {
	var before domain.Owner
	err := s.withCAS(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND property_id = ?", userID, propertyID).First(&before).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &InsufficientCreditsError{Available: decimal.Zero}
			}
			return err
		}
		if before.Credits.LessThan(credits) {
			return &InsufficientCreditsError{Available: before.Credits}
		}
		return writeOwnerBalance(tx, &before, before.Credits.Sub(credits))
	})
	if err != nil {
		return nil, err
	}
	return &before, nil
}

// CreditOwner adds credits to an owner, recreating the row if it was deleted.
func (s *Store) CreditOwner(ctx context.Context, userID string, propertyID uuid.UUID, credits decimal.Decimal) error {
	return s.withCAS(ctx, func(tx *gorm.DB) error {
		return creditOwner(tx, userID, propertyID, credits)
	})
}

// creditOwner adds credits in decimal and writes the sum back under the version guard.
// SQLite stores decimal columns as REAL, so the sum is never computed in SQL.
func creditOwner(tx *gorm.DB, userID string, propertyID uuid.UUID, credits decimal.Decimal) error {
	var owner domain.Owner
	err := tx.Where("user_id = ? AND property_id = ?", userID, propertyID).First(&owner).Error
	if err == nil {
		return writeOwnerBalance(tx, &owner, owner.Credits.Add(credits))
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&domain.Owner{
		UserID:     userID,
		PropertyID: propertyID,
		Credits:    credits,
		Version:    1,
		UpdatedAt:  time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// writeOwnerBalance swaps owner to remaining, guarded on its version.
func writeOwnerBalance(tx *gorm.DB, owner *domain.Owner, remaining decimal.Decimal) error {
	scope := tx.Where("user_id = ? AND property_id = ? AND version = ?", owner.UserID, owner.PropertyID, owner.Version)
	var res *gorm.DB
	if remaining.IsZero() {
		res = scope.Delete(&domain.Owner{})
	} else {
		res = scope.Model(&domain.Owner{}).Updates(map[string]interface{}{
			"credits": remaining,
			"version": owner.Version + 1,
		})
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
