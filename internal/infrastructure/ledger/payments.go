package ledger

import (
	"context"
	"errors"

	"unicarbon-backend/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreatePayment persists a new payment in the created state.
func (s *Store) CreatePayment(ctx context.Context, p *domain.Payment) error {
	p.Status = domain.PaymentCreated
	p.Stage = ""
	return s.DB.WithContext(ctx).Create(p).Error
}

// GetPayment returns the payment for a gateway order id.
func (s *Store) GetPayment(ctx context.Context, orderID string) (*domain.Payment, error) {
	var p domain.Payment
	if err := s.DB.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// SetPaymentReference stores the gateway payment id reported by the client.
func (s *Store) SetPaymentReference(ctx context.Context, orderID, paymentID string) error {
	return s.DB.WithContext(ctx).Model(&domain.Payment{}).
		Where("order_id = ? AND status = ?", orderID, domain.PaymentCreated).
		Update("payment_id", paymentID).Error
}

// MarkPaymentFailed moves a created payment whose ledger half never ran to failed.
func (s *Store) MarkPaymentFailed(ctx context.Context, orderID string) error {
	res := s.DB.WithContext(ctx).Model(&domain.Payment{}).
		Where("order_id = ? AND status = ? AND stage = ?", orderID, domain.PaymentCreated, "").
		Update("status", domain.PaymentFailed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPaymentTerminal
	}
	return nil
}

// ApplySettlement decrements inventory, credits the buyer and marks the payment
// ledger_applied in one transaction. The stage transition makes it exactly-once.
func (s *Store) ApplySettlement(ctx context.Context, orderID string) error {
	return s.withCAS(ctx, func(tx *gorm.DB) error {
		var p domain.Payment
		if err := tx.Where("order_id = ?", orderID).First(&p).Error; err != nil {
			return notFound(err)
		}
		if p.Terminal() {
			return ErrPaymentTerminal
		}
		if p.Stage == domain.StageLedgerApplied {
			return ErrAlreadyApplied
		}

		res := tx.Model(&domain.Property{}).
			Where("id = ? AND available_shares >= ?", p.PropertyID, p.Shares).
			Update("available_shares", gorm.Expr("available_shares - ?", p.Shares))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var prop domain.Property
			if err := tx.Select("available_shares").Where("id = ?", p.PropertyID).First(&prop).Error; err != nil {
				return notFound(err)
			}
			if prop.AvailableShares < p.Shares {
				return &OversoldError{Available: prop.AvailableShares, Requested: p.Shares}
			}
			return ErrConflict
		}

		if err := creditOwner(tx, p.UserID, p.PropertyID, decimal.NewFromInt(p.Shares)); err != nil {
			return err
		}

		res = tx.Model(&domain.Payment{}).
			Where("order_id = ? AND status = ? AND stage = ?", orderID, domain.PaymentCreated, "").
			Update("stage", domain.StageLedgerApplied)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		return nil
	})
}

// ReverseSettlement undoes ApplySettlement: shares go back to the property, the buyer
// is debited (row deleted at zero) and the stage is cleared so confirmation can be retried.
func (s *Store) ReverseSettlement(ctx context.Context, orderID string) error {
	return s.withCAS(ctx, func(tx *gorm.DB) error {
		var p domain.Payment
		if err := tx.Where("order_id = ?", orderID).First(&p).Error; err != nil {
			return notFound(err)
		}
		if p.Terminal() {
			return ErrPaymentTerminal
		}
		if p.Stage != domain.StageLedgerApplied {
			return nil
		}

		var owner domain.Owner
		if err := tx.Where("user_id = ? AND property_id = ?", p.UserID, p.PropertyID).First(&owner).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &InsufficientCreditsError{Available: decimal.Zero}
			}
			return err
		}
		shares := decimal.NewFromInt(p.Shares)
		if owner.Credits.LessThan(shares) {
			return &InsufficientCreditsError{Available: owner.Credits}
		}
		if err := writeOwnerBalance(tx, &owner, owner.Credits.Sub(shares)); err != nil {
			return err
		}

		res := tx.Model(&domain.Property{}).
			Where("id = ? AND available_shares + ? <= total_shares", p.PropertyID, p.Shares).
			Update("available_shares", gorm.Expr("available_shares + ?", p.Shares))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		return tx.Model(&domain.Payment{}).
			Where("order_id = ?", orderID).
			Updates(map[string]interface{}{"stage": "", "tx_hash": nil}).Error
	})
}

// RecordSettlementTx stores the completion transaction hash before confirmation is awaited.
func (s *Store) RecordSettlementTx(ctx context.Context, orderID, txHash string) error {
	return s.DB.WithContext(ctx).Model(&domain.Payment{}).
		Where("order_id = ? AND status = ?", orderID, domain.PaymentCreated).
		Update("tx_hash", txHash).Error
}

// CompletePayment marks a ledger-applied payment successful with its confirmed transaction.
// Completing an already successful payment is a no-op.
func (s *Store) CompletePayment(ctx context.Context, orderID, txHash string) (*domain.Payment, error) {
	var out domain.Payment
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Payment{}).
			Where("order_id = ? AND status = ? AND stage = ?", orderID, domain.PaymentCreated, domain.StageLedgerApplied).
			Updates(map[string]interface{}{"status": domain.PaymentSuccess, "tx_hash": txHash})
		if res.Error != nil {
			return res.Error
		}
		if err := tx.Where("order_id = ?", orderID).First(&out).Error; err != nil {
			return notFound(err)
		}
		if res.RowsAffected == 0 && out.Status != domain.PaymentSuccess {
			return ErrConflict
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListStalledPayments returns payments whose ledger half committed but whose chain half did not.
func (s *Store) ListStalledPayments(ctx context.Context, limit int) ([]domain.Payment, error) {
	var out []domain.Payment
	err := s.DB.WithContext(ctx).
		Where("status = ? AND stage = ?", domain.PaymentCreated, domain.StageLedgerApplied).
		Order("updated_at ASC").Limit(limit).Find(&out).Error
	return out, err
}

// ClearSettlementTx forgets a completion transaction that is known to have failed, so the
// next confirmation submits a fresh one.
func (s *Store) ClearSettlementTx(ctx context.Context, orderID string) error {
	return s.DB.WithContext(ctx).Model(&domain.Payment{}).
		Where("order_id = ? AND status = ?", orderID, domain.PaymentCreated).
		Update("tx_hash", nil).Error
}
