package ledger

import (
	"context"
	"errors"
	"strings"

	"unicarbon-backend/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PurchaseEntry is a decoded CreditsPurchased log.
type PurchaseEntry struct {
	Wallet   string
	Amount   decimal.Decimal
	TxHash   string
	LogIndex uint
}

// OffsetEntry is a decoded CreditsOffset log.
type OffsetEntry struct {
	Wallet   string
	Amount   decimal.Decimal
	NftID    int64
	TxHash   string
	LogIndex uint
	Metadata datatypes.JSON
}

// CreateCompany registers a wallet. Wallets are unique case-insensitively.
func (s *Store) CreateCompany(ctx context.Context, name, wallet string) (*domain.Company, error) {
	c := domain.Company{
		Name:           name,
		Wallet:         strings.ToLower(wallet),
		TotalPurchased: decimal.Zero,
		TotalOffset:    decimal.Zero,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Company{}).Where("wallet = ?", c.Wallet).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicate
		}
		return tx.Create(&c).Error
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCompany returns a company with its credit records and NFT proofs, newest first.
func (s *Store) GetCompany(ctx context.Context, wallet string) (*domain.Company, error) {
	var c domain.Company
	err := s.DB.WithContext(ctx).
		Preload("Credits", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Preload("NftProofs", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Where("wallet = ?", strings.ToLower(wallet)).First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ApplyPurchase records a purchase event once per (tx hash, log index), creating the
// company on first sight. applied is false when the event was already recorded.
func (s *Store) ApplyPurchase(ctx context.Context, e PurchaseEntry) (rec *domain.CreditRecord, applied bool, err error) {
	wallet := strings.ToLower(e.Wallet)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company, err := findOrCreateCompany(tx, wallet)
		if err != nil {
			return err
		}
		rec, applied, err = insertCredit(tx, &domain.CreditRecord{
			CompanyID:   company.ID,
			Type:        domain.CreditPurchase,
			Amount:      e.Amount,
			TxHash:      e.TxHash,
			LogIndex:    e.LogIndex,
			ProjectName: company.Name,
		})
		if err != nil || !applied {
			return err
		}
		return tx.Model(&domain.Company{}).Where("id = ?", company.ID).
			Update("total_purchased", gorm.Expr("total_purchased + ?", e.Amount)).Error
	})
	return rec, applied, err
}

// ApplyOffset records an offset event and its NFT proof once per (tx hash, log index).
// The company must already exist; ErrCompanyNotFound is returned otherwise.
func (s *Store) ApplyOffset(ctx context.Context, e OffsetEntry) (rec *domain.CreditRecord, applied bool, err error) {
	wallet := strings.ToLower(e.Wallet)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var company domain.Company
		if err := tx.Where("wallet = ?", wallet).First(&company).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCompanyNotFound
			}
			return err
		}
		rec, applied, err = insertCredit(tx, &domain.CreditRecord{
			CompanyID:   company.ID,
			Type:        domain.CreditOffset,
			Amount:      e.Amount,
			TxHash:      e.TxHash,
			LogIndex:    e.LogIndex,
			NftID:       e.NftID,
			ProjectName: company.Name,
		})
		if err != nil || !applied {
			return err
		}
		if err := tx.Create(&domain.NftProof{
			CompanyID: company.ID,
			OffsetID:  rec.ID,
			Metadata:  e.Metadata,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Company{}).Where("id = ?", company.ID).
			Update("total_offset", gorm.Expr("total_offset + ?", e.Amount)).Error
	})
	return rec, applied, err
}

func findOrCreateCompany(tx *gorm.DB, wallet string) (*domain.Company, error) {
	name := wallet
	if len(name) > 8 {
		name = name[:8]
	}
	candidate := domain.Company{
		Name:           "Company " + name + "...",
		Wallet:         wallet,
		TotalPurchased: decimal.Zero,
		TotalOffset:    decimal.Zero,
	}
	if err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "wallet"}}, DoNothing: true}).
		Create(&candidate).Error; err != nil {
		return nil, err
	}
	var company domain.Company
	if err := tx.Where("wallet = ?", wallet).First(&company).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func insertCredit(tx *gorm.DB, rec *domain.CreditRecord) (*domain.CreditRecord, bool, error) {
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_hash"}, {Name: "log_index"}},
		DoNothing: true,
	}).Create(rec)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		var existing domain.CreditRecord
		if err := tx.Where("tx_hash = ? AND log_index = ?", rec.TxHash, rec.LogIndex).First(&existing).Error; err != nil {
			return nil, false, err
		}
		return &existing, false, nil
	}
	return rec, true, nil
}
