package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OffsetRecord is the append-only proof of a confirmed on-chain retirement.
type OffsetRecord struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID             string          `gorm:"column:user_id;not null;index" json:"user_id"`
	PropertyID         uuid.UUID       `gorm:"column:property_id;type:uuid;not null" json:"property_id"`
	Credits            decimal.Decimal `gorm:"column:credits;type:decimal(20,6);not null" json:"credits"`
	Description        string          `gorm:"column:description" json:"description"`
	TransactionHash    string          `gorm:"column:transaction_hash;uniqueIndex;not null" json:"transaction_hash"`
	BeneficiaryAddress string          `gorm:"column:beneficiary_address;not null" json:"beneficiary_address"`
	BeneficiaryName    string          `gorm:"column:beneficiary_name" json:"beneficiary_name"`
	CreatedAt          time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (OffsetRecord) TableName() string {
	return "offsets"
}

func (o *OffsetRecord) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
