package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Property is a tokenized real-world asset sold in whole shares.
// Catalog management creates rows; only settlement and its compensation move AvailableShares.
type Property struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name            string          `gorm:"column:name;not null" json:"name"`
	Price           decimal.Decimal `gorm:"column:price;type:decimal(18,2);not null" json:"price"`
	AvailableShares int64           `gorm:"column:available_shares;not null;check:chk_property_available_shares,available_shares >= 0 AND available_shares <= total_shares" json:"available_shares"`
	TotalShares     int64           `gorm:"column:total_shares;not null" json:"total_shares"`
	CreatedAt       time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Property) TableName() string {
	return "property_data"
}

func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
