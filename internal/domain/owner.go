package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditScale is the number of fractional digits an owner balance keeps.
const CreditScale = 6

// Owner is a user's credit balance for one property. Rows with zero credits are deleted, never kept.
// Version is bumped on every write and used as the compare-and-swap guard.
type Owner struct {
	UserID     string          `gorm:"column:user_id;primaryKey" json:"user_id"`
	PropertyID uuid.UUID       `gorm:"column:property_id;type:uuid;primaryKey" json:"property_id"`
	Credits    decimal.Decimal `gorm:"column:credits;type:decimal(20,6);not null;check:chk_owner_credits,credits >= 0" json:"credits"`
	Version    int64           `gorm:"column:version;not null;default:1" json:"-"`
	CreatedAt  time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Owner) TableName() string {
	return "owners"
}
