package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentCreated PaymentStatus = "created"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// StageLedgerApplied marks a payment whose inventory/ownership mutation has committed.
const StageLedgerApplied = "ledger_applied"

// Payment is keyed by the gateway-assigned OrderID. Status moves created -> success|failed once.
type Payment struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID        string          `gorm:"column:order_id;uniqueIndex;not null" json:"order_id"`
	ReceiptID      string          `gorm:"column:receipt_id;not null" json:"receipt_id"`
	PaymentID      *string         `gorm:"column:payment_id" json:"payment_id"`
	UserID         string          `gorm:"column:user_id;not null;index" json:"user_id"`
	PropertyID     uuid.UUID       `gorm:"column:property_id;type:uuid;not null" json:"property_id"`
	Amount         decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	AmountMinor    int64           `gorm:"column:amount_minor;not null" json:"amount_minor"`
	Currency       string          `gorm:"column:currency;not null" json:"currency"`
	Shares         int64           `gorm:"column:shares;not null" json:"shares"`
	Status         PaymentStatus   `gorm:"column:status;type:varchar(16);not null;default:'created'" json:"status"`
	Stage          string          `gorm:"column:stage;type:varchar(32);not null;default:''" json:"stage"`
	TxHash         *string         `gorm:"column:tx_hash" json:"tx_hash"`
	GatewayPayload datatypes.JSON  `gorm:"column:gateway_payload" json:"-"`
	CreatedAt      time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Terminal reports whether the payment can no longer change status.
func (p *Payment) Terminal() bool {
	return p.Status == PaymentSuccess || p.Status == PaymentFailed
}
