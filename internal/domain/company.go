package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Company is the chain-facing ledger row for a wallet. Wallet is stored lower-cased.
// Totals are in raw chain units, exactly as emitted by contract events.
type Company struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name           string          `gorm:"column:name;not null" json:"name"`
	Wallet         string          `gorm:"column:wallet;uniqueIndex;not null" json:"wallet"`
	TotalPurchased decimal.Decimal `gorm:"column:total_purchased;type:decimal(78,0);not null;default:0" json:"total_purchased"`
	TotalOffset    decimal.Decimal `gorm:"column:total_offset;type:decimal(78,0);not null;default:0" json:"total_offset"`
	CreatedAt      time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at" json:"updated_at"`

	Credits   []CreditRecord `gorm:"foreignKey:CompanyID" json:"credits,omitempty"`
	NftProofs []NftProof     `gorm:"foreignKey:CompanyID" json:"nfts,omitempty"`
}

func (Company) TableName() string {
	return "companies"
}

func (c *Company) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

const (
	CreditPurchase = "purchase"
	CreditOffset   = "offset"
)

// CreditRecord is one decoded chain event. (TxHash, LogIndex) is unique so reconciliation never double-counts.
type CreditRecord struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CompanyID   uuid.UUID       `gorm:"column:company_id;type:uuid;not null;index" json:"company_id"`
	Type        string          `gorm:"column:type;type:varchar(16);not null" json:"type"`
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(78,0);not null" json:"amount"`
	TxHash      string          `gorm:"column:tx_hash;not null;uniqueIndex:idx_credit_tx_log,priority:1" json:"tx_hash"`
	LogIndex    uint            `gorm:"column:log_index;not null;uniqueIndex:idx_credit_tx_log,priority:2" json:"log_index"`
	NftID       int64           `gorm:"column:nft_id;not null;default:0" json:"nft_id"`
	ProjectName string          `gorm:"column:project_name" json:"project_name"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (CreditRecord) TableName() string {
	return "carbon_credits"
}

func (r *CreditRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// NftProof is one-to-one with an offset CreditRecord.
type NftProof struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CompanyID uuid.UUID      `gorm:"column:company_id;type:uuid;not null;index" json:"company_id"`
	OffsetID  uuid.UUID      `gorm:"column:offset_id;type:uuid;not null;uniqueIndex" json:"offset_id"`
	Metadata  datatypes.JSON `gorm:"column:metadata_uri" json:"metadata"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (NftProof) TableName() string {
	return "nft_proofs"
}

func (n *NftProof) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// NftMetadata is the blob stored on NftProof.
type NftMetadata struct {
	NftID     int64  `json:"nftId"`
	Amount    string `json:"amount"`
	Company   string `json:"company"`
	Timestamp string `json:"timestamp"`
}
