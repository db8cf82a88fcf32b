package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SubmissionSettlement = "settlement"
	SubmissionOffset     = "offset"
	SubmissionAdmin      = "admin"

	SubmissionPending   = "pending"
	SubmissionConfirmed = "confirmed"
	SubmissionFailed    = "failed"
)

// ChainSubmission journals every transaction a saga sends, so pending or failed ones can be
// found by an operator and resumed by hash instead of resubmitted.
type ChainSubmission struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Kind      string         `gorm:"column:kind;type:varchar(16);not null" json:"kind"`
	Reference string         `gorm:"column:reference;not null;index" json:"reference"`
	TxHash    string         `gorm:"column:tx_hash;uniqueIndex;not null" json:"tx_hash"`
	Status    string         `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	Payload   datatypes.JSON `gorm:"column:payload" json:"payload"`
	Error     string         `gorm:"column:error" json:"error,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (ChainSubmission) TableName() string {
	return "chain_submissions"
}

func (s *ChainSubmission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
