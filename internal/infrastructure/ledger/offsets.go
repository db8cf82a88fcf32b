package ledger

import (
	"context"

	"unicarbon-backend/internal/domain"
)

// CreateOffsetRecord appends a confirmed retirement.
func (s *Store) CreateOffsetRecord(ctx context.Context, rec *domain.OffsetRecord) error {
	return s.DB.WithContext(ctx).Create(rec).Error
}

// GetOffsetRecord returns the retirement recorded for a transaction hash.
func (s *Store) GetOffsetRecord(ctx context.Context, txHash string) (*domain.OffsetRecord, error) {
	var rec domain.OffsetRecord
	if err := s.DB.WithContext(ctx).Where("transaction_hash = ?", txHash).First(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}
