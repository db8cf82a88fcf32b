package ledger

import (
	"context"

	"unicarbon-backend/internal/domain"

	"gorm.io/datatypes"
)

// RecordSubmission journals a freshly sent chain transaction as pending.
func (s *Store) RecordSubmission(ctx context.Context, kind, reference, txHash string, payload datatypes.JSON) (*domain.ChainSubmission, error) {
	sub := domain.ChainSubmission{
		Kind:      kind,
		Reference: reference,
		TxHash:    txHash,
		Status:    domain.SubmissionPending,
		Payload:   payload,
	}
	if err := s.DB.WithContext(ctx).Create(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetSubmission looks a journal entry up by transaction hash.
func (s *Store) GetSubmission(ctx context.Context, txHash string) (*domain.ChainSubmission, error) {
	var sub domain.ChainSubmission
	if err := s.DB.WithContext(ctx).Where("tx_hash = ?", txHash).First(&sub).Error; err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

// FindPendingSubmission returns the newest pending journal entry of kind for reference.
func (s *Store) FindPendingSubmission(ctx context.Context, kind, reference string) (*domain.ChainSubmission, error) {
	var sub domain.ChainSubmission
	err := s.DB.WithContext(ctx).
		Where("kind = ? AND reference = ? AND status = ?", kind, reference, domain.SubmissionPending).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

// ResolveSubmission moves a pending entry to confirmed or failed. Resolved entries are left alone.
func (s *Store) ResolveSubmission(ctx context.Context, txHash, status, reason string) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&domain.ChainSubmission{}).
		Where("tx_hash = ? AND status = ?", txHash, domain.SubmissionPending).
		Updates(map[string]interface{}{"status": status, "error": reason})
	return res.RowsAffected > 0, res.Error
}

// ListSubmissions returns journal entries in a given status, oldest first. Empty status lists all.
func (s *Store) ListSubmissions(ctx context.Context, status string, limit int) ([]domain.ChainSubmission, error) {
	q := s.DB.WithContext(ctx).Order("created_at ASC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []domain.ChainSubmission
	err := q.Find(&out).Error
	return out, err
}
