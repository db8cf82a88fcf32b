package ledger

import (
	"context"

	"unicarbon-backend/internal/domain"

	"github.com/google/uuid"
)

// GetProperty reads a property without locking.
func (s *Store) GetProperty(ctx context.Context, id uuid.UUID) (*domain.Property, error) {
	var p domain.Property
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// CreateProperty inserts a catalog row (seeding and tests; catalog CRUD lives elsewhere).
func (s *Store) CreateProperty(ctx context.Context, p *domain.Property) error {
	return s.DB.WithContext(ctx).Create(p).Error
}
