package holdings

import (
	"context"
	"errors"
	"strings"

	"unicarbon-backend/internal/domain"
	"unicarbon-backend/internal/infrastructure/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service reads owner balances for the portfolio views.
type Service struct {
	Store *ledger.Store
}

// Holding is one owner balance joined with its property.
type Holding struct {
	PropertyID   uuid.UUID       `json:"property_id"`
	PropertyName string          `json:"property_name"`
	Credits      decimal.Decimal `json:"credits"`
	Price        decimal.Decimal `json:"price"`
	Value        decimal.Decimal `json:"value"`
}

// ViewHoldings returns all balances held by userID. An empty portfolio is not an error.
func (s *Service) ViewHoldings(ctx context.Context, userID string) ([]Holding, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.NewError(domain.KindValidation, "userId is required")
	}
	owners, err := s.Store.ListOwners(ctx, userID)
	if err != nil {
		return nil, domain.WrapError(domain.KindLedger, "Failed to load holdings", err)
	}
	out := make([]Holding, 0, len(owners))
	for _, o := range owners {
		h, err := s.join(ctx, o)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, nil
}

// ViewHolding returns the balance userID holds in one property.
func (s *Service) ViewHolding(ctx context.Context, userID, propertyID string) (*Holding, error) {
	pid, err := uuid.Parse(strings.TrimSpace(propertyID))
	if err != nil {
		return nil, domain.NewError(domain.KindValidation, "Invalid propertyId")
	}
	o, err := s.Store.GetOwner(ctx, strings.TrimSpace(userID), pid)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "Holding not found")
		}
		return nil, domain.WrapError(domain.KindLedger, "Failed to load holding", err)
	}
	return s.join(ctx, *o)
}

func (s *Service) join(ctx context.Context, o domain.Owner) (*Holding, error) {
	p, err := s.Store.GetProperty(ctx, o.PropertyID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, domain.NewError(domain.KindIntegrity, "Holding references a missing property").
				WithDetails(map[string]string{"propertyId": o.PropertyID.String()})
		}
		return nil, domain.WrapError(domain.KindLedger, "Failed to load property", err)
	}
	return &Holding{
		PropertyID:   p.ID,
		PropertyName: p.Name,
		Credits:      o.Credits,
		Price:        p.Price,
		Value:        o.Credits.Mul(p.Price),
	}, nil
}
