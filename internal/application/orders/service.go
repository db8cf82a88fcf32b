package orders

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"unicarbon-backend/internal/domain"
	"unicarbon-backend/internal/infrastructure/ledger"
	"unicarbon-backend/internal/infrastructure/payments"
	"unicarbon-backend/internal/pkg/metrics"
	"unicarbon-backend/internal/pkg/validation"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Service opens payment intents for share purchases.
type Service struct {
	Store           *ledger.Store
	Gateway         payments.Gateway
	DefaultCurrency string
	Now             func() time.Time
}

// CreateInput is the purchase request.
type CreateInput struct {
	UserID     string `json:"userId"`
	PropertyID string `json:"propertyId"`
	Shares     int64  `json:"shares"`
	Currency   string `json:"currency"`
}

// CreateResult is returned to the client to complete checkout.
type CreateResult struct {
	IntentID     string          `json:"intentId"`
	Amount       int64           `json:"amount"`
	Currency     string          `json:"currency"`
	Receipt      string          `json:"receipt"`
	Status       payments.Status `json:"status"`
	ClientSecret string          `json:"clientSecret,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// MinorAmount converts price x shares to the smallest currency unit, truncating toward zero.
func MinorAmount(price decimal.Decimal, shares int64) int64 {
	return price.Mul(decimal.NewFromInt(shares)).Mul(hundred).Truncate(0).IntPart()
}

// Create checks inventory, opens a gateway intent and persists a created Payment keyed by the intent id.
// Inventory is only read here; it is decremented at settlement.
func (s *Service) Create(ctx context.Context, in CreateInput) (result *CreateResult, err error) {
	defer func() { metrics.Saga().RecordOutcome("order", outcome(err)) }()

	in.UserID = strings.TrimSpace(in.UserID)
	if in.UserID == "" {
		return nil, domain.NewError(domain.KindValidation, "userId is required")
	}
	propertyID, ok := validation.ParseUUID(in.PropertyID)
	if !ok {
		return nil, domain.NewError(domain.KindValidation, "Invalid propertyId")
	}
	if in.Shares <= 0 {
		return nil, domain.NewError(domain.KindValidation, "shares must be a positive integer")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.DefaultCurrency
	}
	if !validation.IsValidCurrency(currency) {
		return nil, domain.NewError(domain.KindValidation, "Invalid currency")
	}

	property, err := s.Store.GetProperty(ctx, propertyID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "Property not found")
		}
		return nil, domain.WrapError(domain.KindLedger, "Failed to load property", err)
	}
	if in.Shares > property.AvailableShares {
		return nil, domain.NewError(domain.KindInsufficientInventory, "Not enough shares available").
			WithDetails(map[string]int64{"available": property.AvailableShares, "requested": in.Shares})
	}

	amountMinor := MinorAmount(property.Price, in.Shares)
	receipt := payments.NewReceipt(s.now())
	intent, err := s.Gateway.CreateIntent(ctx, payments.IntentRequest{
		AmountMinor: amountMinor,
		Currency:    currency,
		Receipt:     receipt,
		Metadata: map[string]string{
			"user_id":     in.UserID,
			"property_id": propertyID.String(),
			"shares":      strconv.FormatInt(in.Shares, 10),
		},
	})
	if err != nil {
		log.Error().Err(err).Str("property_id", propertyID.String()).Msg("payment intent creation failed")
		return nil, domain.WrapError(domain.KindPaymentGateway, "Failed to create payment order", err)
	}

	raw, _ := json.Marshal(intent)
	payment := &domain.Payment{
		OrderID:        intent.ID,
		ReceiptID:      receipt,
		UserID:         in.UserID,
		PropertyID:     propertyID,
		Amount:         decimal.New(amountMinor, -2),
		AmountMinor:    amountMinor,
		Currency:       currency,
		Shares:         in.Shares,
		GatewayPayload: datatypes.JSON(raw),
	}
	if err := s.Store.CreatePayment(ctx, payment); err != nil {
		// The intent is abandoned; it can never be confirmed without a Payment row.
		log.Error().Err(err).Str("order_id", intent.ID).Msg("payment persistence failed after intent creation")
		return nil, domain.WrapError(domain.KindLedger, "Failed to record payment", err)
	}

	log.Info().Str("order_id", intent.ID).Str("user_id", in.UserID).Int64("shares", in.Shares).
		Int64("amount_minor", amountMinor).Msg("order created")
	return &CreateResult{
		IntentID:     intent.ID,
		Amount:       amountMinor,
		Currency:     currency,
		Receipt:      receipt,
		Status:       intent.Status,
		ClientSecret: intent.ClientSecret,
	}, nil
}

// Get returns the persisted payment for orderID.
func (s *Service) Get(ctx context.Context, orderID string) (*domain.Payment, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, domain.NewError(domain.KindValidation, "orderId is required")
	}
	p, err := s.Store.GetPayment(ctx, orderID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "Order not found")
		}
		return nil, domain.WrapError(domain.KindLedger, "Failed to load order", err)
	}
	return p, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(domain.KindOf(err))
}
