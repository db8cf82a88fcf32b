package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
)

// ErrNotConfigured is returned when no processor credentials were supplied.
var ErrNotConfigured = errors.New("payments: gateway not configured")

// StripeGateway creates and inspects Stripe PaymentIntents through an explicit client.
type StripeGateway struct {
	client *paymentintent.Client
}

// NewStripeGateway builds a gateway on the default Stripe API backend.
func NewStripeGateway(secretKey string) *StripeGateway {
	return NewStripeGatewayWithBackend(secretKey, stripe.GetBackend(stripe.APIBackend))
}

// NewStripeGatewayWithBackend builds a gateway on backend, e.g. one pointed at a test server.
func NewStripeGatewayWithBackend(secretKey string, backend stripe.Backend) *StripeGateway {
	return &StripeGateway{client: &paymentintent.Client{B: backend, Key: secretKey}}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if g.client.Key == "" {
		return nil, ErrNotConfigured
	}
	metadata := map[string]string{"receipt": req.Receipt}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		Metadata: metadata,
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.Receipt)

	pi, err := g.client.New(params)
	if err != nil {
		log.Error().Err(err).Str("receipt", req.Receipt).Msg("stripe payment intent create failed")
		return nil, err
	}
	return &Intent{ID: pi.ID, Status: mapStripeStatus(pi.Status), ClientSecret: pi.ClientSecret}, nil
}

func (g *StripeGateway) GetStatus(ctx context.Context, intentID string) (Status, error) {
	if g.client.Key == "" {
		return "", ErrNotConfigured
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.client.Get(intentID, params)
	if err != nil {
		return "", err
	}
	return mapStripeStatus(pi.Status), nil
}

func mapStripeStatus(s stripe.PaymentIntentStatus) Status {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusCompleted
	case stripe.PaymentIntentStatusCanceled:
		return StatusFailed
	default:
		return StatusPending
	}
}
