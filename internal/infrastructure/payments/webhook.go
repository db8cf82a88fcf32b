package payments

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// EventPaymentIntentSucceeded is the only webhook event the settlement flow acts on.
const EventPaymentIntentSucceeded = "payment_intent.succeeded"

// ParseWebhook verifies the Stripe-Signature header against secret and decodes the event.
func ParseWebhook(payload []byte, sigHeader, secret string) (*stripe.Event, error) {
	if sigHeader == "" || secret == "" {
		return nil, errors.New("missing signature or secret")
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// PaymentIntentFromEvent decodes the PaymentIntent carried by event.
func PaymentIntentFromEvent(event *stripe.Event) (*stripe.PaymentIntent, error) {
	if event == nil || event.Data == nil {
		return nil, errors.New("event has no data")
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	return &pi, nil
}
