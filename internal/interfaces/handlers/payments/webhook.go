package payments

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"unicarbon-backend/internal/application/settlement"
	"unicarbon-backend/internal/domain"
	"unicarbon-backend/internal/infrastructure/payments"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
)

// Confirmer settles a paid order.
type Confirmer interface {
	Confirm(ctx context.Context, in settlement.ConfirmInput) (*settlement.ConfirmResult, error)
}

// defaultSettleTimeout bounds a background settlement when SettleTimeout is unset.
const defaultSettleTimeout = 2 * time.Minute

type WebhookHandler struct {
	Settlement    Confirmer
	WebhookSecret string
	SettleTimeout time.Duration

	inflight sync.WaitGroup
}

// HandleWebhook POST /api/v1/stripe/webhook: raw body, signature verification, then settlement.
// A verified payment_intent.succeeded is acknowledged with 200 before settlement starts, since
// awaiting chain confirmation outlasts Stripe's delivery timeout. Settlement runs in the background;
// a redelivery that overlaps it is turned away by the per-order lock and logged.
func (wh *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	rawBody := c.BodyRaw()
	sig := c.Get("Stripe-Signature")

	if len(rawBody) == 0 {
		log.Warn().Msg("Stripe webhook received empty body")
		return c.Status(fiber.StatusBadRequest).SendString("Webhook Error: empty body")
	}

	event, err := payments.ParseWebhook(rawBody, sig, wh.WebhookSecret)
	if err != nil {
		log.Warn().Err(err).Bool("has_sig", sig != "").Bool("has_secret", wh.WebhookSecret != "").Msg("Stripe webhook signature verification failed")
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("Webhook Error: %s", err.Error()))
	}

	if event.Type != payments.EventPaymentIntentSucceeded {
		return c.Status(fiber.StatusOK).SendString("ok")
	}
	pi, err := payments.PaymentIntentFromEvent(event)
	if err != nil {
		log.Warn().Err(err).Str("event_id", event.ID).Msg("Stripe webhook payload is not a payment intent")
		return c.Status(fiber.StatusOK).SendString("ok")
	}
	wh.settleAsync(c.UserContext(), pi, event.ID)
	return c.Status(fiber.StatusOK).SendString("ok")
}

// Wait blocks until every background settlement has returned.
func (wh *WebhookHandler) Wait() {
	wh.inflight.Wait()
}

func (wh *WebhookHandler) settleAsync(parent context.Context, pi *stripe.PaymentIntent, eventID string) {
	timeout := wh.SettleTimeout
	if timeout <= 0 {
		timeout = defaultSettleTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
	wh.inflight.Add(1)
	go func() {
		defer wh.inflight.Done()
		defer cancel()
		wh.handlePaymentIntentSucceeded(ctx, pi, eventID)
	}()
}

func (wh *WebhookHandler) handlePaymentIntentSucceeded(ctx context.Context, pi *stripe.PaymentIntent, eventID string) {
	userID := pi.Metadata["user_id"]
	propertyID := pi.Metadata["property_id"]
	shares, err := strconv.ParseInt(pi.Metadata["shares"], 10, 64)
	if userID == "" || propertyID == "" || err != nil || shares <= 0 {
		log.Warn().Str("order_id", pi.ID).Str("event_id", eventID).Msg("payment intent without settlement metadata, skipping")
		return
	}

	paymentID := ""
	if pi.LatestCharge != nil {
		paymentID = pi.LatestCharge.ID
	}
	res, err := wh.Settlement.Confirm(ctx, settlement.ConfirmInput{
		OrderID:         pi.ID,
		PaymentID:       paymentID,
		UserID:          userID,
		PropertyID:      propertyID,
		Shares:          shares,
		GatewayVerified: true,
	})
	if err != nil {
		evt := log.Warn()
		if !domain.IsKind(err, domain.KindSettlementInProgress) && !domain.IsKind(err, domain.KindChainPending) {
			evt = log.Error()
		}
		evt.Err(err).Str("order_id", pi.ID).Str("event_id", eventID).Msg("webhook settlement did not complete")
		return
	}
	log.Info().Str("order_id", pi.ID).Str("tx_hash", res.TxHash).Str("event_id", eventID).Msg("webhook settlement complete")
}
