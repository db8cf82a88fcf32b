// Package settlement turns a paid order into ledger ownership plus a confirmed chain transaction.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"unicarbon-backend/internal/application/emails"
	"unicarbon-backend/internal/config"
	"unicarbon-backend/internal/domain"
	"unicarbon-backend/internal/infrastructure/cache"
	"unicarbon-backend/internal/infrastructure/chain"
	"unicarbon-backend/internal/infrastructure/ledger"
	"unicarbon-backend/internal/infrastructure/payments"
	"unicarbon-backend/internal/pkg/metrics"
	"unicarbon-backend/internal/pkg/validation"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Chain is the subset of the chain client used to complete a settlement.
type Chain interface {
	ProjectComplete(ctx context.Context, amount decimal.Decimal, projectName string) (string, error)
	AwaitConfirmation(ctx context.Context, txHash string, timeout time.Duration) (*types.Receipt, error)
}

// Service confirms payments. Exactly one verification strategy is used, chosen by Mode.
type Service struct {
	Store    *ledger.Store
	Gateway  payments.Gateway
	Verifier *payments.SignatureVerifier
	Mode     string
	Chain    Chain
	Locker   *cache.Locker
	Alerts   emails.Alerter

	ConfirmTimeout time.Duration
	// CompensateOnChainFailure reverses the ledger mutation when the completion transaction fails.
	CompensateOnChainFailure bool
}

// ConfirmInput identifies the order and repeats the purchase it was created for.
type ConfirmInput struct {
	OrderID    string `json:"orderId"`
	PaymentID  string `json:"paymentId"`
	Signature  string `json:"signature"`
	UserID     string `json:"userId"`
	PropertyID string `json:"propertyId"`
	Shares     int64  `json:"shares"`

	// GatewayVerified is set by the signed processor webhook only.
	GatewayVerified bool `json:"-"`
}

// ConfirmResult is returned once the payment is successful.
type ConfirmResult struct {
	Payment *domain.Payment      `json:"payment"`
	TxHash  string               `json:"txHash"`
	Status  domain.PaymentStatus `json:"status"`
}

type submissionPayload struct {
	UserID     string `json:"userId"`
	PropertyID string `json:"propertyId"`
	Shares     int64  `json:"shares"`
}

// Confirm runs verification, the ledger mutation and chain completion for an order. Each step
// is skipped when a previous attempt already committed it, so Confirm is safe to retry.
func (s *Service) Confirm(ctx context.Context, in ConfirmInput) (result *ConfirmResult, err error) {
	defer func() {
		metrics.Saga().RecordOutcome("settlement", outcome(err))
		emails.Notify(ctx, s.Alerts, "settlement", in.OrderID, err)
	}()

	if err := validateInput(&in); err != nil {
		return nil, err
	}

	lock, err := s.Locker.Acquire(ctx, in.OrderID, s.ConfirmTimeout+30*time.Second)
	if err != nil {
		if errors.Is(err, cache.ErrLocked) {
			return nil, domain.NewError(domain.KindSettlementInProgress, "Settlement already in progress for this order")
		}
		log.Warn().Err(err).Str("order_id", in.OrderID).Msg("settlement lock unavailable, relying on ledger stage")
	}
	defer func() {
		if lock != nil {
			_ = lock.Release(context.WithoutCancel(ctx))
		}
	}()

	pay, err := s.loadPayment(ctx, in)
	if err != nil {
		return nil, err
	}
	switch pay.Status {
	case domain.PaymentSuccess:
		return &ConfirmResult{Payment: pay, TxHash: deref(pay.TxHash), Status: pay.Status}, nil
	case domain.PaymentFailed:
		return nil, domain.NewError(domain.KindPaymentNotVerified, "Payment verification failed")
	}

	if pay.Stage != domain.StageLedgerApplied {
		if err := s.verifyPayment(ctx, pay, in); err != nil {
			return nil, err
		}
		if err := s.applyLedger(ctx, pay); err != nil {
			return nil, err
		}
	}

	txHash, err := s.settleOnChain(ctx, pay)
	if err != nil {
		return nil, err
	}

	done, err := s.Store.CompletePayment(ctx, pay.OrderID, txHash)
	if err != nil {
		log.Error().Err(err).Str("order_id", pay.OrderID).Str("tx_hash", txHash).Msg("chain confirmed but payment not marked successful")
		return nil, domain.WrapError(domain.KindPartialSuccess, "Transaction confirmed but payment status not recorded", err).WithTx(txHash)
	}
	if _, err := s.Store.ResolveSubmission(ctx, txHash, domain.SubmissionConfirmed, ""); err != nil {
		log.Warn().Err(err).Str("tx_hash", txHash).Msg("failed to resolve settlement submission")
	}
	log.Info().Str("order_id", pay.OrderID).Str("tx_hash", txHash).Msg("settlement complete")
	return &ConfirmResult{Payment: done, TxHash: txHash, Status: done.Status}, nil
}

func validateInput(in *ConfirmInput) error {
	in.OrderID = strings.TrimSpace(in.OrderID)
	in.UserID = strings.TrimSpace(in.UserID)
	if in.OrderID == "" || in.UserID == "" {
		return domain.NewError(domain.KindValidation, "orderId and userId are required")
	}
	if _, ok := validation.ParseUUID(in.PropertyID); !ok {
		return domain.NewError(domain.KindValidation, "Invalid propertyId")
	}
	if in.Shares <= 0 {
		return domain.NewError(domain.KindValidation, "shares must be a positive integer")
	}
	return nil
}

func (s *Service) loadPayment(ctx context.Context, in ConfirmInput) (*domain.Payment, error) {
	pay, err := s.Store.GetPayment(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "Order not found")
		}
		return nil, domain.WrapError(domain.KindLedger, "Failed to load order", err)
	}
	propertyID, _ := validation.ParseUUID(in.PropertyID)
	if pay.UserID != in.UserID || pay.PropertyID != propertyID || pay.Shares != in.Shares {
		log.Warn().Str("order_id", in.OrderID).Msg("confirmation does not match recorded order")
		return nil, domain.NewError(domain.KindIntegrity, "Order details do not match the recorded payment")
	}
	return pay, nil
}

func (s *Service) verifyPayment(ctx context.Context, pay *domain.Payment, in ConfirmInput) error {
	verified := in.GatewayVerified
	if !verified {
		switch s.Mode {
		case config.VerificationSignature:
			verified = in.PaymentID != "" && s.Verifier.Verify(pay.OrderID, in.PaymentID, in.Signature)
		default:
			status, err := s.Gateway.GetStatus(ctx, pay.OrderID)
			if err != nil {
				return domain.WrapError(domain.KindPaymentGateway, "Failed to fetch payment status", err)
			}
			verified = status == payments.StatusCompleted
		}
	}
	if !verified {
		if err := s.Store.MarkPaymentFailed(ctx, pay.OrderID); err != nil && !errors.Is(err, ledger.ErrPaymentTerminal) {
			log.Error().Err(err).Str("order_id", pay.OrderID).Msg("failed to mark payment failed")
		}
		return domain.NewError(domain.KindPaymentNotVerified, "Payment verification failed")
	}
	if in.PaymentID != "" {
		if err := s.Store.SetPaymentReference(ctx, pay.OrderID, in.PaymentID); err != nil {
			log.Warn().Err(err).Str("order_id", pay.OrderID).Msg("failed to store payment reference")
		}
	}
	return nil
}

func (s *Service) applyLedger(ctx context.Context, pay *domain.Payment) error {
	err := s.Store.ApplySettlement(ctx, pay.OrderID)
	var oversold *ledger.OversoldError
	switch {
	case err == nil, errors.Is(err, ledger.ErrAlreadyApplied):
		pay.Stage = domain.StageLedgerApplied
		return nil
	case errors.As(err, &oversold):
		log.Error().Str("order_id", pay.OrderID).Int64("available", oversold.Available).
			Int64("requested", oversold.Requested).Msg("paid order oversold, needs manual reconciliation")
		return domain.NewError(domain.KindOversold, "Not enough shares available to settle this order").
			WithDetails(map[string]int64{"available": oversold.Available, "requested": oversold.Requested})
	case errors.Is(err, ledger.ErrConflict):
		return domain.WrapError(domain.KindOversold, "Inventory changed concurrently; settlement not applied", err)
	case errors.Is(err, ledger.ErrNotFound):
		return domain.NewError(domain.KindNotFound, "Property not found")
	default:
		return domain.WrapError(domain.KindLedger, "Failed to update ownership", err)
	}
}

// settleOnChain submits projectComplete once and awaits it. A transaction hash left by an
// earlier attempt is re-awaited, never resubmitted.
func (s *Service) settleOnChain(ctx context.Context, pay *domain.Payment) (string, error) {
	txHash := deref(pay.TxHash)
	if txHash == "" {
		txHash = s.journaledTx(ctx, pay.OrderID)
	}
	var untracked error
	if txHash == "" {
		property, err := s.Store.GetProperty(ctx, pay.PropertyID)
		if err != nil {
			return "", domain.WrapError(domain.KindLedger, "Failed to load property", err)
		}
		txHash, err = s.Chain.ProjectComplete(ctx, decimal.NewFromInt(pay.Shares), property.Name)
		if err != nil {
			log.Error().Err(err).Str("order_id", pay.OrderID).Msg("completion transaction submit failed")
			return "", s.chainFailure(ctx, pay, "", err)
		}
		recordErr := s.Store.RecordSettlementTx(ctx, pay.OrderID, txHash)
		if recordErr != nil {
			log.Error().Err(recordErr).Str("order_id", pay.OrderID).Str("tx_hash", txHash).Msg("failed to record settlement tx")
		}
		payload, _ := json.Marshal(submissionPayload{UserID: pay.UserID, PropertyID: pay.PropertyID.String(), Shares: pay.Shares})
		_, journalErr := s.Store.RecordSubmission(ctx, domain.SubmissionSettlement, pay.OrderID, txHash, datatypes.JSON(payload))
		if journalErr != nil {
			log.Error().Err(journalErr).Str("tx_hash", txHash).Msg("failed to journal settlement submission")
		}
		// either record is enough for a retry to re-await instead of resubmitting
		if recordErr != nil && journalErr != nil {
			untracked = errors.Join(recordErr, journalErr)
		}
	}

	_, err := s.Chain.AwaitConfirmation(ctx, txHash, s.ConfirmTimeout)
	switch {
	case err == nil:
		return txHash, nil
	case errors.Is(err, chain.ErrPending):
		if untracked != nil {
			log.Error().Err(untracked).Str("order_id", pay.OrderID).Str("tx_hash", txHash).Msg("pending completion transaction was not recorded")
			return "", domain.WrapError(domain.KindUntrackedSubmission, "Transaction submitted but not recorded; an operator must complete this order", untracked).
				WithTx(txHash).
				WithDetails(map[string]string{"ledger": "applied", "orderId": pay.OrderID})
		}
		log.Warn().Str("order_id", pay.OrderID).Str("tx_hash", txHash).Msg("completion transaction still pending")
		return "", domain.NewError(domain.KindChainPending, "Transaction submitted but not yet confirmed").WithTx(txHash)
	default:
		if errors.Is(err, chain.ErrReverted) {
			if _, rerr := s.Store.ResolveSubmission(ctx, txHash, domain.SubmissionFailed, err.Error()); rerr != nil {
				log.Warn().Err(rerr).Str("tx_hash", txHash).Msg("failed to resolve settlement submission")
			}
			if cerr := s.Store.ClearSettlementTx(ctx, pay.OrderID); cerr != nil {
				log.Warn().Err(cerr).Str("order_id", pay.OrderID).Msg("failed to clear reverted settlement tx")
			}
		}
		return "", s.chainFailure(ctx, pay, txHash, err)
	}
}

// journaledTx returns the hash of a pending settlement submission for orderID, if the journal
// kept one the payment row lost.
func (s *Service) journaledTx(ctx context.Context, orderID string) string {
	sub, err := s.Store.FindPendingSubmission(ctx, domain.SubmissionSettlement, orderID)
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			log.Warn().Err(err).Str("order_id", orderID).Msg("settlement journal lookup failed")
		}
		return ""
	}
	if err := s.Store.RecordSettlementTx(ctx, orderID, sub.TxHash); err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Str("tx_hash", sub.TxHash).Msg("failed to record journaled settlement tx")
	}
	log.Info().Str("order_id", orderID).Str("tx_hash", sub.TxHash).Msg("re-awaiting journaled settlement tx")
	return sub.TxHash
}

// chainFailure applies the configured compensation policy after the completion transaction failed.
func (s *Service) chainFailure(ctx context.Context, pay *domain.Payment, txHash string, cause error) error {
	if !s.CompensateOnChainFailure {
		log.Error().Err(cause).Str("order_id", pay.OrderID).Str("tx_hash", txHash).
			Msg("chain settlement failed; ledger left applied for operator completion")
		return domain.WrapError(domain.KindChainSettlementFailed, "On-chain settlement failed; ownership recorded, awaiting operator completion", cause).
			WithTx(txHash).
			WithDetails(map[string]string{"ledger": "applied", "orderId": pay.OrderID})
	}
	if err := s.Store.ReverseSettlement(ctx, pay.OrderID); err != nil {
		log.Error().Err(err).Str("order_id", pay.OrderID).Str("tx_hash", txHash).Msg("settlement compensation failed")
		return domain.WrapError(domain.KindCompensationFailed, "On-chain settlement failed and ledger reversal failed", err).
			WithTx(txHash).
			WithDetails(map[string]string{"ledger": "applied", "orderId": pay.OrderID, "cause": cause.Error()})
	}
	log.Warn().Err(cause).Str("order_id", pay.OrderID).Str("tx_hash", txHash).Msg("chain settlement failed; ledger reversed")
	return domain.WrapError(domain.KindChainSettlementFailed, "On-chain settlement failed; ownership change reversed", cause).
		WithTx(txHash).
		WithDetails(map[string]string{"ledger": "reversed", "orderId": pay.OrderID})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(domain.KindOf(err))
}
