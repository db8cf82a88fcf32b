// Package reconcile rebuilds company ledger state from carbon manager events.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"unicarbon-backend/internal/domain"
	"unicarbon-backend/internal/infrastructure/chain"
	"unicarbon-backend/internal/infrastructure/ledger"
	"unicarbon-backend/internal/pkg/metrics"
	"unicarbon-backend/internal/pkg/validation"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Chain is the subset of the chain client used for reconciliation.
type Chain interface {
	Receipt(ctx context.Context, txHash string) (*types.Receipt, error)
	DecodeLogs(receipt *types.Receipt) []chain.Event
}

// OffsetResumer finishes a pending offset submission; satisfied by the offsets service.
type OffsetResumer interface {
	Resume(ctx context.Context, txHash string) (*domain.OffsetRecord, error)
}

// Service reconciles a single transaction at a time and is safe to re-run.
type Service struct {
	Store   *ledger.Store
	Chain   Chain
	Offsets OffsetResumer
	Now     func() time.Time
}

// Event result values.
const (
	ResultApplied   = "applied"
	ResultDuplicate = "duplicate"
	ResultSkipped   = "skipped"
)

// EventResult reports what reconciliation did with one decoded log.
type EventResult struct {
	Event    string `json:"event"`
	LogIndex uint   `json:"logIndex"`
	Wallet   string `json:"wallet"`
	Amount   string `json:"amount"`
	Paid     string `json:"paid,omitempty"`
	NftID    string `json:"nftId,omitempty"`
	Result   string `json:"result"`
	Reason   string `json:"reason,omitempty"`
}

// Result is the outcome of reconciling one transaction.
type Result struct {
	TxHash          string        `json:"txHash"`
	BlockNumber     uint64        `json:"blockNumber"`
	EventsProcessed int           `json:"eventsProcessed"`
	Events          []EventResult `json:"events"`
}

// Reconcile fetches the receipt for txHash and applies its CreditsPurchased and CreditsOffset
// events. Each event is keyed by (tx hash, log index), so running it twice changes nothing.
func (s *Service) Reconcile(ctx context.Context, txHash string) (result *Result, err error) {
	defer func() { metrics.Saga().RecordOutcome("reconcile", outcome(err)) }()

	if !validation.IsValidTxHash(strings.TrimSpace(txHash)) {
		return nil, domain.NewError(domain.KindValidation, "Invalid transaction hash")
	}
	txHash = common.HexToHash(strings.TrimSpace(txHash)).Hex()

	receipt, err := s.Chain.Receipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, chain.ErrReceiptNotFound) {
			return nil, domain.NewError(domain.KindReceiptNotFound, "Transaction receipt not found").WithTx(txHash)
		}
		return nil, domain.WrapError(domain.KindInternal, "Failed to fetch receipt", err).WithTx(txHash)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		s.resolveSubmission(ctx, txHash, false)
		return nil, domain.NewError(domain.KindTransactionFailed, "Transaction failed on chain").WithTx(txHash)
	}

	result = &Result{TxHash: txHash, Events: []EventResult{}}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	events := s.Chain.DecodeLogs(receipt)
	for _, ev := range events {
		res, err := s.apply(ctx, txHash, ev)
		if err != nil {
			return nil, domain.WrapError(domain.KindLedger, "Failed to record chain event", err).WithTx(txHash)
		}
		metrics.Saga().RecordEvent(ev.Name, res.Result)
		result.Events = append(result.Events, res)
	}
	result.EventsProcessed = len(events)

	s.resolveSubmission(ctx, txHash, true)
	log.Info().Str("tx_hash", txHash).Int("events", len(events)).Msg("transaction reconciled")
	return result, nil
}

func (s *Service) apply(ctx context.Context, txHash string, ev chain.Event) (EventResult, error) {
	wallet := strings.ToLower(ev.Wallet.Hex())
	amount := decimal.NewFromBigInt(ev.Amount, 0)
	res := EventResult{Event: ev.Name, LogIndex: ev.LogIndex, Wallet: wallet, Amount: amount.String()}

	switch ev.Name {
	case chain.EventCreditsPurchased:
		if ev.Paid != nil {
			res.Paid = ev.Paid.String()
		}
		_, applied, err := s.Store.ApplyPurchase(ctx, ledger.PurchaseEntry{
			Wallet: wallet, Amount: amount, TxHash: txHash, LogIndex: ev.LogIndex,
		})
		if err != nil {
			return res, err
		}
		res.Result = resultOf(applied)

	case chain.EventCreditsOffset:
		var nftID int64
		if ev.NftID != nil {
			res.NftID = ev.NftID.String()
			if !ev.NftID.IsInt64() || ev.NftID.Sign() < 0 {
				log.Warn().Str("tx_hash", txHash).Str("nft_id", res.NftID).Msg("offset event nft id out of range, skipped")
				res.Result = ResultSkipped
				res.Reason = "ReconciliationSkipped: nft id exceeds the stored range"
				return res, nil
			}
			nftID = ev.NftID.Int64()
		}
		meta, _ := json.Marshal(domain.NftMetadata{
			NftID:     nftID,
			Amount:    amount.String(),
			Company:   wallet,
			Timestamp: s.now().UTC().Format(time.RFC3339),
		})
		_, applied, err := s.Store.ApplyOffset(ctx, ledger.OffsetEntry{
			Wallet: wallet, Amount: amount, NftID: nftID, TxHash: txHash, LogIndex: ev.LogIndex,
			Metadata: datatypes.JSON(meta),
		})
		if errors.Is(err, ledger.ErrCompanyNotFound) {
			log.Warn().Str("tx_hash", txHash).Str("wallet", wallet).Msg("offset event for unknown company skipped")
			res.Result = ResultSkipped
			res.Reason = "ReconciliationSkipped: company not registered"
			return res, nil
		}
		if err != nil {
			return res, err
		}
		res.Result = resultOf(applied)

	default:
		res.Result = ResultSkipped
	}
	return res, nil
}

// resolveSubmission settles any journaled submission for txHash now that its receipt is known.
func (s *Service) resolveSubmission(ctx context.Context, txHash string, succeeded bool) {
	sub, err := s.Store.GetSubmission(ctx, txHash)
	if err != nil || sub.Status != domain.SubmissionPending {
		return
	}
	switch sub.Kind {
	case domain.SubmissionOffset:
		// offsets own their compensation, so they are finished by the offset saga
		if s.Offsets != nil {
			if _, err := s.Offsets.Resume(ctx, txHash); err != nil {
				log.Warn().Err(err).Str("tx_hash", txHash).Msg("pending offset not resumed")
			}
		}
	case domain.SubmissionSettlement:
		if !succeeded {
			if _, err := s.Store.ResolveSubmission(ctx, txHash, domain.SubmissionFailed, "transaction failed"); err != nil {
				log.Warn().Err(err).Str("tx_hash", txHash).Msg("failed to resolve settlement submission")
			}
			if err := s.Store.ClearSettlementTx(ctx, sub.Reference); err != nil {
				log.Warn().Err(err).Str("order_id", sub.Reference).Msg("failed to clear failed settlement tx")
			}
			return
		}
		if _, err := s.Store.CompletePayment(ctx, sub.Reference, txHash); err != nil {
			log.Warn().Err(err).Str("order_id", sub.Reference).Str("tx_hash", txHash).Msg("pending settlement not completed")
			return
		}
		if _, err := s.Store.ResolveSubmission(ctx, txHash, domain.SubmissionConfirmed, ""); err != nil {
			log.Warn().Err(err).Str("tx_hash", txHash).Msg("failed to resolve settlement submission")
		}
	default:
		status := domain.SubmissionConfirmed
		if !succeeded {
			status = domain.SubmissionFailed
		}
		if _, err := s.Store.ResolveSubmission(ctx, txHash, status, ""); err != nil {
			log.Warn().Err(err).Str("tx_hash", txHash).Msg("failed to resolve submission")
		}
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func resultOf(applied bool) string {
	if applied {
		return ResultApplied
	}
	return ResultDuplicate
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(domain.KindOf(err))
}
