package admin

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"time"

	"unicarbon-backend/internal/domain"
	"unicarbon-backend/internal/infrastructure/chain"
	"unicarbon-backend/internal/infrastructure/ledger"
	"unicarbon-backend/internal/pkg/validation"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Chain is the subset of the chain client used by operator actions.
type Chain interface {
	ProjectComplete(ctx context.Context, amount decimal.Decimal, projectName string) (string, error)
	Withdraw(ctx context.Context) (string, error)
	PricePerCredit(ctx context.Context) (*big.Int, error)
	AwaitConfirmation(ctx context.Context, txHash string, timeout time.Duration) (*types.Receipt, error)
}

// Service exposes operator-only contract calls and the stuck-work queue.
type Service struct {
	Store          *ledger.Store
	Chain          Chain
	ConfirmTimeout time.Duration
}

// TxResult is returned for a confirmed operator transaction.
type TxResult struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
}

// Price is the contract's credit price.
type Price struct {
	Wei   string `json:"wei"`
	Ether string `json:"ether"`
}

// Queue lists work an operator must look at.
type Queue struct {
	Submissions     []domain.ChainSubmission `json:"submissions"`
	StalledPayments []domain.Payment         `json:"stalledPayments"`
}

const queueLimit = 100

// ProjectComplete issues credits for a completed project.
func (s *Service) ProjectComplete(ctx context.Context, amount decimal.Decimal, projectName string) (*TxResult, error) {
	projectName = strings.TrimSpace(projectName)
	if !validation.IsPositive(amount) || projectName == "" {
		return nil, domain.NewError(domain.KindValidation, "Invalid amount or projectName")
	}
	payload, _ := json.Marshal(map[string]string{"method": chain.MethodProjectComplete, "amount": amount.String(), "projectName": projectName})
	return s.send(ctx, chain.MethodProjectComplete, payload, func() (string, error) {
		return s.Chain.ProjectComplete(ctx, amount, projectName)
	})
}

// Withdraw moves the contract balance to the owner.
func (s *Service) Withdraw(ctx context.Context) (*TxResult, error) {
	payload, _ := json.Marshal(map[string]string{"method": chain.MethodWithdraw})
	return s.send(ctx, chain.MethodWithdraw, payload, func() (string, error) {
		return s.Chain.Withdraw(ctx)
	})
}

// Price reads pricePerCredit.
func (s *Service) Price(ctx context.Context) (*Price, error) {
	wei, err := s.Chain.PricePerCredit(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, "Failed to read price", err)
	}
	return &Price{Wei: wei.String(), Ether: chain.FromChainUnits(wei).String()}, nil
}

// Pending returns journal entries in status (all when empty) and payments stuck after the ledger step.
func (s *Service) Pending(ctx context.Context, status string) (*Queue, error) {
	switch status {
	case "", domain.SubmissionPending, domain.SubmissionConfirmed, domain.SubmissionFailed:
	default:
		return nil, domain.NewError(domain.KindValidation, "Invalid status filter")
	}
	subs, err := s.Store.ListSubmissions(ctx, status, queueLimit)
	if err != nil {
		return nil, domain.WrapError(domain.KindLedger, "Failed to list submissions", err)
	}
	stalled, err := s.Store.ListStalledPayments(ctx, queueLimit)
	if err != nil {
		return nil, domain.WrapError(domain.KindLedger, "Failed to list stalled payments", err)
	}
	return &Queue{Submissions: subs, StalledPayments: stalled}, nil
}

func (s *Service) send(ctx context.Context, method string, payload []byte, submit func() (string, error)) (*TxResult, error) {
	txHash, err := submit()
	if err != nil {
		log.Error().Err(err).Str("method", method).Msg("operator transaction submit failed")
		return nil, domain.WrapError(domain.KindChainSettlementFailed, "Transaction submission failed", err)
	}
	if _, err := s.Store.RecordSubmission(ctx, domain.SubmissionAdmin, method, txHash, datatypes.JSON(payload)); err != nil {
		log.Warn().Err(err).Str("tx_hash", txHash).Msg("failed to journal operator submission")
	}

	receipt, err := s.Chain.AwaitConfirmation(ctx, txHash, s.ConfirmTimeout)
	switch {
	case err == nil:
		s.resolve(ctx, txHash, domain.SubmissionConfirmed, "")
		res := &TxResult{TxHash: txHash}
		if receipt.BlockNumber != nil {
			res.BlockNumber = receipt.BlockNumber.Uint64()
		}
		return res, nil
	case errors.Is(err, chain.ErrPending):
		return nil, domain.NewError(domain.KindChainPending, "Transaction submitted but not yet confirmed").WithTx(txHash)
	default:
		s.resolve(ctx, txHash, domain.SubmissionFailed, err.Error())
		return nil, domain.WrapError(domain.KindTransactionFailed, "Transaction failed on chain", err).WithTx(txHash)
	}
}

func (s *Service) resolve(ctx context.Context, txHash, status, reason string) {
	if _, err := s.Store.ResolveSubmission(ctx, txHash, status, reason); err != nil {
		log.Warn().Err(err).Str("tx_hash", txHash).Msg("failed to resolve operator submission")
	}
}
