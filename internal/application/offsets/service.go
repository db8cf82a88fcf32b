package offsets

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"unicarbon-backend/internal/application/emails"
	"unicarbon-backend/internal/domain"
	"unicarbon-backend/internal/infrastructure/chain"
	"unicarbon-backend/internal/infrastructure/ledger"
	"unicarbon-backend/internal/pkg/metrics"
	"unicarbon-backend/internal/pkg/validation"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Chain is the subset of the chain client used to retire credits.
type Chain interface {
	OffsetAgainstProject(ctx context.Context, amount decimal.Decimal, source, sink, project string) (string, error)
	AwaitConfirmation(ctx context.Context, txHash string, timeout time.Duration) (*types.Receipt, error)
	Receipt(ctx context.Context, txHash string) (*types.Receipt, error)
}

// Service retires owned credits against a project on chain.
type Service struct {
	Store          *ledger.Store
	Chain          Chain
	CompanyAddress string
	ConfirmTimeout time.Duration
	Alerts         emails.Alerter
}

// OffsetInput is the retirement request.
type OffsetInput struct {
	UserID             string          `json:"userId"`
	PropertyID         string          `json:"propertyId"`
	Credits            decimal.Decimal `json:"credits"`
	Description        string          `json:"description"`
	BeneficiaryAddress string          `json:"beneficiaryAddress"`
	BeneficiaryName    string          `json:"beneficiaryName"`
}

// offsetRequest is journaled with the submission so a pending offset can be finished or undone later.
type offsetRequest struct {
	RequestID          string          `json:"requestId"`
	UserID             string          `json:"userId"`
	PropertyID         uuid.UUID       `json:"propertyId"`
	Credits            decimal.Decimal `json:"credits"`
	Description        string          `json:"description"`
	BeneficiaryAddress string          `json:"beneficiaryAddress"`
	BeneficiaryName    string          `json:"beneficiaryName"`
}

// Offset debits the owner, submits offsetAgainstProject and records the confirmed retirement.
// Any chain failure restores the owner's balance.
func (s *Service) Offset(ctx context.Context, in OffsetInput) (rec *domain.OffsetRecord, err error) {
	defer func() {
		metrics.Saga().RecordOutcome("offset", outcome(err))
		emails.Notify(ctx, s.Alerts, "offset", in.UserID, err)
	}()

	req, err := s.validate(in)
	if err != nil {
		return nil, err
	}
	property, err := s.Store.GetProperty(ctx, req.PropertyID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "Property not found")
		}
		return nil, domain.WrapError(domain.KindLedger, "Failed to load property", err)
	}

	if _, err := s.Store.DebitOwner(ctx, req.UserID, req.PropertyID, req.Credits); err != nil {
		var insufficient *ledger.InsufficientCreditsError
		switch {
		case errors.As(err, &insufficient):
			return nil, insufficientCredits(insufficient.Available)
		case errors.Is(err, ledger.ErrNotFound):
			return nil, insufficientCredits(decimal.Zero)
		case errors.Is(err, ledger.ErrConflict):
			return nil, domain.WrapError(domain.KindConflict, "Credits changed concurrently, please retry", err)
		default:
			return nil, domain.WrapError(domain.KindLedger, "Failed to debit credits", err)
		}
	}

	txHash, err := s.Chain.OffsetAgainstProject(ctx, req.Credits, s.CompanyAddress, req.BeneficiaryAddress, property.Name)
	if err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("offset transaction submit failed")
		return nil, s.compensate(ctx, req, "", err)
	}
	payload, _ := json.Marshal(req)
	_, journalErr := s.Store.RecordSubmission(ctx, domain.SubmissionOffset, req.RequestID, txHash, datatypes.JSON(payload))
	if journalErr != nil {
		log.Error().Err(journalErr).Str("tx_hash", txHash).Msg("failed to journal offset submission")
	}

	_, err = s.Chain.AwaitConfirmation(ctx, txHash, s.ConfirmTimeout)
	switch {
	case err == nil:
		return s.finish(ctx, req, txHash)
	case errors.Is(err, chain.ErrPending):
		if journalErr != nil {
			// Resume needs the journal; the debit stays until an operator settles it
			return nil, domain.WrapError(domain.KindUntrackedSubmission, "Offset submitted but not journaled; an operator must finish or restore it", journalErr).
				WithTx(txHash).
				WithDetails(map[string]string{"userId": req.UserID, "propertyId": req.PropertyID.String(), "credits": req.Credits.String()})
		}
		log.Warn().Str("tx_hash", txHash).Str("user_id", req.UserID).Msg("offset transaction still pending")
		return nil, domain.NewError(domain.KindChainPending, "Offset submitted but not yet confirmed").WithTx(txHash)
	default:
		if _, rerr := s.Store.ResolveSubmission(ctx, txHash, domain.SubmissionFailed, err.Error()); rerr != nil {
			log.Warn().Err(rerr).Str("tx_hash", txHash).Msg("failed to resolve offset submission")
		}
		return nil, s.compensate(ctx, req, txHash, err)
	}
}

// Resume finishes an offset that previously returned ChainPending, using its journaled request.
func (s *Service) Resume(ctx context.Context, txHash string) (rec *domain.OffsetRecord, err error) {
	defer func() {
		metrics.Saga().RecordOutcome("offset_resume", outcome(err))
		emails.Notify(ctx, s.Alerts, "offset", txHash, err)
	}()

	if !validation.IsValidTxHash(txHash) {
		return nil, domain.NewError(domain.KindValidation, "Invalid transaction hash")
	}
	txHash = common.HexToHash(txHash).Hex()

	sub, err := s.Store.GetSubmission(ctx, txHash)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "No offset submission for this transaction")
		}
		return nil, domain.WrapError(domain.KindLedger, "Failed to load submission", err)
	}
	if sub.Kind != domain.SubmissionOffset {
		return nil, domain.NewError(domain.KindValidation, "Transaction is not an offset submission")
	}
	switch sub.Status {
	case domain.SubmissionConfirmed:
		return s.existingRecord(ctx, txHash)
	case domain.SubmissionFailed:
		return nil, domain.NewError(domain.KindChainSettlementFailed, "Offset transaction failed; credits were restored").WithTx(txHash)
	}

	var req offsetRequest
	if err := json.Unmarshal(sub.Payload, &req); err != nil {
		return nil, domain.WrapError(domain.KindIntegrity, "Corrupt offset submission payload", err).WithTx(txHash)
	}

	receipt, err := s.Chain.Receipt(ctx, txHash)
	switch {
	case errors.Is(err, chain.ErrReceiptNotFound):
		return nil, domain.NewError(domain.KindChainPending, "Offset submitted but not yet confirmed").WithTx(txHash)
	case err != nil:
		return nil, domain.WrapError(domain.KindInternal, "Failed to fetch receipt", err).WithTx(txHash)
	case receipt.Status != types.ReceiptStatusSuccessful:
		changed, rerr := s.Store.ResolveSubmission(ctx, txHash, domain.SubmissionFailed, chain.ErrReverted.Error())
		if rerr != nil {
			return nil, domain.WrapError(domain.KindLedger, "Failed to resolve submission", rerr).WithTx(txHash)
		}
		if !changed {
			return nil, domain.NewError(domain.KindChainSettlementFailed, "Offset transaction failed; credits were restored").WithTx(txHash)
		}
		return nil, s.compensate(ctx, req, txHash, chain.ErrReverted)
	}
	return s.finish(ctx, req, txHash)
}

// finish claims the confirmed submission and appends the offset record exactly once.
func (s *Service) finish(ctx context.Context, req offsetRequest, txHash string) (*domain.OffsetRecord, error) {
	changed, err := s.Store.ResolveSubmission(ctx, txHash, domain.SubmissionConfirmed, "")
	if err != nil {
		log.Warn().Err(err).Str("tx_hash", txHash).Msg("failed to resolve offset submission")
	}
	if err == nil && !changed {
		if existing, err := s.Store.GetOffsetRecord(ctx, txHash); err == nil {
			return existing, nil
		}
	}

	rec := &domain.OffsetRecord{
		UserID:             req.UserID,
		PropertyID:         req.PropertyID,
		Credits:            req.Credits,
		Description:        req.Description,
		TransactionHash:    txHash,
		BeneficiaryAddress: req.BeneficiaryAddress,
		BeneficiaryName:    req.BeneficiaryName,
	}
	if err := s.Store.CreateOffsetRecord(ctx, rec); err != nil {
		log.Error().Err(err).Str("tx_hash", txHash).Str("user_id", req.UserID).Msg("offset confirmed on chain but record insert failed")
		return nil, domain.WrapError(domain.KindPartialSuccess, "Offset confirmed on chain but the record could not be saved", err).WithTx(txHash)
	}
	log.Info().Str("tx_hash", txHash).Str("user_id", req.UserID).Str("credits", req.Credits.String()).Msg("offset recorded")
	return rec, nil
}

// compensate restores the debited credits after the chain half failed.
func (s *Service) compensate(ctx context.Context, req offsetRequest, txHash string, cause error) error {
	if err := s.Store.CreditOwner(ctx, req.UserID, req.PropertyID, req.Credits); err != nil {
		log.Error().Err(err).AnErr("cause", cause).Str("user_id", req.UserID).Str("tx_hash", txHash).
			Str("credits", req.Credits.String()).Msg("offset compensation failed")
		return domain.WrapError(domain.KindCompensationFailed, "Offset failed on chain and credits could not be restored", err).
			WithTx(txHash).
			WithDetails(map[string]string{"userId": req.UserID, "propertyId": req.PropertyID.String(), "credits": req.Credits.String()})
	}
	log.Warn().Err(cause).Str("user_id", req.UserID).Str("tx_hash", txHash).Msg("offset failed on chain; credits restored")
	return domain.WrapError(domain.KindChainSettlementFailed, "Offset failed on chain; credits restored", cause).WithTx(txHash)
}

func (s *Service) existingRecord(ctx context.Context, txHash string) (*domain.OffsetRecord, error) {
	rec, err := s.Store.GetOffsetRecord(ctx, txHash)
	if err != nil {
		return nil, domain.WrapError(domain.KindPartialSuccess, "Offset confirmed on chain but no record exists", err).WithTx(txHash)
	}
	return rec, nil
}

func (s *Service) validate(in OffsetInput) (offsetRequest, error) {
	req := offsetRequest{
		RequestID:          uuid.NewString(),
		UserID:             strings.TrimSpace(in.UserID),
		Credits:            in.Credits,
		Description:        strings.TrimSpace(in.Description),
		BeneficiaryAddress: strings.TrimSpace(in.BeneficiaryAddress),
		BeneficiaryName:    strings.TrimSpace(in.BeneficiaryName),
	}
	if req.UserID == "" {
		return req, domain.NewError(domain.KindValidation, "userId is required")
	}
	id, ok := validation.ParseUUID(in.PropertyID)
	if !ok {
		return req, domain.NewError(domain.KindValidation, "Invalid propertyId")
	}
	req.PropertyID = id
	if !validation.IsPositive(in.Credits) {
		return req, domain.NewError(domain.KindValidation, "credits must be positive")
	}
	if !in.Credits.Equal(in.Credits.Truncate(domain.CreditScale)) {
		return req, domain.NewError(domain.KindValidation, "credits allow at most 6 decimal places")
	}
	if !validation.IsValidWallet(req.BeneficiaryAddress) {
		return req, domain.NewError(domain.KindValidation, "Invalid beneficiaryAddress")
	}
	return req, nil
}

func insufficientCredits(available decimal.Decimal) error {
	return domain.NewError(domain.KindInsufficientCredits, "Insufficient credits. Available: "+available.String()).
		WithDetails(map[string]string{"available": available.String()})
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(domain.KindOf(err))
}
