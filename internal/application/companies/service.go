package companies

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"unicarbon-backend/internal/domain"
	"unicarbon-backend/internal/infrastructure/ledger"
	"unicarbon-backend/internal/pkg/validation"

	"github.com/rs/zerolog/log"
)

// TokenReader reads on-chain credit token balances. Optional.
type TokenReader interface {
	BalanceOf(ctx context.Context, wallet string) (*big.Int, error)
}

// Service registers companies and reports their ledger and token state.
type Service struct {
	Store  *ledger.Store
	Tokens TokenReader
}

// Details is a company with its on-chain token balance, when available.
type Details struct {
	*domain.Company
	TokenBalance string `json:"token_balance,omitempty"`
}

// Register creates a company for wallet. Wallets are unique case-insensitively.
func (s *Service) Register(ctx context.Context, name, wallet string) (*domain.Company, error) {
	name = strings.TrimSpace(name)
	wallet = strings.TrimSpace(wallet)
	if name == "" || wallet == "" {
		return nil, domain.NewError(domain.KindValidation, "Name and wallet are required")
	}
	if !validation.IsValidWallet(wallet) {
		return nil, domain.NewError(domain.KindValidation, "Invalid wallet address")
	}
	c, err := s.Store.CreateCompany(ctx, name, wallet)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicate) {
			return nil, domain.NewError(domain.KindConflict, "Company with this wallet already exists")
		}
		return nil, domain.WrapError(domain.KindLedger, "Failed to register company", err)
	}
	log.Info().Str("wallet", c.Wallet).Str("name", c.Name).Msg("company registered")
	return c, nil
}

// Get returns the company for wallet with its credit records and NFT proofs.
func (s *Service) Get(ctx context.Context, wallet string) (*Details, error) {
	if !validation.IsValidWallet(strings.TrimSpace(wallet)) {
		return nil, domain.NewError(domain.KindValidation, "Invalid wallet address")
	}
	c, err := s.Store.GetCompany(ctx, wallet)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "Company not found")
		}
		return nil, domain.WrapError(domain.KindLedger, "Failed to load company", err)
	}
	out := &Details{Company: c}
	if s.Tokens != nil {
		bal, err := s.Tokens.BalanceOf(ctx, c.Wallet)
		if err != nil {
			log.Warn().Err(err).Str("wallet", c.Wallet).Msg("token balance unavailable")
		} else {
			out.TokenBalance = bal.String()
		}
	}
	return out, nil
}
