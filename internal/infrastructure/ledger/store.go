// Package ledger is the transactional store for inventory, ownership, payments and
// chain-derived records. Every exported method runs in its own database transaction;
// callers never hold a row across an external call.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxCASAttempts bounds optimistic retries on Property/Owner rows.
const maxCASAttempts = 3

var (
	ErrNotFound        = errors.New("ledger: record not found")
	ErrConflict        = errors.New("ledger: concurrent modification")
	ErrAlreadyApplied  = errors.New("ledger: settlement already applied")
	ErrPaymentTerminal = errors.New("ledger: payment already in a terminal state")
	ErrCompanyNotFound = errors.New("ledger: company not found")
	ErrDuplicate       = errors.New("ledger: duplicate record")
)

// OversoldError is returned when the property no longer has enough shares.
type OversoldError struct {
	Available int64
	Requested int64
}

func (e *OversoldError) Error() string {
	return fmt.Sprintf("ledger: only %d shares available, %d requested", e.Available, e.Requested)
}

// InsufficientCreditsError is returned when an owner cannot cover a debit.
type InsufficientCreditsError struct {
	Available decimal.Decimal
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("ledger: insufficient credits, available %s", e.Available.String())
}

// Store is the gorm-backed LedgerStore.
type Store struct {
	DB *gorm.DB
}

// New returns a Store over db.
func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// Ping checks the underlying connection (health checks).
func (s *Store) Ping() error {
	if s == nil || s.DB == nil {
		return errors.New("ledger: not configured")
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// withCAS runs fn in a transaction, retrying while it reports ErrConflict.
func (s *Store) withCAS(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		err = s.DB.WithContext(ctx).Transaction(fn)
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return err
}
