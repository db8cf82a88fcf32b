package validation

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	txHashRe   = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	walletRe   = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	currencyRe = regexp.MustCompile(`^[A-Za-z]{3}$`)
)

// IsValidTxHash reports whether s is a 32-byte 0x-prefixed hex hash.
func IsValidTxHash(s string) bool {
	return txHashRe.MatchString(s)
}

// IsValidWallet reports whether s is a 20-byte 0x-prefixed hex address.
func IsValidWallet(s string) bool {
	return walletRe.MatchString(s)
}

func IsValidCurrency(s string) bool {
	return currencyRe.MatchString(s)
}

// ParseUUID returns the parsed id and whether it was valid.
func ParseUUID(s string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// IsPositive reports whether d is strictly greater than zero.
func IsPositive(d decimal.Decimal) bool {
	return d.Sign() > 0
}
