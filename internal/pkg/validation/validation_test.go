package validation

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIsValidTxHash(t *testing.T) {
	assert.True(t, IsValidTxHash("0x"+strings.Repeat("aB", 32)))
	assert.False(t, IsValidTxHash(strings.Repeat("ab", 32)))
	assert.False(t, IsValidTxHash("0x"+strings.Repeat("ab", 31)))
	assert.False(t, IsValidTxHash("0x"+strings.Repeat("zz", 32)))
}

func TestIsValidWallet(t *testing.T) {
	assert.True(t, IsValidWallet("0xAAbbCCddEEff00112233445566778899aAbBcCdD"))
	assert.False(t, IsValidWallet("0x1234"))
	assert.False(t, IsValidWallet(""))
}

func TestParseUUID(t *testing.T) {
	_, ok := ParseUUID(" 11111111-1111-1111-1111-111111111111 ")
	assert.True(t, ok)
	_, ok = ParseUUID("not-a-uuid")
	assert.False(t, ok)
}

func TestIsPositive(t *testing.T) {
	assert.True(t, IsPositive(decimal.RequireFromString("0.1")))
	assert.False(t, IsPositive(decimal.Zero))
	assert.False(t, IsPositive(decimal.NewFromInt(-1)))
	assert.True(t, IsValidCurrency("inr"))
	assert.False(t, IsValidCurrency("rupees"))
}
