package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PAYMENT_VERIFICATION", "")
	t.Setenv("CHAIN_CONFIRM_TIMEOUT", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, VerificationStatus, cfg.PaymentVerification)
	assert.Equal(t, 45*time.Second, cfg.ChainConfirmTimeout)
	assert.False(t, cfg.CompensateOnChainFailure)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PAYMENT_VERIFICATION", "Signature")
	t.Setenv("COMPENSATE_ON_CHAIN_FAILURE", "true")
	t.Setenv("CHAIN_CONFIRM_TIMEOUT", "10s")
	t.Setenv("DEFAULT_CURRENCY", "usd")
	t.Setenv("CHAIN_ID", "5920")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, VerificationSignature, cfg.PaymentVerification)
	assert.True(t, cfg.CompensateOnChainFailure)
	assert.Equal(t, 10*time.Second, cfg.ChainConfirmTimeout)
	assert.Equal(t, "USD", cfg.DefaultCurrency)
	assert.Equal(t, int64(5920), cfg.ChainID)
}
