package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("rpc down")
	err := WrapError(KindChainSettlementFailed, "offset failed", cause).WithTx("0xabc")
	wrapped := fmt.Errorf("saga: %w", err)

	assert.Equal(t, KindChainSettlementFailed, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindChainSettlementFailed))
	assert.ErrorIs(t, wrapped, cause)

	var e *Error
	assert.True(t, errors.As(wrapped, &e))
	assert.Equal(t, "0xabc", e.TxHash)
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, IsKind(nil, KindInternal))
}
