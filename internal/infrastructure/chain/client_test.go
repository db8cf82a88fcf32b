package chain

import (
	"context"
	"encoding/hex"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManager = "0x00000000000000000000000000000000000000c0"

type fakeRPC struct {
	mu         sync.Mutex
	nonce      uint64
	baseFee    *big.Int
	sent       []*types.Transaction
	receipts   map[common.Hash]*types.Receipt
	callResult []byte
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{baseFee: big.NewInt(1_000_000_000), receipts: map[common.Hash]*types.Receipt{}}
}

func (f *fakeRPC) BlockNumber(ctx context.Context) (uint64, error) { return 42, nil }

func (f *fakeRPC) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeRPC) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (f *fakeRPC) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(100_000_000), nil
}

func (f *fakeRPC) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(42), BaseFee: f.baseFee}, nil
}

func (f *fakeRPC) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeRPC) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	f.nonce++
	return nil
}

func (f *fakeRPC) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.receipts[txHash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeRPC) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return f.callResult, nil
}

func newTestClient(t *testing.T, rpc RPC) (*Client, common.Address) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	c, err := New(rpc, Options{
		ChainID:        5920,
		PrivateKey:     "0x" + hex.EncodeToString(crypto.FromECDSA(key)),
		ManagerAddress: testManager,
		TokenAddress:   "0x00000000000000000000000000000000000000d0",
		PollInterval:   5 * time.Millisecond,
	})
	require.NoError(t, err)
	return c, crypto.PubkeyToAddress(key.PublicKey)
}

func TestSubmit_SignsDynamicFeeTx(t *testing.T) {
	rpc := newFakeRPC()
	c, from := newTestClient(t, rpc)
	assert.Equal(t, from, c.From())

	hash, err := c.ProjectComplete(context.Background(), decimal.NewFromInt(3), "Mangrove")
	require.NoError(t, err)
	require.Len(t, rpc.sent, 1)

	tx := rpc.sent[0]
	assert.Equal(t, hash, tx.Hash().Hex())
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, common.HexToAddress(testManager), *tx.To())
	assert.Equal(t, uint64(120_000), tx.Gas())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(5920)), tx)
	require.NoError(t, err)
	assert.Equal(t, from, sender)

	method := ManagerABI().Methods[MethodProjectComplete]
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, "3000000000000000000", args[0].(*big.Int).String())
	assert.Equal(t, "Mangrove", args[1])
}

func TestSubmit_LegacyFallback(t *testing.T) {
	rpc := newFakeRPC()
	rpc.baseFee = nil
	c, _ := newTestClient(t, rpc)

	_, err := c.Withdraw(context.Background())
	require.NoError(t, err)
	require.Len(t, rpc.sent, 1)
	assert.Equal(t, uint8(types.LegacyTxType), rpc.sent[0].Type())
	assert.Equal(t, int64(2_000_000_000), rpc.sent[0].GasPrice().Int64())
}

func TestSubmit_NonceAdvances(t *testing.T) {
	rpc := newFakeRPC()
	c, _ := newTestClient(t, rpc)
	ctx := context.Background()

	_, err := c.OffsetAgainstProject(ctx, decimal.NewFromInt(1), "0x00000000000000000000000000000000000000a1", "0x00000000000000000000000000000000000000b2", "Mangrove")
	require.NoError(t, err)
	_, err = c.OffsetAgainstProject(ctx, decimal.NewFromInt(1), "0x00000000000000000000000000000000000000a1", "0x00000000000000000000000000000000000000b2", "Mangrove")
	require.NoError(t, err)
	require.Len(t, rpc.sent, 2)
	assert.Equal(t, uint64(0), rpc.sent[0].Nonce())
	assert.Equal(t, uint64(1), rpc.sent[1].Nonce())
}

func TestSubmit_RequiresKey(t *testing.T) {
	c, err := New(newFakeRPC(), Options{ManagerAddress: testManager})
	require.NoError(t, err)
	_, err = c.Withdraw(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNew_RejectsBadAddress(t *testing.T) {
	_, err := New(newFakeRPC(), Options{ManagerAddress: "not-an-address"})
	assert.Error(t, err)
}

func TestAwaitConfirmation(t *testing.T) {
	rpc := newFakeRPC()
	c, _ := newTestClient(t, rpc)
	ctx := context.Background()

	ok := common.HexToHash("0x01")
	reverted := common.HexToHash("0x02")
	rpc.receipts[ok] = &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: ok}
	rpc.receipts[reverted] = &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: reverted}

	r, err := c.AwaitConfirmation(ctx, ok.Hex(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, ok, r.TxHash)

	r, err = c.AwaitConfirmation(ctx, reverted.Hex(), time.Second)
	assert.ErrorIs(t, err, ErrReverted)
	require.NotNil(t, r)

	_, err = c.AwaitConfirmation(ctx, common.HexToHash("0x03").Hex(), 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrPending)
}

func TestAwaitConfirmation_MinedWhileWaiting(t *testing.T) {
	rpc := newFakeRPC()
	c, _ := newTestClient(t, rpc)
	hash := common.HexToHash("0x04")

	go func() {
		time.Sleep(20 * time.Millisecond)
		rpc.mu.Lock()
		rpc.receipts[hash] = &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash}
		rpc.mu.Unlock()
	}()

	r, err := c.AwaitConfirmation(context.Background(), hash.Hex(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, hash, r.TxHash)
}

func TestReceipt_NotFound(t *testing.T) {
	c, _ := newTestClient(t, newFakeRPC())
	_, err := c.Receipt(context.Background(), "0x05")
	assert.ErrorIs(t, err, ErrReceiptNotFound)
}

func TestPricePerCredit(t *testing.T) {
	rpc := newFakeRPC()
	c, _ := newTestClient(t, rpc)
	out, err := ManagerABI().Methods[MethodPricePerCredit].Outputs.Pack(big.NewInt(5_000_000_000_000_000))
	require.NoError(t, err)
	rpc.callResult = out

	price, err := c.PricePerCredit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.005", FromChainUnits(price).String())
}

func TestChainUnits(t *testing.T) {
	v := ToChainUnits(decimal.RequireFromString("1.5"))
	assert.Equal(t, "1500000000000000000", v.String())
	assert.True(t, FromChainUnits(v).Equal(decimal.RequireFromString("1.5")))
	assert.True(t, FromChainUnits(nil).IsZero())
}
