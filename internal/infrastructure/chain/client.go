// Package chain submits carbon manager transactions and reads their receipts over JSON-RPC.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"unicarbon-backend/internal/pkg/metrics"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	// ErrPending means the confirmation wait timed out before the transaction was mined.
	ErrPending = errors.New("chain: transaction not yet mined")
	// ErrReverted means the transaction was mined with a failed status.
	ErrReverted = errors.New("chain: transaction reverted")
	// ErrReceiptNotFound means the node has no receipt for the hash.
	ErrReceiptNotFound = errors.New("chain: receipt not found")
	// ErrNotConfigured means no signer or contract address was supplied.
	ErrNotConfigured = errors.New("chain: client not configured")
)

// CreditDecimals is the fixed-point scale of credit amounts submitted to the contract.
const CreditDecimals = 18

// RPC is the subset of the Ethereum JSON-RPC used by Client. *ethclient.Client satisfies it.
type RPC interface {
	BlockNumber(ctx context.Context) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Options configures a Client.
type Options struct {
	RPCURL         string
	ChainID        int64
	PrivateKey     string // hex, with or without 0x
	ManagerAddress string
	TokenAddress   string
	PollInterval   time.Duration
}

// Client signs and submits contract calls with a single operator key.
type Client struct {
	rpc      RPC
	manager  common.Address
	token    common.Address
	hasToken bool
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	abi      abi.ABI
	tokenABI abi.ABI
	poll     time.Duration

	// mu serialises nonce allocation and broadcast for the operator key.
	mu sync.Mutex
}

// Dial connects to opts.RPCURL and builds a Client.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	endpoint := strings.TrimSpace(opts.RPCURL)
	if endpoint == "" {
		return nil, fmt.Errorf("chain rpc url required")
	}
	rpc, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	return New(rpc, opts)
}

// New builds a Client on an existing RPC connection.
func New(rpc RPC, opts Options) (*Client, error) {
	if !common.IsHexAddress(opts.ManagerAddress) {
		return nil, fmt.Errorf("invalid carbon manager address %q", opts.ManagerAddress)
	}
	c := &Client{
		rpc:      rpc,
		manager:  common.HexToAddress(opts.ManagerAddress),
		chainID:  big.NewInt(opts.ChainID),
		abi:      ManagerABI(),
		tokenABI: TokenABI(),
		poll:     opts.PollInterval,
	}
	if c.poll <= 0 {
		c.poll = 2 * time.Second
	}
	if opts.TokenAddress != "" {
		if !common.IsHexAddress(opts.TokenAddress) {
			return nil, fmt.Errorf("invalid credit token address %q", opts.TokenAddress)
		}
		c.token = common.HexToAddress(opts.TokenAddress)
		c.hasToken = true
	}
	if opts.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(opts.PrivateKey), "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse chain private key: %w", err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c, nil
}

// From returns the operator address, or the zero address when no key is configured.
func (c *Client) From() common.Address {
	return c.from
}

// Manager returns the carbon manager contract address.
func (c *Client) Manager() common.Address {
	return c.manager
}

// Submit packs method(args...), signs it with the operator key and broadcasts it.
// It returns as soon as the node accepts the transaction.
func (c *Client) Submit(ctx context.Context, method string, args []interface{}, value *big.Int) (string, error) {
	if c.key == nil {
		return "", ErrNotConfigured
	}
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return "", fmt.Errorf("pack %s: %w", method, err)
	}
	if value == nil {
		value = new(big.Int)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	nonce, err := c.rpc.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", fmt.Errorf("pending nonce: %w", err)
	}
	to := c.manager
	gas, err := c.rpc.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &to, Value: value, Data: data})
	if err != nil {
		return "", fmt.Errorf("estimate gas for %s: %w", method, err)
	}
	gas = gas * 12 / 10

	tx, err := c.buildTx(ctx, nonce, gas, to, value, data)
	if err != nil {
		return "", err
	}
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", method, err)
	}
	if err := c.rpc.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send %s: %w", method, err)
	}
	hash := signed.Hash().Hex()
	log.Info().Str("method", method).Str("tx_hash", hash).Uint64("nonce", nonce).Msg("chain transaction submitted")
	return hash, nil
}

// buildTx prefers an EIP-1559 transaction and falls back to a legacy one on chains without a base fee.
func (c *Client) buildTx(ctx context.Context, nonce, gas uint64, to common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	head, err := c.rpc.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}
	if head != nil && head.BaseFee != nil {
		tip, err := c.rpc.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, fmt.Errorf("suggest tip: %w", err)
		}
		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   c.chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        &to,
			Value:     value,
			Data:      data,
		}), nil
	}
	price, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: price,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     data,
	}), nil
}

// Receipt returns the receipt for txHash, or ErrReceiptNotFound while it is unmined.
func (c *Client) Receipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	receipt, err := c.rpc.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrReceiptNotFound
		}
		return nil, fmt.Errorf("fetch receipt: %w", err)
	}
	if receipt == nil {
		return nil, ErrReceiptNotFound
	}
	return receipt, nil
}

// AwaitConfirmation polls for the receipt of txHash until it is mined or timeout elapses.
// A reverted transaction returns its receipt together with ErrReverted; a timeout returns ErrPending.
func (c *Client) AwaitConfirmation(ctx context.Context, txHash string, timeout time.Duration) (*types.Receipt, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		receipt, err := c.Receipt(ctx, txHash)
		switch {
		case err == nil && receipt.Status == types.ReceiptStatusSuccessful:
			metrics.Saga().ObserveConfirmation("await", "confirmed", time.Since(start))
			return receipt, nil
		case err == nil:
			metrics.Saga().ObserveConfirmation("await", "reverted", time.Since(start))
			return receipt, ErrReverted
		case !errors.Is(err, ErrReceiptNotFound) && ctx.Err() == nil:
			log.Warn().Err(err).Str("tx_hash", txHash).Msg("receipt poll failed, retrying")
		}

		select {
		case <-ctx.Done():
			metrics.Saga().ObserveConfirmation("await", "pending", time.Since(start))
			return nil, ErrPending
		case <-ticker.C:
		}
	}
}

// DecodeLogs decodes the carbon manager events in receipt.
func (c *Client) DecodeLogs(receipt *types.Receipt) []Event {
	if receipt == nil {
		return nil
	}
	return DecodeLogs(c.abi, c.manager, receipt.Logs)
}

// ProjectComplete submits projectComplete(amount, projectName).
func (c *Client) ProjectComplete(ctx context.Context, amount decimal.Decimal, projectName string) (string, error) {
	return c.Submit(ctx, MethodProjectComplete, []interface{}{ToChainUnits(amount), projectName}, nil)
}

// OffsetAgainstProject submits offsetAgainstProject(amount, source, sink, project).
func (c *Client) OffsetAgainstProject(ctx context.Context, amount decimal.Decimal, source, sink, project string) (string, error) {
	if !common.IsHexAddress(source) || !common.IsHexAddress(sink) {
		return "", fmt.Errorf("invalid offset addresses %q -> %q", source, sink)
	}
	args := []interface{}{ToChainUnits(amount), common.HexToAddress(source), common.HexToAddress(sink), project}
	return c.Submit(ctx, MethodOffsetAgainstProject, args, nil)
}

// Withdraw submits withdraw().
func (c *Client) Withdraw(ctx context.Context) (string, error) {
	return c.Submit(ctx, MethodWithdraw, nil, nil)
}

// PricePerCredit reads the contract's current credit price in wei.
func (c *Client) PricePerCredit(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, c.abi, c.manager, MethodPricePerCredit)
}

// BalanceOf reads the credit token balance of wallet.
func (c *Client) BalanceOf(ctx context.Context, wallet string) (*big.Int, error) {
	if !c.hasToken {
		return nil, ErrNotConfigured
	}
	return c.callUint(ctx, c.tokenABI, c.token, "balanceOf", common.HexToAddress(wallet))
}

// BlockNumber returns the latest block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.rpc.BlockNumber(ctx)
}

func (c *Client) callUint(ctx context.Context, parsed abi.ABI, contract common.Address, method string, args ...interface{}) (*big.Int, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected %s result", method)
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result type %T", method, values[0])
	}
	return v, nil
}

// ToChainUnits scales a credit amount to CreditDecimals, truncating any finer fraction.
func ToChainUnits(amount decimal.Decimal) *big.Int {
	return amount.Shift(CreditDecimals).BigInt()
}

// FromChainUnits is the inverse of ToChainUnits.
func FromChainUnits(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -CreditDecimals)
}
