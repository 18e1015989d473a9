package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/layer-3/sfa-farcaster/core"
	"github.com/layer-3/sfa-farcaster/internal/eth"
	"github.com/shopspring/decimal"
)

// WalletActions are the demo operations run with a signing provider
type WalletActions struct {
	confirmTimeout time.Duration
}

// NewWalletActions creates wallet actions that wait up to confirmTimeout for
// a transaction receipt
func NewWalletActions(confirmTimeout time.Duration) *WalletActions {
	return &WalletActions{confirmTimeout: confirmTimeout}
}

// GetAddress returns the provider's checksummed address
func (w *WalletActions) GetAddress(p *SigningProvider) (string, error) {
	if p == nil {
		return "", core.ErrProviderNotReady
	}
	return p.Address().Hex(), nil
}

// GetBalance returns the provider's latest balance in ether
func (w *WalletActions) GetBalance(ctx context.Context, p *SigningProvider) (string, error) {
	if p == nil {
		return "", core.ErrProviderNotReady
	}

	wei, err := p.client.BalanceAt(ctx, p.Address(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch balance: %w", err)
	}

	return eth.FormatEther(wei), nil
}

// SignMessage signs message with personal_sign semantics
func (w *WalletActions) SignMessage(p *SigningProvider, message string) (string, error) {
	if p == nil {
		return "", core.ErrProviderNotReady
	}

	sig, err := p.signer.SignMessage([]byte(message))
	if err != nil {
		return "", err
	}

	return hexutil.Encode(sig), nil
}

// SendTransaction transfers amount ether to destination and waits for the
// transaction to be mined
func (w *WalletActions) SendTransaction(ctx context.Context, p *SigningProvider, destination string, amount decimal.Decimal) (*core.Receipt, error) {
	if p == nil {
		return nil, core.ErrProviderNotReady
	}

	if !common.IsHexAddress(destination) {
		return nil, fmt.Errorf("%w: %w: %q", core.ErrTransaction, core.ErrInvalidDestination, destination)
	}
	to := common.HexToAddress(destination)

	value, err := eth.ParseEther(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrTransaction, err)
	}

	from := p.Address()

	tx, err := w.buildTransfer(ctx, p, from, to, value)
	if err != nil {
		return nil, err
	}

	signed, err := p.signer.SignTx(tx, p.chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrTransaction, err)
	}

	if err := p.client.SendTransaction(ctx, signed); err != nil {
		if isInsufficientFunds(err) {
			return nil, fmt.Errorf("%w: %w: %w", core.ErrTransaction, core.ErrInsufficientFunds, err)
		}
		return nil, fmt.Errorf("%w: %w: %w", core.ErrTransaction, core.ErrNetworkRejection, err)
	}

	logger.Infow("transaction submitted", "hash", signed.Hash().Hex(), "from", from.Hex(), "to", to.Hex(), "value", value)

	receipt, err := w.waitMined(ctx, p, signed.Hash())
	if err != nil {
		return nil, err
	}

	result := &core.Receipt{
		TxHash:      receipt.TxHash.Hex(),
		BlockHash:   receipt.BlockHash.Hex(),
		From:        from.Hex(),
		To:          to.Hex(),
		GasUsed:     receipt.GasUsed,
		Status:      receipt.Status,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}
	if receipt.EffectiveGasPrice != nil {
		result.EffectiveGasPrice = receipt.EffectiveGasPrice.String()
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return result, fmt.Errorf("%w: %w: %s", core.ErrTransaction, core.ErrTransactionReverted, receipt.TxHash.Hex())
	}

	return result, nil
}

// buildTransfer prepares an EIP-1559 transfer and checks the sender can
// cover value plus the maximum fee
func (w *WalletActions) buildTransfer(ctx context.Context, p *SigningProvider, from, to common.Address, value *big.Int) (*types.Transaction, error) {
	balance, err := p.client.BalanceAt(ctx, from, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", core.ErrTransaction, core.ErrNetworkRejection, err)
	}
	if balance.Cmp(value) < 0 {
		return nil, fmt.Errorf("%w: %w: balance %s, need %s", core.ErrTransaction, core.ErrInsufficientFunds, eth.FormatEther(balance), eth.FormatEther(value))
	}

	nonce, err := p.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", core.ErrTransaction, core.ErrNetworkRejection, err)
	}

	tip, err := p.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", core.ErrTransaction, core.ErrNetworkRejection, err)
	}

	head, err := p.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", core.ErrTransaction, core.ErrNetworkRejection, err)
	}

	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}

	// Same headroom ethers uses: twice the base fee plus the tip
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(baseFee, big.NewInt(2)))

	gas, err := p.client.EstimateGas(ctx, ethereum.CallMsg{
		From:      from,
		To:        &to,
		GasFeeCap: feeCap,
		GasTipCap: tip,
		Value:     value,
	})
	if err != nil {
		if isInsufficientFunds(err) {
			return nil, fmt.Errorf("%w: %w: %w", core.ErrTransaction, core.ErrInsufficientFunds, err)
		}
		return nil, fmt.Errorf("%w: %w: %w", core.ErrTransaction, core.ErrNetworkRejection, err)
	}

	cost := new(big.Int).Mul(feeCap, new(big.Int).SetUint64(gas))
	cost.Add(cost, value)
	if balance.Cmp(cost) < 0 {
		return nil, fmt.Errorf("%w: %w: balance %s, need %s", core.ErrTransaction, core.ErrInsufficientFunds, eth.FormatEther(balance), eth.FormatEther(cost))
	}

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   p.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
	}), nil
}

func (w *WalletActions) waitMined(ctx context.Context, p *SigningProvider, hash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, w.confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, p.client, hash)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %w: %s", core.ErrTransaction, core.ErrConfirmationTimeout, hash.Hex())
		}
		return nil, fmt.Errorf("%w: %w", core.ErrTransaction, err)
	}

	return receipt, nil
}

func isInsufficientFunds(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "insufficient funds")
}
