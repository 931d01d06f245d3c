package executor

import (
	"context"
	"fmt"
	"time"

	"ladderbot/internal/gateway/jupiter"
	"ladderbot/internal/logger"
	"ladderbot/internal/token"

	"github.com/shopspring/decimal"
)

// Wallet signs and broadcasts a base64 swap transaction for a user.
// Key custody and transaction plumbing live entirely behind this interface.
type Wallet interface {
	PublicKey(userID string) (string, error)
	SignAndSend(ctx context.Context, userID, swapTxBase64 string) (signature string, err error)
}

// Live executes mainnet swaps through the Jupiter swap API: fresh quote,
// swap build, then sign-and-send via the Wallet collaborator.
type Live struct {
	client  *jupiter.Client
	wallet  Wallet
	tokens  *token.Registry
	timeout time.Duration
	maxPrio int64
}

type LiveConfig struct {
	Client              *jupiter.Client
	Wallet              Wallet
	Tokens              *token.Registry
	Timeout             time.Duration
	MaxPriorityLamports int64
}

func NewLive(cfg LiveConfig) *Live {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Live{
		client:  cfg.Client,
		wallet:  cfg.Wallet,
		tokens:  cfg.Tokens,
		timeout: timeout,
		maxPrio: cfg.MaxPriorityLamports,
	}
}

// Buy swaps USDC into the target token. amountUSD is converted to raw USDC
// units (6 decimals).
func (l *Live) Buy(ctx context.Context, userID, tokenMint string, amountUSD, price float64) (Receipt, error) {
	inputAmount := toRawAmount(amountUSD, l.tokens.Decimals(token.USDCMint))
	return l.swap(ctx, userID, token.USDCMint, tokenMint, inputAmount)
}

// Sell swaps the target token back into USDC. The input amount is the unit
// quantity amountUSD buys at the given price, in the token's raw units.
func (l *Live) Sell(ctx context.Context, userID, tokenMint string, amountUSD, price float64) (Receipt, error) {
	if price <= 0 {
		return Receipt{}, fmt.Errorf("executor: sell requires a positive price, got %f", price)
	}
	inputAmount := toRawAmount(amountUSD/price, l.tokens.Decimals(tokenMint))
	return l.swap(ctx, userID, tokenMint, token.USDCMint, inputAmount)
}

func (l *Live) swap(ctx context.Context, userID, inputMint, outputMint string, amount int64) (Receipt, error) {
	if l.wallet == nil {
		return Receipt{}, fmt.Errorf("executor: live execution not configured (no wallet)")
	}
	if amount <= 0 {
		return Receipt{}, fmt.Errorf("executor: swap amount must be > 0")
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	pubKey, err := l.wallet.PublicKey(userID)
	if err != nil {
		return Receipt{}, fmt.Errorf("executor: resolving wallet for user %s: %w", userID, err)
	}
	rawQuote, _, err := l.client.GetQuoteRaw(ctx, inputMint, outputMint, amount)
	if err != nil {
		return Receipt{}, fmt.Errorf("executor: swap quote failed: %w", err)
	}
	swapTx, err := l.client.BuildSwap(ctx, pubKey, rawQuote, l.maxPrio)
	if err != nil {
		return Receipt{}, fmt.Errorf("executor: swap build failed: %w", err)
	}
	sig, err := l.wallet.SignAndSend(ctx, userID, swapTx)
	if err != nil {
		return Receipt{}, fmt.Errorf("executor: broadcast failed: %w", err)
	}
	logger.Infof("executor: swap confirmed user=%s %s -> %s sig=%s", userID, l.tokens.Symbol(inputMint), l.tokens.Symbol(outputMint), sig)
	return Receipt{Reference: sig}, nil
}

func toRawAmount(uiAmount float64, decimals int) int64 {
	return decimal.NewFromFloat(uiAmount).Shift(int32(decimals)).IntPart()
}
