// Package oracle resolves a usable price for an ordered token pair. Thinly
// traded mints often cannot be quoted directly, so resolution falls back from
// a direct quote to an inverted reverse quote to a two-leg route through a
// bridge asset.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ladderbot/internal/gateway/jupiter"
	"ladderbot/internal/logger"
	"ladderbot/internal/pkg/circuit"

	"github.com/shopspring/decimal"
)

// ErrNoRoute is returned when every fallback path fails to produce a quote.
var ErrNoRoute = errors.New("oracle: no price route found")

// ErrVenueDown is returned while the breaker is open after repeated venue
// failures. Callers treat it like any other missed tick and retry later.
var ErrVenueDown = errors.New("oracle: quote venue unavailable")

// Quoter is the quote venue. *jupiter.Client satisfies it.
type Quoter interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amount int64) (jupiter.Quote, error)
}

// DecimalSource exposes per-mint decimal precision for normalization.
type DecimalSource interface {
	Decimals(mint string) int
}

// Adapter turns raw venue quotes into normalized pair prices.
type Adapter struct {
	quoter  Quoter
	tokens  DecimalSource
	bridge  string
	breaker *circuit.Breaker
}

func NewAdapter(quoter Quoter, tokens DecimalSource, bridgeMint string) *Adapter {
	return &Adapter{
		quoter:  quoter,
		tokens:  tokens,
		bridge:  bridgeMint,
		breaker: circuit.NewBreaker("oracle", 5, 30*time.Second),
	}
}

// ResolvePrice returns the price of inputMint denominated in outputMint,
// normalized for each mint's decimal precision. Resolution order: direct
// quote, inverted reverse quote, two-leg bridge route. Every failure mode is
// an ordinary error; callers skip the tick and retry.
func (a *Adapter) ResolvePrice(ctx context.Context, inputMint, outputMint string, referenceAmount int64) (float64, error) {
	if referenceAmount <= 0 {
		return 0, fmt.Errorf("oracle: reference amount must be > 0, got %d", referenceAmount)
	}
	if !a.breaker.Allow() {
		return 0, ErrVenueDown
	}
	price, err := a.resolve(ctx, inputMint, outputMint, referenceAmount)
	if err != nil {
		a.breaker.Failure()
		return 0, err
	}
	a.breaker.Success()
	return price, nil
}

func (a *Adapter) resolve(ctx context.Context, inputMint, outputMint string, referenceAmount int64) (float64, error) {
	directErr := error(nil)
	if q, err := a.quoter.GetQuote(ctx, inputMint, outputMint, referenceAmount); err == nil {
		return a.pairPrice(q, inputMint, outputMint)
	} else {
		directErr = err
		logger.Debugf("oracle: direct quote %s -> %s failed: %v", short(inputMint), short(outputMint), err)
	}

	if inputMint != outputMint {
		if q, err := a.quoter.GetQuote(ctx, outputMint, inputMint, referenceAmount); err == nil {
			// Reverse quote prices output in input units; invert it.
			price, perr := a.pairPrice(q, outputMint, inputMint)
			if perr == nil && price > 0 {
				return 1 / price, nil
			}
		} else {
			logger.Debugf("oracle: reverse quote %s -> %s failed: %v", short(outputMint), short(inputMint), err)
		}
	}

	if inputMint != a.bridge && outputMint != a.bridge {
		if price, err := a.bridgeRoute(ctx, inputMint, outputMint, referenceAmount); err == nil {
			return price, nil
		} else {
			logger.Debugf("oracle: bridge route %s -> %s failed: %v", short(inputMint), short(outputMint), err)
		}
	}

	return 0, fmt.Errorf("%w for %s -> %s: %v", ErrNoRoute, short(inputMint), short(outputMint), directErr)
}

// bridgeRoute composes input -> bridge -> output. The second leg is sized by
// the bridge amount the first leg actually produced.
func (a *Adapter) bridgeRoute(ctx context.Context, inputMint, outputMint string, amount int64) (float64, error) {
	leg1, err := a.quoter.GetQuote(ctx, inputMint, a.bridge, amount)
	if err != nil {
		return 0, fmt.Errorf("bridge leg %s -> %s: %w", short(inputMint), short(a.bridge), err)
	}
	leg2, err := a.quoter.GetQuote(ctx, a.bridge, outputMint, leg1.OutAmount)
	if err != nil {
		return 0, fmt.Errorf("bridge leg %s -> %s: %w", short(a.bridge), short(outputMint), err)
	}
	p1, err := a.pairPrice(leg1, inputMint, a.bridge)
	if err != nil {
		return 0, err
	}
	p2, err := a.pairPrice(leg2, a.bridge, outputMint)
	if err != nil {
		return 0, err
	}
	return p1 * p2, nil
}

// pairPrice converts a raw quote into output-per-input units, dividing each
// side by 10^decimals of its mint.
func (a *Adapter) pairPrice(q jupiter.Quote, inputMint, outputMint string) (float64, error) {
	if q.InAmount <= 0 || q.OutAmount <= 0 {
		return 0, fmt.Errorf("oracle: venue returned non-positive amounts in=%d out=%d", q.InAmount, q.OutAmount)
	}
	in := normalize(q.InAmount, a.tokens.Decimals(inputMint))
	out := normalize(q.OutAmount, a.tokens.Decimals(outputMint))
	if in.IsZero() {
		return 0, fmt.Errorf("oracle: normalized input amount is zero")
	}
	price, _ := out.Div(in).Float64()
	return price, nil
}

func normalize(raw int64, decimals int) decimal.Decimal {
	return decimal.NewFromInt(raw).Shift(int32(-decimals))
}

func short(mint string) string {
	if len(mint) > 8 {
		return mint[:8] + "..."
	}
	return mint
}
