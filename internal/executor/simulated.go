package executor

import (
	"context"

	"ladderbot/internal/logger"
)

// Simulated reports success without contacting anything. Used for every
// non-mainnet session.
type Simulated struct {
	// SymbolFn renders a mint for logs; optional.
	SymbolFn func(mint string) string
}

func NewSimulated(symbolFn func(string) string) *Simulated {
	return &Simulated{SymbolFn: symbolFn}
}

func (s *Simulated) symbol(mint string) string {
	if s.SymbolFn != nil {
		return s.SymbolFn(mint)
	}
	return mint
}

func (s *Simulated) Buy(ctx context.Context, userID, tokenMint string, amountUSD, price float64) (Receipt, error) {
	logger.Infof("[simulation] user=%s buy $%.2f of %s at %.8f", userID, amountUSD, s.symbol(tokenMint), price)
	return Receipt{Reference: "simulated"}, nil
}

func (s *Simulated) Sell(ctx context.Context, userID, tokenMint string, amountUSD, price float64) (Receipt, error) {
	logger.Infof("[simulation] user=%s sell $%.2f of %s at %.8f", userID, amountUSD, s.symbol(tokenMint), price)
	return Receipt{Reference: "simulated"}, nil
}
