// Package executor defines the order execution boundary. The ladder engine
// only ever sees the Executor interface and a Receipt or error; how a swap is
// built, signed and broadcast stays behind it.
package executor

import "context"

// Receipt reports a completed execution. Reference carries the venue's
// transaction signature, or "simulated" on paper networks.
type Receipt struct {
	Reference string
}

// Executor places one order per call. The engine calls it exactly once per
// decided action; implementations must fail with a clear reason rather than
// retry internally.
type Executor interface {
	// Buy spends amountUSD of the quote currency on the given token.
	Buy(ctx context.Context, userID, tokenMint string, amountUSD, price float64) (Receipt, error)
	// Sell disposes of amountUSD worth of the given token at the given price.
	Sell(ctx context.Context, userID, tokenMint string, amountUSD, price float64) (Receipt, error)
}
