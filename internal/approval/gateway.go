// Package approval implements the human confirmation gate for gated
// sessions. The deciding goroutine blocks on Request until a reviewer
// approves or rejects, or the request times out.
package approval

import (
	"fmt"
	"sync"
	"time"

	"ladderbot/internal/logger"

	"github.com/google/uuid"
)

// Outcome is the terminal state of one approval request.
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
	OutcomeTimedOut Outcome = "timed_out"
)

// Pending is one approval awaiting review.
type Pending struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	TokenMint string    `json:"token"`
	AmountUSD float64   `json:"amountUsd"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"createdAt"`
	Result    Outcome   `json:"result"`
}

type waiter struct {
	pending Pending
	// outcome is buffered so a reviewer never blocks handing off the result.
	// Exactly one outcome is delivered per id; resolved guards against a
	// second approve/reject racing the first.
	outcome  chan Outcome
	resolved bool
}

// Gateway owns one session's approval list. All access goes through the
// mutex: the session goroutine registers and finalizes, reviewer calls
// arrive from HTTP handlers.
type Gateway struct {
	mu      sync.Mutex
	waiters map[string]*waiter
	order   []string

	pollInterval time.Duration
	timeout      time.Duration
}

func NewGateway(pollInterval, timeout time.Duration) *Gateway {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		waiters:      make(map[string]*waiter),
		pollInterval: pollInterval,
		timeout:      timeout,
	}
}

// Request publishes a pending approval and blocks until it is resolved or
// the timeout elapses. The timeout is measured from creation and is
// independent of the session's running flag.
func (g *Gateway) Request(action, tokenMint string, amountUSD, price float64) Outcome {
	w := &waiter{
		pending: Pending{
			ID:        uuid.NewString(),
			Action:    action,
			TokenMint: tokenMint,
			AmountUSD: amountUSD,
			Price:     price,
			CreatedAt: time.Now(),
			Result:    OutcomePending,
		},
		outcome: make(chan Outcome, 1),
	}
	g.mu.Lock()
	g.waiters[w.pending.ID] = w
	g.order = append(g.order, w.pending.ID)
	g.mu.Unlock()

	logger.Infof("approval: awaiting review id=%s action=%s amount=$%.2f price=%.8f", w.pending.ID, action, amountUSD, price)

	deadline := time.NewTimer(g.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case out := <-w.outcome:
			g.remove(w.pending.ID)
			return out
		case <-deadline.C:
			g.expire(w)
			// A reviewer may have resolved it in the same instant; the
			// delivered outcome wins.
			select {
			case out := <-w.outcome:
				g.remove(w.pending.ID)
				return out
			default:
			}
			g.remove(w.pending.ID)
			logger.Warnf("approval: request %s timed out after %s", w.pending.ID, g.timeout)
			return OutcomeTimedOut
		case <-ticker.C:
			// Poll loop keeps the wait observable in traces; delivery itself
			// rides the outcome channel.
		}
	}
}

// Resolve records a reviewer decision. It is an error to resolve an unknown
// or already-resolved id.
func (g *Gateway) Resolve(id string, approve bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	w, ok := g.waiters[id]
	if !ok {
		return fmt.Errorf("approval %s not found", id)
	}
	if w.resolved {
		return fmt.Errorf("approval %s already resolved (%s)", id, w.pending.Result)
	}
	w.resolved = true
	if approve {
		w.pending.Result = OutcomeApproved
		w.outcome <- OutcomeApproved
	} else {
		w.pending.Result = OutcomeRejected
		w.outcome <- OutcomeRejected
	}
	return nil
}

func (g *Gateway) expire(w *waiter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !w.resolved {
		w.resolved = true
		w.pending.Result = OutcomeTimedOut
	}
}

func (g *Gateway) remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.waiters, id)
	for i, v := range g.order {
		if v == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

// Pending lists unresolved approvals in creation order.
func (g *Gateway) Pending() []Pending {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Pending, 0, len(g.order))
	for _, id := range g.order {
		if w, ok := g.waiters[id]; ok && !w.resolved {
			out = append(out, w.pending)
		}
	}
	return out
}
