// Package engine implements the laddered trading state machine. One Session
// runs one user's strategy loop: resolve a price, compare it against the
// thresholds derived from the ratcheting reference price, and move one part
// between the buy and sell pools on each successful execution.
package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"ladderbot/internal/approval"
	"ladderbot/internal/executor"
	"ladderbot/internal/logger"
)

// Params carries the tunables shared by every session. Intervals are
// configuration inputs so tests can run with near-zero values.
type Params struct {
	PollInterval     time.Duration
	OracleTimeout    time.Duration
	FixedFeeUSD      float64
	HistoryLimit     int
	FallbackRefPrice float64
	QuoteMint        string
	BridgeMint       string
	QuoteNotional    int64
}

func (p *Params) normalize() {
	if p.PollInterval <= 0 {
		p.PollInterval = 5 * time.Second
	}
	if p.OracleTimeout <= 0 {
		p.OracleTimeout = 10 * time.Second
	}
	if p.HistoryLimit <= 0 {
		p.HistoryLimit = 20
	}
	if p.FallbackRefPrice <= 0 {
		p.FallbackRefPrice = 100
	}
	if p.QuoteNotional <= 0 {
		p.QuoteNotional = 1_000_000_000
	}
}

// Deps are the session's external collaborators.
type Deps struct {
	Oracle    PriceOracle
	Executor  executor.Executor
	Approvals ApprovalGate
	Sink      TradeSink
}

type sessionState struct {
	running        bool
	referencePrice float64
	currentPrice   float64
	lastAction     Action
	position       float64
	avgCost        float64
	totalProfit    float64
	buyPool        int
	sellPool       int
	history        []TradeRecord
}

// Session owns one user's mutable trading state. The run loop is the only
// writer; Status takes the mutex and copies.
type Session struct {
	cfg    Config
	params Params
	deps   Deps

	mu sync.Mutex
	st sessionState

	stopCh    chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	doneOnce  sync.Once
	started   bool
	startedAt time.Time
}

func NewSession(cfg Config, params Params, deps Deps) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Oracle == nil {
		return nil, fmt.Errorf("engine: oracle is required")
	}
	if deps.Executor == nil {
		return nil, fmt.Errorf("engine: executor is required")
	}
	params.normalize()
	return &Session{
		cfg:    cfg,
		params: params,
		deps:   deps,
		st: sessionState{
			lastAction: ActionNone,
			buyPool:    cfg.Parts,
			sellPool:   0,
		},
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

func (s *Session) Config() Config { return s.cfg }

// Start launches the polling loop. Call at most once per Session.
func (s *Session) Start() {
	s.mu.Lock()
	s.st.running = true
	s.started = true
	s.startedAt = time.Now()
	s.mu.Unlock()
	go s.run()
}

// Stop signals the loop and waits for it to exit. An in-flight execution or
// approval wait finishes first; the approval timeout bounds the wait. Safe
// to call on a session that was never started.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.st.running = false
		started := s.started
		s.mu.Unlock()
		close(s.stopCh)
		if !started {
			// No loop exists to close done.
			s.finish()
		}
	})
	<-s.done
}

func (s *Session) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Done is closed when the loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Status returns a copy of the session state.
func (s *Session) Status() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	hist := make([]TradeRecord, len(s.st.history))
	copy(hist, s.st.history)
	return Snapshot{
		UserID:         s.cfg.UserID,
		Token:          s.cfg.TokenMint,
		Running:        s.st.running,
		Mode:           s.cfg.Mode,
		Network:        s.cfg.Network,
		ReferencePrice: s.st.referencePrice,
		CurrentPrice:   s.st.currentPrice,
		LastAction:     s.st.lastAction,
		Position:       s.st.position,
		AvgCost:        s.st.avgCost,
		TotalProfit:    s.st.totalProfit,
		BuyPool:        s.st.buyPool,
		SellPool:       s.st.sellPool,
		Parts:          s.cfg.Parts,
		PartSize:       s.cfg.PartSize(),
		History:        hist,
		StartedAt:      s.startedAt,
	}
}

func (s *Session) run() {
	defer s.finish()
	logger.Infof("engine: session started user=%s token=%s mode=%s network=%s parts=%d amount=$%.2f",
		s.cfg.UserID, s.cfg.TokenMint, s.cfg.Mode, s.cfg.Network, s.cfg.Parts, s.cfg.TradeAmountUSD)

	s.seedReference()

	for {
		select {
		case <-s.stopCh:
			logger.Infof("engine: session stopped user=%s", s.cfg.UserID)
			return
		default:
		}

		res, err := s.safeTick()
		switch res {
		case tickRetry:
			if err != nil {
				logger.Warnf("engine: tick retry user=%s: %v", s.cfg.UserID, err)
			}
		case tickFatal:
			logger.Errorf("engine: fatal tick error, stopping session user=%s: %v", s.cfg.UserID, err)
			s.mu.Lock()
			s.st.running = false
			s.mu.Unlock()
			return
		}

		select {
		case <-s.stopCh:
			logger.Infof("engine: session stopped user=%s", s.cfg.UserID)
			return
		case <-time.After(s.params.PollInterval):
		}
	}
}

// seedReference prices the pair once at startup. When the oracle is down the
// fixed fallback keeps the ladder well-defined until real quotes arrive.
func (s *Session) seedReference() {
	price, err := s.resolvePrice()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil || price <= 0 {
		// Keep the ladder well-defined, but leave currentPrice unset so
		// ticks skip until a real quote arrives.
		logger.Warnf("engine: initial price unavailable for %s, using fallback reference %.2f: %v",
			s.cfg.TokenMint, s.params.FallbackRefPrice, err)
		s.st.referencePrice = s.params.FallbackRefPrice
		return
	}
	s.st.referencePrice = price
	s.st.currentPrice = price
	logger.Infof("engine: reference price seeded user=%s price=%.8f", s.cfg.UserID, price)
}

// safeTick contains one tick, converting panics into retryable results so a
// single bad iteration never kills the loop.
func (s *Session) safeTick() (res tickResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("engine: tick panic user=%s: %v", s.cfg.UserID, r)
			debug.PrintStack()
			res = tickRetry
			err = fmt.Errorf("tick panic: %v", r)
		}
	}()
	return s.tick()
}

func (s *Session) tick() (tickResult, error) {
	price, perr := s.resolvePrice()

	s.mu.Lock()
	if perr != nil || price <= 0 {
		if s.st.currentPrice > 0 {
			// Trade against the last observed price rather than stalling.
			price = s.st.currentPrice
		} else {
			s.mu.Unlock()
			return tickRetry, fmt.Errorf("no price available: %v", perr)
		}
	}
	s.st.currentPrice = price

	if s.st.buyPool+s.st.sellPool != s.cfg.Parts {
		s.mu.Unlock()
		return tickFatal, fmt.Errorf("part pools out of balance: buy=%d sell=%d parts=%d",
			s.st.buyPool, s.st.sellPool, s.cfg.Parts)
	}

	ref := s.st.referencePrice
	buyThreshold := ref * (1 - s.cfg.DownPct/100)
	sellThreshold := ref * (1 + s.cfg.UpPct/100)
	shouldBuy := price <= buyThreshold && s.st.buyPool > 0
	shouldSell := price >= sellThreshold && s.st.sellPool > 0
	s.mu.Unlock()

	logger.Debugf("engine: tick user=%s price=%.8f ref=%.8f buy<=%.8f sell>=%.8f",
		s.cfg.UserID, price, ref, buyThreshold, sellThreshold)

	// Buy takes priority when both thresholds are breached in one tick; the
	// sell condition is re-evaluated next tick against the new reference.
	if shouldBuy {
		return s.attempt(ActionBuy, price, ref)
	}
	if shouldSell {
		return s.attempt(ActionSell, price, ref)
	}
	return tickOK, nil
}

func (s *Session) resolvePrice() (float64, error) {
	in, out := s.cfg.TokenMint, s.params.QuoteMint
	if in == out {
		in = s.params.BridgeMint
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.params.OracleTimeout)
	defer cancel()
	return s.deps.Oracle.ResolvePrice(ctx, in, out, s.params.QuoteNotional)
}

// attempt runs one decided action end to end. The lock is not held across
// the executor or approval calls; this loop is the only state writer.
func (s *Session) attempt(action Action, price, refBefore float64) (tickResult, error) {
	partSize := s.cfg.PartSize()

	if s.gated() {
		outcome := s.deps.Approvals.Request(string(action), s.cfg.TokenMint, partSize, price)
		if outcome != approval.OutcomeApproved {
			logger.Warnf("engine: %s not approved (%s) user=%s price=%.8f", action, outcome, s.cfg.UserID, price)
			s.recordRefusal(action, price, refBefore, partSize)
			return tickOK, nil
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.params.OracleTimeout)
	defer cancel()
	var err error
	if action == ActionBuy {
		_, err = s.deps.Executor.Buy(ctx, s.cfg.UserID, s.cfg.TokenMint, partSize, price)
	} else {
		_, err = s.deps.Executor.Sell(ctx, s.cfg.UserID, s.cfg.TokenMint, partSize, price)
	}
	if err != nil {
		// Pools, reference and position stay exactly as they were; the same
		// decision is retried next tick if conditions still hold.
		return tickRetry, fmt.Errorf("%s execution failed: %w", action, err)
	}

	var rec TradeRecord
	if action == ActionBuy {
		rec = s.applyBuy(price, refBefore, partSize)
	} else {
		rec = s.applySell(price, refBefore, partSize)
	}
	s.persist(rec)
	return tickOK, nil
}

func (s *Session) gated() bool {
	return s.cfg.Mode == ModeGated && s.cfg.Network == NetworkMainnet && s.deps.Approvals != nil
}

func (s *Session) applyBuy(price, refBefore, partSize float64) TradeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.buyPool--
	s.st.sellPool++
	oldPos := s.st.position
	s.st.position += partSize
	s.st.avgCost = (oldPos*s.st.avgCost + partSize*price) / s.st.position
	s.st.referencePrice = price
	s.st.lastAction = ActionBuy

	logger.Infof("engine: buy filled user=%s price=%.8f size=$%.2f held=%d/%d avgCost=%.8f",
		s.cfg.UserID, price, partSize, s.st.sellPool, s.cfg.Parts, s.st.avgCost)

	rec := TradeRecord{
		UserID:          s.cfg.UserID,
		Timestamp:       time.Now(),
		Action:          ActionBuy,
		Token:           s.cfg.TokenMint,
		Price:           price,
		AmountUSD:       partSize,
		ReferenceBefore: refBefore,
		PartIndex:       s.st.sellPool,
		Status:          TradeCompleted,
	}
	s.appendHistory(rec)
	return rec
}

func (s *Session) applySell(price, refBefore, partSize float64) TradeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	partIndex := s.st.sellPool
	s.st.sellPool--
	s.st.buyPool++
	gross := (price - refBefore) * partSize
	net := gross - s.params.FixedFeeUSD
	s.st.totalProfit += net
	s.st.referencePrice = price
	if partSize < s.st.position {
		s.st.position -= partSize
	} else {
		s.st.position = 0
	}
	if s.st.position == 0 {
		s.st.avgCost = 0
	}
	s.st.lastAction = ActionSell

	logger.Infof("engine: sell filled user=%s price=%.8f size=$%.2f pnl=%.4f total=%.4f",
		s.cfg.UserID, price, partSize, net, s.st.totalProfit)

	rec := TradeRecord{
		UserID:          s.cfg.UserID,
		Timestamp:       time.Now(),
		Action:          ActionSell,
		Token:           s.cfg.TokenMint,
		Price:           price,
		AmountUSD:       partSize,
		ReferenceBefore: refBefore,
		PnL:             &net,
		PartIndex:       partIndex,
		Status:          TradeCompleted,
	}
	s.appendHistory(rec)
	return rec
}

// recordRefusal leaves a failed marker in the history for a rejected or
// timed-out approval. No other state changes.
func (s *Session) recordRefusal(action Action, price, refBefore, partSize float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := TradeRecord{
		UserID:          s.cfg.UserID,
		Timestamp:       time.Now(),
		Action:          action,
		Token:           s.cfg.TokenMint,
		Price:           price,
		AmountUSD:       partSize,
		ReferenceBefore: refBefore,
		Status:          TradeFailed,
	}
	s.appendHistory(rec)
}

// appendHistory requires s.mu held.
func (s *Session) appendHistory(rec TradeRecord) {
	s.st.history = append(s.st.history, rec)
	if len(s.st.history) > s.params.HistoryLimit {
		s.st.history = s.st.history[len(s.st.history)-s.params.HistoryLimit:]
	}
}

func (s *Session) persist(rec TradeRecord) {
	if s.deps.Sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.deps.Sink.Record(ctx, rec); err != nil {
			logger.Warnf("engine: trade sink write failed user=%s: %v", s.cfg.UserID, err)
		}
	}()
}
