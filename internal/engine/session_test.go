package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ladderbot/internal/approval"
	"ladderbot/internal/executor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedOracle struct {
	mu     sync.Mutex
	prices []float64
	errs   []error
	calls  int
}

func (o *scriptedOracle) ResolvePrice(_ context.Context, _, _ string, _ int64) (float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	i := o.calls
	o.calls++
	if i < len(o.errs) && o.errs[i] != nil {
		return 0, o.errs[i]
	}
	if len(o.prices) == 0 {
		return 0, errors.New("no quote")
	}
	if i >= len(o.prices) {
		i = len(o.prices) - 1
	}
	return o.prices[i], nil
}

type fakeExec struct {
	mu    sync.Mutex
	fail  error
	buys  int
	sells int
}

func (f *fakeExec) Buy(_ context.Context, _, _ string, _ float64, _ float64) (executor.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return executor.Receipt{}, f.fail
	}
	f.buys++
	return executor.Receipt{Reference: "test-buy"}, nil
}

func (f *fakeExec) Sell(_ context.Context, _, _ string, _ float64, _ float64) (executor.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return executor.Receipt{}, f.fail
	}
	f.sells++
	return executor.Receipt{Reference: "test-sell"}, nil
}

type fixedApprover struct {
	outcome approval.Outcome
	calls   int
}

func (a *fixedApprover) Request(_, _ string, _, _ float64) approval.Outcome {
	a.calls++
	return a.outcome
}

type captureSink struct {
	mu   sync.Mutex
	recs []TradeRecord
}

func (c *captureSink) Record(_ context.Context, rec TradeRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.recs)
}

func testConfig() Config {
	return Config{
		UserID:         "u1",
		TokenMint:      "So11111111111111111111111111111111111111112",
		UpPct:          5,
		DownPct:        3,
		TradeAmountUSD: 100,
		Parts:          4,
		Mode:           ModeAutomatic,
		Network:        NetworkDevnet,
	}
}

func testParams() Params {
	return Params{
		PollInterval:  time.Millisecond,
		OracleTimeout: time.Second,
		HistoryLimit:  20,
	}
}

func newTestSession(t *testing.T, cfg Config, deps Deps) *Session {
	t.Helper()
	if deps.Executor == nil {
		deps.Executor = &fakeExec{}
	}
	if deps.Oracle == nil {
		deps.Oracle = &scriptedOracle{prices: []float64{100}}
	}
	s, err := NewSession(cfg, testParams(), deps)
	require.NoError(t, err)
	return s
}

func TestConfigValidate(t *testing.T) {
	valid := testConfig()
	require.NoError(t, valid.Validate())
	assert.Equal(t, 25.0, valid.PartSize())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty user", func(c *Config) { c.UserID = " " }},
		{"empty token", func(c *Config) { c.TokenMint = "" }},
		{"zero up pct", func(c *Config) { c.UpPct = 0 }},
		{"negative down pct", func(c *Config) { c.DownPct = -1 }},
		{"zero amount", func(c *Config) { c.TradeAmountUSD = 0 }},
		{"zero parts", func(c *Config) { c.Parts = 0 }},
		{"bad mode", func(c *Config) { c.Mode = "manual" }},
		{"bad network", func(c *Config) { c.Network = "localnet" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := testConfig()
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestBuyThenSellScenario(t *testing.T) {
	oracle := &scriptedOracle{prices: []float64{96, 100.8}}
	exec := &fakeExec{}
	sink := &captureSink{}
	s := newTestSession(t, testConfig(), Deps{Oracle: oracle, Executor: exec, Sink: sink})
	s.st.referencePrice = 100
	s.st.running = true

	// 96 <= 100*(1-3/100)=97: buy one part.
	res, err := s.tick()
	require.NoError(t, err)
	assert.Equal(t, tickOK, res)

	snap := s.Status()
	assert.Equal(t, 3, snap.BuyPool)
	assert.Equal(t, 1, snap.SellPool)
	assert.Equal(t, 96.0, snap.ReferencePrice)
	assert.Equal(t, 25.0, snap.Position)
	assert.Equal(t, 96.0, snap.AvgCost)
	assert.Equal(t, ActionBuy, snap.LastAction)
	require.Len(t, snap.History, 1)
	assert.Nil(t, snap.History[0].PnL)
	assert.Equal(t, TradeCompleted, snap.History[0].Status)

	// 100.8 >= 96*(1+5/100)=100.8: sell it back.
	res, err = s.tick()
	require.NoError(t, err)
	assert.Equal(t, tickOK, res)

	snap = s.Status()
	assert.Equal(t, 4, snap.BuyPool)
	assert.Equal(t, 0, snap.SellPool)
	assert.Equal(t, 100.8, snap.ReferencePrice)
	assert.Equal(t, 0.0, snap.Position)
	assert.Equal(t, 0.0, snap.AvgCost)
	assert.InDelta(t, (100.8-96)*25, snap.TotalProfit, 1e-9)
	require.Len(t, snap.History, 2)
	require.NotNil(t, snap.History[1].PnL)
	assert.InDelta(t, (100.8-96)*25, *snap.History[1].PnL, 1e-9)
	assert.Equal(t, 96.0, snap.History[1].ReferenceBefore)

	assert.Equal(t, 1, exec.buys)
	assert.Equal(t, 1, exec.sells)
	require.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestSellFeeDeduction(t *testing.T) {
	oracle := &scriptedOracle{prices: []float64{105}}
	s := newTestSession(t, testConfig(), Deps{Oracle: oracle})
	s.params.FixedFeeUSD = 0.5
	s.st.referencePrice = 100
	s.st.buyPool = 3
	s.st.sellPool = 1
	s.st.position = 25
	s.st.avgCost = 100

	res, err := s.tick()
	require.NoError(t, err)
	assert.Equal(t, tickOK, res)
	assert.InDelta(t, (105.0-100.0)*25-0.5, s.Status().TotalProfit, 1e-9)
}

func TestPartConservation(t *testing.T) {
	oracle := &scriptedOracle{prices: []float64{96, 92, 89, 95, 100, 110, 120, 130}}
	s := newTestSession(t, testConfig(), Deps{Oracle: oracle})
	s.st.referencePrice = 100

	for i := 0; i < 8; i++ {
		_, err := s.tick()
		require.NoError(t, err)
		snap := s.Status()
		assert.Equal(t, s.cfg.Parts, snap.BuyPool+snap.SellPool, "tick %d", i)
		assert.GreaterOrEqual(t, snap.BuyPool, 0)
		assert.GreaterOrEqual(t, snap.SellPool, 0)
	}
}

func TestNoMutationOnExecutionFailure(t *testing.T) {
	oracle := &scriptedOracle{prices: []float64{96}}
	exec := &fakeExec{fail: errors.New("insufficient balance")}
	s := newTestSession(t, testConfig(), Deps{Oracle: oracle, Executor: exec})
	s.st.referencePrice = 100

	before := s.Status()
	res, err := s.tick()
	assert.Equal(t, tickRetry, res)
	assert.Error(t, err)

	after := s.Status()
	assert.Equal(t, before.BuyPool, after.BuyPool)
	assert.Equal(t, before.SellPool, after.SellPool)
	assert.Equal(t, before.Position, after.Position)
	assert.Equal(t, before.AvgCost, after.AvgCost)
	assert.Equal(t, before.ReferencePrice, after.ReferencePrice)
	assert.Equal(t, before.TotalProfit, after.TotalProfit)
	assert.Empty(t, after.History)
}

func TestGatedRejectionLeavesFailedMarker(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = ModeGated
	cfg.Network = NetworkMainnet
	oracle := &scriptedOracle{prices: []float64{96}}
	exec := &fakeExec{}
	appr := &fixedApprover{outcome: approval.OutcomeRejected}
	s := newTestSession(t, cfg, Deps{Oracle: oracle, Executor: exec, Approvals: appr})
	s.st.referencePrice = 100

	res, err := s.tick()
	require.NoError(t, err)
	assert.Equal(t, tickOK, res)
	assert.Equal(t, 1, appr.calls)
	assert.Equal(t, 0, exec.buys)

	snap := s.Status()
	assert.Equal(t, 4, snap.BuyPool)
	assert.Equal(t, 0, snap.SellPool)
	assert.Equal(t, 100.0, snap.ReferencePrice)
	require.Len(t, snap.History, 1)
	assert.Equal(t, TradeFailed, snap.History[0].Status)
	assert.Equal(t, ActionBuy, snap.History[0].Action)
}

func TestGatedApprovalExecutes(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = ModeGated
	cfg.Network = NetworkMainnet
	oracle := &scriptedOracle{prices: []float64{96}}
	exec := &fakeExec{}
	appr := &fixedApprover{outcome: approval.OutcomeApproved}
	s := newTestSession(t, cfg, Deps{Oracle: oracle, Executor: exec, Approvals: appr})
	s.st.referencePrice = 100

	res, err := s.tick()
	require.NoError(t, err)
	assert.Equal(t, tickOK, res)
	assert.Equal(t, 1, exec.buys)
	assert.Equal(t, 96.0, s.Status().ReferencePrice)
}

func TestGatedSkippedOffMainnet(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = ModeGated
	cfg.Network = NetworkDevnet
	oracle := &scriptedOracle{prices: []float64{96}}
	exec := &fakeExec{}
	appr := &fixedApprover{outcome: approval.OutcomeRejected}
	s := newTestSession(t, cfg, Deps{Oracle: oracle, Executor: exec, Approvals: appr})
	s.st.referencePrice = 100

	_, err := s.tick()
	require.NoError(t, err)
	assert.Equal(t, 0, appr.calls)
	assert.Equal(t, 1, exec.buys)
}

func TestHistoryCapEvictsOldest(t *testing.T) {
	s := newTestSession(t, testConfig(), Deps{})
	for i := 0; i < 25; i++ {
		s.recordRefusal(ActionBuy, float64(i), 100, 25)
	}
	snap := s.Status()
	require.Len(t, snap.History, 20)
	assert.Equal(t, 5.0, snap.History[0].Price)
	assert.Equal(t, 24.0, snap.History[19].Price)
}

func TestOracleFailureReusesLastPrice(t *testing.T) {
	oracle := &scriptedOracle{errs: []error{errors.New("timeout")}}
	exec := &fakeExec{}
	s := newTestSession(t, testConfig(), Deps{Oracle: oracle, Executor: exec})
	s.st.referencePrice = 100
	s.st.currentPrice = 96

	res, err := s.tick()
	require.NoError(t, err)
	assert.Equal(t, tickOK, res)
	assert.Equal(t, 1, exec.buys)
}

func TestOracleFailureNoPriorPriceSkips(t *testing.T) {
	oracle := &scriptedOracle{}
	s := newTestSession(t, testConfig(), Deps{Oracle: oracle})
	s.st.referencePrice = 100

	for i := 0; i < 3; i++ {
		res, err := s.tick()
		assert.Equal(t, tickRetry, res)
		assert.Error(t, err)
	}
	assert.Equal(t, 0.0, s.Status().CurrentPrice)
}

func TestSeedFallbackReference(t *testing.T) {
	oracle := &scriptedOracle{}
	s := newTestSession(t, testConfig(), Deps{Oracle: oracle})
	s.params.FallbackRefPrice = 100
	s.seedReference()

	snap := s.Status()
	assert.Equal(t, 100.0, snap.ReferencePrice)
	assert.Equal(t, 0.0, snap.CurrentPrice)
}

func TestPoolImbalanceIsFatal(t *testing.T) {
	oracle := &scriptedOracle{prices: []float64{100}}
	s := newTestSession(t, testConfig(), Deps{Oracle: oracle})
	s.st.referencePrice = 100
	s.st.buyPool = 4
	s.st.sellPool = 4

	res, err := s.tick()
	assert.Equal(t, tickFatal, res)
	assert.Error(t, err)
}

func TestStartStopJoins(t *testing.T) {
	oracle := &scriptedOracle{prices: []float64{100}}
	s := newTestSession(t, testConfig(), Deps{Oracle: oracle})

	s.Start()
	require.Eventually(t, func() bool { return s.Status().CurrentPrice == 100 }, time.Second, time.Millisecond)
	assert.True(t, s.Status().Running)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not join the session loop")
	}
	assert.False(t, s.Status().Running)

	select {
	case <-s.Done():
	default:
		t.Fatal("Done channel not closed after Stop")
	}
}

func TestStopWithoutStartReturns(t *testing.T) {
	s := newTestSession(t, testConfig(), Deps{})

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a session that was never started")
	}

	select {
	case <-s.Done():
	default:
		t.Fatal("Done channel not closed")
	}
	assert.False(t, s.Status().Running)
}

func TestTickPanicIsRetryable(t *testing.T) {
	s := newTestSession(t, testConfig(), Deps{Oracle: panicOracle{}})
	s.st.referencePrice = 100
	res, err := s.safeTick()
	assert.Equal(t, tickRetry, res)
	assert.Error(t, err)
}

type panicOracle struct{}

func (panicOracle) ResolvePrice(context.Context, string, string, int64) (float64, error) {
	panic(fmt.Errorf("boom"))
}
