package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ladderbot/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *TradeStore {
	t.Helper()
	s, err := NewTradeStore(filepath.Join(t.TempDir(), "trades.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func rec(user string, action engine.Action, price float64, ts time.Time, pnl *float64) engine.TradeRecord {
	return engine.TradeRecord{
		UserID:          user,
		Timestamp:       ts,
		Action:          action,
		Token:           "So11111111111111111111111111111111111111112",
		Price:           price,
		AmountUSD:       25,
		ReferenceBefore: 100,
		PnL:             pnl,
		PartIndex:       1,
		Status:          engine.TradeCompleted,
	}
}

func TestRecordAndListByUser(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Record(ctx, rec("alice", engine.ActionBuy, 96, now.Add(-time.Minute), nil)))
	pnl := 120.0
	require.NoError(t, s.Record(ctx, rec("alice", engine.ActionSell, 100.8, now, &pnl)))
	require.NoError(t, s.Record(ctx, rec("bob", engine.ActionBuy, 50, now, nil)))

	got, err := s.ListByUser(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, engine.ActionSell, got[0].Action)
	require.NotNil(t, got[0].PnL)
	assert.Equal(t, 120.0, *got[0].PnL)
	assert.Equal(t, engine.ActionBuy, got[1].Action)
	assert.Nil(t, got[1].PnL)
}

func TestListByUserLimit(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, rec("alice", engine.ActionBuy, float64(90+i), time.Now().Add(time.Duration(i)*time.Second), nil)))
	}
	got, err := s.ListByUser(ctx, "alice", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 94.0, got[0].Price)
}

func TestListByDay(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, rec("alice", engine.ActionBuy, 96, day, nil)))
	require.NoError(t, s.Record(ctx, rec("alice", engine.ActionBuy, 95, day.Add(-48*time.Hour), nil)))

	got, err := s.ListByDay(ctx, "alice", day)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 96.0, got[0].Price)
}

func TestTotalRealizedPnL(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now()

	total, err := s.TotalRealizedPnL(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, total)

	p1, p2 := 120.0, -30.0
	require.NoError(t, s.Record(ctx, rec("alice", engine.ActionSell, 100.8, now, &p1)))
	require.NoError(t, s.Record(ctx, rec("alice", engine.ActionSell, 98, now, &p2)))
	require.NoError(t, s.Record(ctx, rec("alice", engine.ActionBuy, 96, now, nil)))

	total, err = s.TotalRealizedPnL(ctx, "alice")
	require.NoError(t, err)
	assert.InDelta(t, 90.0, total, 1e-9)
}
