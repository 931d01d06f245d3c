package engine

import (
	"context"
	"time"

	"ladderbot/internal/approval"
)

type Action string

const (
	ActionNone Action = "none"
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

type TradeStatus string

const (
	TradeCompleted TradeStatus = "completed"
	TradeFailed    TradeStatus = "failed"
)

// TradeRecord is one executed (or approval-refused) trade. Immutable once
// appended to the session history.
type TradeRecord struct {
	UserID          string      `json:"-"`
	Timestamp       time.Time   `json:"timestamp"`
	Action          Action      `json:"action"`
	Token           string      `json:"token"`
	Price           float64     `json:"price"`
	AmountUSD       float64     `json:"amountUsd"`
	ReferenceBefore float64     `json:"referencePriceBefore"`
	PnL             *float64    `json:"pnl"`
	PartIndex       int         `json:"partIndex"`
	Status          TradeStatus `json:"status"`
}

// Snapshot is the read-only view returned by Status. It is a copy; mutating
// it has no effect on the session.
type Snapshot struct {
	UserID         string        `json:"userId"`
	Token          string        `json:"token"`
	Running        bool          `json:"running"`
	Mode           Mode          `json:"tradingMode"`
	Network        Network       `json:"network"`
	ReferencePrice float64       `json:"referencePrice"`
	CurrentPrice   float64       `json:"currentPrice"`
	LastAction     Action        `json:"lastAction"`
	Position       float64       `json:"position"`
	AvgCost        float64       `json:"avgCost"`
	TotalProfit    float64       `json:"totalProfit"`
	BuyPool        int           `json:"buyPool"`
	SellPool       int           `json:"sellPool"`
	Parts          int           `json:"parts"`
	PartSize       float64       `json:"partSize"`
	History        []TradeRecord `json:"history"`
	StartedAt      time.Time     `json:"startedAt"`
}

// PriceOracle is the price resolution collaborator. *oracle.Adapter
// satisfies it.
type PriceOracle interface {
	ResolvePrice(ctx context.Context, inputMint, outputMint string, referenceAmount int64) (float64, error)
}

// ApprovalGate blocks a decided action until a reviewer answers or the
// request times out.
type ApprovalGate interface {
	Request(action, tokenMint string, amountUSD, price float64) approval.Outcome
}

// TradeSink receives completed trade records. Sink failures are logged and
// never roll back session state.
type TradeSink interface {
	Record(ctx context.Context, rec TradeRecord) error
}

// tickResult classifies one loop iteration. Retryable errors leave state
// untouched and the loop sleeps as usual; a fatal result stops the session.
type tickResult int

const (
	tickOK tickResult = iota
	tickRetry
	tickFatal
)
