package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ladderbot/internal/approval"
	"ladderbot/internal/engine"
	"ladderbot/internal/logger"
	"ladderbot/internal/store/eventlog"
	"ladderbot/internal/token"

	"github.com/gin-gonic/gin"
)

// SessionService is the session control surface; *manager.Manager
// implements it.
type SessionService interface {
	Start(cfg engine.Config) (engine.Snapshot, error)
	Stop(userID string) error
	Status(userID string) (engine.Snapshot, error)
	PendingApprovals(userID string) ([]approval.Pending, error)
	Approve(userID, approvalID string) error
	Reject(userID, approvalID string) error
}

// TradeReader serves the persisted trade history.
type TradeReader interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]engine.TradeRecord, error)
	ListByDay(ctx context.Context, userID string, day time.Time) ([]engine.TradeRecord, error)
}

// EventReader serves the session audit trail.
type EventReader interface {
	Recent(ctx context.Context, userID string, limit int) ([]eventlog.EventRecord, error)
}

// BalanceReader reads wallet balances from one network's RPC.
type BalanceReader interface {
	SOLBalance(ctx context.Context, address string) (float64, error)
	TokenBalance(ctx context.Context, owner, mint string) (float64, error)
}

type Router struct {
	Sessions SessionService
	Oracle   engine.PriceOracle
	Tokens   *token.Registry
	Trades   TradeReader
	Events   EventReader
	// Balances returns a reader for the named network, or nil when wallet
	// reads are not configured.
	Balances func(network string) BalanceReader

	QuoteMint     string
	QuoteNotional int64
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/sessions/:user/start", r.handleStart)
	group.POST("/sessions/:user/stop", r.handleStop)
	group.GET("/sessions/:user/status", r.handleStatus)
	group.GET("/sessions/:user/approvals", r.handleApprovals)
	group.POST("/sessions/:user/approvals/:id/approve", r.handleApprove)
	group.POST("/sessions/:user/approvals/:id/reject", r.handleReject)
	group.GET("/tokens", r.handleTokens)
	group.GET("/price", r.handlePrice)
	if r.Trades != nil {
		group.GET("/trades/:user", r.handleTrades)
	}
	if r.Events != nil {
		group.GET("/events/:user", r.handleEvents)
	}
	if r.Balances != nil {
		group.GET("/wallet/:address/balance", r.handleWalletBalance)
	}
}

// StartRequest is the session start payload. Field names match what the web
// client submits.
type StartRequest struct {
	UpPercentage   float64 `json:"upPercentage"`
	DownPercentage float64 `json:"downPercentage"`
	SelectedToken  string  `json:"selectedToken"`
	TradeAmount    float64 `json:"tradeAmount"`
	Parts          int     `json:"parts"`
	TradingMode    string  `json:"tradingMode"`
	Network        string  `json:"network"`
}

func (r *Router) handleStart(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	cfg := engine.Config{
		UserID:         c.Param("user"),
		TokenMint:      strings.TrimSpace(req.SelectedToken),
		UpPct:          req.UpPercentage,
		DownPct:        req.DownPercentage,
		TradeAmountUSD: req.TradeAmount,
		Parts:          req.Parts,
		Mode:           engine.Mode(req.TradingMode),
		Network:        engine.Network(req.Network),
	}
	if cfg.Mode == "" {
		cfg.Mode = engine.ModeAutomatic
	}
	if cfg.Network == "" {
		cfg.Network = engine.NetworkDevnet
	}
	snap, err := r.Sessions.Start(cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started", "session": snap})
}

func (r *Router) handleStop(c *gin.Context) {
	user := c.Param("user")
	if err := r.Sessions.Stop(user); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (r *Router) handleStatus(c *gin.Context) {
	snap, err := r.Sessions.Status(c.Param("user"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (r *Router) handleApprovals(c *gin.Context) {
	pending, err := r.Sessions.PendingApprovals(c.Param("user"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"approvals": pending})
}

func (r *Router) handleApprove(c *gin.Context) {
	if err := r.Sessions.Approve(c.Param("user"), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved"})
}

func (r *Router) handleReject(c *gin.Context) {
	if err := r.Sessions.Reject(c.Param("user"), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

func (r *Router) handleTokens(c *gin.Context) {
	type entry struct {
		Mint     string `json:"mint"`
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Decimals int    `json:"decimals"`
	}
	all := r.Tokens.All()
	out := make([]entry, 0, len(all))
	for mint, info := range all {
		out = append(out, entry{Mint: mint, Symbol: info.Symbol, Name: info.Name, Decimals: info.Decimals})
	}
	c.JSON(http.StatusOK, gin.H{"tokens": out})
}

// handlePrice resolves an ad-hoc price through the same fallback chain the
// engine uses.
func (r *Router) handlePrice(c *gin.Context) {
	mint := strings.TrimSpace(c.Query("token"))
	if mint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token query parameter is required"})
		return
	}
	vs := strings.TrimSpace(c.DefaultQuery("vs", r.QuoteMint))
	notional := r.QuoteNotional
	if notional <= 0 {
		notional = 1_000_000_000
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	price, err := r.Oracle.ResolvePrice(ctx, mint, vs, notional)
	if err != nil {
		logger.Warnf("[api] price resolution failed token=%s: %v", mint, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":  mint,
		"symbol": r.Tokens.Symbol(mint),
		"vs":     vs,
		"price":  price,
	})
}

func (r *Router) handleTrades(c *gin.Context) {
	user := c.Param("user")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if day := strings.TrimSpace(c.Query("day")); day != "" {
		t, err := time.Parse("2006-01-02", day)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "day must be YYYY-MM-DD"})
			return
		}
		trades, err := r.Trades.ListByDay(ctx, user, t)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"trades": trades})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	trades, err := r.Trades.ListByUser(ctx, user, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (r *Router) handleEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	events, err := r.Events.Recent(ctx, c.Param("user"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (r *Router) handleWalletBalance(c *gin.Context) {
	address := c.Param("address")
	network := c.DefaultQuery("network", string(engine.NetworkMainnet))
	reader := r.Balances(network)
	if reader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "wallet reads not configured for network " + network})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	sol, err := reader.SOLBalance(ctx, address)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	resp := gin.H{
		"address": address,
		"network": network,
		"sol":     sol,
	}
	if mint := strings.TrimSpace(c.DefaultQuery("mint", token.USDCMint)); mint != "" {
		bal, err := reader.TokenBalance(ctx, address, mint)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		resp[r.Tokens.Symbol(mint)] = bal
	}
	c.JSON(http.StatusOK, resp)
}
