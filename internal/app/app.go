// Package app assembles the trading service: config in, collaborators
// constructed, HTTP surface up.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ladderbot/internal/config"
	"ladderbot/internal/engine"
	"ladderbot/internal/executor"
	"ladderbot/internal/gateway/jupiter"
	"ladderbot/internal/gateway/solana"
	"ladderbot/internal/logger"
	"ladderbot/internal/manager"
	"ladderbot/internal/oracle"
	"ladderbot/internal/store/eventlog"
	"ladderbot/internal/store/gormstore"
	"ladderbot/internal/token"
	httpapi "ladderbot/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg    *config.Config
	mgr    *manager.Manager
	server *httpapi.Server
	trades *gormstore.TradeStore
	events *eventlog.Store
}

func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	tokens, err := buildTokenRegistry(cfg)
	if err != nil {
		return nil, err
	}

	jupClient := jupiter.NewClient(jupiter.Config{
		QuoteURL:    cfg.Oracle.QuoteAPIURL,
		SwapURL:     cfg.Executor.SwapAPIURL,
		APIKey:      cfg.Oracle.APIKey,
		SlippageBps: cfg.Oracle.SlippageBps,
		Timeout:     time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second,
	})
	priceOracle := oracle.NewAdapter(jupClient, tokens, cfg.Oracle.BridgeMint)

	trades, err := gormstore.NewTradeStore(cfg.Store.TradesPath)
	if err != nil {
		return nil, fmt.Errorf("open trade store: %w", err)
	}
	events, err := eventlog.NewStore(cfg.Store.EventLogPath)
	if err != nil {
		trades.Close()
		return nil, fmt.Errorf("open event log: %w", err)
	}

	var live executor.Executor
	if cfg.Executor.LiveEnabled {
		// Wallet custody is an external collaborator; without one wired in,
		// live trades fail with a clear reason instead of simulating.
		live = executor.NewLive(executor.LiveConfig{
			Client:              jupClient,
			Tokens:              tokens,
			Timeout:             time.Duration(cfg.Executor.TimeoutSeconds) * time.Second,
			MaxPriorityLamports: cfg.Executor.PriorityFeeMaxLamport,
		})
	}
	simulated := executor.NewSimulated(tokens.Symbol)

	mgr := manager.New(manager.Deps{
		Oracle:    priceOracle,
		Live:      live,
		Simulated: simulated,
		Sink:      trades,
		Events:    events,
	}, engine.Params{
		PollInterval:     time.Duration(cfg.Engine.PollIntervalMS) * time.Millisecond,
		OracleTimeout:    time.Duration(cfg.Engine.OracleTimeoutSecond) * time.Second,
		FixedFeeUSD:      cfg.Engine.FixedFeeUSD,
		HistoryLimit:     cfg.Engine.HistoryLimit,
		FallbackRefPrice: cfg.Engine.FallbackRefPrice,
		QuoteMint:        cfg.Oracle.QuoteMint,
		BridgeMint:       cfg.Oracle.BridgeMint,
		QuoteNotional:    cfg.Oracle.QuoteNotional,
	},
		time.Duration(cfg.Engine.ApprovalPollMS)*time.Millisecond,
		time.Duration(cfg.Engine.ApprovalTimeoutMS)*time.Millisecond,
	)

	server, err := httpapi.NewServer(httpapi.ServerConfig{
		Addr: cfg.App.HTTPAddr,
		Router: &httpapi.Router{
			Sessions:      mgr,
			Oracle:        priceOracle,
			Tokens:        tokens,
			Trades:        trades,
			Events:        events,
			Balances:      balanceReaders(cfg.Solana),
			QuoteMint:     cfg.Oracle.QuoteMint,
			QuoteNotional: cfg.Oracle.QuoteNotional,
		},
	})
	if err != nil {
		trades.Close()
		events.Close()
		return nil, err
	}

	return &App{cfg: cfg, mgr: mgr, server: server, trades: trades, events: events}, nil
}

func buildTokenRegistry(cfg *config.Config) (*token.Registry, error) {
	if cfg.Tokens.Path == "" {
		return token.NewRegistry(), nil
	}
	reg, err := token.NewRegistryFromFile(cfg.Tokens.Path)
	if err != nil {
		return nil, fmt.Errorf("load token file: %w", err)
	}
	return reg, nil
}

// balanceReaders lazily builds one RPC client per network.
func balanceReaders(cfg config.SolanaConfig) func(network string) httpapi.BalanceReader {
	var mu sync.Mutex
	clients := make(map[string]*solana.Client)
	return func(network string) httpapi.BalanceReader {
		url := cfg.RPCURL(network)
		if url == "" {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		if c, ok := clients[network]; ok {
			return c
		}
		c := solana.NewClient(url, 15*time.Second)
		clients[network] = c
		return c
	}
}

// Run serves HTTP until ctx is cancelled, then joins every session and
// closes the stores.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	logger.Infof("ladderbot listening on %s (env=%s)", a.server.Addr(), a.cfg.App.Env)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	err := group.Wait()

	a.mgr.StopAll()
	if cerr := a.trades.Close(); cerr != nil {
		logger.Warnf("trade store close failed: %v", cerr)
	}
	if cerr := a.events.Close(); cerr != nil {
		logger.Warnf("event log close failed: %v", cerr)
	}
	return err
}

// Manager exposes the session registry for test harnesses.
func (a *App) Manager() *manager.Manager {
	if a == nil {
		return nil
	}
	return a.mgr
}
