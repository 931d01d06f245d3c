package config

import "ladderbot/internal/token"

const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9992"
	defaultAppLogPath  = ""

	defaultQuoteAPIURL   = "https://lite-api.jup.ag/swap/v1/quote"
	defaultOracleTimeout = 15
	defaultSlippageBps   = 50
	// One whole unit of a 9-decimal token.
	defaultQuoteNotional = 1_000_000_000

	defaultPollIntervalMS    = 5000
	defaultApprovalPollMS    = 500
	defaultApprovalTimeoutMS = 30000
	defaultHistoryLimit      = 20
	defaultFallbackRefPrice  = 100

	defaultSwapAPIURL      = "https://api.jup.ag/swap/v1/swap"
	defaultPriorityFeeMax  = 100_000
	defaultExecutorTimeout = 30

	defaultTradesPath   = "data/trades.db"
	defaultEventLogPath = "data/events.db"

	defaultMainnetRPC = "https://api.mainnet-beta.solana.com"
	defaultDevnetRPC  = "https://api.devnet.solana.com"
	defaultTestnetRPC = "https://api.testnet.solana.com"
)

func (c *Config) applyDefaults() {
	c.App.applyDefaults()
	c.Oracle.applyDefaults()
	c.Engine.applyDefaults()
	c.Executor.applyDefaults()
	c.Store.applyDefaults()
	c.Solana.applyDefaults()
}

func (a *AppConfig) applyDefaults() {
	if a.Env == "" {
		a.Env = defaultAppEnv
	}
	if a.LogLevel == "" {
		a.LogLevel = defaultAppLogLevel
	}
	if a.HTTPAddr == "" {
		a.HTTPAddr = defaultAppHTTPAddr
	}
	if a.LogPath == "" {
		a.LogPath = defaultAppLogPath
	}
}

func (o *OracleConfig) applyDefaults() {
	if o.QuoteAPIURL == "" {
		o.QuoteAPIURL = defaultQuoteAPIURL
	}
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = defaultOracleTimeout
	}
	if o.SlippageBps <= 0 {
		o.SlippageBps = defaultSlippageBps
	}
	if o.QuoteMint == "" {
		o.QuoteMint = token.USDCMint
	}
	if o.BridgeMint == "" {
		o.BridgeMint = token.SOLMint
	}
	if o.QuoteNotional <= 0 {
		o.QuoteNotional = defaultQuoteNotional
	}
}

func (e *EngineConfig) applyDefaults() {
	if e.PollIntervalMS <= 0 {
		e.PollIntervalMS = defaultPollIntervalMS
	}
	if e.ApprovalPollMS <= 0 {
		e.ApprovalPollMS = defaultApprovalPollMS
	}
	if e.ApprovalTimeoutMS <= 0 {
		e.ApprovalTimeoutMS = defaultApprovalTimeoutMS
	}
	if e.FixedFeeUSD < 0 {
		e.FixedFeeUSD = 0
	}
	if e.HistoryLimit <= 0 {
		e.HistoryLimit = defaultHistoryLimit
	}
	if e.FallbackRefPrice <= 0 {
		e.FallbackRefPrice = defaultFallbackRefPrice
	}
	if e.OracleTimeoutSecond <= 0 {
		e.OracleTimeoutSecond = defaultOracleTimeout
	}
}

func (e *ExecutorConfig) applyDefaults() {
	if e.SwapAPIURL == "" {
		e.SwapAPIURL = defaultSwapAPIURL
	}
	if e.PriorityFeeMaxLamport <= 0 {
		e.PriorityFeeMaxLamport = defaultPriorityFeeMax
	}
	if e.TimeoutSeconds <= 0 {
		e.TimeoutSeconds = defaultExecutorTimeout
	}
}

func (s *StoreConfig) applyDefaults() {
	if s.TradesPath == "" {
		s.TradesPath = defaultTradesPath
	}
	if s.EventLogPath == "" {
		s.EventLogPath = defaultEventLogPath
	}
}

func (s *SolanaConfig) applyDefaults() {
	if s.MainnetRPC == "" {
		s.MainnetRPC = defaultMainnetRPC
	}
	if s.DevnetRPC == "" {
		s.DevnetRPC = defaultDevnetRPC
	}
	if s.TestnetRPC == "" {
		s.TestnetRPC = defaultTestnetRPC
	}
}
