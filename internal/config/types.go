package config

// Config is the top-level configuration for ladderbot.
type Config struct {
	App      AppConfig      `toml:"app"`
	Oracle   OracleConfig   `toml:"oracle"`
	Engine   EngineConfig   `toml:"engine"`
	Executor ExecutorConfig `toml:"executor"`
	Store    StoreConfig    `toml:"store"`
	Solana   SolanaConfig   `toml:"solana"`
	Tokens   TokensConfig   `toml:"tokens"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// OracleConfig describes the Jupiter quote venue used for price resolution.
type OracleConfig struct {
	QuoteAPIURL    string `toml:"quote_api_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	SlippageBps    int    `toml:"slippage_bps"`
	// QuoteMint is the asset prices are expressed in (USDC by default).
	QuoteMint string `toml:"quote_mint"`
	// BridgeMint is the intermediate asset for two-leg routing (SOL).
	BridgeMint string `toml:"bridge_mint"`
	// QuoteNotional is the raw integer amount requested per quote.
	QuoteNotional int64 `toml:"quote_notional"`
}

// EngineConfig carries tuning knobs for the ladder loop. Intervals are
// milliseconds so tests can run the loop near-instantly.
type EngineConfig struct {
	PollIntervalMS      int     `toml:"poll_interval_ms"`
	ApprovalPollMS      int     `toml:"approval_poll_ms"`
	ApprovalTimeoutMS   int     `toml:"approval_timeout_ms"`
	FixedFeeUSD         float64 `toml:"fixed_fee_usd"`
	HistoryLimit        int     `toml:"history_limit"`
	FallbackRefPrice    float64 `toml:"fallback_reference_price"`
	OracleTimeoutSecond int     `toml:"oracle_timeout_seconds"`
}

// ExecutorConfig controls live execution. When LiveEnabled is false, mainnet
// sessions still run but every decided trade fails with a clear reason.
type ExecutorConfig struct {
	LiveEnabled           bool   `toml:"live_enabled"`
	SwapAPIURL            string `toml:"swap_api_url"`
	PriorityFeeMaxLamport int64  `toml:"priority_fee_max_lamports"`
	TimeoutSeconds        int    `toml:"timeout_seconds"`
}

type StoreConfig struct {
	TradesPath   string `toml:"trades_path"`
	EventLogPath string `toml:"event_log_path"`
}

// SolanaConfig holds the per-network RPC endpoints used for wallet balance
// lookups. HeliusAPIKey upgrades all three to Helius endpoints when set.
type SolanaConfig struct {
	MainnetRPC   string `toml:"mainnet_rpc"`
	DevnetRPC    string `toml:"devnet_rpc"`
	TestnetRPC   string `toml:"testnet_rpc"`
	HeliusAPIKey string `toml:"helius_api_key"`
}

// RPCURL picks the endpoint for a network name. Unknown names fall back to
// devnet. A Helius key routes mainnet through Helius.
func (s SolanaConfig) RPCURL(network string) string {
	switch network {
	case "mainnet":
		if s.HeliusAPIKey != "" {
			return "https://mainnet.helius-rpc.com/?api-key=" + s.HeliusAPIKey
		}
		return s.MainnetRPC
	case "testnet":
		return s.TestnetRPC
	default:
		return s.DevnetRPC
	}
}

type TokensConfig struct {
	// Path to an optional YAML token file layered over the built-in set.
	Path string `toml:"path"`
}
