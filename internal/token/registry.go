// Package token maps SPL mint addresses to display symbols and decimal
// precision. The built-in set covers the mints the bot trades out of the box;
// an optional YAML file can extend or override it at runtime.
package token

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"ladderbot/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	// SOLMint is the wrapped SOL mint, also used as the bridge asset for
	// two-leg price routing.
	SOLMint  = "So11111111111111111111111111111111111111112"
	USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDTMint = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

// DefaultDecimals applies to mints the registry does not know. Most SPL
// tokens on mainnet use 6.
const DefaultDecimals = 6

// Info describes one known token.
type Info struct {
	Symbol   string `mapstructure:"symbol" yaml:"symbol"`
	Name     string `mapstructure:"name" yaml:"name"`
	Decimals int    `mapstructure:"decimals" yaml:"decimals"`
}

type fileConfig struct {
	Tokens map[string]Info `mapstructure:"tokens" yaml:"tokens"`
}

func builtinTokens() map[string]Info {
	return map[string]Info{
		SOLMint:  {Symbol: "SOL", Name: "Solana", Decimals: 9},
		USDCMint: {Symbol: "USDC", Name: "USD Coin", Decimals: 6},
		USDTMint: {Symbol: "USDT", Name: "Tether USD", Decimals: 6},
		"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": {Symbol: "BONK", Name: "Bonk", Decimals: 5},
		"4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R": {Symbol: "RAY", Name: "Raydium", Decimals: 6},
		"JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN":  {Symbol: "JUP", Name: "Jupiter", Decimals: 6},
		"mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So":  {Symbol: "mSOL", Name: "Marinade Staked SOL", Decimals: 9},
		"7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj": {Symbol: "stSOL", Name: "Lido Staked SOL", Decimals: 9},
		"HZ1JovNiVvGrGNiiYvEozEVgZ58xaU3RKwX8eACQBCt3": {Symbol: "PYTH", Name: "Pyth Network", Decimals: 6},
		"EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm": {Symbol: "WIF", Name: "dogwifhat", Decimals: 6},
		"jtojtomepa8beP8AuQc6eXt5FriJwfFMwQx2v2f9mCL":  {Symbol: "JTO", Name: "Jito", Decimals: 9},
		"orcaEKTdK7LKz57vaAYr9QeNsVEPfiu6QeMU1kektZE":  {Symbol: "ORCA", Name: "Orca", Decimals: 6},
		"7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs": {Symbol: "ETH", Name: "Wrapped Ether (Wormhole)", Decimals: 8},
		"3NZ9JMVBmGAqocybic2c7LQCJScmgsAZ6vQqTDzcqmJh": {Symbol: "WBTC", Name: "Wrapped BTC (Wormhole)", Decimals: 8},
	}
}

// Registry serves token metadata lookups. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	tokens   map[string]Info
	loadedAt time.Time
}

// NewRegistry returns a registry with the built-in token set.
func NewRegistry() *Registry {
	return &Registry{tokens: builtinTokens(), loadedAt: time.Now()}
}

// NewRegistryFromFile loads a YAML token file on top of the built-in set and
// watches it for changes.
func NewRegistryFromFile(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("token registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read token file failed: %w", err)
	}
	r := NewRegistry()
	if err := r.reload(v); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(v); err != nil {
			logger.Errorf("token registry reload failed: %v", err)
		}
	})
	v.WatchConfig()
	return r, nil
}

func (r *Registry) reload(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	var cfg fileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parse token file failed: %w", err)
	}
	merged := builtinTokens()
	for mint, info := range cfg.Tokens {
		mint = strings.TrimSpace(mint)
		if mint == "" || strings.TrimSpace(info.Symbol) == "" {
			continue
		}
		if info.Decimals <= 0 {
			info.Decimals = DefaultDecimals
		}
		merged[mint] = info
	}
	r.mu.Lock()
	r.tokens = merged
	r.loadedAt = time.Now()
	r.mu.Unlock()
	logger.Infof("token registry loaded: %d tokens", len(merged))
	return nil
}

// Lookup returns metadata for a mint, reporting whether it is known.
func (r *Registry) Lookup(mint string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.tokens[strings.TrimSpace(mint)]
	return info, ok
}

// Symbol returns a display symbol for a mint. Unknown mints get a truncated
// address, matching how unknown balances are shown.
func (r *Registry) Symbol(mint string) string {
	if info, ok := r.Lookup(mint); ok {
		return info.Symbol
	}
	mint = strings.TrimSpace(mint)
	if len(mint) > 8 {
		return mint[:8] + "..."
	}
	return mint
}

// Decimals returns the decimal precision for a mint, falling back to
// DefaultDecimals for unknown mints.
func (r *Registry) Decimals(mint string) int {
	if info, ok := r.Lookup(mint); ok && info.Decimals > 0 {
		return info.Decimals
	}
	return DefaultDecimals
}

// All returns a copy of the known token set keyed by mint.
func (r *Registry) All() map[string]Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Info, len(r.tokens))
	for mint, info := range r.tokens {
		out[mint] = info
	}
	return out
}
