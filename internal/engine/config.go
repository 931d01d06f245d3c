package engine

import (
	"fmt"
	"strings"
)

type Mode string

const (
	ModeAutomatic Mode = "automatic"
	ModeGated     Mode = "gated"
)

type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkDevnet  Network = "devnet"
	NetworkTestnet Network = "testnet"
)

// Config is the immutable per-session strategy configuration supplied at
// start time. Runtime state lives on the Session.
type Config struct {
	UserID         string  `json:"userId"`
	TokenMint      string  `json:"selectedToken"`
	UpPct          float64 `json:"upPercentage"`
	DownPct        float64 `json:"downPercentage"`
	TradeAmountUSD float64 `json:"tradeAmount"`
	Parts          int     `json:"parts"`
	Mode           Mode    `json:"tradingMode"`
	Network        Network `json:"network"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(c.TokenMint) == "" {
		return fmt.Errorf("selected token is required")
	}
	if c.UpPct <= 0 {
		return fmt.Errorf("up percentage must be > 0, got %v", c.UpPct)
	}
	if c.DownPct <= 0 {
		return fmt.Errorf("down percentage must be > 0, got %v", c.DownPct)
	}
	if c.TradeAmountUSD <= 0 {
		return fmt.Errorf("trade amount must be > 0, got %v", c.TradeAmountUSD)
	}
	if c.Parts < 1 {
		return fmt.Errorf("parts must be >= 1, got %d", c.Parts)
	}
	switch c.Mode {
	case ModeAutomatic, ModeGated:
	default:
		return fmt.Errorf("unknown trading mode %q", c.Mode)
	}
	switch c.Network {
	case NetworkMainnet, NetworkDevnet, NetworkTestnet:
	default:
		return fmt.Errorf("unknown network %q", c.Network)
	}
	return nil
}

// PartSize is the constant USD notional of one ladder part.
func (c Config) PartSize() float64 {
	return c.TradeAmountUSD / float64(c.Parts)
}
