package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.Oracle.validate(); err != nil {
		return err
	}
	if err := c.Engine.validate(); err != nil {
		return err
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	return nil
}

func (o *OracleConfig) validate() error {
	if strings.TrimSpace(o.QuoteAPIURL) == "" {
		return fmt.Errorf("oracle.quote_api_url cannot be empty")
	}
	if strings.TrimSpace(o.QuoteMint) == "" {
		return fmt.Errorf("oracle.quote_mint cannot be empty")
	}
	if strings.TrimSpace(o.BridgeMint) == "" {
		return fmt.Errorf("oracle.bridge_mint cannot be empty")
	}
	if o.QuoteNotional <= 0 {
		return fmt.Errorf("oracle.quote_notional must be > 0")
	}
	return nil
}

func (e *EngineConfig) validate() error {
	if e.PollIntervalMS <= 0 {
		return fmt.Errorf("engine.poll_interval_ms must be > 0")
	}
	if e.ApprovalPollMS <= 0 {
		return fmt.Errorf("engine.approval_poll_ms must be > 0")
	}
	if e.ApprovalTimeoutMS < e.ApprovalPollMS {
		return fmt.Errorf("engine.approval_timeout_ms must be >= engine.approval_poll_ms")
	}
	if e.FixedFeeUSD < 0 {
		return fmt.Errorf("engine.fixed_fee_usd must be >= 0")
	}
	return nil
}

func (s *StoreConfig) validate() error {
	if strings.TrimSpace(s.TradesPath) == "" {
		return fmt.Errorf("store.trades_path cannot be empty")
	}
	return nil
}
