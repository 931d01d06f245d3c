package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// swapRequest mirrors the swap build API body. quoteResponse is the quote
// payload echoed back verbatim.
type swapRequest struct {
	UserPublicKey             string          `json:"userPublicKey"`
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports priorityFee     `json:"prioritizationFeeLamports"`
}

type priorityFee struct {
	PriorityLevelWithMaxLamports priorityLevel `json:"priorityLevelWithMaxLamports"`
}

type priorityLevel struct {
	PriorityLevel string `json:"priorityLevel"`
	MaxLamports   int64  `json:"maxLamports"`
	Global        bool   `json:"global"`
}

// BuildSwap exchanges a quote for an unsigned swap transaction (base64).
// Signing and broadcast belong to the caller.
func (c *Client) BuildSwap(ctx context.Context, userPublicKey string, quoteResponse []byte, maxPriorityLamports int64) (string, error) {
	if strings.TrimSpace(c.cfg.SwapURL) == "" {
		return "", fmt.Errorf("jupiter: swap URL not configured")
	}
	if strings.TrimSpace(userPublicKey) == "" {
		return "", fmt.Errorf("jupiter: swap requires a user public key")
	}
	if maxPriorityLamports <= 0 {
		maxPriorityLamports = 100_000
	}

	body, err := json.Marshal(swapRequest{
		UserPublicKey:           userPublicKey,
		QuoteResponse:           quoteResponse,
		WrapAndUnwrapSol:        true,
		DynamicComputeUnitLimit: true,
		PrioritizationFeeLamports: priorityFee{
			PriorityLevelWithMaxLamports: priorityLevel{
				PriorityLevel: "medium",
				MaxLamports:   maxPriorityLamports,
			},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SwapURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-api-key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("jupiter: swap request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("jupiter: reading swap response failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("jupiter: swap API returned %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(respBody)), 200))
	}

	var parsed struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("jupiter: decoding swap response failed: %w", err)
	}
	if parsed.SwapTransaction == "" {
		return "", fmt.Errorf("jupiter: swap response missing swapTransaction")
	}
	return parsed.SwapTransaction, nil
}
