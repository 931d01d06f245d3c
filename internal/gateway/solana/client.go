// Package solana is a minimal JSON-RPC client for wallet balance reads.
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

const lamportsPerSOL = 1_000_000_000

type Client struct {
	rpcURL     string
	httpClient *http.Client
}

func NewClient(rpcURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		rpcURL:     rpcURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SOLBalance returns the address's native balance in SOL.
func (c *Client) SOLBalance(ctx context.Context, address string) (float64, error) {
	res, err := c.call(ctx, "getBalance", []interface{}{address})
	if err != nil {
		return 0, err
	}
	lamports := gjson.GetBytes(res, "result.value")
	if !lamports.Exists() {
		return 0, fmt.Errorf("solana: getBalance returned no value for %s", address)
	}
	return lamports.Float() / lamportsPerSOL, nil
}

// TokenBalance sums the owner's SPL token accounts for one mint and returns
// the UI amount.
func (c *Client) TokenBalance(ctx context.Context, owner, mint string) (float64, error) {
	params := []interface{}{
		owner,
		map[string]string{"mint": mint},
		map[string]string{"encoding": "jsonParsed"},
	}
	res, err := c.call(ctx, "getTokenAccountsByOwner", params)
	if err != nil {
		return 0, err
	}
	total := 0.0
	accounts := gjson.GetBytes(res, "result.value")
	accounts.ForEach(func(_, acct gjson.Result) bool {
		total += acct.Get("account.data.parsed.info.tokenAmount.uiAmount").Float()
		return true
	})
	return total, nil
}

func (c *Client) call(ctx context.Context, method string, params []interface{}) ([]byte, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("solana: %s failed: %w", method, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("solana: %s returned status %d", method, resp.StatusCode)
	}
	if rpcErr := gjson.GetBytes(body, "error.message"); rpcErr.Exists() {
		return nil, fmt.Errorf("solana: %s rpc error: %s", method, rpcErr.String())
	}
	return body, nil
}
