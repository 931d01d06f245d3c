// Package jupiter is a thin client for the Jupiter swap quote API. It only
// covers what the price oracle needs: ExactIn quotes for a mint pair.
package jupiter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const defaultQuoteURL = "https://lite-api.jup.ag/swap/v1/quote"

// ErrBadQuote marks responses that came back 200 but are unusable
// (missing fields, non-positive amounts).
var ErrBadQuote = errors.New("jupiter: invalid quote payload")

// Quote is one ExactIn quote: raw integer amounts in each mint's native units.
type Quote struct {
	InAmount  int64
	OutAmount int64
}

type Config struct {
	QuoteURL    string
	SwapURL     string
	APIKey      string
	SlippageBps int
	Timeout     time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.QuoteURL) == "" {
		c.QuoteURL = defaultQuoteURL
	}
	if c.SlippageBps <= 0 {
		c.SlippageBps = 50
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	return c
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	final := cfg.withDefaults()
	return &Client{
		cfg:  final,
		http: &http.Client{Timeout: final.Timeout},
	}
}

// GetQuote requests an ExactIn quote for amount of inputMint against
// outputMint. Timeouts and connection failures come back as errors the caller
// can retry; they never panic or abort the polling loop.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount int64) (Quote, error) {
	_, q, err := c.GetQuoteRaw(ctx, inputMint, outputMint, amount)
	return q, err
}

// GetQuoteRaw is GetQuote but also returns the raw response body. The swap
// build endpoint wants the quote payload echoed back verbatim.
func (c *Client) GetQuoteRaw(ctx context.Context, inputMint, outputMint string, amount int64) ([]byte, Quote, error) {
	if amount <= 0 {
		return nil, Quote{}, fmt.Errorf("jupiter: quote amount must be > 0, got %d", amount)
	}

	params := url.Values{}
	params.Set("inputMint", inputMint)
	params.Set("outputMint", outputMint)
	params.Set("amount", strconv.FormatInt(amount, 10))
	params.Set("swapMode", "ExactIn")
	params.Set("slippageBps", strconv.Itoa(c.cfg.SlippageBps))
	params.Set("restrictIntermediateTokens", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.QuoteURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, Quote{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-api-key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, Quote{}, fmt.Errorf("jupiter: quote request timed out: %w", err)
		}
		return nil, Quote{}, fmt.Errorf("jupiter: quote request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, Quote{}, fmt.Errorf("jupiter: reading quote response failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return nil, Quote{}, fmt.Errorf("jupiter: quote API returned %d: %s", resp.StatusCode, truncate(msg, 200))
	}

	q, err := parseQuote(body)
	if err != nil {
		return nil, Quote{}, err
	}
	return body, q, nil
}

// parseQuote pulls inAmount/outAmount out of a quote response. The API
// returns both as JSON strings.
func parseQuote(body []byte) (Quote, error) {
	parsed := gjson.ParseBytes(body)
	inField := parsed.Get("inAmount")
	outField := parsed.Get("outAmount")
	if !inField.Exists() || !outField.Exists() {
		return Quote{}, fmt.Errorf("%w: missing inAmount/outAmount", ErrBadQuote)
	}
	in := inField.Int()
	out := outField.Int()
	if in <= 0 || out <= 0 {
		return Quote{}, fmt.Errorf("%w: non-positive amounts in=%d out=%d", ErrBadQuote, in, out)
	}
	return Quote{InAmount: in, OutAmount: out}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
