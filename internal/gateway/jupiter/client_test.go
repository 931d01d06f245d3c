package jupiter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetQuoteParsesAmounts(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"inputMint":   r.URL.Query().Get("inputMint"),
			"outputMint":  r.URL.Query().Get("outputMint"),
			"amount":      r.URL.Query().Get("amount"),
			"swapMode":    r.URL.Query().Get("swapMode"),
			"slippageBps": r.URL.Query().Get("slippageBps"),
		}
		w.Write([]byte(`{"inAmount":"1000000000","outAmount":"142500000","routePlan":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{QuoteURL: srv.URL, SlippageBps: 75})
	q, err := c.GetQuote(context.Background(), "MINTA", "MINTB", 1_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000), q.InAmount)
	assert.Equal(t, int64(142_500_000), q.OutAmount)

	assert.Equal(t, "MINTA", gotQuery["inputMint"])
	assert.Equal(t, "MINTB", gotQuery["outputMint"])
	assert.Equal(t, "1000000000", gotQuery["amount"])
	assert.Equal(t, "ExactIn", gotQuery["swapMode"])
	assert.Equal(t, "75", gotQuery["slippageBps"])
}

func TestGetQuoteSendsAPIKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		w.Write([]byte(`{"inAmount":"1","outAmount":"1"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{QuoteURL: srv.URL, APIKey: "secret"})
	_, err := c.GetQuote(context.Background(), "A", "B", 1)
	require.NoError(t, err)
	assert.Equal(t, "secret", gotKey)
}

func TestGetQuoteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Could not find any route"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(Config{QuoteURL: srv.URL})
	_, err := c.GetQuote(context.Background(), "A", "B", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestGetQuoteBadPayload(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing fields", `{"routePlan":[]}`},
		{"zero amounts", `{"inAmount":"0","outAmount":"0"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(Config{QuoteURL: srv.URL})
			_, err := c.GetQuote(context.Background(), "A", "B", 1)
			require.ErrorIs(t, err, ErrBadQuote)
		})
	}
}

func TestGetQuoteRejectsNonPositiveAmount(t *testing.T) {
	c := NewClient(Config{QuoteURL: "http://localhost:0"})
	_, err := c.GetQuote(context.Background(), "A", "B", 0)
	require.Error(t, err)
}

func TestBuildSwapEchoesQuote(t *testing.T) {
	quoteBody := []byte(`{"inAmount":"5","outAmount":"10","routePlan":[{"swapInfo":{}}]}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/quote" {
			w.Write(quoteBody)
			return
		}
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"userPublicKey":"wallet1"`)
		assert.Contains(t, string(body), `"routePlan"`)
		w.Write([]byte(`{"swapTransaction":"dGVzdA=="}`))
	}))
	defer srv.Close()

	c := NewClient(Config{QuoteURL: srv.URL + "/quote", SwapURL: srv.URL + "/swap"})
	raw, _, err := c.GetQuoteRaw(context.Background(), "A", "B", 5)
	require.NoError(t, err)

	tx, err := c.BuildSwap(context.Background(), "wallet1", raw, 50_000)
	require.NoError(t, err)
	assert.Equal(t, "dGVzdA==", tx)
}

func TestBuildSwapRequiresConfig(t *testing.T) {
	c := NewClient(Config{QuoteURL: "http://localhost:0"})
	_, err := c.BuildSwap(context.Background(), "wallet1", []byte(`{}`), 0)
	require.Error(t, err)

	c = NewClient(Config{QuoteURL: "http://localhost:0", SwapURL: "http://localhost:0"})
	_, err = c.BuildSwap(context.Background(), "", []byte(`{}`), 0)
	require.Error(t, err)
}
