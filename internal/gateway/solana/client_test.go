package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func rpcServer(t *testing.T, handler func(method string) string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		method := gjson.GetBytes(body, "method").String()
		fmt.Fprint(w, handler(method))
	}))
}

func TestSOLBalance(t *testing.T) {
	srv := rpcServer(t, func(method string) string {
		require.Equal(t, "getBalance", method)
		return `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":2500000000}}`
	})
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	got, err := c.SOLBalance(context.Background(), "addr")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, got, 1e-9)
}

func TestTokenBalanceSumsAccounts(t *testing.T) {
	srv := rpcServer(t, func(method string) string {
		require.Equal(t, "getTokenAccountsByOwner", method)
		return `{"jsonrpc":"2.0","id":1,"result":{"value":[
			{"account":{"data":{"parsed":{"info":{"tokenAmount":{"uiAmount":10.5}}}}}},
			{"account":{"data":{"parsed":{"info":{"tokenAmount":{"uiAmount":4.5}}}}}}
		]}}`
	})
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	got, err := c.TokenBalance(context.Background(), "owner", "mint")
	require.NoError(t, err)
	assert.InDelta(t, 15.0, got, 1e-9)
}

func TestRPCError(t *testing.T) {
	srv := rpcServer(t, func(string) string {
		resp, _ := json.Marshal(map[string]interface{}{
			"jsonrpc": "2.0", "id": 1,
			"error": map[string]interface{}{"code": -32602, "message": "invalid params"},
		})
		return string(resp)
	})
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.SOLBalance(context.Background(), "addr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid params")
}
