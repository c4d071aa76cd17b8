package chains

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrypTokGlobal/tickertrendingbot/internal/registry"
)

// evmRPCServer answers go-ethereum JSON-RPC calls with canned results
// per method. The failing flag simulates an endpoint going down.
func evmRPCServer(t *testing.T, results map[string]interface{}, failing *atomic.Bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing != nil && failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
		}
		if result, ok := results[req.Method]; ok {
			resp["result"] = result
		} else {
			resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestEVMBlockNumber(t *testing.T) {
	srv := evmRPCServer(t, map[string]interface{}{"eth_blockNumber": "0x10"}, nil)
	defer srv.Close()

	c := NewEVMConnector(registry.ChainEthereum, []string{srv.URL}, 5*time.Second)
	defer c.Close()

	head, err := c.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(16), head)
}

func TestEVMGasPriceInGwei(t *testing.T) {
	srv := evmRPCServer(t, map[string]interface{}{"eth_gasPrice": "0x3b9aca00"}, nil) // 1 gwei
	defer srv.Close()

	c := NewEVMConnector(registry.ChainBSC, []string{srv.URL}, 5*time.Second)
	defer c.Close()

	gas, err := c.GetGasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", gas.String())
	assert.Equal(t, "gwei", c.GasUnit())
}

func TestEVMEndpointFallback(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := evmRPCServer(t, map[string]interface{}{"eth_blockNumber": "0x2a"}, nil)
	defer good.Close()

	// first endpoint fails, second answers and becomes the active one
	c := NewEVMConnector(registry.ChainEthereum, []string{bad.URL, good.URL}, 5*time.Second)
	defer c.Close()

	assert.True(t, c.IsConnected(context.Background()))
	assert.Equal(t, good.URL, c.ActiveEndpoint())
}

func TestEVMAllEndpointsFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	c := NewEVMConnector(registry.ChainEthereum, []string{bad.URL, bad.URL}, 5*time.Second)
	defer c.Close()

	_, err := c.GetGasPrice(context.Background())
	assert.ErrorIs(t, err, ErrConnectionUnavailable)
	assert.False(t, c.IsConnected(context.Background()))
}

func TestEVMCachedEndpointFailureFallsBack(t *testing.T) {
	var firstDown atomic.Bool
	first := evmRPCServer(t, map[string]interface{}{"eth_blockNumber": "0x10"}, &firstDown)
	defer first.Close()

	second := evmRPCServer(t, map[string]interface{}{"eth_blockNumber": "0x11"}, nil)
	defer second.Close()

	c := NewEVMConnector(registry.ChainEthereum, []string{first.URL, second.URL}, 5*time.Second)
	defer c.Close()

	head, err := c.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(16), head)
	require.Equal(t, first.URL, c.ActiveEndpoint())

	// the cached connection starts failing; the next call walks the
	// list again and lands on the second endpoint
	firstDown.Store(true)

	head, err = c.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(17), head)
	assert.Equal(t, second.URL, c.ActiveEndpoint())
}
