package chains

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrypTokGlobal/tickertrendingbot/internal/registry"
)

const testWallet = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

func rpcServer(t *testing.T, handler func(method string) (interface{}, *solanaRPCError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req solanaRPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, rpcErr := handler(req.Method)
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
		}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestSolanaGetBalance(t *testing.T) {
	srv := rpcServer(t, func(method string) (interface{}, *solanaRPCError) {
		assert.Equal(t, "getBalance", method)
		return map[string]interface{}{"value": 2500000000}, nil
	})
	defer srv.Close()

	c := NewSolanaConnector([]string{srv.URL}, 5*time.Second)

	balance, err := c.GetBalance(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Equal(t, "2.5", balance.String())
}

func TestSolanaGetBalanceRejectsBadAddress(t *testing.T) {
	c := NewSolanaConnector([]string{"http://unused.invalid"}, time.Second)

	_, err := c.GetBalance(context.Background(), "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984")
	assert.ErrorIs(t, err, registry.ErrInvalidAddress)
}

func TestSolanaEndpointFallback(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := rpcServer(t, func(method string) (interface{}, *solanaRPCError) {
		return uint64(123456), nil
	})
	defer good.Close()

	// first endpoint fails, second answers
	c := NewSolanaConnector([]string{bad.URL, good.URL}, 5*time.Second)
	assert.True(t, c.IsConnected(context.Background()))
}

func TestSolanaAllEndpointsFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	c := NewSolanaConnector([]string{bad.URL, bad.URL}, 5*time.Second)

	var slot uint64
	err := c.call(context.Background(), "getSlot", nil, &slot)
	assert.ErrorIs(t, err, ErrConnectionUnavailable)
	assert.False(t, c.IsConnected(context.Background()))
}

func TestSolanaRPCErrorSurfaces(t *testing.T) {
	srv := rpcServer(t, func(method string) (interface{}, *solanaRPCError) {
		return nil, &solanaRPCError{Code: -32602, Message: "invalid params"}
	})
	defer srv.Close()

	c := NewSolanaConnector([]string{srv.URL}, 5*time.Second)

	_, err := c.GetBalance(context.Background(), testWallet)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid params")
}

func TestSolanaGetTokenBalanceSumsAccounts(t *testing.T) {
	srv := rpcServer(t, func(method string) (interface{}, *solanaRPCError) {
		require.Equal(t, "getTokenAccountsByOwner", method)
		account := func(amount string, decimals int) map[string]interface{} {
			return map[string]interface{}{
				"account": map[string]interface{}{
					"data": map[string]interface{}{
						"parsed": map[string]interface{}{
							"info": map[string]interface{}{
								"tokenAmount": map[string]interface{}{
									"amount":   amount,
									"decimals": decimals,
								},
							},
						},
					},
				},
			}
		}
		return map[string]interface{}{
			"value": []interface{}{
				account("1500000", 6),
				account("500000", 6),
			},
		}, nil
	})
	defer srv.Close()

	c := NewSolanaConnector([]string{srv.URL}, 5*time.Second)

	balance, err := c.GetTokenBalance(context.Background(), testWallet, testWallet)
	require.NoError(t, err)
	assert.Equal(t, "2", balance.String())
}

func TestSolanaGasPriceMedian(t *testing.T) {
	srv := rpcServer(t, func(method string) (interface{}, *solanaRPCError) {
		require.Equal(t, "getRecentPrioritizationFees", method)
		return []map[string]interface{}{
			{"slot": 1, "prioritizationFee": 100},
			{"slot": 2, "prioritizationFee": 5000},
			{"slot": 3, "prioritizationFee": 300},
		}, nil
	})
	defer srv.Close()

	c := NewSolanaConnector([]string{srv.URL}, 5*time.Second)

	gas, err := c.GetGasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "300", gas.String())
	assert.Equal(t, "lamports", c.GasUnit())
}

func TestChannelSource(t *testing.T) {
	src := NewChannelSource(1)

	assert.True(t, src.Publish(Event{TxHash: "a"}))
	// buffer full, producer is not blocked
	assert.False(t, src.Publish(Event{TxHash: "b"}))

	ev := <-src.Events()
	assert.Equal(t, "a", ev.TxHash)

	src.Close()
	_, ok := <-src.Events()
	assert.False(t, ok)
}
