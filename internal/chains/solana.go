package chains

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	log "github.com/CrypTokGlobal/tickertrendingbot/internal/infra/log"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/registry"
)

// SolanaConnector speaks JSON-RPC 2.0 to a prioritized list of Solana
// endpoints, stopping at the first one that answers.
type SolanaConnector struct {
	endpoints []string
	timeout   time.Duration
	client    *http.Client

	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	requestID atomic.Uint64
}

func NewSolanaConnector(endpoints []string, timeout time.Duration) *SolanaConnector {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "solana-rpc",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &SolanaConnector{
		endpoints: endpoints,
		timeout:   timeout,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(10), 20),
		breaker:   breaker,
	}
}

func (c *SolanaConnector) Chain() registry.Chain { return registry.ChainSolana }

func (c *SolanaConnector) GasUnit() string { return "lamports" }

type solanaRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type solanaRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *solanaRPCError `json:"error,omitempty"`
}

type solanaRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *solanaRPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call walks the endpoint list in priority order and decodes the first
// successful result into result.
func (c *SolanaConnector) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.tryEndpoints(ctx, method, params, result)
	})
	return err
}

func (c *SolanaConnector) tryEndpoints(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqBody := solanaRPCRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal RPC request: %w", err)
	}

	var lastErr error
	for _, endpoint := range c.endpoints {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := c.callEndpoint(ctx, endpoint, payload, result)
		if err == nil {
			return nil
		}
		lastErr = err
		log.LogDebug("Solana endpoint call failed",
			zap.String("endpoint", endpoint),
			zap.String("method", method),
			zap.Error(err))
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %v", ErrConnectionUnavailable, lastErr)
	}
	return ErrConnectionUnavailable
}

func (c *SolanaConnector) callEndpoint(ctx context.Context, endpoint string, payload []byte, result interface{}) error {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("HTTP error: %d - %s", resp.StatusCode, resp.Status)
	}

	var rpcResp solanaRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}
	return nil
}

func (c *SolanaConnector) IsConnected(ctx context.Context) bool {
	var slot uint64
	return c.call(ctx, "getSlot", nil, &slot) == nil
}

// SOL has 9 decimal places (1 SOL = 1e9 lamports).
const solDecimals = 9

type solanaBalanceResult struct {
	Value uint64 `json:"value"`
}

func (c *SolanaConnector) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	addr, err := registry.NormalizeAddress(registry.ChainSolana, address)
	if err != nil {
		return decimal.Zero, err
	}

	var result solanaBalanceResult
	if err := c.call(ctx, "getBalance", []interface{}{addr}, &result); err != nil {
		return decimal.Zero, err
	}

	return decimal.New(int64(result.Value), -solDecimals), nil
}

type solanaTokenAccountsResult struct {
	Value []struct {
		Account struct {
			Data struct {
				Parsed struct {
					Info struct {
						TokenAmount struct {
							Amount   string `json:"amount"`
							Decimals int32  `json:"decimals"`
						} `json:"tokenAmount"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"account"`
	} `json:"value"`
}

// GetTokenBalance sums the owner's parsed token accounts for the mint.
func (c *SolanaConnector) GetTokenBalance(ctx context.Context, tokenAddress, owner string) (decimal.Decimal, error) {
	mint, err := registry.NormalizeAddress(registry.ChainSolana, tokenAddress)
	if err != nil {
		return decimal.Zero, err
	}
	ownerAddr, err := registry.NormalizeAddress(registry.ChainSolana, owner)
	if err != nil {
		return decimal.Zero, err
	}

	var result solanaTokenAccountsResult
	params := []interface{}{
		ownerAddr,
		map[string]interface{}{"mint": mint},
		map[string]interface{}{"encoding": "jsonParsed"},
	}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, acct := range result.Value {
		amount := acct.Account.Data.Parsed.Info.TokenAmount
		raw, err := decimal.NewFromString(amount.Amount)
		if err != nil {
			log.LogWarn("Skipping token account with malformed amount",
				zap.String("mint", mint),
				zap.String("amount", amount.Amount))
			continue
		}
		total = total.Add(raw.Shift(-amount.Decimals))
	}
	return total, nil
}

type solanaPrioritizationFee struct {
	Slot              uint64 `json:"slot"`
	PrioritizationFee uint64 `json:"prioritizationFee"`
}

// GetGasPrice returns the median recent prioritization fee in lamports,
// the closest analogue Solana offers to a gas price.
func (c *SolanaConnector) GetGasPrice(ctx context.Context) (decimal.Decimal, error) {
	var fees []solanaPrioritizationFee
	if err := c.call(ctx, "getRecentPrioritizationFees", []interface{}{}, &fees); err != nil {
		return decimal.Zero, err
	}

	if len(fees) == 0 {
		return decimal.Zero, nil
	}

	values := make([]uint64, 0, len(fees))
	for _, f := range fees {
		values = append(values, f.PrioritizationFee)
	}
	for i := 1; i < len(values); i++ {
		for j := i; j > 0 && values[j-1] > values[j]; j-- {
			values[j-1], values[j] = values[j], values[j-1]
		}
	}

	return decimal.New(int64(values[len(values)/2]), 0), nil
}
