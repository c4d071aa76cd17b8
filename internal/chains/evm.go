package chains

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	log "github.com/CrypTokGlobal/tickertrendingbot/internal/infra/log"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/registry"
)

// ERC-20 selectors used for raw eth_call lookups.
var (
	balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31} // balanceOf(address)
	decimalsSelector  = []byte{0x31, 0x3c, 0xe5, 0x67} // decimals()
)

// keccak256("Transfer(address,address,uint256)")
var transferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// TokenTransfer is one decoded ERC-20 Transfer log. RawAmount is in the
// token's smallest unit; callers adjust it with the token's decimals.
type TokenTransfer struct {
	TokenAddress string
	TxHash       string
	From         string
	To           string
	RawAmount    *big.Int
}

const evmDefaultDecimals = 18

// EVMConnector serves Ethereum and BSC through go-ethereum, trying a
// prioritized endpoint list with a per-attempt timeout and stopping at
// the first success.
type EVMConnector struct {
	chain     registry.Chain
	endpoints []string
	timeout   time.Duration

	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker

	mu        sync.Mutex
	client    *ethclient.Client
	activeURL string
}

// NewEVMConnector builds a connector for an EVM chain. Dialing is lazy;
// the first call picks the first endpoint that answers.
func NewEVMConnector(chain registry.Chain, endpoints []string, timeout time.Duration) *EVMConnector {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(chain) + "-rpc",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &EVMConnector{
		chain:     chain,
		endpoints: endpoints,
		timeout:   timeout,
		limiter:   rate.NewLimiter(rate.Limit(10), 20),
		breaker:   breaker,
	}
}

func (c *EVMConnector) Chain() registry.Chain { return c.chain }

func (c *EVMConnector) GasUnit() string { return "gwei" }

// withClient runs fn against a live client, falling through the
// endpoint list in priority order when the cached connection fails.
func (c *EVMConnector) withClient(ctx context.Context, fn func(ctx context.Context, client *ethclient.Client) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.tryEndpoints(ctx, fn)
	})
	return err
}

func (c *EVMConnector) tryEndpoints(ctx context.Context, fn func(ctx context.Context, client *ethclient.Client) error) error {
	c.mu.Lock()
	cached := c.client
	c.mu.Unlock()

	if cached != nil {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := fn(attemptCtx, cached)
		cancel()
		if err == nil {
			return nil
		}
		log.LogDebug("Cached EVM endpoint failed, falling back",
			zap.String("chain", string(c.chain)),
			zap.Error(err))
	}

	var lastErr error
	for _, endpoint := range c.endpoints {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		client, err := ethclient.DialContext(attemptCtx, endpoint)
		if err != nil {
			cancel()
			lastErr = err
			log.LogDebug("Failed to dial EVM endpoint",
				zap.String("chain", string(c.chain)),
				zap.String("endpoint", endpoint),
				zap.Error(err))
			continue
		}

		err = fn(attemptCtx, client)
		cancel()
		if err != nil {
			client.Close()
			lastErr = err
			log.LogDebug("EVM endpoint call failed",
				zap.String("chain", string(c.chain)),
				zap.String("endpoint", endpoint),
				zap.Error(err))
			continue
		}

		c.mu.Lock()
		if c.client != nil && c.client != client {
			c.client.Close()
		}
		c.client = client
		c.activeURL = endpoint
		c.mu.Unlock()
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %v", ErrConnectionUnavailable, lastErr)
	}
	return ErrConnectionUnavailable
}

func (c *EVMConnector) IsConnected(ctx context.Context) bool {
	err := c.withClient(ctx, func(ctx context.Context, client *ethclient.Client) error {
		_, err := client.BlockNumber(ctx)
		return err
	})
	return err == nil
}

func (c *EVMConnector) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	addr, err := registry.NormalizeAddress(c.chain, address)
	if err != nil {
		return decimal.Zero, err
	}

	var wei *big.Int
	err = c.withClient(ctx, func(ctx context.Context, client *ethclient.Client) error {
		balance, err := client.BalanceAt(ctx, common.HexToAddress(addr), nil)
		if err != nil {
			return err
		}
		wei = balance
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	return decimal.NewFromBigInt(wei, -evmDefaultDecimals), nil
}

func (c *EVMConnector) GetTokenBalance(ctx context.Context, tokenAddress, owner string) (decimal.Decimal, error) {
	token, err := registry.NormalizeAddress(c.chain, tokenAddress)
	if err != nil {
		return decimal.Zero, err
	}
	ownerAddr, err := registry.NormalizeAddress(c.chain, owner)
	if err != nil {
		return decimal.Zero, err
	}

	tokenCommon := common.HexToAddress(token)

	// balanceOf(owner)
	callData := make([]byte, 0, 36)
	callData = append(callData, balanceOfSelector...)
	callData = append(callData, common.LeftPadBytes(common.HexToAddress(ownerAddr).Bytes(), 32)...)

	var raw []byte
	var decRaw []byte
	err = c.withClient(ctx, func(ctx context.Context, client *ethclient.Client) error {
		out, err := client.CallContract(ctx, ethereum.CallMsg{To: &tokenCommon, Data: callData}, nil)
		if err != nil {
			return err
		}
		raw = out

		// decimals() failing is non-fatal; 18 is assumed below.
		decRaw, _ = client.CallContract(ctx, ethereum.CallMsg{To: &tokenCommon, Data: decimalsSelector}, nil)
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	balance := new(big.Int).SetBytes(raw)

	tokenDecimals := int32(evmDefaultDecimals)
	if len(decRaw) > 0 {
		d := new(big.Int).SetBytes(decRaw).Int64()
		if d >= 0 && d <= 77 {
			tokenDecimals = int32(d)
		}
	}

	return decimal.NewFromBigInt(balance, -tokenDecimals), nil
}

// BlockNumber returns the current head block number.
func (c *EVMConnector) BlockNumber(ctx context.Context) (uint64, error) {
	var head uint64
	err := c.withClient(ctx, func(ctx context.Context, client *ethclient.Client) error {
		n, err := client.BlockNumber(ctx)
		if err != nil {
			return err
		}
		head = n
		return nil
	})
	return head, err
}

// TokenDecimals reads a token's decimals() value. Tokens that do not
// answer are assumed to use the common 18.
func (c *EVMConnector) TokenDecimals(ctx context.Context, tokenAddress string) (int32, error) {
	token, err := registry.NormalizeAddress(c.chain, tokenAddress)
	if err != nil {
		return 0, err
	}
	tokenCommon := common.HexToAddress(token)

	var raw []byte
	err = c.withClient(ctx, func(ctx context.Context, client *ethclient.Client) error {
		out, err := client.CallContract(ctx, ethereum.CallMsg{To: &tokenCommon, Data: decimalsSelector}, nil)
		if err != nil {
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(raw) > 0 {
		d := new(big.Int).SetBytes(raw).Int64()
		if d >= 0 && d <= 77 {
			return int32(d), nil
		}
	}
	return evmDefaultDecimals, nil
}

// FilterTransfers fetches the ERC-20 Transfer logs emitted by the given
// token contracts in [fromBlock, toBlock].
func (c *EVMConnector) FilterTransfers(ctx context.Context, tokenAddrs []string, fromBlock, toBlock uint64) ([]TokenTransfer, error) {
	addresses := make([]common.Address, 0, len(tokenAddrs))
	for _, a := range tokenAddrs {
		addresses = append(addresses, common.HexToAddress(a))
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
		Topics:    [][]common.Hash{{transferTopic}},
	}

	var logs []types.Log
	err := c.withClient(ctx, func(ctx context.Context, client *ethclient.Client) error {
		out, err := client.FilterLogs(ctx, query)
		if err != nil {
			return err
		}
		logs = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	transfers := make([]TokenTransfer, 0, len(logs))
	for _, lg := range logs {
		// ERC-20 Transfer carries exactly from/to as indexed topics;
		// ERC-721 adds a third and is skipped.
		if len(lg.Topics) != 3 {
			continue
		}
		transfers = append(transfers, TokenTransfer{
			TokenAddress: strings.ToLower(lg.Address.Hex()),
			TxHash:       lg.TxHash.Hex(),
			From:         strings.ToLower(common.BytesToAddress(lg.Topics[1].Bytes()).Hex()),
			To:           strings.ToLower(common.BytesToAddress(lg.Topics[2].Bytes()).Hex()),
			RawAmount:    new(big.Int).SetBytes(lg.Data),
		})
	}
	return transfers, nil
}

func (c *EVMConnector) GetGasPrice(ctx context.Context) (decimal.Decimal, error) {
	var wei *big.Int
	err := c.withClient(ctx, func(ctx context.Context, client *ethclient.Client) error {
		price, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return err
		}
		wei = price
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	// wei -> gwei
	return decimal.NewFromBigInt(wei, -9), nil
}

// ActiveEndpoint reports the endpoint currently in use, for status
// display.
func (c *EVMConnector) ActiveEndpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeURL
}

// Close releases the underlying client, if any.
func (c *EVMConnector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.Close()
		c.client = nil
		c.activeURL = ""
	}
}
