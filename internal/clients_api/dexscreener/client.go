package dexscreener

// HTTP client for the public Dexscreener API.
// Looks up a token's dominant trading pair: USD price, DEX name and the
// pair (pool) address the buy monitors match transfers against.
// Responses are cached briefly so a burst of transfers on one token
// does not hammer the API.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/CrypTokGlobal/tickertrendingbot/internal/infra/retry"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/registry"
)

const defaultBaseURL = "https://api.dexscreener.com"

var ErrNoMarketData = errors.New("no market data for token")

// TokenMarket describes a token's most liquid pair on its chain.
type TokenMarket struct {
	PriceUsd     decimal.Decimal
	DexName      string
	PairAddress  string
	LiquidityUsd float64
}

type cachedMarket struct {
	market    TokenMarket
	fetchedAt time.Time
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cacheTTL   time.Duration

	mu    sync.Mutex
	cache map[string]cachedMarket
}

func NewClient() *Client {
	return NewClientWithBaseURL(defaultBaseURL)
}

func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
		cacheTTL:   30 * time.Second,
		cache:      make(map[string]cachedMarket),
	}
}

// chainSlug maps a chain to Dexscreener's chainId values.
func chainSlug(chain registry.Chain) string {
	switch chain {
	case registry.ChainEthereum:
		return "ethereum"
	case registry.ChainBSC:
		return "bsc"
	case registry.ChainSolana:
		return "solana"
	}
	return ""
}

type pairsResponse struct {
	Pairs []struct {
		ChainID     string `json:"chainId"`
		DexID       string `json:"dexId"`
		PairAddress string `json:"pairAddress"`
		PriceUsd    string `json:"priceUsd"`
		Liquidity   struct {
			Usd float64 `json:"usd"`
		} `json:"liquidity"`
	} `json:"pairs"`
}

// GetTokenMarket returns the most liquid pair for (chain, address).
// Results are cached for a short TTL.
func (c *Client) GetTokenMarket(ctx context.Context, chain registry.Chain, address string) (*TokenMarket, error) {
	key := string(chain) + ":" + address

	c.mu.Lock()
	if cached, ok := c.cache[key]; ok && time.Since(cached.fetchedAt) < c.cacheTTL {
		c.mu.Unlock()
		market := cached.market
		return &market, nil
	}
	c.mu.Unlock()

	body, err := c.doGET(ctx, c.baseURL+"/latest/dex/tokens/"+address)
	if err != nil {
		return nil, err
	}

	var resp pairsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode dexscreener response: %w", err)
	}

	slug := chainSlug(chain)
	best := TokenMarket{}
	found := false
	for _, pair := range resp.Pairs {
		if pair.ChainID != slug || pair.PriceUsd == "" {
			continue
		}
		price, err := decimal.NewFromString(pair.PriceUsd)
		if err != nil {
			continue
		}
		if !found || pair.Liquidity.Usd > best.LiquidityUsd {
			best = TokenMarket{
				PriceUsd:     price,
				DexName:      pair.DexID,
				PairAddress:  strings.ToLower(pair.PairAddress),
				LiquidityUsd: pair.Liquidity.Usd,
			}
			found = true
		}
	}
	if !found {
		return nil, ErrNoMarketData
	}

	c.mu.Lock()
	c.cache[key] = cachedMarket{market: best, fetchedAt: time.Now()}
	c.mu.Unlock()

	market := best
	return &market, nil
}

var dexscreenerRetry = retry.Options{
	MaxRetries: 2,
	BaseDelay:  300 * time.Millisecond,
	MaxDelay:   5 * time.Second,
}

func (c *Client) doGET(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var respBody []byte
	err := retry.Do(ctx, dexscreenerRetry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		respBody = body

		if resp.StatusCode == http.StatusTooManyRequests {
			return &retry.RateLimitedError{
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				Err:        fmt.Errorf("HTTP 429 from %s", url),
			}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("HTTP error: %d - %s", resp.StatusCode, resp.Status)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dexscreener GET failed: %w", err)
	}
	return respBody, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
