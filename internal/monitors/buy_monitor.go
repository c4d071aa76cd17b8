package monitors

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/CrypTokGlobal/tickertrendingbot/internal/chains"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/clients_api/dexscreener"
	log "github.com/CrypTokGlobal/tickertrendingbot/internal/infra/log"
	"github.com/CrypTokGlobal/tickertrendingbot/internal/registry"
)

const (
	defaultPollInterval = 12 * time.Second
	// maxBlockRange caps a single log query; public RPC providers
	// reject unbounded ranges.
	maxBlockRange = 2000
)

// transferSource is the slice of the EVM connector the buy monitor
// needs: head tracking, Transfer logs and token decimals.
type transferSource interface {
	Chain() registry.Chain
	BlockNumber(ctx context.Context) (uint64, error)
	FilterTransfers(ctx context.Context, tokenAddrs []string, fromBlock, toBlock uint64) ([]chains.TokenTransfer, error)
	TokenDecimals(ctx context.Context, tokenAddress string) (int32, error)
}

// marketClient resolves a token's USD price and pool address.
type marketClient interface {
	GetTokenMarket(ctx context.Context, chain registry.Chain, address string) (*dexscreener.TokenMarket, error)
}

// tokenLister exposes the registry's per-chain watch list.
type tokenLister interface {
	Addresses(chain registry.Chain) []string
}

// RunBuyMonitor polls one EVM chain for Transfer logs on the tracked
// tokens and publishes a buy event for every transfer that leaves the
// token's trading pool. Runs until ctx is cancelled.
func RunBuyMonitor(ctx context.Context, src transferSource, tokens tokenLister, market marketClient, out *chains.ChannelSource, pollInterval time.Duration) {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	chain := src.Chain()
	log.LogInfo("Starting buy monitor",
		zap.String("chain", string(chain)),
		zap.Duration("pollInterval", pollInterval))

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastBlock uint64
	decimalsCache := make(map[string]int32)

	for {
		select {
		case <-ctx.Done():
			log.LogInfo("Buy monitor stopped", zap.String("chain", string(chain)))
			return
		case <-ticker.C:
			lastBlock = pollOnce(ctx, src, tokens, market, out, lastBlock, decimalsCache)
		}
	}
}

// pollOnce scans (lastBlock, head] and returns the new high-water mark.
// On failure lastBlock is returned unchanged so the range is retried.
func pollOnce(ctx context.Context, src transferSource, tokens tokenLister, market marketClient, out *chains.ChannelSource, lastBlock uint64, decimalsCache map[string]int32) uint64 {
	chain := src.Chain()

	watched := tokens.Addresses(chain)
	if len(watched) == 0 {
		// nothing tracked yet; keep following the head so tokens added
		// later start from fresh blocks
		head, err := src.BlockNumber(ctx)
		if err != nil {
			return lastBlock
		}
		return head
	}

	head, err := src.BlockNumber(ctx)
	if err != nil {
		log.LogWarn("Failed to read chain head",
			zap.String("chain", string(chain)),
			zap.Error(err))
		return lastBlock
	}

	if lastBlock == 0 || head <= lastBlock {
		return max(lastBlock, head)
	}

	fromBlock := lastBlock + 1
	if head-fromBlock > maxBlockRange {
		fromBlock = head - maxBlockRange
	}

	transfers, err := src.FilterTransfers(ctx, watched, fromBlock, head)
	if err != nil {
		log.LogWarn("Failed to fetch transfer logs",
			zap.String("chain", string(chain)),
			zap.Uint64("fromBlock", fromBlock),
			zap.Uint64("toBlock", head),
			zap.Error(err))
		return lastBlock
	}

	for _, tr := range transfers {
		handleTransfer(ctx, chain, tr, market, out, decimalsCache, src)
	}
	return head
}

func handleTransfer(ctx context.Context, chain registry.Chain, tr chains.TokenTransfer, market marketClient, out *chains.ChannelSource, decimalsCache map[string]int32, src transferSource) {
	mkt, err := market.GetTokenMarket(ctx, chain, tr.TokenAddress)
	if err != nil {
		log.LogDebug("No market data for transfer",
			zap.String("chain", string(chain)),
			zap.String("token", tr.TokenAddress),
			zap.Error(err))
		return
	}

	// a transfer out of the trading pool is a buy; everything else
	// (sells, wallet moves) is ignored
	if !strings.EqualFold(mkt.PairAddress, tr.From) {
		return
	}

	dec, ok := decimalsCache[tr.TokenAddress]
	if !ok {
		d, err := src.TokenDecimals(ctx, tr.TokenAddress)
		if err != nil {
			d = 18
		}
		dec = d
		decimalsCache[tr.TokenAddress] = dec
	}

	amount := decimal.NewFromBigInt(tr.RawAmount, -dec)
	usd := amount.Mul(mkt.PriceUsd)

	ev := chains.Event{
		Chain:        chain,
		TokenAddress: tr.TokenAddress,
		TxHash:       tr.TxHash,
		UsdValue:     usd,
		BuyerAmount:  amount,
		DexName:      mkt.DexName,
	}
	if !out.Publish(ev) {
		log.LogWarn("Event channel full, dropping buy event",
			zap.String("chain", string(chain)),
			zap.String("tx", tr.TxHash))
	}
}
