package chains

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/CrypTokGlobal/tickertrendingbot/internal/registry"
)

// ErrConnectionUnavailable is returned once every configured fallback
// endpoint for a chain has been exhausted.
var ErrConnectionUnavailable = errors.New("connection unavailable")

// Connector is the narrow per-chain contract the bot consumes. One
// long-lived connector exists per chain and is injected where needed.
type Connector interface {
	Chain() registry.Chain
	IsConnected(ctx context.Context) bool
	// GetBalance returns the native-currency balance of an address in
	// whole units (ETH, BNB, SOL).
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)
	// GetTokenBalance returns the owner's balance of a token, adjusted
	// for the token's decimals.
	GetTokenBalance(ctx context.Context, tokenAddress, owner string) (decimal.Decimal, error)
	// GetGasPrice returns the current gas price in GasUnit units.
	GetGasPrice(ctx context.Context) (decimal.Decimal, error)
	GasUnit() string
}

// Event is one observed qualifying transaction on a tracked token,
// produced by a chain event source and consumed by the dispatcher.
type Event struct {
	Chain        registry.Chain
	TokenAddress string
	TxHash       string
	UsdValue     decimal.Decimal
	// PriceImpactPercent <= 0 means the source could not estimate it.
	PriceImpactPercent float64
	BuyerAmount        decimal.Decimal // tokens received
	QuoteSpent         decimal.Decimal // native currency spent
	DexName            string
}

// Source emits chain events. The source is responsible for not
// re-delivering the same transaction.
type Source interface {
	Events() <-chan Event
}
